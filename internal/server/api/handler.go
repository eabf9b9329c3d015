package api

import (
	"strings"

	"release-hub/internal/server/catalog"
	"release-hub/internal/server/manifest"
	"release-hub/internal/server/passcode"
	"release-hub/pkg/code"
	"release-hub/pkg/config"
	"release-hub/pkg/e"
	"release-hub/pkg/storage"
)

// ServerHandler 持有所有业务逻辑依赖
// 这种结构允许我们在测试时注入内存后端
type ServerHandler struct {
	cat     *catalog.Catalog
	builder *manifest.Builder
	store   storage.Backend
	pass    *passcode.Manager
	cfg     *config.Config
}

// NewServerHandler 构造函数
func NewServerHandler(
	cat *catalog.Catalog,
	builder *manifest.Builder,
	store storage.Backend,
	pass *passcode.Manager,
	cfg *config.Config,
) *ServerHandler {
	return &ServerHandler{
		cat:     cat,
		builder: builder,
		store:   store,
		pass:    pass,
		cfg:     cfg,
	}
}

// pathSegments 取出 prefix 之后的路径段
func pathSegments(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

// storageError 把存储层错误映射为业务错误
// 数据完整性事件单独归类，日志里必须可检索
func storageError(msg string, err error) *e.CodeError {
	if storage.IsCorrupt(err) {
		return e.New(code.StorageCorruption, "存储数据不一致", err)
	}
	return e.New(code.StorageFailed, msg, err)
}
