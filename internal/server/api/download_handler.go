package api

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"release-hub/pkg/code"
	"release-hub/pkg/e"
	"release-hub/pkg/relkey"
	"release-hub/pkg/response"
	"release-hub/pkg/storage"
)

// 固定的扩展名 → Content-Type 表
// 不做内容嗅探，制品类型由文件名约定决定
var contentTypes = map[string]string{
	".dmg":    "application/x-apple-diskimage",
	".zip":    "application/zip",
	".gz":     "application/gzip",
	".tar.gz": "application/gzip",
}

func contentTypeFor(filename string) string {
	lower := strings.ToLower(filename)
	if strings.HasSuffix(lower, ".tar.gz") {
		return contentTypes[".tar.gz"]
	}
	if idx := strings.LastIndex(lower, "."); idx >= 0 {
		if ct, ok := contentTypes[lower[idx:]]; ok {
			return ct
		}
	}
	return "application/octet-stream"
}

// Download 流式下载制品
// GET /api/download/{target}/{arch}/{version}/{filename}                    简化形态
// GET /api/download/{channel}/{target}/{arch}/{format}/{version}/{filename} 版本目录形态
func (h *ServerHandler) Download(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.Error(w, e.New(code.MethodNotAllowed, "Method not allowed", nil))
		return
	}

	parts := pathSegments(r.URL.Path, "/api/download/")

	// 深度决定形态；两种都不是的深度直接拒绝
	var coord relkey.Coordinate
	var err error
	switch len(parts) {
	case 4:
		coord, err = relkey.Decode(relkey.ShapePlain, strings.Join(parts, "/"))
	case 6:
		coord, err = relkey.Decode(relkey.ShapeCatalog, strings.Join(parts, "/"))
	default:
		response.Error(w, e.New(code.BadCoordinate, "下载路径深度无效", relkey.ErrAmbiguousShape))
		return
	}
	if err != nil {
		response.Error(w, e.New(code.BadCoordinate, "下载路径无效", err))
		return
	}

	storePath := strings.Join(parts, "/")
	h.streamArtifact(w, r, storePath, coord.Filename)
}

// streamArtifact 校验存在性后把对象流透传给客户端
// 消费速率由客户端决定；客户端断开时 r.Context() 取消，后端读取随之中止
func (h *ServerHandler) streamArtifact(w http.ResponseWriter, r *http.Request, storePath, filename string) {
	ok, err := h.store.Exists(r.Context(), storePath)
	if err != nil {
		response.Error(w, e.New(code.StorageFailed, "存储后端查询失败", err))
		return
	}
	if !ok {
		response.Error(w, e.New(code.ReleaseNotFound, "制品不存在", nil))
		return
	}

	rc, err := h.store.Get(r.Context(), storePath)
	if err != nil {
		var se *storage.Error
		if errors.As(err, &se) && se.Kind == storage.ErrNotFound {
			// Exists 和 Get 之间被删掉了
			response.Error(w, e.New(code.ReleaseNotFound, "制品不存在", err))
			return
		}
		response.Error(w, e.New(code.StorageFailed, "存储后端读取失败", err))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentTypeFor(filename))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	if _, err := io.Copy(w, rc); err != nil {
		// 响应头已发出，只能记日志 (多数是客户端中途断开)
		log.Printf("[Download] stream aborted for %s: %v", storePath, err)
	}
}
