package api

import (
	"errors"
	"net/http"

	"release-hub/internal/server/catalog"
	"release-hub/pkg/code"
	"release-hub/pkg/e"
	"release-hub/pkg/relkey"
	"release-hub/pkg/response"
)

// CheckVersion 为更新客户端解析"有没有更新的版本"
// GET /api/version/{target}/{arch}/{version}
func (h *ServerHandler) CheckVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.Error(w, e.New(code.MethodNotAllowed, "Method not allowed", nil))
		return
	}

	parts := pathSegments(r.URL.Path, "/api/version/")
	if len(parts) != 3 {
		response.Error(w, e.New(code.ParamError, "缺少 target/arch/version 参数", nil))
		return
	}
	target, arch, current := parts[0], parts[1], parts[2]
	for _, seg := range parts {
		if err := relkey.ValidateSegment(seg); err != nil {
			response.Error(w, e.New(code.BadCoordinate, "路径参数含非法字符", err))
			return
		}
	}

	res, err := h.cat.ResolveLatest(r.Context(), target, arch, current)
	if err != nil {
		if errors.Is(err, catalog.ErrBadCurrentVersion) {
			response.Error(w, e.New(code.BadVersion, "客户端版本号不是合法的 SemVer", err))
			return
		}
		response.Error(w, storageError("版本解析失败", err))
		return
	}

	if res == nil {
		// 无更新也返回完整 Manifest，回显客户端当前版本
		response.Success(w, h.builder.BuildNoUpdate(target, arch, current))
		return
	}
	response.Success(w, h.builder.BuildUpdate(res, target, arch))
}
