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

// Recommend 为下载页等公开调用方推荐最新版本
// GET /api/recommend/{target}/{arch}/{current_version}
// 不走共享密钥鉴权；返回扁平结构 (url/signature 在顶层)，不是 Tauri Manifest
func (h *ServerHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.Error(w, e.New(code.MethodNotAllowed, "Method not allowed", nil))
		return
	}

	parts := pathSegments(r.URL.Path, "/api/recommend/")
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
		response.Success(w, h.builder.BuildNoRecommendation(target, arch, current))
		return
	}
	response.Success(w, h.builder.BuildRecommendation(res, target, current))
}
