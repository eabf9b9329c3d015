package api

import (
	"net/http"

	"release-hub/internal/server/catalog"
	"release-hub/pkg/code"
	"release-hub/pkg/e"
	"release-hub/pkg/response"
)

// ListReleases 枚举全部已知发布
// GET /api/releases
func (h *ServerHandler) ListReleases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.Error(w, e.New(code.MethodNotAllowed, "Method not allowed", nil))
		return
	}
	w.Header().Set("Cache-Control", "no-cache")

	rows, err := h.cat.ListReleases(r.Context())
	if err != nil {
		response.Error(w, storageError("枚举发布列表失败", err))
		return
	}
	if rows == nil {
		// 空目录输出 []，不输出 null
		rows = []catalog.ReleaseRow{}
	}
	response.Success(w, map[string]interface{}{"releases": rows})
}
