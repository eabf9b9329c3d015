package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"release-hub/internal/server/passcode"
	"release-hub/pkg/code"
	"release-hub/pkg/e"
	"release-hub/pkg/relkey"
	"release-hub/pkg/response"
)

// GenerateDownloadCode 签发一次性下载口令
// POST /api/download-code  body: {"email": "..."}
func (h *ServerHandler) GenerateDownloadCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.Error(w, e.New(code.MethodNotAllowed, "Method not allowed", nil))
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, e.New(code.InvalidJSON, "JSON解析失败", err))
		return
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		response.Error(w, e.New(code.ParamError, "缺少有效的 email", nil))
		return
	}

	pc, err := h.pass.Generate(r.Context(), req.Email)
	if err != nil {
		response.Error(w, e.New(code.DatabaseError, "口令生成失败", err))
		return
	}

	response.Success(w, map[string]interface{}{
		"success":  true,
		"passcode": pc,
		"expires":  "in " + h.cfg.Release.PasscodeTTL.String(),
	})
}

// DmgDownload 口令换取最新 .dmg
// GET /api/dmg-download/{code}/{target}[/{arch}]
// 不走共享密钥鉴权，口令本身就是凭证；arch 缺省 aarch64
func (h *ServerHandler) DmgDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.Error(w, e.New(code.MethodNotAllowed, "Method not allowed", nil))
		return
	}

	parts := pathSegments(r.URL.Path, "/api/dmg-download/")
	if len(parts) < 2 || len(parts) > 3 {
		response.Error(w, e.New(code.ParamError, "缺少 passcode/target 参数", nil))
		return
	}
	pc, target := parts[0], parts[1]
	arch := "aarch64"
	if len(parts) == 3 {
		arch = parts[2]
	}
	if err := relkey.ValidateSegment(target); err != nil {
		response.Error(w, e.New(code.BadCoordinate, "路径参数含非法字符", err))
		return
	}
	if err := relkey.ValidateSegment(arch); err != nil {
		response.Error(w, e.New(code.BadCoordinate, "路径参数含非法字符", err))
		return
	}

	// 1. 先验口令，验不过绝不碰存储
	if _, err := h.pass.Validate(r.Context(), pc); err != nil {
		if errors.Is(err, passcode.ErrInvalidCode) {
			response.Error(w, e.New(code.PasscodeInvalid, "口令无效或已过期", nil))
			return
		}
		response.Error(w, e.New(code.DatabaseError, "口令校验失败", err))
		return
	}

	// 2. 以 0.0.0 为基准解析，即"当前最新版本"
	res, err := h.cat.ResolveLatest(r.Context(), target, arch, "0.0.0")
	if err != nil {
		response.Error(w, storageError("版本解析失败", err))
		return
	}
	if res == nil {
		response.Error(w, e.New(code.ReleaseNotFound, "该平台暂无可用版本", nil))
		return
	}

	// 3. .dmg 安装包放在简化形态路径下，文件名按产品约定拼出
	version := res.Coord.Version
	dmgName := fmt.Sprintf("%s.%s.%s.dmg", h.cfg.Release.ProductName, version, arch)
	coord := relkey.Coordinate{Target: target, Arch: arch, Version: version, Filename: dmgName}
	storePath, err := coord.EncodePlain()
	if err != nil {
		response.Error(w, e.New(code.BadCoordinate, "发布坐标编码失败", err))
		return
	}

	h.streamArtifact(w, r, storePath, fmt.Sprintf("%s-%s.dmg", h.cfg.Release.ProductName, version))
}
