package api

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/Masterminds/semver/v3"

	"release-hub/pkg/code"
	"release-hub/pkg/e"
	"release-hub/pkg/relkey"
	"release-hub/pkg/response"
	"release-hub/pkg/storage"
)

// Upload 处理制品上传 (Stream 模式，支持大文件)
// POST /api/upload/{target}/{arch}/{format}/{version}  版本目录形态，元数据走 Header
// POST /api/upload/{target}/{arch}/{version}           简化形态，元数据走表单字段
func (h *ServerHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.Error(w, e.New(code.MethodNotAllowed, "Method not allowed", nil))
		return
	}

	parts := pathSegments(r.URL.Path, "/api/upload/")
	var coord relkey.Coordinate
	switch len(parts) {
	case 4:
		coord = relkey.Coordinate{
			Channel: h.cfg.Release.Channel,
			Target:  parts[0], Arch: parts[1], Format: parts[2], Version: parts[3],
		}
	case 3:
		coord = relkey.Coordinate{
			Target: parts[0], Arch: parts[1], Version: parts[2],
		}
	default:
		response.Error(w, e.New(code.BadCoordinate, "上传路径深度无效", nil))
		return
	}
	for _, seg := range parts {
		if err := relkey.ValidateSegment(seg); err != nil {
			response.Error(w, e.New(code.BadCoordinate, "路径坐标含非法字符", err))
			return
		}
	}
	if _, err := semver.NewVersion(coord.Version); err != nil {
		response.Error(w, e.New(code.BadVersion, "版本号不是合法的 SemVer", err))
		return
	}

	// 版本目录形态的元数据从 Header 取
	meta := &storage.Metadata{
		Signature:   r.Header.Get("x-signature"),
		PublishDate: time.Now().UTC(),
	}
	if pubDate := r.Header.Get("x-pub-date"); pubDate != "" {
		t, err := time.Parse(time.RFC3339, pubDate)
		if err != nil {
			response.Error(w, e.New(code.ParamError, "x-pub-date 不是 RFC3339 时间", err))
			return
		}
		meta.PublishDate = t
	}
	if notesB64 := r.Header.Get("x-notes"); notesB64 != "" {
		// Notes 走 Header 必须 base64，落库前解回 UTF-8
		decoded, err := base64.StdEncoding.DecodeString(notesB64)
		if err != nil {
			response.Error(w, e.New(code.ParamError, "x-notes 不是合法 base64", err))
			return
		}
		meta.Notes = string(decoded)
	}

	// 上传体大小保护
	if h.cfg.Server.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Server.MaxUploadBytes)
	}

	// 1. 获取 Multipart Reader (不预加载到内存)
	reader, err := r.MultipartReader()
	if err != nil {
		response.Error(w, e.New(code.ParamError, "无法解析上传请求", err))
		return
	}

	// 2. 遍历 Part 寻找 file 字段
	// 简化形态的 signature/notes 表单字段在 file 之前出现
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			response.Error(w, e.New(code.UploadFailed, "读取上传流中断", err))
			return
		}

		switch part.FormName() {
		case "signature":
			if v, err := readSmallField(part); err == nil && v != "" {
				meta.Signature = v
			}
		case "notes":
			if v, err := readSmallField(part); err == nil && v != "" {
				meta.Notes = v
			}
		case "file":
			filename := path.Base(part.FileName())
			if err := relkey.ValidateSegment(filename); err != nil {
				response.Error(w, e.New(code.BadCoordinate, "文件名含非法字符", err))
				return
			}
			coord.Filename = filename

			var storePath string
			var encErr error
			if coord.Channel != "" {
				storePath, encErr = coord.EncodeCatalog()
			} else {
				storePath, encErr = coord.EncodePlain()
			}
			if encErr != nil {
				response.Error(w, e.New(code.BadCoordinate, "发布坐标编码失败", encErr))
				return
			}

			// 3. 流式写入存储 (内容与元数据是一个整体)
			if err := h.store.Put(r.Context(), storePath, part, -1, meta); err != nil {
				response.Error(w, e.New(code.UploadFailed, fmt.Sprintf("存储写入失败: %v", err), err))
				return
			}

			// 4. 成功响应
			response.Success(w, map[string]interface{}{
				"success":  true,
				"filePath": storePath,
			})
			return
		}
	}

	// 循环结束还没找到 file 字段
	response.Error(w, e.New(code.ParamError, "未找到 file 表单字段", nil))
}

// readSmallField 读取一个小表单字段，防止恶意超长字段占内存
func readSmallField(part io.Reader) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(part, 64*1024))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
