package api

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"release-hub/pkg/response"
)

var startTime = time.Now()

// Status 状态页，唯一不需要鉴权的端点
// GET /
func (h *ServerHandler) Status(w http.ResponseWriter, r *http.Request) {
	// "/" 会兜住所有未注册路径，其余一律 404
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	status := map[string]interface{}{
		"service":    "release-hub",
		"status":     "ok",
		"storage":    h.cfg.Storage.Type,
		"channel":    h.cfg.Release.Channel,
		"uptime_sec": int64(time.Since(startTime).Seconds()),
	}

	// 主机信息尽力而为，采集失败不影响状态页本身
	if info, err := host.Info(); err == nil {
		status["hostname"] = info.Hostname
		status["os"] = info.OS
		status["platform"] = info.Platform
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		status["mem_used_percent"] = vm.UsedPercent
	}

	response.Success(w, status)
}
