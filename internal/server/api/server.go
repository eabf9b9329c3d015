package api

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"release-hub/internal/server/catalog"
	"release-hub/internal/server/db"
	"release-hub/internal/server/manifest"
	"release-hub/internal/server/middleware"
	"release-hub/internal/server/passcode"
	"release-hub/pkg/config"
	"release-hub/pkg/storage"
)

// StartServer 启动发布分发 HTTP 服务
func StartServer(cfg *config.Config) error {
	// 1. 初始化口令数据库
	database := db.InitDB(cfg.Server.DBPath)

	// 2. 初始化存储后端 (启动时二选一，运行期不混用)
	var store storage.Backend
	var err error

	if cfg.Storage.Type == "minio" {
		log.Printf("Using MinIO Storage: %s/%s", cfg.Storage.Minio.Endpoint, cfg.Storage.Minio.Bucket)
		store, err = storage.NewMinio(
			cfg.Storage.Minio.Endpoint,
			cfg.Storage.Minio.AK,
			cfg.Storage.Minio.SK,
			cfg.Storage.Minio.Bucket,
			cfg.Storage.Minio.UseSSL,
			cfg.Storage.OpTimeout,
		)
	} else {
		log.Printf("Using Local Storage: %s", cfg.Storage.LocalDir)
		store, err = storage.NewLocal(cfg.Storage.LocalDir, cfg.Storage.OpTimeout)
	}
	if err != nil {
		return fmt.Errorf("init storage failed: %v", err)
	}

	// 3. 初始化各组件 (单次实例化，依赖注入)
	cat := catalog.New(store, cfg.Release)
	builder := manifest.NewBuilder(cfg.Server.BaseURL, cfg.Release.ProductName)
	pass := passcode.NewManager(database, cfg.Release.PasscodeTTL)

	// 4. 启动后台任务：过期口令清理
	pass.StartSweeper(time.Hour)

	// 5. 组装 Handler 与中间件链
	h := NewServerHandler(cat, builder, store, pass, cfg)
	handler := NewRouter(h, cfg)

	log.Printf("release-hub API running on %s (channel=%s)", cfg.Server.Port, cfg.Release.Channel)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  0, // 必须为 0，否则大制品上传会被断掉
		WriteTimeout: 0,
	}

	return server.ListenAndServe()
}

// NewRouter 注册路由并套上中间件链
// 单独拆出来是为了测试能拿到与线上一致的完整 Handler
func NewRouter(h *ServerHandler, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// --- 版本目录与更新解析 ---
	mux.HandleFunc("/api/releases", h.ListReleases)
	mux.HandleFunc("/api/version/", h.CheckVersion)
	mux.HandleFunc("/api/recommend/", h.Recommend)

	// --- 制品传输 ---
	mux.HandleFunc("/api/upload/", h.Upload)
	mux.HandleFunc("/api/download/", h.Download)

	// --- 口令下载通道 ---
	mux.HandleFunc("/api/download-code", h.GenerateDownloadCode)
	mux.HandleFunc("/api/dmg-download/", h.DmgDownload)

	// --- 状态页 ---
	mux.HandleFunc("/", h.Status)

	// 中间件链式组装：Mux → Auth → Timeout
	var handler http.Handler = mux
	handler = middleware.AuthMiddleware(cfg.Auth.SecretKey)(handler)
	if cfg.Server.APITimeout > 0 {
		handler = middleware.TimeoutMiddleware(cfg.Server.APITimeout)(handler)
	}
	return handler
}
