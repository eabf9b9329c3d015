package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"
)

// TimeoutMiddleware 针对 RESTful API 设置超时
// timeout: 超时时长
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			log.Fatal("[TimeoutMiddleware] Setup Error: 'next' handler is nil")
		}
		// 超时返回 504 和固定 JSON
		timeoutHandler := http.TimeoutHandler(next, timeout, `{"code": 10001, "error": "request timeout"}`)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			// 流式传输路径不做超时限制，大制品上传/下载耗时由客户端决定
			if strings.HasPrefix(path, "/api/upload/") ||
				strings.HasPrefix(path, "/api/download/") ||
				strings.HasPrefix(path, "/api/dmg-download/") {
				next.ServeHTTP(w, r)
				return
			}

			defer func() {
				if err := recover(); err != nil {
					log.Printf("[Panic Recovered] Path: %s, Error: %v", path, err)
					http.Error(w, "Internal Server Error", 500)
				}
			}()

			timeoutHandler.ServeHTTP(w, r)
		})
	}
}
