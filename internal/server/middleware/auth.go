package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"release-hub/pkg/code"
	"release-hub/pkg/e"
	"release-hub/pkg/response"
)

// AuthMiddleware 共享密钥鉴权中间件
// 在任何存储访问之前拦截；没有用户体系，只有一把 Bearer 密钥
func AuthMiddleware(secretKey string) func(http.Handler) http.Handler {
	secretSum := sha256.Sum256([]byte(secretKey))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. 放行状态页 (非 /api 开头的请求)
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}

			// 2. 放行不走共享密钥的通道：
			//    口令下载用一次性口令校验；版本推荐面向公开下载页
			if strings.HasPrefix(r.URL.Path, "/api/dmg-download/") ||
				strings.HasPrefix(r.URL.Path, "/api/recommend/") {
				next.ServeHTTP(w, r)
				return
			}

			// 3. 检查 Header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Error(w, e.New(code.Unauthorized, "缺少认证 Token", nil))
				return
			}

			// 格式: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Error(w, e.New(code.Unauthorized, "认证 Token 无效", nil))
				return
			}

			// 先各自哈希再比较：常数时间，且不泄露密钥长度
			tokenSum := sha256.Sum256([]byte(parts[1]))
			if subtle.ConstantTimeCompare(tokenSum[:], secretSum[:]) != 1 {
				response.Error(w, e.New(code.Unauthorized, "认证 Token 无效", nil))
				return
			}

			// 4. 校验通过
			next.ServeHTTP(w, r)
		})
	}
}
