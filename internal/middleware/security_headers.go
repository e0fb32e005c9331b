package middleware

import "net/http"

// hstsValue はHTTPS配信時に付与するStrict-Transport-Securityの値（1年）。
const hstsValue = "max-age=31536000; includeSubDomains"

// NewSecurityHeadersMiddleware はJSON APIのレスポンスに付与するセキュリティヘッダーのミドルウェアを返す。
// 識別ヘッダーごとに内容が変わるため共有キャッシュには載せない。
// secureTransportがtrueの場合（COOKIE_SECURE）はHSTSも付与する。
func NewSecurityHeadersMiddleware(secureTransport bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Cross-Origin-Resource-Policy", "same-site")
			h.Set("Cache-Control", "no-store")
			if secureTransport {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			next.ServeHTTP(w, r)
		})
	}
}
