package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// corsMaxAge はプリフライト結果をブラウザにキャッシュさせる期間。
const corsMaxAge = 10 * time.Minute

// corsAllowedMethods はAPIが受け付けるメソッド。評価の登録はPOST、取り消しと管理操作はDELETE。
var corsAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete}

// ParseAllowedOrigins はカンマ区切りのオリジン一覧を分割する。
// 空要素と末尾のスラッシュは取り除き、ワイルドカード(*)は資格情報付きリクエストと共存できないため無視する。
func ParseAllowedOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" || o == "*" || slices.Contains(origins, o) {
			continue
		}
		origins = append(origins, o)
	}
	return origins
}

// NewCORSMiddleware は許可オリジン一覧に対するCORSミドルウェアを返す。
// リクエストのOriginが一覧に含まれる場合だけそのOriginを返し、含まれない場合はCORSヘッダーを付与しない。
// 許可されたオリジンからのプリフライトには204、それ以外のプリフライトには403で応答する。
func NewCORSMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	allowMethods := strings.Join(corsAllowedMethods, ", ")
	allowHeaders := strings.Join([]string{"Content-Type", csrfHeaderName, requestIDHeader}, ", ")
	maxAge := strconv.Itoa(int(corsMaxAge.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			allowed := origin != "" && slices.Contains(allowedOrigins, origin)
			if allowed {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Expose-Headers", requestIDHeader)
			}

			if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			h.Add("Vary", "Access-Control-Request-Method")
			h.Set("Access-Control-Allow-Methods", allowMethods)
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Max-Age", maxAge)
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
