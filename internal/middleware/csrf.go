package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/hnreact/internal/model"
)

const (
	// csrfCookieName はCSRFトークンを保持するCookieの名前。
	// フロントエンドからJavaScriptで読み取れるよう、HttpOnlyではない。
	csrfCookieName = "csrf_token"

	// csrfHeaderName はリクエストヘッダーからCSRFトークンを読み取る際のヘッダー名。
	csrfHeaderName = "X-CSRF-Token"

	csrfCookieMaxAge = 86400
)

// CSRF はダブルサブミットCookie方式のCSRF対策を提供する。
// 評価の登録や管理者の削除操作のように状態を変更するリクエストを保護する。
type CSRF struct {
	cookieSecure bool
	logger       *slog.Logger
}

// NewCSRF はCSRFの新しいインスタンスを生成する。
func NewCSRF(cookieSecure bool, logger *slog.Logger) *CSRF {
	return &CSRF{cookieSecure: cookieSecure, logger: logger}
}

// Middleware はCSRFトークンの発行・検証ミドルウェアを返す。
// 安全なメソッドは検証せず、Cookieが未設定であれば発行する。
// 状態変更メソッドはCookieとヘッダーのトークン一致を必須とする。
func (c *CSRF) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				if _, err := r.Cookie(csrfCookieName); err != nil {
					if _, err := c.issue(w); err != nil {
						c.logger.ErrorContext(r.Context(), "failed to generate CSRF token", slog.String("error", err.Error()))
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			if reason := validateCSRF(r); reason != "" {
				c.logger.WarnContext(r.Context(), "CSRF validation failed",
					slog.String("reason", reason),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
					Code:     "CSRF_TOKEN_INVALID",
					Message:  "CSRFトークンの検証に失敗しました。",
					Category: "auth",
					Action:   "ページを再読み込みしてから再度お試しください。",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// TokenHandler はCSRFトークン取得エンドポイントのハンドラーを返す。
// GET /api/csrf-token
// 既存のCookieがある場合はそのトークンを返し、なければ新規発行する。
func (c *CSRF) TokenHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if cookie, err := r.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
			token = cookie.Value
		} else {
			token, err = c.issue(w)
			if err != nil {
				c.logger.ErrorContext(r.Context(), "failed to generate CSRF token", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	})
}

// issue は新しいトークンを生成してCookieに設定する。
func (c *CSRF) issue(w http.ResponseWriter) (string, error) {
	token, err := generateCSRFToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   csrfCookieMaxAge,
		HttpOnly: false,
		Secure:   c.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// validateCSRF は検証に失敗した理由を返す。成功時は空文字。
func validateCSRF(r *http.Request) string {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return "missing cookie token"
	}
	header := r.Header.Get(csrfHeaderName)
	if header == "" {
		return "missing header token"
	}
	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
		return "token mismatch"
	}
	return ""
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// generateCSRFToken は暗号的に安全なCSRFトークンを生成する。
func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
