// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hitoshi/hnreact/internal/logger"
	"github.com/hitoshi/hnreact/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに識別情報を格納するためのキー。
var identityContextKey = contextKey("identity")

// 識別ヘッダーの名前（プレフィックスを除いた部分）。
const (
	headerEmail    = "Email"
	headerName     = "User"
	headerNickname = "Preferred-Username"
	headerPicture  = "Picture"
)

// UserEnsurer は識別情報からユーザーを登録・取得するインターフェース。
// user.Serviceの部分集合として定義する。
type UserEnsurer interface {
	EnsureUser(ctx context.Context, identity model.Identity) (*model.User, error)
}

// IdentityResolver は認証プロキシが付与したヘッダーから識別情報を組み立てる。
// 管理者フラグは保存済みユーザーから取得し、メールアドレス単位でキャッシュする。
type IdentityResolver struct {
	users        UserEnsurer
	headerPrefix string
	admins       *expirable.LRU[string, bool]
	logger       *slog.Logger
}

// NewIdentityResolver はIdentityResolverの新しいインスタンスを生成する。
// headerPrefixは "X-Auth-Request-" のようなヘッダー名の共通部分。
func NewIdentityResolver(users UserEnsurer, headerPrefix string, cacheSize int, cacheTTL time.Duration, logger *slog.Logger) *IdentityResolver {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	return &IdentityResolver{
		users:        users,
		headerPrefix: headerPrefix,
		admins:       expirable.NewLRU[string, bool](cacheSize, nil, cacheTTL),
		logger:       logger,
	}
}

// Middleware は識別ヘッダーを読み取り、識別情報をリクエストコンテキストに注入するミドルウェアを返す。
// 初めて見るメールアドレスはユーザーとして登録する。
// ヘッダーがない場合は識別情報なしで次のハンドラに渡す。
func (ir *IdentityResolver) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := ir.identityFromHeaders(r.Header)
			if identity.Email == "" {
				next.ServeHTTP(w, r)
				return
			}

			isAdmin, err := ir.resolveAdmin(r.Context(), identity)
			if err != nil {
				ir.logger.ErrorContext(r.Context(), "failed to resolve identity",
					slog.String("user_email", identity.Email),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			identity.IsAdmin = isAdmin

			setRequestUser(r.Context(), identity.Email)
			ctx := logger.Ctx(r.Context(), slog.String("user_email", identity.Email))
			ctx = ContextWithIdentity(ctx, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Forget はメールアドレスのキャッシュを破棄する。
// ユーザー削除後は次のリクエストで再登録される。
func (ir *IdentityResolver) Forget(email string) {
	ir.admins.Remove(email)
}

func (ir *IdentityResolver) resolveAdmin(ctx context.Context, identity model.Identity) (bool, error) {
	if isAdmin, ok := ir.admins.Get(identity.Email); ok {
		return isAdmin, nil
	}

	u, err := ir.users.EnsureUser(ctx, identity)
	if err != nil {
		return false, err
	}
	ir.admins.Add(identity.Email, u.IsAdmin)
	return u.IsAdmin, nil
}

func (ir *IdentityResolver) identityFromHeaders(h http.Header) model.Identity {
	return model.Identity{
		Email:    strings.TrimSpace(h.Get(ir.headerPrefix + headerEmail)),
		Name:     strings.TrimSpace(h.Get(ir.headerPrefix + headerName)),
		Nickname: strings.TrimSpace(h.Get(ir.headerPrefix + headerNickname)),
		Picture:  strings.TrimSpace(h.Get(ir.headerPrefix + headerPicture)),
	}
}

// RequireIdentity は識別情報のないリクエストを401で拒否するミドルウェア。
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			WriteAPIError(w, model.NewUnauthorizedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin は管理者でないリクエストを403で拒否するミドルウェア。
// RequireIdentityの後に配置する。
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			WriteAPIError(w, model.NewUnauthorizedError())
			return
		}
		if !identity.IsAdmin {
			WriteAPIError(w, model.NewForbiddenError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFromContext はリクエストコンテキストから識別情報を取得する。
// 識別ミドルウェアを通過し、ヘッダーがあったリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	if !ok || identity.Email == "" {
		return model.Identity{}, false
	}
	return identity, true
}

// ContextWithIdentity はコンテキストに識別情報を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
