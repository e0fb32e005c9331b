package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/hnreact/internal/metrics"
	"github.com/hitoshi/hnreact/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Identity          *middleware.IdentityResolver
	RateLimiter       *middleware.RateLimiter
	CSRF              *middleware.CSRF
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	CORSAllowedOrigin string // カンマ区切りで複数指定できる
	SecureTransport   bool   // HTTPS配信時にHSTSを付与する

	// ヘルスチェック
	HealthChecker HealthChecker

	// ニュース
	PageService   PageServiceInterface
	NewsfeedLimit int

	// 評価
	ReactionService ReactionServiceInterface

	// ユーザー
	UserService UserServiceInterface

	// 記事
	ItemService ItemServiceInterface

	// リフレッシュ
	Refresher Refresher
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → Identity
//	  → (/api) RequireIdentity → CSRF
//	    → (評価の書き込み) RateLimit
//	    → (/api/admin) RequireAdmin
//
// /health、/metrics、/newsfeedは識別情報なしで利用できる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Noop{}
	}

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.SecureTransport))
	r.Use(middleware.NewCORSMiddleware(middleware.ParseAllowedOrigins(deps.CORSAllowedOrigin)))
	r.Use(deps.Identity.Middleware())

	newsHandler := NewNewsHandler(deps.PageService, deps.NewsfeedLimit)
	reactionHandler := NewReactionHandler(deps.ReactionService)
	userHandler := NewUserHandler(deps.UserService, deps.Identity)
	itemHandler := NewItemHandler(deps.ItemService)
	refreshHandler := NewRefreshHandler(deps.Refresher)

	// --- 識別情報が不要なルート ---
	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Get("/newsfeed", newsHandler.Newsfeed)

	// --- 識別情報が必要なルート ---
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireIdentity)
		r.Use(deps.CSRF.Middleware())

		r.Method(http.MethodGet, "/csrf-token", deps.CSRF.TokenHandler())

		r.Get("/news", newsHandler.ListNews)

		r.Route("/items/{id}", func(r chi.Router) {
			r.Get("/counts", reactionHandler.Counts)

			// 評価の書き込みはユーザーごとのレート制限を追加
			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.Middleware())
				r.Post("/like", reactionHandler.Like)
				r.Post("/dislike", reactionHandler.Dislike)
				r.Delete("/reaction", reactionHandler.Clear)
			})
		})

		r.Route("/me", func(r chi.Router) {
			r.Get("/", userHandler.Me)
			r.Get("/reactions", reactionHandler.MyReactions)
		})

		// --- 管理者のみ ---
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Get("/news", newsHandler.ListNews)
			r.Get("/reactions", reactionHandler.AllReactions)
			r.Get("/users", userHandler.ListUsers)
			r.Delete("/users/{email}", userHandler.DeleteUser)
			r.Delete("/items/{id}", itemHandler.DeleteItem)
			r.Post("/refresh", refreshHandler.Refresh)
		})
	})

	return r
}
