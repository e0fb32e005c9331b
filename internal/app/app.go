// Package app はサブコマンドごとの依存関係の組み立てと起動を行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/hnreact/internal/config"
	"github.com/hitoshi/hnreact/internal/database"
	"github.com/hitoshi/hnreact/internal/feed"
	"github.com/hitoshi/hnreact/internal/handler"
	"github.com/hitoshi/hnreact/internal/hn"
	"github.com/hitoshi/hnreact/internal/ingest"
	"github.com/hitoshi/hnreact/internal/item"
	"github.com/hitoshi/hnreact/internal/logger"
	"github.com/hitoshi/hnreact/internal/metrics"
	"github.com/hitoshi/hnreact/internal/middleware"
	"github.com/hitoshi/hnreact/internal/model"
	"github.com/hitoshi/hnreact/internal/reaction"
	"github.com/hitoshi/hnreact/internal/repository"
	"github.com/hitoshi/hnreact/internal/security"
	"github.com/hitoshi/hnreact/internal/user"
	"github.com/hitoshi/hnreact/internal/worker/refresh"
)

// dbReadyTimeout は起動時にデータベースの応答を待つ上限。
const dbReadyTimeout = 30 * time.Second

// refreshWriteTimeout は管理者による同期リフレッシュを含むAPIの書き込み上限。
const refreshWriteTimeout = 2 * time.Minute

// shutdownTimeout はHTTPサーバーのグレースフルシャットダウンの上限。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	// adminは引数の誤りをDB接続前に報告する
	var adminArgs AdminArgs
	if cmd == CommandAdmin {
		parsed, err := ParseAdminArgs(args)
		if err != nil {
			return err
		}
		adminArgs = parsed
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	log := slog.Default()
	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("database_driver", cfg.DatabaseDriver),
		slog.String("upstream_kind", cfg.UpstreamKind),
	)

	ctx := context.Background()
	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg, log)
	case CommandRefresh:
		return runRefresh(ctx, cfg, log)
	case CommandMigrate:
		return runMigrate(ctx, cfg, log)
	case CommandAdmin:
		return runAdmin(ctx, cfg, log, adminArgs)
	default:
		return runServe(ctx, cfg, log)
	}
}

// store は開いたDB接続とドライバに応じたリポジトリをまとめたもの。
type store struct {
	db        *sql.DB
	items     repository.ItemRepository
	reactions repository.ReactionRepository
	users     repository.UserRepository
}

func (s *store) Close() error {
	return s.db.Close()
}

// openStore はDB接続を開いて応答を待ち、ドライバに対応するリポジトリを構築する。
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*store, error) {
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if err := database.WaitReady(ctx, db, dbReadyTimeout); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("database connection established",
		slog.String("driver", cfg.DatabaseDriver),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	s := &store{db: db}
	switch cfg.DatabaseDriver {
	case database.DriverSQLite:
		dbx := database.WrapSQLite(db)
		s.items = repository.NewSQLiteItemRepo(dbx)
		s.reactions = repository.NewSQLiteReactionRepo(dbx)
		s.users = repository.NewSQLiteUserRepo(dbx)
	default:
		s.items = repository.NewPostgresItemRepo(db)
		s.reactions = repository.NewPostgresReactionRepo(db)
		s.users = repository.NewPostgresUserRepo(db)
	}
	return s, nil
}

// newSource は設定された上流の種類に応じた記事ソースを生成する。
// 上流URLは起動時に一度検証し、HTTPクライアントは接続先IPも検査する。
func newSource(cfg *config.Config, log *slog.Logger) (ingest.Source, error) {
	guard := security.NewUpstreamGuard(cfg.UpstreamAllowPrivate)

	rawURL := cfg.UpstreamBaseURL
	if cfg.UpstreamKind == config.UpstreamRSS {
		rawURL = cfg.UpstreamRSSURL
	}
	if err := guard.ValidateURL(rawURL); err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}

	httpClient := guard.NewClient(cfg.UpstreamTimeout)
	if cfg.UpstreamKind == config.UpstreamRSS {
		return hn.NewRSSSource(httpClient, log, rawURL, cfg.UpstreamTimeout), nil
	}
	return hn.NewClient(httpClient, log, rawURL, cfg.UpstreamTimeout), nil
}

// newEngine はリフレッシュエンジンを組み立てる。
func newEngine(cfg *config.Config, s *store, collector metrics.MetricsCollector, log *slog.Logger) (*ingest.Engine, error) {
	source, err := newSource(cfg, log)
	if err != nil {
		return nil, err
	}
	return ingest.NewEngine(source, s.items, security.NewItemSanitizer(), collector, log, ingest.Options{
		Concurrency: cfg.RefreshConcurrency,
		MaxItems:    cfg.UpstreamMaxItems,
		Location:    cfg.Location(),
	}), nil
}

// newRegistry はプロセスとランタイムのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// 1. DB接続とリポジトリ
	s, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	// 2. メトリクス
	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	// 3. ドメインサービス
	engine, err := newEngine(cfg, s, collector, log)
	if err != nil {
		return err
	}
	userService := user.NewService(s.users, log)
	identities := middleware.NewIdentityResolver(
		userService, cfg.IdentityHeaderPrefix, cfg.AdminCacheSize, cfg.AdminCacheTTL, log,
	)

	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitReaction), log)
	defer rateLimiter.Stop()

	// 4. ルーター
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		Identity:          identities,
		RateLimiter:       rateLimiter,
		CSRF:              middleware.NewCSRF(cfg.CookieSecure, log),
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		SecureTransport:   cfg.CookieSecure,

		HealthChecker: s.db,

		PageService:   feed.NewPaginator(s.items, s.reactions, cfg.FeedPageSize),
		NewsfeedLimit: cfg.NewsfeedLimit,

		ReactionService: reaction.NewService(s.reactions, collector, log),
		UserService:     userService,
		ItemService:     item.NewService(s.items, log),
		Refresher:       engine,
	})

	// 5. HTTPサーバー
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: refreshWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	var g run.Group
	g.Add(listenAndServe(server, log), shutdown(server, log))
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	if err := ignoreSignal(g.Run()); err != nil {
		return err
	}
	log.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// リフレッシュスケジューラと、/healthと/metricsのみを公開するHTTPサーバーを同時に動かす。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	s, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	engine, err := newEngine(cfg, s, collector, log)
	if err != nil {
		return err
	}
	scheduler := refresh.NewScheduler(engine, log, cfg.RefreshInterval, cfg.RefreshMaxRetries)

	mux := chi.NewRouter()
	mux.Handle("/health", handler.NewHealthHandler(s.db))
	mux.Handle("/metrics", metrics.Handler(reg))
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	schedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g run.Group
	g.Add(func() error {
		scheduler.Start(schedCtx)
		return nil
	}, func(error) {
		cancel()
	})
	g.Add(listenAndServe(server, log), shutdown(server, log))
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	if err := ignoreSignal(g.Run()); err != nil {
		return err
	}
	log.Info("worker stopped gracefully")
	return nil
}

// runRefresh はリフレッシュを1回だけ実行する。上流障害は設定回数まで再試行する。
func runRefresh(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	s, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	engine, err := newEngine(cfg, s, nil, log)
	if err != nil {
		return err
	}

	result, err := refresh.NewScheduler(engine, log, cfg.RefreshInterval, cfg.RefreshMaxRetries).RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	if result == nil {
		log.Info("refresh skipped: another refresh is running")
		return nil
	}

	log.Info("refresh completed",
		slog.Int("listed", result.Listed),
		slog.Int("stored", result.Stored),
		slog.Int("skipped", result.Skipped),
	)
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("running database migrations",
		slog.String("driver", cfg.DatabaseDriver),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.WaitReady(ctx, db, dbReadyTimeout); err != nil {
		return err
	}

	if err := database.RunMigrations(cfg.DatabaseDriver, db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("database migrations completed successfully")
	return nil
}

// runAdmin はユーザーの管理者フラグを変更する。
// 付与時に未登録のユーザーであれば先に登録する。
func runAdmin(ctx context.Context, cfg *config.Config, log *slog.Logger, args AdminArgs) error {
	s, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	userService := user.NewService(s.users, log)
	if args.IsAdmin {
		if _, err := userService.EnsureUser(ctx, model.Identity{Email: args.Email}); err != nil {
			return err
		}
	}
	if err := userService.SetAdmin(ctx, args.Email, args.IsAdmin); err != nil {
		return fmt.Errorf("failed to update admin flag: %w", err)
	}
	return nil
}

// listenAndServe はrun.Groupに登録するHTTPサーバーの実行関数を返す。
func listenAndServe(server *http.Server, log *slog.Logger) func() error {
	return func() error {
		log.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	}
}

// shutdown はrun.Groupに登録するHTTPサーバーの停止関数を返す。
func shutdown(server *http.Server, log *slog.Logger) func(error) {
	return func(error) {
		log.Info("shutting down HTTP server...")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("server shutdown failed", slog.String("error", err.Error()))
		}
	}
}

// ignoreSignal はシグナルによる停止を正常終了として扱う。
func ignoreSignal(err error) error {
	var sig run.SignalError
	if errors.As(err, &sig) {
		slog.Info("received signal", slog.String("signal", sig.Signal.String()))
		return nil
	}
	return err
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
