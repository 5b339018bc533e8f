package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/tubenote/internal/auth"
	"github.com/hitoshi/tubenote/internal/config"
	"github.com/hitoshi/tubenote/internal/database"
	"github.com/hitoshi/tubenote/internal/eventlog"
	"github.com/hitoshi/tubenote/internal/handler"
	"github.com/hitoshi/tubenote/internal/logger"
	"github.com/hitoshi/tubenote/internal/metrics"
	"github.com/hitoshi/tubenote/internal/middleware"
	"github.com/hitoshi/tubenote/internal/note"
	"github.com/hitoshi/tubenote/internal/repository"
	"github.com/hitoshi/tubenote/internal/security"
	"github.com/hitoshi/tubenote/internal/session"
	"github.com/hitoshi/tubenote/internal/view"
	"github.com/hitoshi/tubenote/internal/worker/cleanup"
	"github.com/hitoshi/tubenote/internal/youtube"
)

// dbConnectTimeout は起動時のDB疎通確認のタイムアウト。
const dbConnectTimeout = 10 * time.Second

// maxUpstreamCallsPerRequest は1リクエスト内で直列に発生する上流呼び出しの最大数。
// トークン更新 → videos.list → commentThreads.list（更新時は videos.update）。
const maxUpstreamCallsPerRequest = 3

// serverWriteTimeout は上流呼び出しがすべてタイムアウト直前まで掛かっても
// レスポンスを書き切れる書き込みタイムアウトを返す。
func serverWriteTimeout(upstream time.Duration) time.Duration {
	return upstream*maxUpstreamCallsPerRequest + 15*time.Second
}

// Init はアプリケーションの初期化を行う。
// config.env / .env を読み込み、JSON構造化ログをセットアップしてからConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. 環境変数ファイルの読み込み（既存の環境変数は上書きしない）
	if err := config.LoadEnvFiles(); err != nil {
		return nil, err
	}

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 3. 環境変数から設定を読み込む
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

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.Ping(context.Background(), db, dbConnectTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newSessionManager はConfigからセッションマネージャーを構築する。
func newSessionManager(cfg *config.Config, repo repository.SessionRepository) *session.Manager {
	return session.NewManager(repo, session.Config{
		Secret:       []byte(cfg.SessionSecret),
		MaxAge:       time.Duration(cfg.SessionMaxAge) * time.Second,
		CookieSecure: cfg.CookieSecure,
		CookieDomain: cfg.CookieDomain,
	})
}

// buildRouter は全依存関係をワイヤリングしてルーターを構築する。
func buildRouter(cfg *config.Config, db *sql.DB, reg *prometheus.Registry, rl *middleware.RateLimiter) (http.Handler, error) {
	mc := metrics.NewCollector(reg)

	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	noteRepo := repository.NewPostgresNoteRepo(db)
	eventRepo := repository.NewPostgresEventRepo(db)

	// 2. 認証・セッション
	sessions := newSessionManager(cfg, sessionRepo)
	tokenManager := auth.NewGoogleTokenManager(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Timeout:      cfg.UpstreamTimeout,
	})
	authService := auth.NewService(tokenManager, userRepo, sessions, mc, auth.ServiceConfig{
		RefreshMargin: cfg.TokenRefreshMargin,
	})

	// 3. ドメインサービス
	gateway := youtube.NewService(youtube.Config{
		Timeout:         cfg.UpstreamTimeout,
		CommentPageSize: cfg.CommentPageSize,
	}, mc)
	noteService := note.NewService(noteRepo)
	recorder := eventlog.NewRecorder(eventRepo, mc)

	// 4. 画面
	renderer, err := view.NewRenderer(security.NewCommentSanitizer())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize renderer: %w", err)
	}

	return handler.NewRouter(&handler.RouterDeps{
		SessionLoader: sessions,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter:   rl,
		Refresher:     authService,
		Metrics:       mc,
		MetricsRoute:  metrics.Handler(reg),
		HealthChecker: db,
		Logger:        slog.Default(),

		Renderer: renderer,
		Recorder: recorder,

		AuthService: authService,
		Cookies:     sessions,
		AuthConfig:  handler.AuthHandlerConfig{CookieSecure: cfg.CookieSecure},

		Gateway: gateway,
		Notes:   noteService,
	}), nil
}

// runServe はWebサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// 期限切れセッションの削除もバックグラウンドで行う。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitWrite))
	defer rl.Stop()

	router, err := buildRouter(cfg, db, reg, rl)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: serverWriteTimeout(cfg.UpstreamTimeout),
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cleanupJob := newCleanupJob(cfg, db)
	go cleanupJob.Start(ctx, cfg.SessionCleanupInterval)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("web server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down web server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// newCleanupJob はセッションとイベントログのクリーンアップジョブを構築する。
func newCleanupJob(cfg *config.Config, db *sql.DB) *cleanup.CleanupJob {
	sessions := newSessionManager(cfg, repository.NewPostgresSessionRepo(db))
	job := cleanup.NewCleanupJob(sessions, db, slog.Default())
	job.EventLogRetentionDays = cfg.EventLogRetentionDays
	return job
}

// runWorker はワーカーモードで起動する。
// Webサーバーを別プロセスに分けて運用する場合に、クリーンアップジョブだけを実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
		slog.Int("event_log_retention_days", cfg.EventLogRetentionDays),
	)

	newCleanupJob(cfg, db).Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
	return nil
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
