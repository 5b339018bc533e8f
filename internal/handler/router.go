package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tubenote/internal/metrics"
	"github.com/hitoshi/tubenote/internal/middleware"
)

// HealthChecker はDB接続の疎通確認を行うインターフェース。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionLoader middleware.SessionLoader
	CSRFConfig    middleware.CSRFConfig
	RateLimiter   *middleware.RateLimiter
	Refresher     middleware.TokenRefresher
	Metrics       metrics.MetricsCollector
	MetricsRoute  http.Handler
	HealthChecker HealthChecker
	Logger        *slog.Logger

	// 画面・イベント
	Renderer PageRenderer
	Recorder EventRecorder

	// 認証
	AuthService AuthServiceInterface
	Cookies     SessionCookieWriter
	AuthConfig  AuthHandlerConfig

	// YouTube・メモ
	Gateway VideoGateway
	Notes   NoteServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Metrics → Session → Logging
//	  → (/youtube) AuthGuard → CSRF → RateLimit(General) → RateLimit(Write, POSTのみ) → Handler
//	  → (その他) CSRF → Handler
//
// /health と /metrics はセッション・CSRFの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	mc := deps.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware(renderErrorPage(deps.Renderer)))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewMetricsMiddleware(mc))

	homeHandler := NewHomeHandler(deps.Renderer)
	authHandler := NewAuthHandler(deps.AuthService, deps.Cookies, deps.Recorder, deps.AuthConfig)
	ytHandler := NewYouTubeHandler(deps.Gateway, deps.Notes, deps.Recorder, deps.Renderer)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsRoute != nil {
		r.Handle("/metrics", deps.MetricsRoute)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionLoader))
		r.Use(middleware.NewLoggingMiddleware(logger))

		r.NotFound(homeHandler.NotFound)

		// --- 認証不要のルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

			r.Get("/", homeHandler.Index)
			r.Get("/auth/login", authHandler.Login)
			r.Get("/auth/callback", authHandler.Callback)
		})

		// --- ログイン必須のルート ---
		// 未ログインはCSRF検証より先にAuthGuardでリダイレクトする
		r.Route("/youtube", func(r chi.Router) {
			r.Use(middleware.NewAuthGuard(deps.Refresher, deps.Recorder))
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/video", ytHandler.Lookup)
			r.Get("/video/{videoID}", ytHandler.ShowVideo)

			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.WriteMiddleware())

				r.Post("/video/update/{videoID}", ytHandler.UpdateVideo)
				r.Post("/comment/{videoID}", ytHandler.AddComment)
				r.Post("/comment/reply/{videoID}/{commentID}", ytHandler.ReplyComment)
				r.Post("/comment/delete/{videoID}/{commentID}", ytHandler.DeleteComment)
				r.Post("/note/{videoID}", ytHandler.AddNote)
			})

			r.Post("/note/search/{videoID}", ytHandler.SearchNotes)
		})
	})

	return r
}

// renderErrorPage はRendererがあればエラーページ描画関数を返す。
func renderErrorPage(renderer PageRenderer) middleware.ErrorPageFunc {
	if renderer == nil {
		return nil
	}
	return renderer.Error
}

// healthHandler はDBへの疎通を確認し、200または503を返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	}
}
