package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// ErrorPageFunc はステータスとメッセージからエラーページを描画する関数。
// view.Renderer.Errorを渡す。
type ErrorPageFunc func(w http.ResponseWriter, status int, message string)

// NewRecoveryMiddleware はハンドラーのpanicを回収してスタックをログに残し、
// 500のエラーページを返すミドルウェアを生成する。
// renderがnilの場合はプレーンテキストで応答する。
func NewRecoveryMiddleware(render ErrorPageFunc) func(next http.Handler) http.Handler {
	if render == nil {
		render = func(w http.ResponseWriter, status int, message string) {
			http.Error(w, message, status)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				render(w, http.StatusInternalServerError, "サーバー内部でエラーが発生しました。")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
