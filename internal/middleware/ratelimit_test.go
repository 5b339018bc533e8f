package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    2,
		WriteRate:       0.5,
		WriteBurst:      1,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(rl.Stop)
	return rl
}

func requestAs(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/youtube/comment/v1", nil)
	if userID != "" {
		req = req.WithContext(ContextWithUserID(req.Context(), userID))
	}
	return req
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestRateLimit_General_AllowsBurstThenRejects(t *testing.T) {
	rl := newTestLimiter(t)
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAs("user-1"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("user-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != strconv.Itoa(1) {
		t.Errorf("Retry-After = %q, want 1", got)
	}
}

func TestRateLimit_Write_IsIndependentOfGeneral(t *testing.T) {
	rl := newTestLimiter(t)
	general := rl.GeneralMiddleware()(okHandler())
	write := rl.WriteMiddleware()(okHandler())

	w := httptest.NewRecorder()
	write.ServeHTTP(w, requestAs("user-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("first write: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	write.ServeHTTP(w, requestAs("user-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second write: status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}

	w = httptest.NewRecorder()
	general.ServeHTTP(w, requestAs("user-1"))
	if w.Code != http.StatusOK {
		t.Errorf("general should be unaffected, status = %d", w.Code)
	}
}

func TestRateLimit_IsolatesUsers(t *testing.T) {
	rl := newTestLimiter(t)
	handler := rl.WriteMiddleware()(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), requestAs("user-1"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("user-2"))
	if w.Code != http.StatusOK {
		t.Errorf("user-2 status = %d, want 200", w.Code)
	}
	if rl.WriteLimiterCount() != 2 {
		t.Errorf("WriteLimiterCount = %d, want 2", rl.WriteLimiterCount())
	}
}

func TestRateLimit_NoUser_RedirectsUnauthorized(t *testing.T) {
	rl := newTestLimiter(t)
	w := httptest.NewRecorder()
	rl.GeneralMiddleware()(okHandler()).ServeHTTP(w, requestAs(""))

	if w.Code != http.StatusFound || w.Header().Get("Location") != "/?error=unauthorized" {
		t.Errorf("status = %d, Location = %q", w.Code, w.Header().Get("Location"))
	}
}

func TestRateLimit_CleanupEvictsIdleEntries(t *testing.T) {
	rl := newTestLimiter(t)
	rl.GeneralMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestAs("user-1"))

	rl.general.mu.Lock()
	rl.general.limiters["user-1"].lastAccess = time.Now().Add(-time.Hour)
	rl.general.mu.Unlock()

	rl.cleanup()

	if n := rl.GeneralLimiterCount(); n != 0 {
		t.Errorf("GeneralLimiterCount = %d, want 0", n)
	}
}

func TestNewRateLimiterConfig_PerMinute(t *testing.T) {
	cfg := NewRateLimiterConfig(120, 30)
	if cfg.GeneralRate != 2 || cfg.GeneralBurst != 120 {
		t.Errorf("general = %v/%d", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.WriteRate != 0.5 || cfg.WriteBurst != 30 {
		t.Errorf("write = %v/%d", cfg.WriteRate, cfg.WriteBurst)
	}
}
