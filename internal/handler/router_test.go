package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/tubenote/internal/middleware"
	"github.com/hitoshi/tubenote/internal/model"
)

// mockSessionLoaderForRouter はCookieの値でセッションを引き当てる。
type mockSessionLoaderForRouter struct {
	sessions map[string]*model.Session
}

func (m *mockSessionLoaderForRouter) Load(r *http.Request) (*model.Session, error) {
	c, err := r.Cookie("session_id")
	if err != nil {
		return nil, nil
	}
	return m.sessions[c.Value], nil
}

type mockRefresherForRouter struct {
	calls int
}

func (m *mockRefresherForRouter) RefreshSession(ctx context.Context, sess *model.Session) (model.TokenSet, error) {
	m.calls++
	ts, _ := sess.Current()
	ts.AccessToken = "refreshed-" + ts.AccessToken
	return ts, nil
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(context.Context) error { return m.err }

type routerFixture struct {
	router    http.Handler
	gateway   *mockGateway
	recorder  *mockRecorder
	renderer  *mockRenderer
	refresher *mockRefresherForRouter
}

// newRouterFixture は "valid-session"（TokenSetあり）と "empty-session"（TokenSetなし）を持つルーターを構築する。
func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	valid := &model.Session{ID: "valid-session", Version: 1}
	valid.Attach(model.TokenSet{AccessToken: "a1", RefreshToken: "r1"}, "user-1")

	f := &routerFixture{
		gateway:   &mockGateway{},
		recorder:  &mockRecorder{},
		renderer:  &mockRenderer{},
		refresher: &mockRefresherForRouter{},
	}

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	f.router = NewRouter(&RouterDeps{
		SessionLoader: &mockSessionLoaderForRouter{sessions: map[string]*model.Session{
			"valid-session": valid,
			"empty-session": {ID: "empty-session", Version: 1},
		}},
		RateLimiter:   rl,
		Refresher:     f.refresher,
		HealthChecker: &mockHealthChecker{},
		MetricsRoute:  http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("# metrics")) }),
		Renderer:      f.renderer,
		Recorder:      f.recorder,
		AuthService:   &mockAuthService{},
		Cookies:       &mockCookieWriter{},
		Gateway:       f.gateway,
		Notes:         &mockNotes{},
	})
	return f
}

// csrfPost はCSRFトークンを付けたフォームPOSTを生成する。
func csrfPost(target, sessionID string, values url.Values) *http.Request {
	if values == nil {
		values = url.Values{}
	}
	values.Set("csrf_token", "tok")
	req := postFormRequest(target, values)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok"})
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "session_id", Value: sessionID})
	}
	return req
}

func TestRouter_DeleteComment_RedirectsAndLogsEvent(t *testing.T) {
	f := newRouterFixture(t)
	var gotToken, gotComment string
	f.gateway.deleteCommentFn = func(ctx context.Context, tokens model.TokenSet, commentID string) error {
		gotToken, gotComment = tokens.AccessToken, commentID
		return nil
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, csrfPost("/youtube/comment/delete/v1/c1", "valid-session", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/youtube/video/v1" {
		t.Errorf("Location = %q, want /youtube/video/v1", loc)
	}
	if gotComment != "c1" || gotToken != "refreshed-a1" {
		t.Errorf("DeleteComment(token=%q, comment=%q)", gotToken, gotComment)
	}

	if len(f.recorder.events) != 1 {
		t.Fatalf("events = %+v, want exactly one", f.recorder.events)
	}
	ev := f.recorder.events[0]
	if ev.eventType != model.EventCommentDelete {
		t.Errorf("event type = %q, want COMMENT_DELETE", ev.eventType)
	}
	if len(ev.details) != 1 || ev.details["commentId"] != "c1" {
		t.Errorf("details = %v, want {commentId: c1}", ev.details)
	}
}

func TestRouter_GuardedRoutes_WithoutTokens_RedirectUnauthorized(t *testing.T) {
	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/youtube/video/v1"},
		{http.MethodPost, "/youtube/comment/v1"},
		{http.MethodPost, "/youtube/comment/reply/v1/c1"},
		{http.MethodPost, "/youtube/comment/delete/v1/c1"},
		{http.MethodPost, "/youtube/video/update/v1"},
		{http.MethodPost, "/youtube/note/v1"},
		{http.MethodPost, "/youtube/note/search/v1"},
	}

	for _, sessionID := range []string{"", "empty-session", "unknown-session"} {
		for _, rt := range routes {
			t.Run(rt.method+" "+rt.path+" session="+sessionID, func(t *testing.T) {
				f := newRouterFixture(t)

				var req *http.Request
				if rt.method == http.MethodPost {
					req = csrfPost(rt.path, sessionID, url.Values{"comment": {"x"}, "reply": {"x"}, "content": {"x"}})
				} else {
					req = httptest.NewRequest(rt.method, rt.path, nil)
					if sessionID != "" {
						req.AddCookie(&http.Cookie{Name: "session_id", Value: sessionID})
					}
				}
				w := httptest.NewRecorder()
				f.router.ServeHTTP(w, req)

				if w.Code != http.StatusFound {
					t.Errorf("status = %d, want 302", w.Code)
				}
				if loc := w.Header().Get("Location"); loc != "/?error=unauthorized" {
					t.Errorf("Location = %q, want /?error=unauthorized", loc)
				}
				if f.gateway.calls != 0 {
					t.Errorf("gateway calls = %d, want 0", f.gateway.calls)
				}
				if f.refresher.calls != 0 {
					t.Errorf("refresh calls = %d, want 0", f.refresher.calls)
				}
			})
		}
	}
}

func TestRouter_GuardedPost_WithoutSessionOrCSRF_RedirectsUnauthorized(t *testing.T) {
	for _, sessionID := range []string{"", "empty-session"} {
		t.Run("session="+sessionID, func(t *testing.T) {
			f := newRouterFixture(t)

			req := postFormRequest("/youtube/comment/delete/v1/c1", url.Values{})
			if sessionID != "" {
				req.AddCookie(&http.Cookie{Name: "session_id", Value: sessionID})
			}
			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, req)

			if w.Code != http.StatusFound {
				t.Errorf("status = %d, want 302", w.Code)
			}
			if loc := w.Header().Get("Location"); loc != "/?error=unauthorized" {
				t.Errorf("Location = %q, want /?error=unauthorized", loc)
			}
			if f.gateway.calls != 0 {
				t.Errorf("gateway calls = %d, want 0", f.gateway.calls)
			}
		})
	}
}

func TestRouter_Home_ShowsAuthStateAndError(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/?error=auth_expired", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	data := f.renderer.indexData
	if !data.IsAuthenticated {
		t.Error("expected authenticated home page")
	}
	if data.Error == nil || data.Error.Slug != model.ErrSlugAuthExpired {
		t.Errorf("error = %+v, want auth_expired", data.Error)
	}
	if data.CSRFToken == "" {
		t.Error("expected CSRF token for forms")
	}
}

func TestRouter_Home_Anonymous(t *testing.T) {
	f := newRouterFixture(t)

	f.router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if f.renderer.indexData == nil || f.renderer.indexData.IsAuthenticated {
		t.Errorf("data = %+v, want anonymous page", f.renderer.indexData)
	}
}

func TestRouter_PostWithoutCSRFToken_Forbidden(t *testing.T) {
	f := newRouterFixture(t)

	req := postFormRequest("/youtube/comment/delete/v1/c1", url.Values{})
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if f.gateway.calls != 0 {
		t.Errorf("gateway calls = %d, want 0", f.gateway.calls)
	}
}

func TestRouter_AuthRoutes(t *testing.T) {
	f := newRouterFixture(t)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if w.Code != http.StatusFound || !strings.HasPrefix(w.Header().Get("Location"), "https://accounts.google.com/") {
		t.Errorf("login: status = %d, Location = %q", w.Code, w.Header().Get("Location"))
	}

	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/callback?code=c", nil))
	if loc := w.Header().Get("Location"); loc != "/?error=auth_failed" {
		t.Errorf("callback without state: Location = %q", loc)
	}
}

func TestRouter_SecurityHeadersApplied(t *testing.T) {
	f := newRouterFixture(t)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected Content-Security-Policy header")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected X-Content-Type-Options: nosniff")
	}
}

func TestRouter_NotFound_RendersErrorPage(t *testing.T) {
	f := newRouterFixture(t)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/no/such/page", nil))

	if w.Code != http.StatusNotFound || f.renderer.errorStatus != http.StatusNotFound {
		t.Errorf("status = %d, rendered = %d", w.Code, f.renderer.errorStatus)
	}
}

func TestRouter_PanicRendersErrorPage(t *testing.T) {
	f := newRouterFixture(t)
	f.gateway.getVideoFn = func(context.Context, model.TokenSet, string) (*model.Video, error) {
		panic("unexpected")
	}

	req := httptest.NewRequest(http.MethodGet, "/youtube/video/v1", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError || f.renderer.errorStatus != http.StatusInternalServerError {
		t.Errorf("status = %d, rendered = %d, want 500", w.Code, f.renderer.errorStatus)
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	f := newRouterFixture(t)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("health: status = %d, body = %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "# metrics") {
		t.Errorf("metrics: status = %d", w.Code)
	}
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	w := httptest.NewRecorder()
	healthHandler(&mockHealthChecker{err: errors.New("connection refused")})(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
