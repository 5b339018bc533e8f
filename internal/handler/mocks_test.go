package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tubenote/internal/middleware"
	"github.com/hitoshi/tubenote/internal/model"
	"github.com/hitoshi/tubenote/internal/view"
)

// --- モック定義 ---

type mockAuthService struct {
	authorizationURLFn func(state string) string
	handleCallbackFn   func(ctx context.Context, code string) (*model.Session, error)
	callbackCalls      int
}

func (m *mockAuthService) AuthorizationURL(state string) string {
	if m.authorizationURLFn != nil {
		return m.authorizationURLFn(state)
	}
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	m.callbackCalls++
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil
}

type mockCookieWriter struct {
	setCookieFn func(w http.ResponseWriter, sess *model.Session) error
}

func (m *mockCookieWriter) SetCookie(w http.ResponseWriter, sess *model.Session) error {
	if m.setCookieFn != nil {
		return m.setCookieFn(w, sess)
	}
	http.SetCookie(w, &http.Cookie{Name: "session_id", Value: sess.ID, Path: "/", HttpOnly: true})
	return nil
}

type recordedEvent struct {
	eventType model.EventType
	details   map[string]any
}

type mockRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (m *mockRecorder) Record(_ context.Context, eventType model.EventType, details map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recordedEvent{eventType: eventType, details: details})
}

func (m *mockRecorder) RecordError(ctx context.Context, eventType model.EventType, details map[string]any, cause error) {
	merged := map[string]any{}
	for k, v := range details {
		merged[k] = v
	}
	merged["error"] = cause.Error()
	m.Record(ctx, eventType, merged)
}

func (m *mockRecorder) ofType(eventType model.EventType) []recordedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []recordedEvent
	for _, e := range m.events {
		if e.eventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type mockRenderer struct {
	indexStatus int
	indexData   *view.IndexData
	errorStatus int
	errorMsg    string
}

func (m *mockRenderer) Index(w http.ResponseWriter, status int, data view.IndexData) {
	m.indexStatus = status
	m.indexData = &data
	w.WriteHeader(status)
}

func (m *mockRenderer) Error(w http.ResponseWriter, status int, message string) {
	m.errorStatus = status
	m.errorMsg = message
	w.WriteHeader(status)
}

func (m *mockRenderer) CommentThreads(threads []model.CommentThread) []view.CommentThreadView {
	views := make([]view.CommentThreadView, 0, len(threads))
	for _, t := range threads {
		views = append(views, view.CommentThreadView{ID: t.ID})
	}
	return views
}

type mockGateway struct {
	getVideoFn      func(ctx context.Context, tokens model.TokenSet, videoID string) (*model.Video, error)
	listCommentsFn  func(ctx context.Context, tokens model.TokenSet, videoID string) ([]model.CommentThread, error)
	addCommentFn    func(ctx context.Context, tokens model.TokenSet, videoID, text string) error
	replyCommentFn  func(ctx context.Context, tokens model.TokenSet, parentID, text string) error
	deleteCommentFn func(ctx context.Context, tokens model.TokenSet, commentID string) error
	updateVideoFn   func(ctx context.Context, tokens model.TokenSet, videoID, title, description string) error
	calls           int
}

func (m *mockGateway) GetVideo(ctx context.Context, tokens model.TokenSet, videoID string) (*model.Video, error) {
	m.calls++
	if m.getVideoFn != nil {
		return m.getVideoFn(ctx, tokens, videoID)
	}
	return &model.Video{ID: videoID, Title: "title"}, nil
}

func (m *mockGateway) ListComments(ctx context.Context, tokens model.TokenSet, videoID string) ([]model.CommentThread, error) {
	m.calls++
	if m.listCommentsFn != nil {
		return m.listCommentsFn(ctx, tokens, videoID)
	}
	return nil, nil
}

func (m *mockGateway) AddComment(ctx context.Context, tokens model.TokenSet, videoID, text string) error {
	m.calls++
	if m.addCommentFn != nil {
		return m.addCommentFn(ctx, tokens, videoID, text)
	}
	return nil
}

func (m *mockGateway) ReplyComment(ctx context.Context, tokens model.TokenSet, parentID, text string) error {
	m.calls++
	if m.replyCommentFn != nil {
		return m.replyCommentFn(ctx, tokens, parentID, text)
	}
	return nil
}

func (m *mockGateway) DeleteComment(ctx context.Context, tokens model.TokenSet, commentID string) error {
	m.calls++
	if m.deleteCommentFn != nil {
		return m.deleteCommentFn(ctx, tokens, commentID)
	}
	return nil
}

func (m *mockGateway) UpdateVideo(ctx context.Context, tokens model.TokenSet, videoID, title, description string) error {
	m.calls++
	if m.updateVideoFn != nil {
		return m.updateVideoFn(ctx, tokens, videoID, title, description)
	}
	return nil
}

type mockNotes struct {
	createFn func(ctx context.Context, userID, videoID, content, rawTags string) (*model.Note, error)
	listFn   func(ctx context.Context, videoID string) ([]*model.Note, error)
	searchFn func(ctx context.Context, videoID, tag string) ([]*model.Note, error)
}

func (m *mockNotes) Create(ctx context.Context, userID, videoID, content, rawTags string) (*model.Note, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, videoID, content, rawTags)
	}
	return &model.Note{ID: "n1", VideoID: videoID, Content: content}, nil
}

func (m *mockNotes) List(ctx context.Context, videoID string) ([]*model.Note, error) {
	if m.listFn != nil {
		return m.listFn(ctx, videoID)
	}
	return nil, nil
}

func (m *mockNotes) Search(ctx context.Context, videoID, tag string) ([]*model.Note, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, videoID, tag)
	}
	return nil, nil
}

// withRoute はchiのURLパラメータと認可済みのTokenSetをリクエストに設定する。
func withRoute(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	ctx = middleware.ContextWithTokenSet(ctx, model.TokenSet{AccessToken: "access-1", RefreshToken: "refresh-1"})
	ctx = middleware.ContextWithUserID(ctx, "user-1")
	return r.WithContext(ctx)
}
