// Package youtube はYouTube Data API v3への呼び出しを提供する。
// 呼び出しごとにユーザーのアクセストークンでAPIクライアントを組み立てる。
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/hitoshi/tubenote/internal/metrics"
	"github.com/hitoshi/tubenote/internal/model"
)

// defaultCategoryID はカテゴリ未設定の動画を更新するときに使うカテゴリ（People & Blogs）。
const defaultCategoryID = "22"

// Config はYouTube Data APIクライアントの設定。
type Config struct {
	// Endpoint はテスト用にAPIのベースURLを差し替える。空の場合は本番。
	Endpoint        string
	Timeout         time.Duration
	CommentPageSize int64
}

// Service はYouTube Data APIの呼び出しを提供する。
type Service struct {
	config  Config
	metrics metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(config Config, mc metrics.MetricsCollector) *Service {
	if config.CommentPageSize <= 0 {
		config.CommentPageSize = 20
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{config: config, metrics: mc}
}

// client はアクセストークンを付与するAPIクライアントを生成する。
func (s *Service) client(ctx context.Context, tokens model.TokenSet) (*yt.Service, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: tokens.AccessToken,
		TokenType:   tokens.TokenType,
	})
	hc := &http.Client{
		Transport: &oauth2.Transport{Source: src},
		Timeout:   s.config.Timeout,
	}

	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if s.config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.config.Endpoint))
	}

	api, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create client: %w", model.ErrUpstreamAPI, err)
	}
	return api, nil
}

// observe はAPI呼び出しの結果をメトリクスに記録し、失敗をErrUpstreamAPIでラップする。
func (s *Service) observe(operation string, start time.Time, err error) error {
	if err != nil {
		s.metrics.RecordUpstreamCall(operation, metrics.OutcomeFailure, time.Since(start))
		return fmt.Errorf("%w: %s: %w", model.ErrUpstreamAPI, operation, err)
	}
	s.metrics.RecordUpstreamCall(operation, metrics.OutcomeSuccess, time.Since(start))
	return nil
}

// GetVideo は動画のメタデータと統計を取得する。存在しない場合はnilを返す。
func (s *Service) GetVideo(ctx context.Context, tokens model.TokenSet, videoID string) (*model.Video, error) {
	api, err := s.client(ctx, tokens)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := api.Videos.List([]string{"snippet", "statistics"}).Id(videoID).Context(ctx).Do()
	if err := s.observe("videos.list", start, err); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	return toVideo(resp.Items[0]), nil
}

// ListComments は動画のコメントスレッドを返信付きで取得する。
// コメントが無効化された動画では空のスライスを返す。
func (s *Service) ListComments(ctx context.Context, tokens model.TokenSet, videoID string) ([]model.CommentThread, error) {
	api, err := s.client(ctx, tokens)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := api.CommentThreads.List([]string{"snippet", "replies"}).
		VideoId(videoID).
		MaxResults(s.config.CommentPageSize).
		TextFormat("html").
		Context(ctx).
		Do()
	if isCommentsDisabled(err) {
		s.metrics.RecordUpstreamCall("commentThreads.list", metrics.OutcomeSuccess, time.Since(start))
		return []model.CommentThread{}, nil
	}
	if err := s.observe("commentThreads.list", start, err); err != nil {
		return nil, err
	}

	threads := make([]model.CommentThread, 0, len(resp.Items))
	for _, item := range resp.Items {
		threads = append(threads, toCommentThread(item))
	}
	return threads, nil
}

// AddComment は動画にトップレベルコメントを投稿する。
func (s *Service) AddComment(ctx context.Context, tokens model.TokenSet, videoID, text string) error {
	api, err := s.client(ctx, tokens)
	if err != nil {
		return err
	}

	thread := &yt.CommentThread{
		Snippet: &yt.CommentThreadSnippet{
			VideoId: videoID,
			TopLevelComment: &yt.Comment{
				Snippet: &yt.CommentSnippet{TextOriginal: text},
			},
		},
	}

	start := time.Now()
	_, err = api.CommentThreads.Insert([]string{"snippet"}, thread).Context(ctx).Do()
	return s.observe("commentThreads.insert", start, err)
}

// ReplyComment はコメントに返信する。
func (s *Service) ReplyComment(ctx context.Context, tokens model.TokenSet, parentID, text string) error {
	api, err := s.client(ctx, tokens)
	if err != nil {
		return err
	}

	comment := &yt.Comment{
		Snippet: &yt.CommentSnippet{ParentId: parentID, TextOriginal: text},
	}

	start := time.Now()
	_, err = api.Comments.Insert([]string{"snippet"}, comment).Context(ctx).Do()
	return s.observe("comments.insert", start, err)
}

// DeleteComment はコメントを削除する。
func (s *Service) DeleteComment(ctx context.Context, tokens model.TokenSet, commentID string) error {
	api, err := s.client(ctx, tokens)
	if err != nil {
		return err
	}

	start := time.Now()
	err = api.Comments.Delete(commentID).Context(ctx).Do()
	return s.observe("comments.delete", start, err)
}

// UpdateVideo は動画のタイトルと説明を更新する。
// 空の項目は現在の値を維持し、カテゴリ未設定の場合は既定のカテゴリを使う。
func (s *Service) UpdateVideo(ctx context.Context, tokens model.TokenSet, videoID, title, description string) error {
	api, err := s.client(ctx, tokens)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := api.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
	if err := s.observe("videos.list", start, err); err != nil {
		return err
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return fmt.Errorf("%w: video %s not found", model.ErrUpstreamAPI, videoID)
	}
	current := resp.Items[0].Snippet

	snippet := &yt.VideoSnippet{
		Title:           firstNonEmpty(title, current.Title),
		Description:     firstNonEmpty(description, current.Description),
		CategoryId:      firstNonEmpty(current.CategoryId, defaultCategoryID),
		Tags:            current.Tags,
		DefaultLanguage: current.DefaultLanguage,
	}

	start = time.Now()
	_, err = api.Videos.Update([]string{"snippet"}, &yt.Video{Id: videoID, Snippet: snippet}).Context(ctx).Do()
	return s.observe("videos.update", start, err)
}

func isCommentsDisabled(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range apiErr.Errors {
		if item.Reason == "commentsDisabled" {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
