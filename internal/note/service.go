// Package note は動画に付与するタグ付きメモのビジネスロジックを提供する。
package note

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/tubenote/internal/model"
	"github.com/hitoshi/tubenote/internal/repository"
)

// ListLimit は1画面に表示するメモの最大件数。
const ListLimit = 100

// ParseTags はカンマ区切りのタグ文字列を分割し、前後の空白を除去して空要素を捨てる。
// 重複はそのまま残す。
func ParseTags(raw string) []string {
	tags := []string{}
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Service はメモの作成と検索を提供する。
type Service struct {
	repo repository.NoteRepository
}

// NewService はServiceを生成する。
func NewService(repo repository.NoteRepository) *Service {
	return &Service{repo: repo}
}

// Create はメモを作成する。本文が空の場合はErrValidationを返す。
func (s *Service) Create(ctx context.Context, userID, videoID, content, rawTags string) (*model.Note, error) {
	if videoID == "" {
		return nil, model.NewValidationError("videoId")
	}
	if strings.TrimSpace(content) == "" {
		return nil, model.NewValidationError("content")
	}

	n := &model.Note{
		ID:        uuid.New().String(),
		VideoID:   videoID,
		Content:   content,
		Tags:      ParseTags(rawTags),
		CreatedBy: userID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	return n, nil
}

// List は動画のメモを新しい順に返す。
func (s *Service) List(ctx context.Context, videoID string) ([]*model.Note, error) {
	notes, err := s.repo.ListByVideo(ctx, videoID, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

// Search は指定タグを完全一致で含むメモを返す。タグが空の場合は全件を返す。
func (s *Service) Search(ctx context.Context, videoID, tag string) ([]*model.Note, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return s.List(ctx, videoID)
	}

	notes, err := s.repo.ListByVideoAndTag(ctx, videoID, tag, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search notes: %w", err)
	}
	return notes, nil
}
