package model

import "time"

// Video はYouTube動画のメタデータを表す。
type Video struct {
	ID           string
	Title        string
	Description  string
	ChannelTitle string
	CategoryID   string
	ThumbnailURL string
	PublishedAt  time.Time
	ViewCount    uint64
	LikeCount    uint64
	CommentCount uint64
}

// Comment はYouTubeのコメント1件を表す。
// TextDisplayはYouTubeが返すHTMLで、表示前にサニタイズが必要。
type Comment struct {
	ID          string
	AuthorName  string
	TextDisplay string
	LikeCount   int64
	PublishedAt time.Time
}

// CommentThread はトップレベルコメントと返信をまとめたスレッドを表す。
type CommentThread struct {
	ID              string
	TopLevel        Comment
	TotalReplyCount int64
	Replies         []Comment
}
