package youtube

import (
	"time"

	yt "google.golang.org/api/youtube/v3"

	"github.com/hitoshi/tubenote/internal/model"
)

func toVideo(v *yt.Video) *model.Video {
	video := &model.Video{ID: v.Id}
	if sn := v.Snippet; sn != nil {
		video.Title = sn.Title
		video.Description = sn.Description
		video.ChannelTitle = sn.ChannelTitle
		video.CategoryID = sn.CategoryId
		video.PublishedAt = parseTime(sn.PublishedAt)
		video.ThumbnailURL = thumbnailURL(sn.Thumbnails)
	}
	if st := v.Statistics; st != nil {
		video.ViewCount = st.ViewCount
		video.LikeCount = st.LikeCount
		video.CommentCount = st.CommentCount
	}
	return video
}

func toCommentThread(t *yt.CommentThread) model.CommentThread {
	thread := model.CommentThread{ID: t.Id}
	if sn := t.Snippet; sn != nil {
		thread.TotalReplyCount = sn.TotalReplyCount
		if sn.TopLevelComment != nil {
			thread.TopLevel = toComment(sn.TopLevelComment)
		}
	}
	if t.Replies != nil {
		for _, c := range t.Replies.Comments {
			thread.Replies = append(thread.Replies, toComment(c))
		}
	}
	return thread
}

func toComment(c *yt.Comment) model.Comment {
	comment := model.Comment{ID: c.Id}
	if sn := c.Snippet; sn != nil {
		comment.AuthorName = sn.AuthorDisplayName
		comment.TextDisplay = sn.TextDisplay
		comment.LikeCount = sn.LikeCount
		comment.PublishedAt = parseTime(sn.PublishedAt)
	}
	return comment
}

// thumbnailURL は利用可能な最大のサムネイルURLを返す。
func thumbnailURL(t *yt.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*yt.Thumbnail{t.Maxres, t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
