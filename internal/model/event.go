package model

import "time"

// EventType はイベントログの種別を表す。
type EventType string

const (
	EventAuthLogin         EventType = "AUTH_LOGIN"
	EventAuthLoginError    EventType = "AUTH_LOGIN_ERROR"
	EventTokenRefreshError EventType = "TOKEN_REFRESH_ERROR"

	EventVideoFetch       EventType = "VIDEO_FETCH"
	EventVideoFetchError  EventType = "VIDEO_FETCH_ERROR"
	EventVideoUpdate      EventType = "VIDEO_UPDATE"
	EventVideoUpdateError EventType = "VIDEO_UPDATE_ERROR"

	EventCommentAdd         EventType = "COMMENT_ADD"
	EventCommentAddError    EventType = "COMMENT_ADD_ERROR"
	EventCommentReply       EventType = "COMMENT_REPLY"
	EventCommentReplyError  EventType = "COMMENT_REPLY_ERROR"
	EventCommentDelete      EventType = "COMMENT_DELETE"
	EventCommentDeleteError EventType = "COMMENT_DELETE_ERROR"

	EventNoteAdd         EventType = "NOTE_ADD"
	EventNoteAddError    EventType = "NOTE_ADD_ERROR"
	EventNoteSearch      EventType = "NOTE_SEARCH"
	EventNoteSearchError EventType = "NOTE_SEARCH_ERROR"
)

// EventLog は監査用のイベントログ1件を表す。追記専用で、アプリからは読み出さない。
type EventLog struct {
	ID         int64
	EventType  EventType
	OccurredAt time.Time
	Details    map[string]any
}
