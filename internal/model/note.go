package model

import "time"

// Note は動画に付与するタグ付きメモを表す。
// 作成後は更新されない。タグの重複は許容する。
type Note struct {
	ID        string
	VideoID   string
	Content   string
	Tags      []string
	CreatedBy string
	CreatedAt time.Time
}
