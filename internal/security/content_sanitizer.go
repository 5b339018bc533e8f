// Package security はアプリケーションのセキュリティ機能を提供する。
//
// CommentSanitizer はYouTube Data APIが返すコメントのHTML（textDisplay）を
// サニタイズし、画面にそのまま埋め込めるようにする。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// YouTubeがコメント表示に使うタグのみを通過させる。
package security

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// CommentSanitizer はコメントHTMLのサニタイズ機能のインターフェースを定義する。
type CommentSanitizer interface {
	// Sanitize はHTMLをサニタイズして安全なHTMLを返す。
	// 許可タグ（br, b, i, s, a）のみを通過させ、それ以外のタグと全ての属性を除去する。
	// aタグのhref属性はhttpsスキームのみ許可され、
	// target="_blank"とrel="noopener noreferrer"が自動付与される。
	// 空文字列の入力には空文字列を返す。
	Sanitize(rawHTML string) string
}

// commentSanitizer はCommentSanitizerの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type commentSanitizer struct {
	policy *bluemonday.Policy
}

// NewCommentSanitizer はCommentSanitizerの新しいインスタンスを生成する。
func NewCommentSanitizer() *commentSanitizer {
	p := bluemonday.NewPolicy()

	// YouTubeのtextDisplayは改行を<br>、書式を<b><i><s>で表す
	p.AllowElements("br", "b", "i", "s")

	// タイムスタンプやURLは<a>で返る。相対URLはない
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return u.Host != ""
	})
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &commentSanitizer{
		policy: p,
	}
}

// Sanitize はHTMLをサニタイズして安全なHTMLを返す。
func (s *commentSanitizer) Sanitize(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	return s.policy.Sanitize(rawHTML)
}

// compile-time interface check
var _ CommentSanitizer = (*commentSanitizer)(nil)
