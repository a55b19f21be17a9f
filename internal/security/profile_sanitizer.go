package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ProfileSanitizerService はユーザー入力のプロフィールフィールドの
// サニタイズ機能のインターフェースを定義する。
// 作成・更新リクエストがストアへ送信される前に使用される。
type ProfileSanitizerService interface {
	// SanitizeField はフリーテキストフィールドからHTMLタグをすべて除去する。
	// 管理画面のテーブルやフォームにそのまま表示されるフィールドに
	// マークアップが紛れ込むことを防ぐ。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeField(raw string) string
}

// ProfileSanitizer はProfileSanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を使用する。
type ProfileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerの新しいインスタンスを生成する。
func NewProfileSanitizer() *ProfileSanitizer {
	return &ProfileSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeField はフリーテキストフィールドからHTMLタグをすべて除去する。
func (s *ProfileSanitizer) SanitizeField(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
