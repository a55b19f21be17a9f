// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, remote, system
	Action   string // ユーザー向け対処方法
	Cause    error  // 根本原因（リモートストア障害など）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は根本原因のエラーを返す。errors.Is/Asでの照合に使用する。
func (e *APIError) Unwrap() error {
	return e.Cause
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeRemoteFailure      = "REMOTE_FAILURE"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeAvatarBlocked      = "AVATAR_BLOCKED"
	ErrCodeAvatarUnavailable  = "AVATAR_UNAVAILABLE"
	ErrCodeImpersonateDenied  = "IMPERSONATE_DENIED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
)

// NewUserNotFoundError はユーザー未検出エラーを生成する。
// キャッシュのスナップショットに対象IDが存在しない場合に使用し、
// リモートストアへのリクエストは行われない。
func NewUserNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %d", id),
		Category: "validation",
		Action:   "ユーザー一覧を再読み込みしてから、再度お試しください。",
	}
}

// NewRemoteFailureError はリモートストア障害エラーを生成する。
// ネットワークエラーおよび非成功ステータスの両方で使用し、根本原因を保持する。
func NewRemoteFailureError(op string, cause error) *APIError {
	return &APIError{
		Code:     ErrCodeRemoteFailure,
		Message:  fmt.Sprintf("ユーザーストアへの%sに失敗しました。", op),
		Category: "remote",
		Action:   "しばらく待ってから再度お試しください。",
		Cause:    cause,
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "認証情報を確認して再度ログインしてください。",
	}
}

// NewValidationError はフィールドバリデーション失敗エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewAvatarBlockedError はアバターURLがセキュリティポリシーで
// ブロックされた場合のエラーを生成する。
func NewAvatarBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeAvatarBlocked,
		Message:  "セキュリティポリシーにより、指定されたアバターURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているhttps形式の画像URLを指定してください。ローカルネットワークやプライベートIPは許可されていません。",
	}
}

// NewAvatarUnavailableError はアバター画像の取得失敗エラーを生成する。
func NewAvatarUnavailableError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeAvatarUnavailable,
		Message:  "アバター画像の取得に失敗しました。",
		Category: "remote",
		Action:   "アバターURLが正しいか確認してください。",
		Cause:    cause,
	}
}

// NewImpersonateDeniedError は成り代わり操作が許可されない場合のエラーを生成する。
func NewImpersonateDeniedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImpersonateDenied,
		Message:  fmt.Sprintf("成り代わり操作は実行できません: %s", reason),
		Category: "auth",
		Action:   "管理者アカウントでログインしているか確認してください。",
	}
}
