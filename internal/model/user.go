// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの役割を表す。
type Role string

const (
	// RoleAdmin は管理者権限を持つロール。全ミューテーション操作が許可される。
	RoleAdmin Role = "admin"
	// RoleUser は閲覧専用の一般ロール。
	RoleUser Role = "user"
)

// Valid はロール値が定義済みのいずれかであるかを返す。
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Status はユーザーの有効状態を表す。
type Status string

const (
	// StatusActive は有効なユーザーを示す。
	StatusActive Status = "active"
	// StatusInactive は無効化されたユーザーを示す。
	StatusInactive Status = "inactive"
)

// Valid はステータス値が定義済みのいずれかであるかを返す。
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// User はユーザーストアで管理されるユーザーレコードを表す。
// IDはストアが採番する正の整数。日付フィールドはISO形式の文字列として
// ストアとの間でそのまま受け渡しする（dateOfBirth/joinDateは"2006-01-02"、
// lastActiveはRFC3339）。
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Role        Role   `json:"role"`
	Status      Status `json:"status"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Department  string `json:"department,omitempty"`
	JoinDate    string `json:"joinDate,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	LastActive  string `json:"lastActive,omitempty"`
}

// UserPatch はユーザーの部分更新を表す。
// nilフィールドは変更せず、既存の値を維持するシャローマージを行う。
type UserPatch struct {
	Username    *string `json:"username,omitempty"`
	Email       *string `json:"email,omitempty"`
	FirstName   *string `json:"firstName,omitempty"`
	LastName    *string `json:"lastName,omitempty"`
	Role        *Role   `json:"role,omitempty"`
	Status      *Status `json:"status,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Address     *string `json:"address,omitempty"`
	DateOfBirth *string `json:"dateOfBirth,omitempty"`
	Department  *string `json:"department,omitempty"`
	JoinDate    *string `json:"joinDate,omitempty"`
	Avatar      *string `json:"avatar,omitempty"`
	LastActive  *string `json:"lastActive,omitempty"`
}

// Apply はパッチをユーザーにシャローマージした新しいユーザーを返す。
// 元のユーザーは変更しない。
func (p UserPatch) Apply(u User) User {
	merged := u
	if p.Username != nil {
		merged.Username = *p.Username
	}
	if p.Email != nil {
		merged.Email = *p.Email
	}
	if p.FirstName != nil {
		merged.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		merged.LastName = *p.LastName
	}
	if p.Role != nil {
		merged.Role = *p.Role
	}
	if p.Status != nil {
		merged.Status = *p.Status
	}
	if p.Phone != nil {
		merged.Phone = *p.Phone
	}
	if p.Address != nil {
		merged.Address = *p.Address
	}
	if p.DateOfBirth != nil {
		merged.DateOfBirth = *p.DateOfBirth
	}
	if p.Department != nil {
		merged.Department = *p.Department
	}
	if p.JoinDate != nil {
		merged.JoinDate = *p.JoinDate
	}
	if p.Avatar != nil {
		merged.Avatar = *p.Avatar
	}
	if p.LastActive != nil {
		merged.LastActive = *p.LastActive
	}
	return merged
}

// Account はログイン可能な静的アカウントを表す。
// 認証情報は設定から起動時に読み込まれ、実行中は変更されない。
type Account struct {
	Username string
	Password string
	Role     Role
}

// Session はログインセッションを表す。
// 管理者が閲覧アカウントとして操作する場合、Impersonatingがtrueとなり
// OriginalUsernameに元のアカウント名を保持する。
type Session struct {
	ID               string
	Username         string
	Role             Role
	Impersonating    bool
	OriginalUsername string
	OriginalRole     Role
	ExpiresAt        time.Time
	CreatedAt        time.Time
}
