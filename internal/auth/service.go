// Package auth は静的アカウントに対する認証、セッション管理、
// 成り代わり（インパーソネーション）を提供する。
//
// ログイン可能なアカウントは設定から読み込まれる2件の静的アカウント
// （管理者と閲覧ユーザー）のみで、実行中に増減しない。
// 認証情報のセキュリティは本システムの設計対象外である。
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/userdesk/internal/model"
)

// AuthState は現在の認証状態を表す。
// Presentation Layerが購読・表示するための読み取り専用ビュー。
type AuthState struct {
	Username         string     `json:"username"`
	Role             model.Role `json:"role"`
	Authenticated    bool       `json:"authenticated"`
	Impersonating    bool       `json:"impersonating"`
	OriginalUsername string     `json:"originalUsername,omitempty"`
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	accounts map[string]model.Account
	sessions SessionStore
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(accounts []model.Account, sessions SessionStore, config ServiceConfig) *Service {
	byName := make(map[string]model.Account, len(accounts))
	for _, a := range accounts {
		byName[a.Username] = a
	}
	return &Service{
		accounts: byName,
		sessions: sessions,
		config:   config,
	}
}

// Login は認証情報を検証してセッションを発行する。
// 認証失敗時はINVALID_CREDENTIALSを返す。どのフィールドが誤っているかは
// 区別しない。
func (s *Service) Login(ctx context.Context, username, password string) (*model.Session, error) {
	account, ok := s.accounts[username]
	if !ok || subtle.ConstantTimeCompare([]byte(account.Password), []byte(password)) != 1 {
		slog.Warn("ログインに失敗しました",
			slog.String("username", username),
		)
		return nil, model.NewInvalidCredentialsError()
	}

	session := &model.Session{
		ID:        uuid.New().String(),
		Username:  account.Username,
		Role:      account.Role,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}

	slog.Info("ログインしました",
		slog.String("username", account.Username),
		slog.String("role", string(account.Role)),
	)
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	slog.Info("ログアウトしました", slog.String("session_id", sessionID))
	return nil
}

// CurrentState はセッションIDから現在の認証状態を取得する。
// セッションが無効な場合は未認証のAuthStateを返す（エラーにしない）。
func (s *Service) CurrentState(ctx context.Context, sessionID string) (*AuthState, error) {
	if sessionID == "" {
		return &AuthState{}, nil
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if session == nil {
		return &AuthState{}, nil
	}

	return &AuthState{
		Username:         session.Username,
		Role:             session.Role,
		Authenticated:    true,
		Impersonating:    session.Impersonating,
		OriginalUsername: session.OriginalUsername,
	}, nil
}

// Impersonate は管理者セッションを指定アカウントに成り代わらせる。
// 成り代わり中のセッションはそのアカウントのロールで動作し、
// 元のアカウント情報をセッション内に保持する。
// 管理者以外のセッション、既に成り代わり中のセッション、
// 未知のアカウントへの成り代わりは拒否される。
func (s *Service) Impersonate(ctx context.Context, sessionID, targetUsername string) (*model.Session, error) {
	session, err := s.findValidSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Role != model.RoleAdmin {
		return nil, model.NewImpersonateDeniedError("管理者権限が必要です")
	}
	if session.Impersonating {
		return nil, model.NewImpersonateDeniedError("既に成り代わり中です")
	}

	target, ok := s.accounts[targetUsername]
	if !ok {
		return nil, model.NewImpersonateDeniedError(
			fmt.Sprintf("対象アカウントが存在しません: %s", targetUsername))
	}
	if target.Username == session.Username {
		return nil, model.NewImpersonateDeniedError("自分自身には成り代われません")
	}

	session.OriginalUsername = session.Username
	session.OriginalRole = session.Role
	session.Username = target.Username
	session.Role = target.Role
	session.Impersonating = true

	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの更新に失敗しました: %w", err)
	}

	slog.Info("成り代わりを開始しました",
		slog.String("original", session.OriginalUsername),
		slog.String("target", target.Username),
	)
	return session, nil
}

// StopImpersonation は成り代わりを終了し、元のアカウントに復帰する。
func (s *Service) StopImpersonation(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := s.findValidSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !session.Impersonating {
		return nil, model.NewImpersonateDeniedError("成り代わり中ではありません")
	}

	slog.Info("成り代わりを終了しました",
		slog.String("original", session.OriginalUsername),
		slog.String("impersonated", session.Username),
	)

	session.Username = session.OriginalUsername
	session.Role = session.OriginalRole
	session.OriginalUsername = ""
	session.OriginalRole = ""
	session.Impersonating = false

	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの更新に失敗しました: %w", err)
	}

	return session, nil
}

// findValidSession は有効なセッションを取得する。無効な場合はエラーを返す。
func (s *Service) findValidSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}
	return session, nil
}
