package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/userdesk/internal/model"
)

func testAccounts() []model.Account {
	return []model.Account{
		{Username: "admin", Password: "admin123", Role: model.RoleAdmin},
		{Username: "viewer", Password: "viewer123", Role: model.RoleUser},
	}
}

func newTestService() (*Service, *MemorySessionStore) {
	sessions := NewMemorySessionStore()
	svc := NewService(testAccounts(), sessions, ServiceConfig{SessionMaxAge: 3600})
	return svc, sessions
}

// --- Login / Logout ---

func TestService_Login_Success(t *testing.T) {
	svc, sessions := newTestService()

	session, err := svc.Login(context.Background(), "admin", "admin123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if session.ID == "" {
		t.Error("session.ID is empty")
	}
	if session.Role != model.RoleAdmin {
		t.Errorf("session.Role = %q, want admin", session.Role)
	}
	if sessions.Len() != 1 {
		t.Errorf("sessions.Len() = %d, want 1", sessions.Len())
	}
}

func TestService_Login_InvalidCredentials(t *testing.T) {
	svc, _ := newTestService()

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "admin", "wrong"},
		{"unknown user", "nobody", "admin123"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.username, tt.password)

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCredentials {
				t.Errorf("err = %v, want INVALID_CREDENTIALS", err)
			}
		})
	}
}

func TestService_Logout_DestroysSession(t *testing.T) {
	svc, sessions := newTestService()
	session, _ := svc.Login(context.Background(), "admin", "admin123")

	if err := svc.Logout(context.Background(), session.ID); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if sessions.Len() != 0 {
		t.Errorf("sessions.Len() = %d, want 0", sessions.Len())
	}
}

// --- CurrentState ---

func TestService_CurrentState_Authenticated(t *testing.T) {
	svc, _ := newTestService()
	session, _ := svc.Login(context.Background(), "viewer", "viewer123")

	state, err := svc.CurrentState(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("CurrentState() error = %v", err)
	}
	if !state.Authenticated {
		t.Error("Authenticated = false, want true")
	}
	if state.Username != "viewer" {
		t.Errorf("Username = %q, want viewer", state.Username)
	}
	if state.Impersonating {
		t.Error("Impersonating = true, want false")
	}
}

func TestService_CurrentState_InvalidSessionIsNotAnError(t *testing.T) {
	svc, _ := newTestService()

	tests := []struct {
		name      string
		sessionID string
	}{
		{"empty", ""},
		{"unknown", "no-such-session"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := svc.CurrentState(context.Background(), tt.sessionID)
			if err != nil {
				t.Fatalf("CurrentState() error = %v, want nil", err)
			}
			if state.Authenticated {
				t.Error("Authenticated = true, want false")
			}
		})
	}
}

func TestService_CurrentState_ExpiredSession(t *testing.T) {
	sessions := NewMemorySessionStore()
	svc := NewService(testAccounts(), sessions, ServiceConfig{SessionMaxAge: 3600})

	expired := &model.Session{
		ID:        "expired-session",
		Username:  "admin",
		Role:      model.RoleAdmin,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	sessions.Create(context.Background(), expired)

	state, err := svc.CurrentState(context.Background(), "expired-session")
	if err != nil {
		t.Fatalf("CurrentState() error = %v", err)
	}
	if state.Authenticated {
		t.Error("Authenticated = true for expired session, want false")
	}
}

// --- Impersonate / StopImpersonation ---

func TestService_Impersonate_AdminBecomesViewer(t *testing.T) {
	svc, _ := newTestService()
	session, _ := svc.Login(context.Background(), "admin", "admin123")

	updated, err := svc.Impersonate(context.Background(), session.ID, "viewer")
	if err != nil {
		t.Fatalf("Impersonate() error = %v", err)
	}
	if updated.Username != "viewer" {
		t.Errorf("Username = %q, want viewer", updated.Username)
	}
	if updated.Role != model.RoleUser {
		t.Errorf("Role = %q, want user", updated.Role)
	}
	if !updated.Impersonating {
		t.Error("Impersonating = false, want true")
	}
	if updated.OriginalUsername != "admin" {
		t.Errorf("OriginalUsername = %q, want admin", updated.OriginalUsername)
	}

	state, _ := svc.CurrentState(context.Background(), session.ID)
	if !state.Impersonating {
		t.Error("state.Impersonating = false, want true")
	}
}

func TestService_Impersonate_Denied(t *testing.T) {
	svc, _ := newTestService()
	adminSession, _ := svc.Login(context.Background(), "admin", "admin123")
	viewerSession, _ := svc.Login(context.Background(), "viewer", "viewer123")

	tests := []struct {
		name   string
		setup  func() string
		target string
	}{
		{
			"non-admin session",
			func() string { return viewerSession.ID },
			"admin",
		},
		{
			"unknown target",
			func() string { return adminSession.ID },
			"nobody",
		},
		{
			"self impersonation",
			func() string { return adminSession.ID },
			"admin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Impersonate(context.Background(), tt.setup(), tt.target)

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeImpersonateDenied {
				t.Errorf("err = %v, want IMPERSONATE_DENIED", err)
			}
		})
	}
}

func TestService_Impersonate_AlreadyImpersonatingIsDenied(t *testing.T) {
	svc, _ := newTestService()
	session, _ := svc.Login(context.Background(), "admin", "admin123")

	if _, err := svc.Impersonate(context.Background(), session.ID, "viewer"); err != nil {
		t.Fatalf("first Impersonate() error = %v", err)
	}

	_, err := svc.Impersonate(context.Background(), session.ID, "viewer")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeImpersonateDenied {
		t.Errorf("err = %v, want IMPERSONATE_DENIED", err)
	}
}

func TestService_StopImpersonation_RestoresOriginal(t *testing.T) {
	svc, _ := newTestService()
	session, _ := svc.Login(context.Background(), "admin", "admin123")
	svc.Impersonate(context.Background(), session.ID, "viewer")

	restored, err := svc.StopImpersonation(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("StopImpersonation() error = %v", err)
	}
	if restored.Username != "admin" {
		t.Errorf("Username = %q, want admin", restored.Username)
	}
	if restored.Role != model.RoleAdmin {
		t.Errorf("Role = %q, want admin", restored.Role)
	}
	if restored.Impersonating {
		t.Error("Impersonating = true, want false")
	}
	if restored.OriginalUsername != "" {
		t.Errorf("OriginalUsername = %q, want empty", restored.OriginalUsername)
	}
}

func TestService_StopImpersonation_NotImpersonatingIsDenied(t *testing.T) {
	svc, _ := newTestService()
	session, _ := svc.Login(context.Background(), "admin", "admin123")

	_, err := svc.StopImpersonation(context.Background(), session.ID)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeImpersonateDenied {
		t.Errorf("err = %v, want IMPERSONATE_DENIED", err)
	}
}

// --- MemorySessionStore ---

func TestMemorySessionStore_DeleteExpired(t *testing.T) {
	sessions := NewMemorySessionStore()
	ctx := context.Background()

	sessions.Create(ctx, &model.Session{
		ID: "live", ExpiresAt: time.Now().Add(time.Hour),
	})
	sessions.Create(ctx, &model.Session{
		ID: "dead-1", ExpiresAt: time.Now().Add(-time.Minute),
	})
	sessions.Create(ctx, &model.Session{
		ID: "dead-2", ExpiresAt: time.Now().Add(-time.Hour),
	})

	deleted, err := sessions.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	if sessions.Len() != 1 {
		t.Errorf("Len() = %d, want 1", sessions.Len())
	}
}
