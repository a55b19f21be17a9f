package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/userdesk/internal/auth"
	"github.com/hitoshi/userdesk/internal/model"
)

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	loginFn             func(ctx context.Context, username, password string) (*model.Session, error)
	logoutFn            func(ctx context.Context, sessionID string) error
	currentStateFn      func(ctx context.Context, sessionID string) (*auth.AuthState, error)
	impersonateFn       func(ctx context.Context, sessionID, targetUsername string) (*model.Session, error)
	stopImpersonationFn func(ctx context.Context, sessionID string) (*model.Session, error)
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return &model.Session{ID: "test-session", Username: username, Role: model.RoleAdmin}, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) CurrentState(ctx context.Context, sessionID string) (*auth.AuthState, error) {
	if m.currentStateFn != nil {
		return m.currentStateFn(ctx, sessionID)
	}
	if sessionID == "" {
		return &auth.AuthState{}, nil
	}
	return &auth.AuthState{Username: "admin", Role: model.RoleAdmin, Authenticated: true}, nil
}

func (m *mockAuthService) Impersonate(ctx context.Context, sessionID, targetUsername string) (*model.Session, error) {
	if m.impersonateFn != nil {
		return m.impersonateFn(ctx, sessionID, targetUsername)
	}
	return &model.Session{ID: sessionID, Username: targetUsername}, nil
}

func (m *mockAuthService) StopImpersonation(ctx context.Context, sessionID string) (*model.Session, error) {
	if m.stopImpersonationFn != nil {
		return m.stopImpersonationFn(ctx, sessionID)
	}
	return &model.Session{ID: sessionID, Username: "admin"}, nil
}

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{SessionMaxAge: 3600}
}

func findCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- Login ---

func TestAuthHandler_Login_SetsSessionCookie(t *testing.T) {
	router := SetupAuthRoutes(&mockAuthService{}, testAuthConfig())

	body := `{"username": "admin", "password": "admin123"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	cookie := findCookie(t, w, "session_id")
	if cookie == nil {
		t.Fatal("session cookie not set")
	}
	if cookie.Value != "test-session" {
		t.Errorf("cookie.Value = %q, want test-session", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("cookie.HttpOnly = false, want true")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie.SameSite = %v, want Lax", cookie.SameSite)
	}

	var state auth.AuthState
	json.NewDecoder(w.Body).Decode(&state)
	if !state.Authenticated {
		t.Error("state.Authenticated = false, want true")
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, username, password string) (*model.Session, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	}
	router := SetupAuthRoutes(svc, testAuthConfig())

	body := `{"username": "admin", "password": "wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if findCookie(t, w, "session_id") != nil {
		t.Error("session cookie set on failed login")
	}
}

func TestAuthHandler_Login_BrokenJSON(t *testing.T) {
	router := SetupAuthRoutes(&mockAuthService{}, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{"))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- Logout ---

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	var gotSessionID string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			gotSessionID = sessionID
			return nil
		},
	}
	router := SetupAuthRoutes(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "abc"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if gotSessionID != "abc" {
		t.Errorf("sessionID = %q, want abc", gotSessionID)
	}

	cookie := findCookie(t, w, "session_id")
	if cookie == nil {
		t.Fatal("clearing cookie not set")
	}
	if cookie.MaxAge != -1 {
		t.Errorf("cookie.MaxAge = %d, want -1", cookie.MaxAge)
	}
}

func TestAuthHandler_Logout_WithoutCookieStillSucceeds(t *testing.T) {
	router := SetupAuthRoutes(&mockAuthService{}, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

// --- Me ---

func TestAuthHandler_Me_UnauthenticatedIsStillOK(t *testing.T) {
	router := SetupAuthRoutes(&mockAuthService{}, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var state auth.AuthState
	json.NewDecoder(w.Body).Decode(&state)
	if state.Authenticated {
		t.Error("state.Authenticated = true, want false")
	}
}

func TestAuthHandler_Me_Authenticated(t *testing.T) {
	router := SetupAuthRoutes(&mockAuthService{}, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "abc"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	var state auth.AuthState
	json.NewDecoder(w.Body).Decode(&state)
	if !state.Authenticated {
		t.Error("state.Authenticated = false, want true")
	}
	if state.Username != "admin" {
		t.Errorf("state.Username = %q, want admin", state.Username)
	}
}

// --- Impersonate / StopImpersonation ---

func TestAuthHandler_Impersonate_RequiresCookie(t *testing.T) {
	router := SetupAuthRoutes(&mockAuthService{}, testAuthConfig())

	body := `{"username": "viewer"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/impersonate", strings.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthHandler_Impersonate_Success(t *testing.T) {
	var gotTarget string
	svc := &mockAuthService{
		impersonateFn: func(ctx context.Context, sessionID, targetUsername string) (*model.Session, error) {
			gotTarget = targetUsername
			return &model.Session{ID: sessionID, Username: targetUsername}, nil
		},
		currentStateFn: func(ctx context.Context, sessionID string) (*auth.AuthState, error) {
			return &auth.AuthState{
				Username: "viewer", Role: model.RoleUser,
				Authenticated: true, Impersonating: true,
				OriginalUsername: "admin",
			}, nil
		},
	}
	router := SetupAuthRoutes(svc, testAuthConfig())

	body := `{"username": "viewer"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/impersonate", strings.NewReader(body))
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "abc"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if gotTarget != "viewer" {
		t.Errorf("target = %q, want viewer", gotTarget)
	}

	var state auth.AuthState
	json.NewDecoder(w.Body).Decode(&state)
	if !state.Impersonating {
		t.Error("state.Impersonating = false, want true")
	}
	if state.OriginalUsername != "admin" {
		t.Errorf("state.OriginalUsername = %q, want admin", state.OriginalUsername)
	}
}

func TestAuthHandler_Impersonate_Denied(t *testing.T) {
	svc := &mockAuthService{
		impersonateFn: func(ctx context.Context, sessionID, targetUsername string) (*model.Session, error) {
			return nil, model.NewImpersonateDeniedError("管理者権限が必要です")
		},
	}
	router := SetupAuthRoutes(svc, testAuthConfig())

	body := `{"username": "admin"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/impersonate", strings.NewReader(body))
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "viewer-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestAuthHandler_StopImpersonation_RequiresCookie(t *testing.T) {
	router := SetupAuthRoutes(&mockAuthService{}, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/stop-impersonation", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthHandler_StopImpersonation_Success(t *testing.T) {
	svc := &mockAuthService{
		currentStateFn: func(ctx context.Context, sessionID string) (*auth.AuthState, error) {
			return &auth.AuthState{
				Username: "admin", Role: model.RoleAdmin, Authenticated: true,
			}, nil
		},
	}
	router := SetupAuthRoutes(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/stop-impersonation", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "abc"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var state auth.AuthState
	json.NewDecoder(w.Body).Decode(&state)
	if state.Impersonating {
		t.Error("state.Impersonating = true, want false")
	}
	if state.Username != "admin" {
		t.Errorf("state.Username = %q, want admin", state.Username)
	}
}
