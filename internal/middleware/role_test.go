package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/userdesk/internal/model"
)

func requestWithSession(role model.Role) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/users", nil)
	session := &model.Session{ID: "s1", Username: "someone", Role: role}
	return req.WithContext(ContextWithSession(req.Context(), session))
}

func TestRoleRequiredMiddleware_AllowsMatchingRole(t *testing.T) {
	nextCalled := false
	handler := NewRoleRequiredMiddleware(model.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestWithSession(model.RoleAdmin))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !nextCalled {
		t.Error("next handler was not called")
	}
}

func TestRoleRequiredMiddleware_ForbidsInsufficientRole(t *testing.T) {
	nextCalled := false
	handler := NewRoleRequiredMiddleware(model.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestWithSession(model.RoleUser))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if nextCalled {
		t.Error("next handler was called")
	}
}

func TestRoleRequiredMiddleware_RejectsMissingSession(t *testing.T) {
	handler := NewRoleRequiredMiddleware(model.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/api/users", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
