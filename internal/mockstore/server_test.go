package mockstore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/userdesk/internal/model"
)

func newTestServer(t *testing.T, config ServerConfig) (*httptest.Server, *MemoryUserRepo) {
	t.Helper()
	repo := NewMemoryUserRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := httptest.NewServer(NewServer(repo, config, logger).Router())
	t.Cleanup(server.Close)
	return server, repo
}

func postUser(t *testing.T, server *httptest.Server, user model.User) model.User {
	t.Helper()
	body, _ := json.Marshal(user)
	resp, err := http.Post(server.URL+"/users", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /users error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /users status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var created model.User
	json.NewDecoder(resp.Body).Decode(&created)
	return created
}

func TestServer_Health(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{})

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestServer_ListUsers_EmptyIsJSONArray(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{})

	resp, err := http.Get(server.URL + "/users")
	if err != nil {
		t.Fatalf("GET /users error = %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if bytes.Contains(body, []byte("null")) {
		t.Errorf("body = %s, want empty JSON array", body)
	}

	var users []model.User
	if err := json.Unmarshal(body, &users); err != nil {
		t.Fatalf("unmarshal error = %v", err)
	}
	if len(users) != 0 {
		t.Errorf("len(users) = %d, want 0", len(users))
	}
}

func TestServer_CreateAssignsID(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{})

	// クライアントが指定したIDは無視してストアが採番する
	created := postUser(t, server, model.User{ID: 999, Username: "new"})
	if created.ID != 1 {
		t.Errorf("created.ID = %d, want 1", created.ID)
	}
}

func TestServer_GetUser(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{})
	created := postUser(t, server, model.User{Username: "target"})

	resp, err := http.Get(server.URL + "/users/1")
	if err != nil {
		t.Fatalf("GET /users/1 error = %v", err)
	}
	defer resp.Body.Close()

	var user model.User
	json.NewDecoder(resp.Body).Decode(&user)
	if user.ID != created.ID || user.Username != "target" {
		t.Errorf("user = %+v, want created record", user)
	}
}

func TestServer_GetUser_NotFound(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{})

	resp, err := http.Get(server.URL + "/users/42")
	if err != nil {
		t.Fatalf("GET /users/42 error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestServer_GetUser_InvalidID(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{})

	resp, err := http.Get(server.URL + "/users/abc")
	if err != nil {
		t.Fatalf("GET /users/abc error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestServer_UpdateUser(t *testing.T) {
	server, repo := newTestServer(t, ServerConfig{})
	postUser(t, server, model.User{Username: "before"})

	body, _ := json.Marshal(model.User{Username: "after"})
	req, _ := http.NewRequest(http.MethodPut, server.URL+"/users/1", bytes.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT /users/1 error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	stored, _ := repo.FindByID(context.Background(), 1)
	if stored.Username != "after" {
		t.Errorf("stored.Username = %q, want after", stored.Username)
	}
}

func TestServer_DeleteUser(t *testing.T) {
	server, repo := newTestServer(t, ServerConfig{})
	postUser(t, server, model.User{Username: "victim"})

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/users/1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /users/1 error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	users, _ := repo.List(context.Background())
	if len(users) != 0 {
		t.Errorf("len(users) = %d, want 0", len(users))
	}
}

func TestServer_FailureInjectionRejectsMutations(t *testing.T) {
	// FailureRate 1.0 で全ミューテーションが503になる
	server, repo := newTestServer(t, ServerConfig{FailureRate: 1.0})

	body, _ := json.Marshal(model.User{Username: "new"})
	resp, err := http.Post(server.URL+"/users", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /users error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}

	users, _ := repo.List(context.Background())
	if len(users) != 0 {
		t.Errorf("len(users) = %d, want 0 after injected failure", len(users))
	}
}

func TestServer_FailureInjectionDoesNotAffectReads(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{FailureRate: 1.0})

	resp, err := http.Get(server.URL + "/users")
	if err != nil {
		t.Fatalf("GET /users error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}
