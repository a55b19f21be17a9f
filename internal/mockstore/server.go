package mockstore

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/userdesk/internal/model"
)

// ServerConfig はストアサーバーの動作設定。
// LatencyとFailureRateで遅延・障害を注入し、管理API側の
// ロールバックや再試行の挙動を確認できる。
type ServerConfig struct {
	// Latency は各リクエストに付与する人工遅延。
	Latency time.Duration
	// FailureRate はミューテーションを503で失敗させる確率（0.0〜1.0）。
	FailureRate float64
}

// Server はユーザーストアのHTTPサーバー。
type Server struct {
	repo   UserRepository
	config ServerConfig
	logger *slog.Logger
}

// NewServer はServerを生成する。
func NewServer(repo UserRepository, config ServerConfig, logger *slog.Logger) *Server {
	return &Server{
		repo:   repo,
		config: config,
		logger: logger,
	}
}

// Router はストアAPIのルーティングを設定したchi.Routerを返す。
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/", s.listUsers)
		r.Post("/", s.createUser)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getUser)
			r.Put("/", s.updateUser)
			r.Delete("/", s.deleteUser)
		})
	})

	return r
}

// listUsers は全ユーザーを返す。
// GET /users
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	s.injectLatency()

	users, err := s.repo.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}

// getUser はユーザー詳細を返す。
// GET /users/:id
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	s.injectLatency()

	id, ok := s.parseID(w, r)
	if !ok {
		return
	}

	user, err := s.repo.FindByID(r.Context(), id)
	if errors.Is(err, ErrUserNotFound) {
		s.writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to find user")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// createUser はユーザーを作成する。
// POST /users
func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	s.injectLatency()
	if s.injectFailure(w) {
		return
	}

	var user model.User
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// IDはストアが採番する
	user.ID = 0
	if err := s.repo.Create(r.Context(), &user); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	s.logger.Info("ユーザーを作成しました", slog.Int64("id", user.ID))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// updateUser はユーザーを置き換える。
// PUT /users/:id
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	s.injectLatency()
	if s.injectFailure(w) {
		return
	}

	id, ok := s.parseID(w, r)
	if !ok {
		return
	}

	var user model.User
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user.ID = id

	err := s.repo.Update(r.Context(), &user)
	if errors.Is(err, ErrUserNotFound) {
		s.writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	s.logger.Info("ユーザーを更新しました", slog.Int64("id", id))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// deleteUser はユーザーを削除する。
// DELETE /users/:id
func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	s.injectLatency()
	if s.injectFailure(w) {
		return
	}

	id, ok := s.parseID(w, r)
	if !ok {
		return
	}

	err := s.repo.Delete(r.Context(), id)
	if errors.Is(err, ErrUserNotFound) {
		s.writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	s.logger.Info("ユーザーを削除しました", slog.Int64("id", id))

	w.WriteHeader(http.StatusNoContent)
}

// parseID はパスパラメータのユーザーIDを解析する。
func (s *Server) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

// injectLatency は設定された人工遅延を付与する。
func (s *Server) injectLatency() {
	if s.config.Latency > 0 {
		time.Sleep(s.config.Latency)
	}
}

// injectFailure は設定された確率でミューテーションを失敗させる。
// 失敗させた場合はtrueを返す。
func (s *Server) injectFailure(w http.ResponseWriter) bool {
	if s.config.FailureRate > 0 && rand.Float64() < s.config.FailureRate {
		s.logger.Warn("障害注入によりリクエストを失敗させます")
		s.writeError(w, http.StatusServiceUnavailable, "injected failure")
		return true
	}
	return false
}

// writeError はエラーレスポンスを書き込む。
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
