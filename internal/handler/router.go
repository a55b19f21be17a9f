package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/userdesk/internal/middleware"
	"github.com/hitoshi/userdesk/internal/model"
	"github.com/hitoshi/userdesk/internal/notify"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	StatusRecorder    middleware.StatusRecorder

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ユーザー管理
	UserService UserServiceInterface
	Sanitizer   FieldSanitizer
	Avatars     AvatarFetcher

	// 読み取り・集計
	QueryService QueryServiceInterface

	// イベント配信
	Hub *notify.Hub

	// メトリクス公開エンドポイント（nilの場合は公開しない）
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging
//	  → （/api以下のみ）Session → RateLimit(General)
//	  → （ミューテーションのみ）RoleRequired(admin) → RateLimit(Mutation)
//
// 認証ルート（/auth/*）、/health、/metricsはセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルート共通のミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusRecorder))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService, deps.QueryService, deps.Sanitizer, deps.Avatars)
	statsHandler := NewStatsHandler(deps.QueryService)

	// --- 認証不要のルート ---

	r.Get("/health", healthCheck)

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// 認証ルート
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
		r.Post("/impersonate", authHandler.Impersonate)
		r.Post("/stop-impersonation", authHandler.StopImpersonation)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ミューテーション用ミドルウェア: 管理者のみ + 厳しめのレート制限
		mutation := func(r chi.Router) chi.Router {
			return r.With(
				middleware.NewRoleRequiredMiddleware(model.RoleAdmin),
				deps.RateLimiter.MutationMiddleware(),
			)
		}

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/", userHandler.ListUsers)
			mutation(r).Post("/", userHandler.CreateUser)
			mutation(r).Post("/undo-delete", userHandler.UndoDelete)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", userHandler.GetUser)
				mutation(r).Put("/", userHandler.UpdateUser)
				mutation(r).Delete("/", userHandler.DeleteUser)

				// GET /api/users/{id}/avatar - アバター画像の代理取得
				r.Get("/avatar", userHandler.GetAvatar)
			})
		})

		// 統計・集計
		r.Get("/api/stats", statsHandler.GetStatistics)
		r.Get("/api/departments", statsHandler.GetDepartments)

		// キャッシュ遷移のWebSocket配信
		if deps.Hub != nil {
			eventsHandler := NewEventsHandler(deps.Hub, deps.CORSAllowedOrigin)
			r.Get("/api/events", eventsHandler.Subscribe)
		}
	})

	return r
}

// healthCheck はヘルスチェックエンドポイント。
// GET /health
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// SetupUserRoutes はユーザー管理関連のルーティングのみを設定したchi.Routerを返す。
// ハンドラー単体テスト用。
func SetupUserRoutes(service UserServiceInterface, queries QueryServiceInterface, sanitizer FieldSanitizer, avatars AvatarFetcher) http.Handler {
	r := chi.NewRouter()
	h := NewUserHandler(service, queries, sanitizer, avatars)

	r.Route("/api/users", func(r chi.Router) {
		r.Get("/", h.ListUsers)
		r.Post("/", h.CreateUser)
		r.Post("/undo-delete", h.UndoDelete)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetUser)
			r.Put("/", h.UpdateUser)
			r.Delete("/", h.DeleteUser)
			r.Get("/avatar", h.GetAvatar)
		})
	})

	return r
}

// SetupAuthRoutes は認証関連のルーティングのみを設定したchi.Routerを返す。
// ハンドラー単体テスト用。
func SetupAuthRoutes(service AuthServiceInterface, config AuthHandlerConfig) http.Handler {
	r := chi.NewRouter()
	h := NewAuthHandler(service, config)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
		r.Post("/impersonate", h.Impersonate)
		r.Post("/stop-impersonation", h.StopImpersonation)
	})

	return r
}
