package middleware

import (
	"net/http"

	"github.com/hitoshi/userdesk/internal/model"
)

// NewRoleRequiredMiddleware は指定ロールのいずれかを持つセッションのみを
// 通過させるミドルウェアを返す。
// セッションミドルウェアの後に配置する必要がある。
// セッションがない場合は401、ロールが不足する場合は403を返す。
func NewRoleRequiredMiddleware(roles ...model.Role) func(next http.Handler) http.Handler {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := SessionFromContext(r.Context())
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if !allowed[session.Role] {
				WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
					Code:     model.ErrCodeForbidden,
					Message:  "この操作には管理者権限が必要です。",
					Category: "auth",
					Action:   "管理者アカウントでログインし直してください。",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
