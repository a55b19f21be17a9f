package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/userdesk/internal/model"
	"github.com/hitoshi/userdesk/internal/query"
)

// UserServiceInterface はユーザーハンドラーが必要とするミューテーションサービスの
// インターフェース。mutation.Coordinatorが実装する。
type UserServiceInterface interface {
	// GetUser はユーザーを取得する。キャッシュ優先、なければストアに問い合わせる。
	GetUser(ctx context.Context, id int64) (*model.User, error)
	// Create はユーザーを作成する。
	Create(ctx context.Context, draft model.User) (*model.User, error)
	// Update はユーザーを楽観的に更新する。失敗時はロールバックされる。
	Update(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error)
	// Delete はユーザーを楽観的に削除する。失敗時はロールバックされる。
	Delete(ctx context.Context, id int64) error
	// UndoDelete は直近の削除を取り消す。取り消し対象がなければrestored=falseを返す。
	UndoDelete(ctx context.Context) (*model.User, bool, error)
	// HasPendingDeletion は取り消し可能な削除が保留されているかを返す。
	HasPendingDeletion() bool
}

// QueryServiceInterface は一覧・集計系の読み取りインターフェース。
// query.Serviceが実装する。
type QueryServiceInterface interface {
	Paginate(page, pageSize int, criteria query.Criteria) query.Page
	Statistics() query.Statistics
	Departments() []string
}

// FieldSanitizer はプロフィール文字列フィールドのサニタイズインターフェース。
type FieldSanitizer interface {
	SanitizeField(raw string) string
}

// AvatarFetcher はアバター画像の安全な取得インターフェース。
type AvatarFetcher interface {
	FetchAvatar(ctx context.Context, avatarURL string) ([]byte, string, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service   UserServiceInterface
	queries   QueryServiceInterface
	sanitizer FieldSanitizer
	avatars   AvatarFetcher
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, queries QueryServiceInterface, sanitizer FieldSanitizer, avatars AvatarFetcher) *UserHandler {
	return &UserHandler{
		service:   service,
		queries:   queries,
		sanitizer: sanitizer,
		avatars:   avatars,
	}
}

// undoDeleteResponse は削除取り消しのAPIレスポンス。
type undoDeleteResponse struct {
	Restored bool        `json:"restored"`
	User     *model.User `json:"user,omitempty"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// ListUsers はフィルタ・ページネーション付きのユーザー一覧を返す。
// GET /api/users?search=&role=&status=&department=&page=&pageSize=
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	criteria := query.Criteria{
		SearchTerm: q.Get("search"),
		Role:       q.Get("role"),
		Status:     q.Get("status"),
		Department: q.Get("department"),
	}

	page := parsePositiveInt(q.Get("page"), 1)
	pageSize := parsePositiveInt(q.Get("pageSize"), 10)

	result := h.queries.Paginate(page, pageSize, criteria)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetUser はユーザー詳細を取得する。
// GET /api/users/:id
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// CreateUser はユーザーを作成する。
// POST /api/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var draft model.User
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	h.sanitizeDraft(&draft)

	if apiErr := validateDraft(draft); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	created, err := h.service.Create(r.Context(), draft)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// UpdateUser はユーザーを部分更新する。
// PUT /api/users/:id
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	var patch model.UserPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	h.sanitizePatch(&patch)

	if apiErr := validatePatch(patch); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	updated, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// DeleteUser はユーザーを削除する。削除は取り消しバッファに退避され、
// 次の削除までの間はundo-deleteで取り消せる。
// DELETE /api/users/:id
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UndoDelete は直近の削除を取り消す。取り消し対象がない場合も
// エラーではなくrestored=falseで応答する。
// POST /api/users/undo-delete
func (h *UserHandler) UndoDelete(w http.ResponseWriter, r *http.Request) {
	restored, had, err := h.service.UndoDelete(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(undoDeleteResponse{
		Restored: had,
		User:     restored,
	})
}

// GetAvatar はユーザーのアバター画像をSSRFガード付きで代理取得する。
// GET /api/users/:id/avatar
func (h *UserHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if user.Avatar == "" {
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "AVATAR_NOT_SET",
			Message:  "このユーザーにはアバターが設定されていません。",
			Category: "user",
			Action:   "アバターURLを設定してください。",
		})
		return
	}

	data, mimeType, err := h.avatars.FetchAvatar(r.Context(), user.Avatar)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(data)
}

// --- ヘルパー関数 ---

// parseUserID はパスパラメータのユーザーIDを解析する。
// 不正な場合はエラーレスポンスを書き込み、falseを返す。
func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "ユーザーIDが不正です。",
			Category: "validation",
			Action:   "正の整数のユーザーIDを指定してください。",
		})
		return 0, false
	}
	return id, true
}

// parsePositiveInt はクエリパラメータを正の整数として解析する。
// 未指定または不正な場合はフォールバック値を返す。
func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// sanitizeDraft は作成リクエストの文字列フィールドをサニタイズする。
func (h *UserHandler) sanitizeDraft(draft *model.User) {
	draft.Username = h.sanitizer.SanitizeField(draft.Username)
	draft.Email = h.sanitizer.SanitizeField(draft.Email)
	draft.FirstName = h.sanitizer.SanitizeField(draft.FirstName)
	draft.LastName = h.sanitizer.SanitizeField(draft.LastName)
	draft.Phone = h.sanitizer.SanitizeField(draft.Phone)
	draft.Address = h.sanitizer.SanitizeField(draft.Address)
	draft.Department = h.sanitizer.SanitizeField(draft.Department)
}

// sanitizePatch は更新リクエストで指定されたフィールドのみをサニタイズする。
func (h *UserHandler) sanitizePatch(patch *model.UserPatch) {
	fields := []*string{
		patch.Username, patch.Email, patch.FirstName, patch.LastName,
		patch.Phone, patch.Address, patch.Department,
	}
	for _, f := range fields {
		if f != nil {
			*f = h.sanitizer.SanitizeField(*f)
		}
	}
}

// validateDraft は作成リクエストの必須項目と形式を検証する。
func validateDraft(draft model.User) *model.APIError {
	if draft.Username == "" {
		return model.NewValidationError("ユーザー名は必須です")
	}
	if draft.Email == "" {
		return model.NewValidationError("メールアドレスは必須です")
	}
	if _, err := mail.ParseAddress(draft.Email); err != nil {
		return model.NewValidationError("メールアドレスの形式が不正です")
	}
	if draft.FirstName == "" {
		return model.NewValidationError("名は必須です")
	}
	if draft.LastName == "" {
		return model.NewValidationError("姓は必須です")
	}
	if !draft.Role.Valid() {
		return model.NewValidationError("ロールはadminまたはuserを指定してください")
	}
	if !draft.Status.Valid() {
		return model.NewValidationError("ステータスはactiveまたはinactiveを指定してください")
	}
	return nil
}

// validatePatch は更新リクエストで指定されたフィールドの形式を検証する。
func validatePatch(patch model.UserPatch) *model.APIError {
	if patch.Username != nil && *patch.Username == "" {
		return model.NewValidationError("ユーザー名を空にはできません")
	}
	if patch.Email != nil {
		if *patch.Email == "" {
			return model.NewValidationError("メールアドレスを空にはできません")
		}
		if _, err := mail.ParseAddress(*patch.Email); err != nil {
			return model.NewValidationError("メールアドレスの形式が不正です")
		}
	}
	if patch.FirstName != nil && *patch.FirstName == "" {
		return model.NewValidationError("名を空にはできません")
	}
	if patch.LastName != nil && *patch.LastName == "" {
		return model.NewValidationError("姓を空にはできません")
	}
	if patch.Role != nil && !patch.Role.Valid() {
		return model.NewValidationError("ロールはadminまたはuserを指定してください")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return model.NewValidationError("ステータスはactiveまたはinactiveを指定してください")
	}
	return nil
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUserNotFound, "AVATAR_NOT_SET":
		return http.StatusNotFound
	case model.ErrCodeRemoteFailure, model.ErrCodeAvatarUnavailable:
		return http.StatusBadGateway
	case model.ErrCodeInvalidCredentials, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidRequest, model.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case model.ErrCodeAvatarBlocked, model.ErrCodeImpersonateDenied, model.ErrCodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
