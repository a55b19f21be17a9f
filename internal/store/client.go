// Package store はリモートユーザーストアのRESTクライアントを提供する。
// ストアは書き込み確認に対して権威を持つ外部コラボレーターであり、
// 障害・遅延を前提として扱う。
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/userdesk/internal/model"
)

// Client はユーザーストアREST APIのクライアント。
// すべての障害（ネットワークエラー、非成功ステータス）は
// REMOTE_FAILUREとして根本原因付きで返す。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLはユーザーストアのルートURL（例: "http://localhost:8081"）。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// List は全ユーザーレコードを取得する。初期ロードで使用する。
// GET /users
func (c *Client) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users, http.StatusOK); err != nil {
		return nil, model.NewRemoteFailureError("一覧取得", err)
	}
	return users, nil
}

// Get は指定IDのレコードを1件取得する。
// キャッシュに存在しないレコードのフォールバック取得で使用する。
// 404の場合はnilを返す（エラーにしない）。
// GET /users/:id
func (c *Client) Get(ctx context.Context, id int64) (*model.User, error) {
	user := &model.User{}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d", id), nil, user, http.StatusOK)
	if err != nil {
		var statusErr *statusError
		if errors.As(err, &statusErr) && statusErr.code == http.StatusNotFound {
			return nil, nil
		}
		return nil, model.NewRemoteFailureError("取得", err)
	}
	return user, nil
}

// Create はIDなしのペイロードからレコードを作成し、
// ストアが採番したIDを含む完全なレコードを返す。
// POST /users
func (c *Client) Create(ctx context.Context, draft model.User) (*model.User, error) {
	draft.ID = 0 // IDはストアが採番する
	created := &model.User{}
	if err := c.do(ctx, http.MethodPost, "/users", draft, created, http.StatusCreated, http.StatusOK); err != nil {
		return nil, model.NewRemoteFailureError("作成", err)
	}
	return created, nil
}

// Update はマージ済みレコード全体を送信し、永続化された表現を返す。
// PUT /users/:id
func (c *Client) Update(ctx context.Context, id int64, user model.User) (*model.User, error) {
	stored := &model.User{}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/users/%d", id), user, stored, http.StatusOK); err != nil {
		return nil, model.NewRemoteFailureError("更新", err)
	}
	return stored, nil
}

// Delete は指定IDのレコードを削除する。成功はエラーの不在で通知される。
// DELETE /users/:id
func (c *Client) Delete(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", id), nil, nil, http.StatusNoContent, http.StatusOK); err != nil {
		return model.NewRemoteFailureError("削除", err)
	}
	return nil
}

// statusError は非成功HTTPステータスを表す内部エラー。
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ユーザーストアがステータス %d を返しました: %s", e.code, e.body)
}

// do はHTTPリクエストを実行し、レスポンスをoutにデコードする。
// ステータスコードがokStatusesに含まれない場合はstatusErrorを返す。
func (c *Client) do(ctx context.Context, method, path string, body any, out any, okStatuses ...int) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "Userdesk/1.0 Admin Panel")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ユーザーストアへのリクエストに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if !containsStatus(okStatuses, resp.StatusCode) {
		// 診断用にボディの先頭のみ読み取る
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("ユーザーストアがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return &statusError{code: resp.StatusCode, body: string(preview)}
	}

	if out == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Error("ユーザーストアのレスポンスのパースに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return nil
}

// containsStatus はステータスコードが許容リストに含まれるかを返す。
func containsStatus(statuses []int, code int) bool {
	for _, s := range statuses {
		if s == code {
			return true
		}
	}
	return false
}
