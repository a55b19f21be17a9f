// Package mockstore は同梱のユーザーストアREST サーバーを提供する。
// 管理APIサーバーから見ると完全に外部のコラボレーターであり、
// HTTP越しにのみアクセスされる。
package mockstore

import (
	"context"
	"errors"

	"github.com/hitoshi/userdesk/internal/model"
)

// ErrUserNotFound は指定IDのユーザーが存在しない場合に返される。
var ErrUserNotFound = errors.New("user not found")

// UserRepository はユーザーストアの永続化インターフェース。
type UserRepository interface {
	// List は全ユーザーをID昇順で返す。
	List(ctx context.Context) ([]model.User, error)
	// FindByID は指定IDのユーザーを取得する。見つからない場合はErrUserNotFoundを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)
	// Create はユーザーを作成し、採番されたIDをuser.IDに設定する。
	Create(ctx context.Context, user *model.User) error
	// Update は指定IDのユーザーを置き換える。見つからない場合はErrUserNotFoundを返す。
	Update(ctx context.Context, user *model.User) error
	// Delete は指定IDのユーザーを削除する。見つからない場合はErrUserNotFoundを返す。
	Delete(ctx context.Context, id int64) error
}
