package mockstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/userdesk/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, username, email, first_name, last_name, role, status,
	phone, address, date_of_birth, department, join_date, avatar, last_active`

// List は全ユーザーをID昇順で返す。
func (r *PostgresUserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はErrUserNotFoundを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return &u, nil
}

// Create はユーザーを作成し、採番されたIDをuser.IDに設定する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, first_name, last_name, role, status,
			phone, address, date_of_birth, department, join_date, avatar, last_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id`,
		user.Username, user.Email, user.FirstName, user.LastName,
		string(user.Role), string(user.Status),
		user.Phone, user.Address, user.DateOfBirth,
		user.Department, user.JoinDate, user.Avatar, user.LastActive,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Update は指定IDのユーザーを置き換える。見つからない場合はErrUserNotFoundを返す。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET username = $2, email = $3, first_name = $4, last_name = $5,
			role = $6, status = $7, phone = $8, address = $9,
			date_of_birth = $10, department = $11, join_date = $12,
			avatar = $13, last_active = $14
		 WHERE id = $1`,
		user.ID,
		user.Username, user.Email, user.FirstName, user.LastName,
		string(user.Role), string(user.Status),
		user.Phone, user.Address, user.DateOfBirth,
		user.Department, user.JoinDate, user.Avatar, user.LastActive,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// Delete は指定IDのユーザーを削除する。見つからない場合はErrUserNotFoundを返す。
func (r *PostgresUserRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// scanner はsql.Rowとsql.Rowsの共通Scanインターフェース。
type scanner interface {
	Scan(dest ...any) error
}

// scanUser はユーザー行をスキャンする。
func scanUser(s scanner) (model.User, error) {
	var u model.User
	var role, status string
	err := s.Scan(
		&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName,
		&role, &status,
		&u.Phone, &u.Address, &u.DateOfBirth,
		&u.Department, &u.JoinDate, &u.Avatar, &u.LastActive,
	)
	if err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	u.Status = model.Status(status)
	return u, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
