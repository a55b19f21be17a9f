package mockstore

import (
	"context"
	"sort"
	"sync"

	"github.com/hitoshi/userdesk/internal/model"
)

// MemoryUserRepo はインメモリのユーザーリポジトリ。
// 開発・テスト用のデフォルト実装。
type MemoryUserRepo struct {
	mu     sync.Mutex
	users  map[int64]model.User
	nextID int64
}

// NewMemoryUserRepo は空のMemoryUserRepoを生成する。
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		users:  make(map[int64]model.User),
		nextID: 1,
	}
}

// NewSeededMemoryRepo はシードデータ投入済みのMemoryUserRepoを生成する。
func NewSeededMemoryRepo() *MemoryUserRepo {
	repo := NewMemoryUserRepo()
	for _, u := range SeedUsers() {
		user := u
		repo.Create(context.Background(), &user)
	}
	return repo
}

// List は全ユーザーをID昇順で返す。
func (r *MemoryUserRepo) List(ctx context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].ID < users[j].ID
	})
	return users, nil
}

// FindByID は指定IDのユーザーを取得する。
func (r *MemoryUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// Create はユーザーを作成し、IDを採番する。
func (r *MemoryUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = *user
	return nil
}

// Update は指定IDのユーザーを置き換える。
func (r *MemoryUserRepo) Update(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return ErrUserNotFound
	}
	r.users[user.ID] = *user
	return nil
}

// Delete は指定IDのユーザーを削除する。
func (r *MemoryUserRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

// compile-time interface check
var _ UserRepository = (*MemoryUserRepo)(nil)

// SeedUsers は開発用のシードデータを返す。IDはリポジトリが採番する。
func SeedUsers() []model.User {
	return []model.User{
		{
			Username: "tyamada", Email: "taro.yamada@example.com",
			FirstName: "Taro", LastName: "Yamada",
			Role: model.RoleAdmin, Status: model.StatusActive,
			Phone: "03-1234-5678", Department: "Engineering",
			DateOfBirth: "1988-04-12", JoinDate: "2019-04-01",
			LastActive: "2026-08-28T09:15:00Z",
		},
		{
			Username: "hsuzuki", Email: "hanako.suzuki@example.com",
			FirstName: "Hanako", LastName: "Suzuki",
			Role: model.RoleUser, Status: model.StatusActive,
			Department: "Sales", JoinDate: "2021-10-15",
			LastActive: "2026-08-30T17:42:00Z",
		},
		{
			Username: "ksato", Email: "kenji.sato@example.com",
			FirstName: "Kenji", LastName: "Sato",
			Role: model.RoleUser, Status: model.StatusInactive,
			Department: "Engineering", JoinDate: "2018-07-23",
		},
		{
			Username: "mtanaka", Email: "misaki.tanaka@example.com",
			FirstName: "Misaki", LastName: "Tanaka",
			Role: model.RoleUser, Status: model.StatusActive,
			Department: "Marketing", JoinDate: "2023-01-10",
			Phone: "06-9876-5432",
		},
		{
			Username: "ywatanabe", Email: "yuki.watanabe@example.com",
			FirstName: "Yuki", LastName: "Watanabe",
			Role: model.RoleAdmin, Status: model.StatusActive,
			Department: "Engineering", JoinDate: "2020-06-01",
			LastActive: "2026-08-29T11:03:00Z",
		},
		{
			Username: "sito", Email: "shota.ito@example.com",
			FirstName: "Shota", LastName: "Ito",
			Role: model.RoleUser, Status: model.StatusActive,
			Department: "Sales", JoinDate: "2022-03-14",
		},
		{
			Username: "akobayashi", Email: "aya.kobayashi@example.com",
			FirstName: "Aya", LastName: "Kobayashi",
			Role: model.RoleUser, Status: model.StatusInactive,
			Department: "HR", JoinDate: "2017-11-30",
		},
		{
			Username: "rnakamura", Email: "ren.nakamura@example.com",
			FirstName: "Ren", LastName: "Nakamura",
			Role: model.RoleUser, Status: model.StatusActive,
			Department: "Marketing", JoinDate: "2024-08-19",
		},
		{
			Username: "nkato", Email: "nana.kato@example.com",
			FirstName: "Nana", LastName: "Kato",
			Role: model.RoleUser, Status: model.StatusActive,
			Department: "HR", JoinDate: "2025-02-03",
			LastActive: "2026-08-25T08:20:00Z",
		},
		{
			Username: "dyoshida", Email: "daiki.yoshida@example.com",
			FirstName: "Daiki", LastName: "Yoshida",
			Role: model.RoleUser, Status: model.StatusActive,
			Department: "Engineering", JoinDate: "2025-06-20",
		},
	}
}
