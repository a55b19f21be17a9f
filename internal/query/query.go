// Package query はエンティティキャッシュのスナップショットからの
// 純粋で同期的な派生（フィルタ、ページネーション、集計）を提供する。
// キャッシュを変更することはない。
package query

import (
	"sort"
	"strings"
	"time"

	"github.com/hitoshi/userdesk/internal/cache"
	"github.com/hitoshi/userdesk/internal/model"
)

// recentRegistrationsLimit はダッシュボードに表示する直近登録ユーザーの件数。
const recentRegistrationsLimit = 5

// Criteria はフィルタ条件を表す。空のフィールドは制約を課さない。
// 複数の条件は論理ANDで結合される。
type Criteria struct {
	// SearchTerm は名・姓・メールアドレス・ユーザー名への
	// 大文字小文字を区別しない部分一致。
	SearchTerm string
	// Role はロールの完全一致。
	Role string
	// Status はステータスの完全一致。
	Status string
	// Department は部署の完全一致。
	Department string
}

// Page はページネーション結果を表す。
type Page struct {
	Users      []model.User `json:"users"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"pageSize"`
	TotalPages int          `json:"totalPages"`
}

// Statistics はダッシュボード集計を表す。
type Statistics struct {
	TotalUsers          int            `json:"totalUsers"`
	ActiveUsers         int            `json:"activeUsers"`
	InactiveUsers       int            `json:"inactiveUsers"`
	UsersByDepartment   map[string]int `json:"usersByDepartment"`
	UsersByRole         map[string]int `json:"usersByRole"`
	RecentRegistrations []model.User   `json:"recentRegistrations"`
}

// Service はクエリレイヤーの実装。キャッシュの現在のスナップショットに
// 対して派生を計算する。
type Service struct {
	cache *cache.Cache
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(c *cache.Cache) *Service {
	return &Service{cache: c}
}

// Filter は条件に一致するレコードの部分列を返す。
// 一致レコードの相対順序はスナップショットの順序を保つ。
func (s *Service) Filter(criteria Criteria) []model.User {
	return Filter(s.cache.Snapshot(), criteria)
}

// Paginate は条件でフィルタしたうえで1始まりのページを切り出す。
func (s *Service) Paginate(page, pageSize int, criteria Criteria) Page {
	return Paginate(s.cache.Snapshot(), page, pageSize, criteria)
}

// Statistics は全スナップショットからダッシュボード集計を計算する。
func (s *Service) Statistics() Statistics {
	return ComputeStatistics(s.cache.Snapshot())
}

// Departments はスナップショット全体の空でない部署名の集合を
// 昇順・重複なしで返す。
func (s *Service) Departments() []string {
	return Departments(s.cache.Snapshot())
}

// Filter は条件に一致するレコードの部分列を返す。
func Filter(users []model.User, criteria Criteria) []model.User {
	term := strings.ToLower(strings.TrimSpace(criteria.SearchTerm))

	matched := make([]model.User, 0, len(users))
	for _, u := range users {
		if term != "" && !matchesSearchTerm(u, term) {
			continue
		}
		if criteria.Role != "" && string(u.Role) != criteria.Role {
			continue
		}
		if criteria.Status != "" && string(u.Status) != criteria.Status {
			continue
		}
		if criteria.Department != "" && u.Department != criteria.Department {
			continue
		}
		matched = append(matched, u)
	}
	return matched
}

// Paginate はフィルタ済みリストから1始まりのページを切り出す。
// 範囲外のページは空のリストを返す。pageSizeが1未満の場合は1として扱う。
func Paginate(users []model.User, page, pageSize int, criteria Criteria) Page {
	if pageSize < 1 {
		pageSize = 1
	}

	filtered := Filter(users, criteria)
	total := len(filtered)
	totalPages := (total + pageSize - 1) / pageSize

	startIdx := (page - 1) * pageSize
	endIdx := startIdx + pageSize

	var slice []model.User
	if page >= 1 && startIdx < total {
		if endIdx > total {
			endIdx = total
		}
		slice = filtered[startIdx:endIdx]
	} else {
		slice = []model.User{}
	}

	return Page{
		Users:      slice,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// ComputeStatistics は全スナップショットからダッシュボード集計を計算する。
//
// recentRegistrationsはjoinDate降順の安定ソートで上位5件を選ぶ。
// joinDateが欠落またはパース不能なレコードは末尾に回し、
// 同一日付の同順位はID昇順で解決する。
func ComputeStatistics(users []model.User) Statistics {
	stats := Statistics{
		TotalUsers:        len(users),
		UsersByDepartment: make(map[string]int),
		UsersByRole:       make(map[string]int),
	}

	for _, u := range users {
		switch u.Status {
		case model.StatusActive:
			stats.ActiveUsers++
		case model.StatusInactive:
			stats.InactiveUsers++
		}
		if u.Department != "" {
			stats.UsersByDepartment[u.Department]++
		}
		stats.UsersByRole[string(u.Role)]++
	}

	stats.RecentRegistrations = recentRegistrations(users, recentRegistrationsLimit)
	return stats
}

// Departments は空でない部署名の集合を昇順・重複なしで返す。
func Departments(users []model.User) []string {
	seen := make(map[string]bool)
	for _, u := range users {
		if u.Department != "" {
			seen[u.Department] = true
		}
	}

	departments := make([]string, 0, len(seen))
	for d := range seen {
		departments = append(departments, d)
	}
	sort.Strings(departments)
	return departments
}

// recentRegistrations はjoinDateが新しい順に上位limit件を返す。
func recentRegistrations(users []model.User, limit int) []model.User {
	sorted := make([]model.User, len(users))
	copy(sorted, users)

	sort.SliceStable(sorted, func(i, j int) bool {
		ti, okI := parseJoinDate(sorted[i].JoinDate)
		tj, okJ := parseJoinDate(sorted[j].JoinDate)

		// 日付のないレコードは末尾に回す
		if okI != okJ {
			return okI
		}
		if !okI {
			return sorted[i].ID < sorted[j].ID
		}
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return sorted[i].ID < sorted[j].ID
	})

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// matchesSearchTerm は検索語が名・姓・メール・ユーザー名のいずれかに
// 部分一致するかを返す。
func matchesSearchTerm(u model.User, lowerTerm string) bool {
	fields := []string{u.FirstName, u.LastName, u.Email, u.Username}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), lowerTerm) {
			return true
		}
	}
	return false
}

// parseJoinDate はISO形式の入会日文字列をパースする。
func parseJoinDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		// RFC3339でもパースを試みる
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, false
		}
	}
	return t, true
}
