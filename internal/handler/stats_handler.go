package handler

import (
	"encoding/json"
	"net/http"
)

// StatsHandler は統計・集計系のHTTPハンドラー。
// 読み取りはすべてキャッシュのスナップショットに対する純粋な導出であり、
// リモートストアへの問い合わせは発生しない。
type StatsHandler struct {
	queries QueryServiceInterface
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(queries QueryServiceInterface) *StatsHandler {
	return &StatsHandler{
		queries: queries,
	}
}

// GetStatistics はダッシュボード用の統計情報を返す。
// GET /api/stats
func (h *StatsHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats := h.queries.Statistics()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// GetDepartments は登録済みユーザーの部署一覧を返す。
// 空文字を除いた重複なしの昇順ソート済みリスト。
// GET /api/departments
func (h *StatsHandler) GetDepartments(w http.ResponseWriter, r *http.Request) {
	departments := h.queries.Departments()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{
		"departments": departments,
	})
}
