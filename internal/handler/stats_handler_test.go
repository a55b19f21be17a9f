package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/userdesk/internal/model"
	"github.com/hitoshi/userdesk/internal/query"
)

func TestStatsHandler_GetStatistics(t *testing.T) {
	queries := &mockQueryService{
		statisticsFn: func() query.Statistics {
			return query.Statistics{
				TotalUsers:    10,
				ActiveUsers:   8,
				InactiveUsers: 2,
				UsersByDepartment: map[string]int{
					"Engineering": 4,
					"Sales":       3,
				},
				UsersByRole: map[string]int{
					"admin": 2,
					"user":  8,
				},
				RecentRegistrations: []model.User{{ID: 9}, {ID: 7}},
			}
		},
	}
	h := NewStatsHandler(queries)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()

	h.GetStatistics(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var stats query.Statistics
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if stats.TotalUsers != 10 || stats.ActiveUsers != 8 {
		t.Errorf("stats = %+v, want TotalUsers 10, ActiveUsers 8", stats)
	}
	if stats.UsersByDepartment["Engineering"] != 4 {
		t.Errorf("Engineering = %d, want 4", stats.UsersByDepartment["Engineering"])
	}
	if len(stats.RecentRegistrations) != 2 {
		t.Errorf("len(RecentRegistrations) = %d, want 2", len(stats.RecentRegistrations))
	}
}

func TestStatsHandler_GetDepartments(t *testing.T) {
	queries := &mockQueryService{
		departmentsFn: func() []string {
			return []string{"Engineering", "Marketing", "Sales"}
		},
	}
	h := NewStatsHandler(queries)

	req := httptest.NewRequest(http.MethodGet, "/api/departments", nil)
	w := httptest.NewRecorder()

	h.GetDepartments(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string][]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	got := resp["departments"]
	want := []string{"Engineering", "Marketing", "Sales"}
	if len(got) != len(want) {
		t.Fatalf("departments = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("departments = %v, want %v", got, want)
		}
	}
}
