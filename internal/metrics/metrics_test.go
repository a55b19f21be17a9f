package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue はレジストリから指定メトリクスのカウンタ値を取り出す。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			var total float64
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			return total
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestCollector_RecordMutationOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMutationSuccess("create")
	c.RecordMutationSuccess("update")
	c.RecordMutationFailure("delete")
	c.RecordRollback("update")
	c.RecordUndo()

	if got := counterValue(t, reg, "userdesk_mutation_success_total"); got != 2 {
		t.Errorf("mutation_success_total = %v, want 2", got)
	}
	if got := counterValue(t, reg, "userdesk_mutation_fail_total"); got != 1 {
		t.Errorf("mutation_fail_total = %v, want 1", got)
	}
	if got := counterValue(t, reg, "userdesk_rollback_total"); got != 1 {
		t.Errorf("rollback_total = %v, want 1", got)
	}
	if got := counterValue(t, reg, "userdesk_undo_total"); got != 1 {
		t.Errorf("undo_total = %v, want 1", got)
	}
}

func TestCollector_RecordHTTPStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	if got := counterValue(t, reg, "userdesk_http_status_total"); got != 3 {
		t.Errorf("http_status_total = %v, want 3", got)
	}
}

func TestCollector_RecordRemoteLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRemoteLatency("list", 120*time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "userdesk_remote_latency_seconds" {
			found = true
			if count := mf.GetMetric()[0].GetHistogram().GetSampleCount(); count != 1 {
				t.Errorf("sample count = %d, want 1", count)
			}
		}
	}
	if !found {
		t.Error("userdesk_remote_latency_seconds metric not found")
	}
}

func TestSetupMetricsRoute_ServesPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordMutationSuccess("create")

	handler := SetupMetricsRoute(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), "userdesk_mutation_success_total") {
		t.Error("response does not contain userdesk_mutation_success_total")
	}
}
