package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定名・ラベルのメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return nil
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	for k, v := range labels {
		found := false
		for _, lp := range m.GetLabel() {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	if NewCollector(prometheus.NewRegistry()) == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestCollector_ImplementsInterface(t *testing.T) {
	var _ MetricsCollector = (*Collector)(nil)
	var _ MetricsCollector = Noop{}
}

// TestRecordRefreshSuccess は成功数、保存件数、読み飛ばし数の記録を検証する。
func TestRecordRefreshSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRefreshSuccess(30, 2)
	c.RecordRefreshSuccess(25, 1)

	if v := findMetric(t, reg, "hnreact_refresh_success_total", nil).GetCounter().GetValue(); v != 2 {
		t.Errorf("refresh_success_total = %v, want 2", v)
	}
	if v := findMetric(t, reg, "hnreact_items_stored", nil).GetGauge().GetValue(); v != 25 {
		t.Errorf("items_stored = %v, want 25", v)
	}
	if v := findMetric(t, reg, "hnreact_items_skipped_total", nil).GetCounter().GetValue(); v != 3 {
		t.Errorf("items_skipped_total = %v, want 3", v)
	}
}

func TestRecordRefreshFailure_ByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRefreshFailure("upstream")
	c.RecordRefreshFailure("upstream")
	c.RecordRefreshFailure("store")

	if v := findMetric(t, reg, "hnreact_refresh_fail_total", map[string]string{"reason": "upstream"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("refresh_fail_total{upstream} = %v, want 2", v)
	}
	if v := findMetric(t, reg, "hnreact_refresh_fail_total", map[string]string{"reason": "store"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("refresh_fail_total{store} = %v, want 1", v)
	}
}

func TestRecordRefreshLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRefreshLatency(1500 * time.Millisecond)

	h := findMetric(t, reg, "hnreact_refresh_latency_seconds", nil).GetHistogram()
	if h.GetSampleCount() != 1 {
		t.Errorf("sample_count = %d, want 1", h.GetSampleCount())
	}
	if h.GetSampleSum() != 1.5 {
		t.Errorf("sample_sum = %v, want 1.5", h.GetSampleSum())
	}
}

func TestRecordReaction_AndCleared(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordReaction("liked")
	c.RecordReaction("disliked")
	c.RecordReaction("liked")
	c.RecordReactionCleared(false)
	c.RecordReactionCleared(true)

	if v := findMetric(t, reg, "hnreact_reactions_total", map[string]string{"state": "liked"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("reactions_total{liked} = %v, want 2", v)
	}
	if v := findMetric(t, reg, "hnreact_reactions_cleared_total", map[string]string{"scope": "item"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("reactions_cleared_total{item} = %v, want 1", v)
	}
	if v := findMetric(t, reg, "hnreact_reactions_cleared_total", map[string]string{"scope": "own"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("reactions_cleared_total{own} = %v, want 1", v)
	}
}

func TestRecordHTTPStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)
	c.RecordHTTPStatus(200)

	if v := findMetric(t, reg, "hnreact_http_status_total", map[string]string{"status_code": "200"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("http_status_total{200} = %v, want 2", v)
	}
}

// TestHandler_ServesMetrics はスクレイプ用ハンドラーがメトリクスを返すことを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordRefreshSuccess(10, 0)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "hnreact_refresh_success_total") {
		t.Error("response body should contain hnreact_refresh_success_total")
	}
}
