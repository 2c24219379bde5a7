package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/stockflow.docstore.v1.DocumentStore/GetData"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		time.Sleep(10 * time.Millisecond)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("DocumentStore", "GetData", "OK")); got != 1 {
		t.Fatalf("docstore_requests_total = %v, want 1", got)
	}

	if count := histogramSampleCount(t, reg, "docstore_request_duration_seconds", map[string]string{
		"service": "DocumentStore",
		"method":  "GetData",
	}); count != 1 {
		t.Fatalf("docstore_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/stockflow.docstore.v1.DocumentStore/SendData"}

	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.InvalidArgument, "boom")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("DocumentStore", "SendData", "InvalidArgument")); got != 1 {
		t.Fatalf("docstore_requests_total error label = %v, want 1", got)
	}
}

func TestMetricsHandlerExposesStoreGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}
	collector.SetCollections(3)
	collector.SetStoredViews("objects", 7)
	collector.RPCRequests.WithLabelValues("svc", "method", "OK").Inc()
	collector.RPCDurations.WithLabelValues("svc", "method").Observe(0.01)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"docstore_requests_total",
		"docstore_request_duration_seconds",
		"docstore_collections 3",
		`docstore_views{collection="objects"} 7`,
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output:\n%s", metric, body)
		}
	}
}

func TestSplitMethod(t *testing.T) {
	cases := []struct {
		in, service, method string
	}{
		{"/stockflow.docstore.v1.DocumentStore/GetData", "DocumentStore", "GetData"},
		{"", "unknown", "unknown"},
		{"GetData", "unknown", "unknown"},
	}
	for _, tc := range cases {
		service, method := SplitMethod(tc.in)
		if service != tc.service || method != tc.method {
			t.Fatalf("SplitMethod(%q) = %q, %q, want %q, %q", tc.in, service, method, tc.service, tc.method)
		}
	}
}

func TestEditorCollectorRecordsActionsAndTicks(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewEditorCollector(reg)
	if err != nil {
		t.Fatalf("NewEditorCollector: %v", err)
	}

	c.SetGraphCounts(2, 5, 3)
	c.RecordAction("create_link", "ok")
	c.RecordAction("delete_link", "blocked")
	c.RecordAction("delete_link", "blocked")
	c.ObserveTick(2*time.Millisecond, 0.5)
	c.ObserveTick(time.Millisecond, 0.25)

	if got := testutil.ToFloat64(c.Nodes); got != 5 {
		t.Fatalf("editor_nodes = %v, want 5", got)
	}
	if got := testutil.ToFloat64(c.Actions.WithLabelValues("delete_link", "blocked")); got != 2 {
		t.Fatalf("editor_actions_total{delete_link,blocked} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.PolicyViolations); got != 2 {
		t.Fatalf("editor_policy_violations_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.LayoutTicks); got != 2 {
		t.Fatalf("layout_ticks_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.LayoutAlpha); got != 0.25 {
		t.Fatalf("layout_alpha = %v, want 0.25", got)
	}
	if count := histogramSampleCount(t, c.Gatherer(), "layout_tick_duration_seconds", nil); count != 2 {
		t.Fatalf("layout_tick_duration_seconds sample_count = %d, want 2", count)
	}

	// A second collector on the same registry reuses the registered metrics.
	again, err := NewEditorCollector(reg)
	if err != nil {
		t.Fatalf("NewEditorCollector again: %v", err)
	}
	again.RecordAction("create_link", "ok")
	if got := testutil.ToFloat64(c.Actions.WithLabelValues("create_link", "ok")); got != 2 {
		t.Fatalf("shared editor_actions_total = %v, want 2", got)
	}
}

func TestNilCollectorsAreNoops(t *testing.T) {
	var e *EditorCollector
	e.SetGraphCounts(1, 2, 3)
	e.RecordAction("x", "ok")
	e.ObserveTick(time.Millisecond, 1)

	var r *RPCCollector
	r.SetCollections(1)
	r.SetStoredViews("objects", 1)
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}

func TestCollectorsShareARegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("first NewRPCCollector: %v", err)
	}
	second, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("second NewRPCCollector: %v", err)
	}
	if first.RPCRequests != second.RPCRequests || first.StoreCollections != second.StoreCollections {
		t.Fatalf("second collector did not reuse the registered metrics")
	}

	if err := reg.Register(prometheus.NewCounter(prometheus.CounterOpts{Name: "editor_views", Help: "clash"})); err != nil {
		t.Fatalf("Register clash counter: %v", err)
	}
	if _, err := NewEditorCollector(reg); err == nil {
		t.Fatalf("NewEditorCollector over a clashing counter succeeded")
	}
}
