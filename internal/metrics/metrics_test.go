package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"courier/internal/push"
)

var _ push.Metrics = (*Collector)(nil)

func scrape(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status %d", rec.Code)
	}
	return rec.Body.String()
}

func TestCollectorExportsEngineEvents(t *testing.T) {
	c := New()
	c.StreamCreated("sandbox")
	c.StreamCreated("sandbox")
	c.StreamReused("sandbox")
	c.StreamDiscarded("sandbox", "ping failed")
	c.RequestCompleted("sandbox", 200, 20*time.Millisecond)
	c.RequestCompleted("sandbox", 410, 30*time.Millisecond)
	c.TransportRetried("sandbox")
	c.DeliveryAborted("sandbox")

	body := scrape(t, c.Handler())
	for _, want := range []string{
		`courier_pool_streams_created_total{configuration="sandbox"} 2`,
		`courier_pool_streams_reused_total{configuration="sandbox"} 1`,
		`courier_pool_streams_discarded_total{configuration="sandbox",reason="ping failed"} 1`,
		`courier_push_requests_total{configuration="sandbox",status="200"} 1`,
		`courier_push_requests_total{configuration="sandbox",status="410"} 1`,
		`courier_push_request_duration_seconds_count{configuration="sandbox"} 2`,
		`courier_push_transport_retries_total{configuration="sandbox"} 1`,
		`courier_push_deliveries_aborted_total{configuration="sandbox"} 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in scrape output", want)
		}
	}
}

func TestCollectorsAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.StreamCreated("x")
	if strings.Contains(scrape(t, b.Handler()), `configuration="x"`) {
		t.Fatal("expected registries not to share series")
	}
}

func TestServe(t *testing.T) {
	c := New()
	c.StreamCreated("sandbox")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, err := c.Serve(ctx, "127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), "courier_pool_streams_created_total") {
		t.Fatal("expected courier metrics from the listener")
	}
}
