package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func TestRegistry(t *testing.T) {
	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestHandler_ServesRegisteredMetrics(t *testing.T) {
	c := promauto.NewCounter(prometheus.CounterOpts{
		Name: "listings_metrics_handler_test_total",
		Help: "Counter registered by the handler test",
	})
	c.Add(3)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "listings_metrics_handler_test_total 3") {
		t.Errorf("metrics output missing test counter:\n%s", body)
	}
}
