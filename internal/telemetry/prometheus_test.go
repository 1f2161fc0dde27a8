package telemetry

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type pushRequest struct {
	method      string
	path        string
	contentType string
	body        string
}

// fakeGateway records pushes and answers with status.
type fakeGateway struct {
	*httptest.Server

	mu       sync.Mutex
	requests []pushRequest
}

func newFakeGateway(t *testing.T, status int) *fakeGateway {
	t.Helper()
	g := &fakeGateway{}
	g.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		g.mu.Lock()
		g.requests = append(g.requests, pushRequest{
			method:      r.Method,
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			body:        string(body),
		})
		g.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(g.Close)
	return g
}

func (g *fakeGateway) Requests() []pushRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]pushRequest(nil), g.requests...)
}

func prometheusConfig(t *testing.T, serverURL string) *Config {
	t.Helper()
	u, err := url.Parse(serverURL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	cfg := NewDefaultConfig()
	cfg.TracesExporter = ExporterNone
	cfg.MetricsExporter = ExporterPrometheus
	cfg.Prometheus.Host = host
	cfg.Prometheus.Port = portNum
	return cfg
}

func recordDuration(t *testing.T, p *Pipeline, seconds float64, name string) {
	t.Helper()
	h, err := p.Meter().Float64Histogram("tracebuild.cmd.duration",
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0, 1, 10, 100, 1000),
	)
	require.NoError(t, err)
	h.Record(context.Background(), seconds, metric.WithAttributes(
		attribute.String("tracebuild.name", name),
		attribute.Int("tracebuild.exit_code", 0),
	))
}

func TestPrometheus_PushesOnceOnShutdown(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusAccepted} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			gw := newFakeGateway(t, status)
			p := Install(context.Background(), prometheusConfig(t, gw.URL), nil)
			require.Equal(t, ExporterPrometheus, p.MetricsExporter())

			recordDuration(t, p, 0.5, "unit-tests")
			assert.Empty(t, gw.Requests(), "nothing is pushed before shutdown")

			require.NoError(t, p.Shutdown(context.Background()))
			require.NoError(t, p.Shutdown(context.Background()))

			reqs := gw.Requests()
			require.Len(t, reqs, 1)
			req := reqs[0]
			assert.Equal(t, http.MethodPost, req.method)
			assert.Equal(t, "/metrics/job/tracebuild", req.path)
			assert.True(t, strings.HasPrefix(req.contentType, "text/plain"), req.contentType)
			assert.Contains(t, req.body, "# TYPE tracebuild_cmd_duration histogram")
			assert.Contains(t, req.body, `tracebuild_name="unit-tests"`)
			assert.Contains(t, req.body, `tracebuild_exit_code="0"`)
			assert.Contains(t, req.body, `service_name="tracebuild"`)
			assert.Contains(t, req.body, `le="1"} 1`)
			assert.Contains(t, req.body, `le="0"} 0`)
			assert.Contains(t, req.body, "tracebuild_cmd_duration_count{")
		})
	}
}

func TestPrometheus_ErrorStatusIsReported(t *testing.T) {
	gw := newFakeGateway(t, http.StatusInternalServerError)
	p := Install(context.Background(), prometheusConfig(t, gw.URL), nil)
	recordDuration(t, p, 2, "lint")

	err := p.Shutdown(context.Background())
	require.Error(t, err)

	var pushErr *PushError
	require.ErrorAs(t, err, &pushErr)
	assert.Equal(t, http.StatusInternalServerError, pushErr.StatusCode)
	assert.Equal(t, StateShutdown, p.State())
	assert.Len(t, gw.Requests(), 1)
}

func TestPrometheus_UnreachableGateway(t *testing.T) {
	gw := newFakeGateway(t, http.StatusOK)
	cfg := prometheusConfig(t, gw.URL)
	gw.Close()

	p := Install(context.Background(), cfg, nil)
	recordDuration(t, p, 2, "lint")

	err := p.Shutdown(context.Background())
	var pushErr *PushError
	require.ErrorAs(t, err, &pushErr)
	assert.Zero(t, pushErr.StatusCode)
	assert.NoError(t, p.CheckShutdown())
}

func TestPrometheus_NothingRecordedNothingPushed(t *testing.T) {
	gw := newFakeGateway(t, http.StatusOK)
	p := Install(context.Background(), prometheusConfig(t, gw.URL), nil)

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Empty(t, gw.Requests())
}

func TestPrometheus_PushURL(t *testing.T) {
	cfg := NewDefaultConfig()
	p := newPusher(cfg, nil)
	assert.Equal(t, "http://0.0.0.0:9464/metrics/job/tracebuild", p.url)

	cfg.Prometheus.Host = "::1"
	assert.Equal(t, "http://[::1]:9464/metrics/job/tracebuild", newPusher(cfg, nil).url)
}
