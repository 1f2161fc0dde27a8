package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const (
	pushJob     = "tracebuild"
	pushTimeout = 5 * time.Second
)

// PushError reports a push gateway request that failed or was refused.
type PushError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *PushError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("push to %s failed with status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("push to %s failed: %v", e.URL, e.Err)
}

func (e *PushError) Unwrap() error { return e.Err }

// pusher drains a manual reader once and sends the result to a Prometheus
// push gateway in text exposition format.
type pusher struct {
	url    string
	reader *sdkmetric.ManualReader
	client *resty.Client
}

func newPusher(cfg *Config, reader *sdkmetric.ManualReader) *pusher {
	hostPort := net.JoinHostPort(cfg.Prometheus.Host, strconv.Itoa(cfg.Prometheus.Port))
	return &pusher{
		url:    fmt.Sprintf("http://%s/metrics/job/%s", hostPort, pushJob),
		reader: reader,
		client: resty.New().SetTimeout(pushTimeout),
	}
}

// push collects everything recorded so far and POSTs it. Nothing is sent
// when nothing was recorded.
func (p *pusher) push(ctx context.Context) error {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collecting metrics: %w", err)
	}

	families, err := gatherFamilies(&rm)
	if err != nil {
		return fmt.Errorf("converting metrics: %w", err)
	}
	if len(families) == 0 {
		return nil
	}

	body, contentType, err := encodeFamilies(families)
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(body).
		Post(p.url)
	if err != nil {
		return &PushError{URL: p.url, Err: err}
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusAccepted:
		return nil
	default:
		return &PushError{
			URL:        p.url,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("unexpected response: %q", strings.TrimSpace(resp.String())),
		}
	}
}

// encodeFamilies renders families in the text exposition format and
// returns the matching content type.
func encodeFamilies(families []*dto.MetricFamily) ([]byte, string, error) {
	format := expfmt.NewFormat(expfmt.TypeTextPlain)

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, format)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return nil, "", err
		}
	}
	return buf.Bytes(), string(format), nil
}

// gatherFamilies converts one OTel collection into Prometheus metric
// families by running it through a throwaway registry.
func gatherFamilies(rm *metricdata.ResourceMetrics) ([]*dto.MetricFamily, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(&snapshotCollector{metrics: convertResourceMetrics(rm)}); err != nil {
		return nil, err
	}
	return reg.Gather()
}

// snapshotCollector replays a fixed set of const metrics. It describes
// nothing, which makes it an unchecked collector.
type snapshotCollector struct {
	metrics []prometheus.Metric
}

func (c *snapshotCollector) Describe(chan<- *prometheus.Desc) {}

func (c *snapshotCollector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c.metrics {
		ch <- m
	}
}

func convertResourceMetrics(rm *metricdata.ResourceMetrics) []prometheus.Metric {
	var resourceAttrs []attribute.KeyValue
	if rm.Resource != nil {
		resourceAttrs = rm.Resource.Attributes()
	}

	var out []prometheus.Metric
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			name := Sanitize(m.Name)
			if name == "" {
				continue
			}
			help := m.Description
			if help == "" {
				help = m.Name
			}
			c := metricConverter{name: name, help: help, resource: resourceAttrs}

			switch data := m.Data.(type) {
			case metricdata.Histogram[float64]:
				out = append(out, convertHistogram(c, data)...)
			case metricdata.Histogram[int64]:
				out = append(out, convertHistogram(c, data)...)
			case metricdata.Sum[float64]:
				out = append(out, convertSum(c, data)...)
			case metricdata.Sum[int64]:
				out = append(out, convertSum(c, data)...)
			case metricdata.Gauge[float64]:
				out = append(out, convertGauge(c, data)...)
			case metricdata.Gauge[int64]:
				out = append(out, convertGauge(c, data)...)
			}
		}
	}
	return out
}

type metricConverter struct {
	name     string
	help     string
	resource []attribute.KeyValue
}

// desc builds the descriptor for one data point. Data point attributes win
// over resource attributes with the same sanitized key.
func (c metricConverter) desc(attrs attribute.Set) (*prometheus.Desc, []string) {
	merged := make(map[string]string)
	for _, kv := range c.resource {
		if key := Sanitize(string(kv.Key)); key != "" {
			merged[key] = kv.Value.Emit()
		}
	}
	for iter := attrs.Iter(); iter.Next(); {
		kv := iter.Attribute()
		if key := Sanitize(string(kv.Key)); key != "" {
			merged[key] = kv.Value.Emit()
		}
	}

	names := make([]string, 0, len(merged))
	for k := range merged {
		names = append(names, k)
	}
	sort.Strings(names)

	values := make([]string, len(names))
	for i, k := range names {
		values[i] = merged[k]
	}
	return prometheus.NewDesc(c.name, c.help, names, nil), values
}

func convertHistogram[N int64 | float64](c metricConverter, h metricdata.Histogram[N]) []prometheus.Metric {
	out := make([]prometheus.Metric, 0, len(h.DataPoints))
	for _, dp := range h.DataPoints {
		// Prometheus buckets are cumulative; the overflow bucket is implied
		// by the count.
		buckets := make(map[float64]uint64, len(dp.Bounds))
		var cumulative uint64
		for i, bound := range dp.Bounds {
			if i < len(dp.BucketCounts) {
				cumulative += dp.BucketCounts[i]
			}
			buckets[bound] = cumulative
		}

		desc, values := c.desc(dp.Attributes)
		m, err := prometheus.NewConstHistogram(desc, dp.Count, float64(dp.Sum), buckets, values...)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

func convertSum[N int64 | float64](c metricConverter, s metricdata.Sum[N]) []prometheus.Metric {
	valueType := prometheus.GaugeValue
	if s.IsMonotonic {
		valueType = prometheus.CounterValue
	}

	out := make([]prometheus.Metric, 0, len(s.DataPoints))
	for _, dp := range s.DataPoints {
		desc, values := c.desc(dp.Attributes)
		m, err := prometheus.NewConstMetric(desc, valueType, float64(dp.Value), values...)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

func convertGauge[N int64 | float64](c metricConverter, g metricdata.Gauge[N]) []prometheus.Metric {
	out := make([]prometheus.Metric, 0, len(g.DataPoints))
	for _, dp := range g.DataPoints {
		desc, values := c.desc(dp.Attributes)
		m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, float64(dp.Value), values...)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}
