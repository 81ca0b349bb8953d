package rangeserve

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
)

var (
	// StatsForNerds exposes Prometheus metrics for served ranges.
	// Metric names are prefixed with "rangeserve_".
	// Metrics are labeled with and grouped by Handler.Name.
	//
	// For example, the following metrics are exposed for a handler named
	// "video":
	//
	// rangeserve_http_requests_active{handler="video"}
	// rangeserve_http_requests_total{handler="video"}
	// rangeserve_http_partial_responses_total{handler="video"}
	// rangeserve_http_request_duration_seconds{handler="video"}
	// rangeserve_http_response_size_bytes{handler="video"}
	// rangeserve_http_response_chunks_total{handler="video"}
	// rangeserve_http_streams_aborted_total{handler="video"}
	// rangeserve_http_errors_total{handler="video",kind="not_satisfiable"}
	//
	// You can surface these metrics in your application using the
	// [metrics.RegisterSet] function.
	//
	// [metrics.RegisterSet]: https://pkg.go.dev/github.com/VictoriaMetrics/metrics#RegisterSet
	StatsForNerds = metrics.NewSet()

	handlerMetricsMap = sync.Map{}
)

type handlerMetrics struct {
	name string

	requestsActive         atomic.Int64
	requestsTotal          *metrics.Counter
	partialResponsesTotal  *metrics.Counter
	requestDurationSeconds *metrics.Histogram
	responseSizeBytes      *metrics.Histogram
	responseChunksTotal    *metrics.Counter
	streamsAbortedTotal    *metrics.Counter
}

func (m *handlerMetrics) errorsTotal(kind Kind) *metrics.Counter {
	return StatsForNerds.GetOrCreateCounter(
		fmt.Sprintf(`rangeserve_http_errors_total{handler=%q,kind=%q}`, m.name, kind),
	)
}

func getHandlerMetrics(name string) *handlerMetrics {
	m, ok := handlerMetricsMap.Load(name)
	if ok {
		return m.(*handlerMetrics)
	}

	hm := &handlerMetrics{
		name: name,
		requestsTotal: StatsForNerds.GetOrCreateCounter(
			fmt.Sprintf(`rangeserve_http_requests_total{handler=%q}`, name),
		),
		partialResponsesTotal: StatsForNerds.GetOrCreateCounter(
			fmt.Sprintf(`rangeserve_http_partial_responses_total{handler=%q}`, name),
		),
		requestDurationSeconds: StatsForNerds.GetOrCreateHistogram(
			fmt.Sprintf(`rangeserve_http_request_duration_seconds{handler=%q}`, name),
		),
		responseSizeBytes: StatsForNerds.GetOrCreateHistogram(
			fmt.Sprintf(`rangeserve_http_response_size_bytes{handler=%q}`, name),
		),
		responseChunksTotal: StatsForNerds.GetOrCreateCounter(
			fmt.Sprintf(`rangeserve_http_response_chunks_total{handler=%q}`, name),
		),
		streamsAbortedTotal: StatsForNerds.GetOrCreateCounter(
			fmt.Sprintf(`rangeserve_http_streams_aborted_total{handler=%q}`, name),
		),
	}

	// Two handlers with the same name race here; the loser's struct is dropped.
	actual, loaded := handlerMetricsMap.LoadOrStore(name, hm)
	if loaded {
		return actual.(*handlerMetrics)
	}
	_ = StatsForNerds.GetOrCreateGauge(
		fmt.Sprintf(`rangeserve_http_requests_active{handler=%q}`, name),
		func() float64 {
			return float64(hm.requestsActive.Load())
		},
	)
	return hm
}
