package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "mandi_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	lotMutations   *prometheus.CounterVec
	splitsRecorded *prometheus.CounterVec
	settlements    *prometheus.CounterVec

	billingReports *prometheus.CounterVec
	billingLatency *prometheus.HistogramVec
	exportsTotal   *prometheus.CounterVec

	notificationsTotal *prometheus.CounterVec
	digestRuns         *prometheus.CounterVec
)

// Init registers the service metrics with the default registry. Calls after
// the first are no-ops; observations before Init are dropped.
func Init() {
	registerOnce.Do(func() {
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)
		lotMutations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "lot_mutations_total",
				Help: "Lot mutations by operation and result",
			},
			[]string{"operation", "result"},
		)
		splitsRecorded = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "splits_recorded_total",
				Help: "Sale splits recorded by unit",
			},
			[]string{"unit"},
		)
		settlements = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlements_total",
				Help: "Payment settlements confirmed by counterparty side",
			},
			[]string{"side"},
		)
		billingReports = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "billing_reports_total",
				Help: "Billing reports served by cache outcome",
			},
			[]string{"cache"},
		)
		billingLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "billing_report_latency_seconds",
				Help:    "Billing report build latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		exportsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "exports_total",
				Help: "Invoice and billing exports by format and result",
			},
			[]string{"format", "result"},
		)
		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "WhatsApp notifications by kind and result",
			},
			[]string{"kind", "result"},
		)
		digestRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "daily_digest_runs_total",
				Help: "Daily settlement digest runs by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			httpRequests,
			httpLatency,
			lotMutations,
			splitsRecorded,
			settlements,
			billingReports,
			billingLatency,
			exportsTotal,
			notificationsTotal,
			digestRuns,
		)
	})
}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, status int, duration time.Duration) {
	if httpRequests == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncLotMutation counts a lot create/update/delete/weigh/split/settle attempt.
func IncLotMutation(operation string, err error) {
	if lotMutations == nil {
		return
	}
	lotMutations.WithLabelValues(operation, Result(err)).Inc()
}

// IncSplitRecorded counts a split appended to a lot.
func IncSplitRecorded(unit string) {
	if splitsRecorded == nil {
		return
	}
	splitsRecorded.WithLabelValues(unit).Inc()
}

// IncSettlement counts a confirmed payment on the farmer or trader side.
func IncSettlement(side string) {
	if settlements == nil {
		return
	}
	settlements.WithLabelValues(side).Inc()
}

// ObserveBillingReport records a report build or cache hit.
func ObserveBillingReport(cacheHit bool, err error, duration time.Duration) {
	if billingReports == nil {
		return
	}
	outcome := "miss"
	if cacheHit {
		outcome = "hit"
	}
	billingReports.WithLabelValues(outcome).Inc()
	if !cacheHit {
		billingLatency.WithLabelValues(Result(err)).Observe(duration.Seconds())
	}
}

// IncExport counts a rendered export.
func IncExport(format string, err error) {
	if exportsTotal == nil {
		return
	}
	exportsTotal.WithLabelValues(format, Result(err)).Inc()
}

// IncNotification counts an outbound WhatsApp message.
func IncNotification(kind string, err error) {
	if notificationsTotal == nil {
		return
	}
	notificationsTotal.WithLabelValues(kind, Result(err)).Inc()
}

// IncDigestRun counts a scheduled digest run.
func IncDigestRun(err error) {
	if digestRuns == nil {
		return
	}
	digestRuns.WithLabelValues(Result(err)).Inc()
}
