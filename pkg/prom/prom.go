package prom

import (
	"sync"

	xhttp "github.com/chatdeck/webhook-gateway/pkg/http"
	"github.com/chatdeck/webhook-gateway/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemIngest  = "ingest"
	SystemWebhook = "webhook"
)

const (
	MetricPayloadsClassified = "payloads_classified_total"
	MetricStatusesApplied    = "statuses_applied_total"
	MetricStatusesDeferred   = "statuses_deferred_total"
	MetricPendingReplayed    = "pending_replayed_total"
	MetricPayloadsReceived   = "payloads_received_total"
	MetricReconcileFailures  = "reconcile_failures_total"
)

var createLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var counters = make(map[string]prometheus.Counter)
var counterVecs = make(map[string]*prometheus.CounterVec)

var defaultLabels prometheus.Labels

// Create registers every metric the gateway reports. Until it is called,
// all Inc/Add helpers are no-ops, which keeps tests quiet.
func Create(host string, env string, nameSpace string) error {
	defaultLabels = prometheus.Labels{"env": env, "instance": host}
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounterVec(SystemIngest, MetricPayloadsClassified, []string{"kind"}))
	hasError(createCounter(SystemIngest, MetricStatusesApplied))
	hasError(createCounter(SystemIngest, MetricStatusesDeferred))
	hasError(createCounter(SystemIngest, MetricPendingReplayed))
	hasError(createCounter(SystemIngest, MetricReconcileFailures))
	hasError(createCounter(SystemWebhook, MetricPayloadsReceived))

	return err
}

func ListenAndServer(port string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer()
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "url", url)
	if err := s.ListenAndServe(port); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

func createCounter(subsystem, name string) error {
	createLock.Lock()
	defer createLock.Unlock()
	counters[subsystem+name] = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	})
	return prometheus.Register(counters[subsystem+name])
}

func createCounterVec(subsystem, name string, labels []string) error {
	createLock.Lock()
	defer createLock.Unlock()
	counterVecs[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(counterVecs[subsystem+name])
}

func IncCounter(subsystem, name string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := counters[subsystem+name]; ok {
		v.Inc()
		return
	}
	logger.Warn("[metrics-server] counter not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := counterVecs[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Inc()
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func IncPayloadClassified(kind string) {
	IncCounterVec(SystemIngest, MetricPayloadsClassified, kind)
}

func IncStatusApplied()   { IncCounter(SystemIngest, MetricStatusesApplied) }
func IncStatusDeferred()  { IncCounter(SystemIngest, MetricStatusesDeferred) }
func IncPendingReplayed() { IncCounter(SystemIngest, MetricPendingReplayed) }

func IncReconcileFailure() { IncCounter(SystemIngest, MetricReconcileFailures) }

func IncWebhookReceived() { IncCounter(SystemWebhook, MetricPayloadsReceived) }
