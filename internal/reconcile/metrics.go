package reconcile

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/imamik/vnsync/internal/model"
	"github.com/imamik/vnsync/internal/platform/contrail"
)

var (
	// Reconciliation metrics
	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vnsync",
			Subsystem: "reconcile",
			Name:      "operations_total",
			Help:      "Total number of sync and delete operations by result",
		},
		[]string{"operation", "result"},
	)

	reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vnsync",
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Duration of sync and delete operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		},
		[]string{"operation"},
	)

	// Full-sync metrics
	fullSyncObjects = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vnsync",
			Subsystem: "fullsync",
			Name:      "objects",
			Help:      "Objects in the last full-sync pass by kind and final state",
		},
		[]string{"kind", "state"},
	)

	fullSyncOrphansDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vnsync",
			Subsystem: "fullsync",
			Name:      "orphans_deleted_total",
			Help:      "Total number of orphaned controller objects deleted",
		},
	)

	// Controller API metrics
	apiCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vnsync",
			Subsystem: "controller",
			Name:      "api_calls_total",
			Help:      "Total number of controller API calls by operation, kind and result",
		},
		[]string{"operation", "kind", "result"},
	)

	apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vnsync",
			Subsystem: "controller",
			Name:      "api_latency_seconds",
			Help:      "Latency of controller API calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"operation"},
	)
)

func init() {
	// Register metrics with controller-runtime's registry
	metrics.Registry.MustRegister(
		reconcileTotal,
		reconcileDuration,
		fullSyncObjects,
		fullSyncOrphansDeleted,
		apiCallsTotal,
		apiLatency,
	)
}

// recordReconcileMetric records an operation result.
func recordReconcileMetric(operation string, err error, duration float64) {
	reconcileTotal.WithLabelValues(operation, resultLabel(err)).Inc()
	reconcileDuration.WithLabelValues(operation).Observe(duration)
}

// recordFullSyncMetric records the node states of a full-sync pass.
func recordFullSyncMetric(report *Report) {
	fullSyncObjects.Reset()
	for _, n := range report.Nodes() {
		fullSyncObjects.WithLabelValues(string(n.Kind), n.State).Inc()
	}
	fullSyncOrphansDeleted.Add(float64(report.Orphans))
}

// recordAPICallMetric records a controller API call.
func recordAPICallMetric(operation string, kind contrail.Kind, err error, latency float64) {
	apiCallsTotal.WithLabelValues(operation, string(kind), resultLabel(err)).Inc()
	apiLatency.WithLabelValues(operation).Observe(latency)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case contrail.IsNotFound(err):
		return "not_found"
	case contrail.IsTransient(err):
		return "transient"
	case model.IsPermanent(err):
		return "permanent"
	default:
		return "error"
	}
}

// InstrumentAPI wraps api so every call is counted and timed.
func InstrumentAPI(api contrail.API) contrail.API {
	return &instrumentedAPI{api: api}
}

type instrumentedAPI struct {
	api contrail.API
}

func (i *instrumentedAPI) Create(ctx context.Context, kind contrail.Kind, obj *contrail.Object) error {
	start := time.Now()
	err := i.api.Create(ctx, kind, obj)
	recordAPICallMetric("create", kind, err, time.Since(start).Seconds())
	return err
}

func (i *instrumentedAPI) Update(ctx context.Context, kind contrail.Kind, uuid string, obj *contrail.Object) error {
	start := time.Now()
	err := i.api.Update(ctx, kind, uuid, obj)
	recordAPICallMetric("update", kind, err, time.Since(start).Seconds())
	return err
}

func (i *instrumentedAPI) Delete(ctx context.Context, kind contrail.Kind, uuid string) error {
	start := time.Now()
	err := i.api.Delete(ctx, kind, uuid)
	recordAPICallMetric("delete", kind, err, time.Since(start).Seconds())
	return err
}

func (i *instrumentedAPI) Get(ctx context.Context, kind contrail.Kind, uuid string) (*contrail.Object, error) {
	start := time.Now()
	obj, err := i.api.Get(ctx, kind, uuid)
	recordAPICallMetric("get", kind, err, time.Since(start).Seconds())
	return obj, err
}

func (i *instrumentedAPI) List(ctx context.Context, kind contrail.Kind, selector map[string]string) ([]*contrail.Object, error) {
	start := time.Now()
	objs, err := i.api.List(ctx, kind, selector)
	recordAPICallMetric("list", kind, err, time.Since(start).Seconds())
	return objs, err
}
