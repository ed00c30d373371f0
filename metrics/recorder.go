// Package metrics exposes the counters and the gauge the manager
// records while applying, merging, and synchronising CRDT operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the narrow set of measurements the manager takes.
// NewRecorder returns one backed by real Prometheus collectors;
// NewNoopRecorder returns one that discards everything, for callers
// that do not want a metrics dependency wired into their tests.
type Recorder interface {
	OperationApplied(crdtType string)
	OperationFailed(crdtType string)
	EventsDropped(stream string)
	SyncCompleted(crdtType string)
	RegisteredCRDTs(count int)
}

type promRecorder struct {
	operationsApplied *prometheus.CounterVec
	operationsFailed  *prometheus.CounterVec
	eventsDropped     *prometheus.CounterVec
	syncsCompleted    *prometheus.CounterVec
	registeredCRDTs   prometheus.Gauge
}

// NewRecorder registers the manager's collectors against reg and
// returns a Recorder backed by them. Passing prometheus.DefaultRegisterer
// is the common case; a caller running several managers in one process
// should pass a dedicated registry per manager to avoid duplicate
// registration panics.
func NewRecorder(reg prometheus.Registerer) Recorder {
	r := &promRecorder{
		operationsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crdt",
			Name:      "operations_applied_total",
			Help:      "Operations successfully applied, by CRDT type.",
		}, []string{"type"}),
		operationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crdt",
			Name:      "operations_failed_total",
			Help:      "Operations that failed to apply, by CRDT type.",
		}, []string{"type"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crdt",
			Name:      "events_dropped_total",
			Help:      "Events dropped because a subscriber's buffer was full.",
		}, []string{"stream"}),
		syncsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crdt",
			Name:      "syncs_completed_total",
			Help:      "Sync/forceSync merges completed, by CRDT type.",
		}, []string{"type"}),
		registeredCRDTs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crdt",
			Name:      "registered_total",
			Help:      "Number of CRDTs currently registered with the manager.",
		}),
	}
	reg.MustRegister(r.operationsApplied, r.operationsFailed, r.eventsDropped, r.syncsCompleted, r.registeredCRDTs)
	return r
}

func (r *promRecorder) OperationApplied(crdtType string) { r.operationsApplied.WithLabelValues(crdtType).Inc() }
func (r *promRecorder) OperationFailed(crdtType string)  { r.operationsFailed.WithLabelValues(crdtType).Inc() }
func (r *promRecorder) EventsDropped(stream string)      { r.eventsDropped.WithLabelValues(stream).Inc() }
func (r *promRecorder) SyncCompleted(crdtType string)    { r.syncsCompleted.WithLabelValues(crdtType).Inc() }
func (r *promRecorder) RegisteredCRDTs(count int)        { r.registeredCRDTs.Set(float64(count)) }

type noopRecorder struct{}

// NewNoopRecorder returns a Recorder that discards every measurement.
func NewNoopRecorder() Recorder { return noopRecorder{} }

func (noopRecorder) OperationApplied(string) {}
func (noopRecorder) OperationFailed(string)  {}
func (noopRecorder) EventsDropped(string)    {}
func (noopRecorder) SyncCompleted(string)    {}
func (noopRecorder) RegisteredCRDTs(int)     {}
