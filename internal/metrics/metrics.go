package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

const namespace = "artarchive"

var Module = fx.Provide(
	NewRegistry,
	func(r *prometheus.Registry) prometheus.Registerer { return r },
	func(r *prometheus.Registry) prometheus.Gatherer { return r },
	New,
)

type Metrics struct {
	Imports         *prometheus.CounterVec
	ImportedRecords *prometheus.CounterVec
	StoreErrors     *prometheus.CounterVec
	Arts            prometheus.Gauge
}

func NewRegistry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Backup imports by mode and result.",
		}, []string{"mode", "result"}),
		ImportedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imported_records_total",
			Help:      "Records written by backup imports.",
		}, []string{"mode", "collection"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Failed store operations by operation name.",
		}, []string{"op"}),
		Arts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "arts",
			Help:      "Number of arts in the last loaded snapshot.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Imports, m.ImportedRecords, m.StoreErrors, m.Arts)
	}
	return m
}
