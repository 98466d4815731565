package metrics

import (
	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pension"

const resultOK = "ok"

// Metrics groups the collectors of the service. A nil *Metrics is valid and
// records nothing, which keeps tests and the CLI free of registries.
type Metrics struct {
	StoreOperations *prometheus.CounterVec
	Ingestions      *prometheus.CounterVec
	IngestedRows    *prometheus.CounterVec
	LedgerSize      prometheus.Gauge
	Notifications   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StoreOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Batch and pensioner store operations by result.",
		}, []string{"entity", "operation", "result"}),
		Ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "csv_ingestions_total",
			Help:      "CSV ingestion attempts by result.",
		}, []string{"result"}),
		IngestedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "csv_ingested_rows_total",
			Help:      "Ingested CSV rows by validity tag.",
		}, []string{"status"}),
		LedgerSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingestion_ledger_batches",
			Help:      "Number of units in the ingestion ledger after the last ingestion.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Published batch-ingested events by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.StoreOperations,
		m.Ingestions,
		m.IngestedRows,
		m.LedgerSize,
		m.Notifications,
	)

	return m
}

func (m *Metrics) ObserveStore(entity, operation string, err error) {
	if m == nil {
		return
	}
	m.StoreOperations.WithLabelValues(entity, operation, result(err)).Inc()
}

func (m *Metrics) ObserveIngestion(err error, valid, refused, ledgerSize int) {
	if m == nil {
		return
	}

	m.Ingestions.WithLabelValues(result(err)).Inc()
	if err != nil {
		return
	}

	m.IngestedRows.WithLabelValues("valide").Add(float64(valid))
	m.IngestedRows.WithLabelValues("refusé").Add(float64(refused))
	m.LedgerSize.Set(float64(ledgerSize))
}

func (m *Metrics) ObserveNotification(err error) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err == nil {
		return resultOK
	}
	if code := errors.CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}
