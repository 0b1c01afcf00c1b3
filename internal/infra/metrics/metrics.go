package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Movements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_movements_total",
		Help: "Stock movements committed, by movement type.",
	}, []string{"type"})

	MovedUnits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_moved_units_total",
		Help: "Absolute base units moved, by movement type.",
	}, []string{"type"})

	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_rejections_total",
		Help: "Ledger operations rejected before any mutation, by reason.",
	}, []string{"reason"})

	Receipts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchasing_receipts_total",
		Help: "Purchase orders received.",
	})

	Allocations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_allocations_total",
		Help: "Sale lines allocated against a lot.",
	})

	Invoices = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sri_invoices_finalized_total",
		Help: "Sales finalized with an access key.",
	})
)

// Moved records committed movements of one type.
func Moved(moveType string, units int64) {
	if units < 0 {
		units = -units
	}
	Movements.WithLabelValues(moveType).Inc()
	MovedUnits.WithLabelValues(moveType).Add(float64(units))
}

func Rejected(reason string) {
	Rejections.WithLabelValues(reason).Inc()
}
