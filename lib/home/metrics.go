package home

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

var (
	tabsAttached        = metrics.NewCounter("homekv_tabs_attached_total")
	tabsPruned          = metrics.NewCounter("homekv_tabs_pruned_total")
	broadcastDeliveries = metrics.NewCounter("homekv_broadcast_deliveries_total")
	migrations          = metrics.NewCounter("homekv_migrations_total")
)

// observeOp records count, errors and latency of a data operation
func observeOp(op string, start time.Time, err error) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`homekv_operations_total{op=%q}`, op)).Inc()
	if err != nil {
		metrics.GetOrCreateCounter(fmt.Sprintf(`homekv_operation_errors_total{op=%q}`, op)).Inc()
	}
	metrics.GetOrCreateHistogram(fmt.Sprintf(`homekv_operation_duration_seconds{op=%q}`, op)).UpdateDuration(start)
}

// observeLockWait records how long an operation waited for the mutation lock
func observeLockWait(op string, start time.Time) {
	metrics.GetOrCreateHistogram(fmt.Sprintf(`homekv_lock_wait_seconds{op=%q}`, op)).UpdateDuration(start)
}
