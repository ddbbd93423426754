package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CalculationRuns counts totals-engine invocations by document kind and outcome.
	CalculationRuns *prometheus.CounterVec
	// CalculationDuration records totals-engine latency in milliseconds.
	CalculationDuration *prometheus.HistogramVec
	// CommandExecutions counts command executions by name and outcome.
	CommandExecutions *prometheus.CounterVec
	// PaymentsRecorded counts recorded payment and refund rows.
	PaymentsRecorded *prometheus.CounterVec
	// ShipmentTransitions counts shipment status transitions.
	ShipmentTransitions *prometheus.CounterVec
	// RecalcJobs counts background recalculation job outcomes.
	RecalcJobs *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific
// Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CalculationRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculation_runs_total",
			Help:      "Count of document totals calculations by kind and outcome.",
		}, []string{"kind", "result"})
		CalculationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calculation_duration_ms",
			Help:      "Latency of document totals calculations in milliseconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}, []string{"kind"})
		CommandExecutions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_executions_total",
			Help:      "Count of command executions by name and outcome.",
		}, []string{"command", "result"})
		PaymentsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_recorded_total",
			Help:      "Count of recorded payment rows by kind.",
		}, []string{"kind"})
		ShipmentTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipment_transitions_total",
			Help:      "Count of shipment status transitions.",
		}, []string{"status"})
		RecalcJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recalc_jobs_total",
			Help:      "Count of background recalculation job outcomes.",
		}, []string{"result"})

		mustRegisterCollector(reg, CalculationRuns, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CalculationRuns = v
			}
		})
		mustRegisterCollector(reg, CalculationDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				CalculationDuration = v
			}
		})
		mustRegisterCollector(reg, CommandExecutions, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CommandExecutions = v
			}
		})
		mustRegisterCollector(reg, PaymentsRecorded, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentsRecorded = v
			}
		})
		mustRegisterCollector(reg, ShipmentTransitions, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ShipmentTransitions = v
			}
		})
		mustRegisterCollector(reg, RecalcJobs, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RecalcJobs = v
			}
		})
	})
}

// ObserveCalculation records a totals-engine run outcome. Safe to call
// before metrics registration.
func ObserveCalculation(kind, result string, millis float64) {
	if CalculationRuns != nil {
		CalculationRuns.WithLabelValues(kind, result).Inc()
	}
	if CalculationDuration != nil && result == "ok" {
		CalculationDuration.WithLabelValues(kind).Observe(millis)
	}
}

// ObserveCommand records a command execution outcome. Safe to call before
// metrics registration.
func ObserveCommand(name, result string) {
	if CommandExecutions != nil {
		CommandExecutions.WithLabelValues(name, result).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
