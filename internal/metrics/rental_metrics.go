package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RentalMetrics содержит метрики жизненного цикла аренд.
type RentalMetrics struct {
	// Счётчики операций
	rentalsStarted    prometheus.Counter
	rentalsCompleted  prometheus.Counter
	rentalsCancelled  prometheus.Counter
	rentalsForceEnded prometheus.Counter
	rentalsFailed     prometheus.Counter

	// Гистограммы времени выполнения
	operationDuration *prometheus.HistogramVec
	stepDuration      *prometheus.HistogramVec

	// Счётчик событий outbox
	outboxEvents prometheus.Counter

	// Gauge для активных аренд
	activeRentals prometheus.Gauge
}

// NewRentalMetrics создаёт новый экземпляр метрик аренды.
func NewRentalMetrics() *RentalMetrics {
	return newRentalMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newRentalMetricsWithRegisterer(registerer prometheus.Registerer) *RentalMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &RentalMetrics{
		rentalsStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rentals_started_total",
			Help: "Total number of rentals started",
		}),
		rentalsCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rentals_completed_total",
			Help: "Total number of rentals completed successfully",
		}),
		rentalsCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rentals_cancelled_total",
			Help: "Total number of rentals cancelled",
		}),
		rentalsForceEnded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rentals_force_ended_total",
			Help: "Total number of rentals force ended",
		}),
		rentalsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rentals_failed_total",
			Help: "Total number of rental operations failed",
		}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "rentals_operation_duration_seconds",
			Help:    "Duration of rental lifecycle operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "rentals_step_duration_seconds",
			Help:    "Duration of individual orchestration steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rentals_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		activeRentals: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "rentals_active",
			Help: "Number of currently active rentals",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordRentalStarted увеличивает счётчик запущенных аренд и gauge активных.
func (m *RentalMetrics) RecordRentalStarted() {
	m.rentalsStarted.Inc()
	m.activeRentals.Inc()
}

// RecordRentalCompleted увеличивает счётчик завершённых аренд.
func (m *RentalMetrics) RecordRentalCompleted() {
	m.rentalsCompleted.Inc()
	m.activeRentals.Dec()
}

// RecordRentalCancelled увеличивает счётчик отменённых аренд.
func (m *RentalMetrics) RecordRentalCancelled() {
	m.rentalsCancelled.Inc()
	m.activeRentals.Dec()
}

// RecordRentalForceEnded увеличивает счётчик принудительных завершений.
func (m *RentalMetrics) RecordRentalForceEnded() {
	m.rentalsForceEnded.Inc()
	m.activeRentals.Dec()
}

// RecordRentalFailed увеличивает счётчик неудачных операций.
func (m *RentalMetrics) RecordRentalFailed() {
	m.rentalsFailed.Inc()
}

// RecordOperationDuration записывает время выполнения операции жизненного цикла.
func (m *RentalMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordStepDuration записывает время выполнения шага оркестрации.
func (m *RentalMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *RentalMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
