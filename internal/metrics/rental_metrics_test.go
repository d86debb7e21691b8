package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewRentalMetrics(t *testing.T) {
	metrics := NewRentalMetrics()

	if metrics == nil {
		t.Fatal("NewRentalMetrics should not return nil")
	}

	if metrics.rentalsStarted == nil {
		t.Error("rentalsStarted counter should not be nil")
	}
	if metrics.rentalsCompleted == nil {
		t.Error("rentalsCompleted counter should not be nil")
	}
	if metrics.rentalsCancelled == nil {
		t.Error("rentalsCancelled counter should not be nil")
	}
	if metrics.rentalsForceEnded == nil {
		t.Error("rentalsForceEnded counter should not be nil")
	}
	if metrics.rentalsFailed == nil {
		t.Error("rentalsFailed counter should not be nil")
	}
	if metrics.operationDuration == nil {
		t.Error("operationDuration histogram vec should not be nil")
	}
	if metrics.stepDuration == nil {
		t.Error("stepDuration histogram vec should not be nil")
	}
	if metrics.outboxEvents == nil {
		t.Error("outboxEvents counter should not be nil")
	}
	if metrics.activeRentals == nil {
		t.Error("activeRentals gauge should not be nil")
	}
}

func TestNewRentalMetrics_DoubleRegistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := newRentalMetricsWithRegisterer(reg)
	second := newRentalMetricsWithRegisterer(reg)

	first.RecordRentalStarted()
	second.RecordRentalStarted()

	metric := &dto.Metric{}
	if err := first.rentalsStarted.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected shared counter value 2.0, got %f", metric.Counter.GetValue())
	}
}

func TestRentalLifecycleGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := newRentalMetricsWithRegisterer(reg)

	metrics.RecordRentalStarted() // active: 1
	metrics.RecordRentalStarted() // active: 2
	metrics.RecordRentalStarted() // active: 3

	metrics.RecordRentalCompleted()  // active: 2
	metrics.RecordRentalCancelled()  // active: 1
	metrics.RecordRentalForceEnded() // active: 0

	gaugeMetric := &dto.Metric{}
	if err := metrics.activeRentals.Write(gaugeMetric); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}
	if gaugeMetric.Gauge.GetValue() != 0.0 {
		t.Errorf("expected 0 active rentals, got %f", gaugeMetric.Gauge.GetValue())
	}

	startedMetric := &dto.Metric{}
	if err := metrics.rentalsStarted.Write(startedMetric); err != nil {
		t.Fatalf("failed to write started metric: %v", err)
	}
	if startedMetric.Counter.GetValue() != 3.0 {
		t.Errorf("expected 3 started rentals, got %f", startedMetric.Counter.GetValue())
	}
}

func TestRecordRentalFailed(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := newRentalMetricsWithRegisterer(reg)

	metrics.RecordRentalFailed()
	metrics.RecordRentalFailed()

	metric := &dto.Metric{}
	if err := metrics.rentalsFailed.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected counter value 2.0, got %f", metric.Counter.GetValue())
	}
}

func TestRecordOperationDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := newRentalMetricsWithRegisterer(reg)

	metrics.RecordOperationDuration("start", 100*time.Millisecond)
	metrics.RecordOperationDuration("start", 500*time.Millisecond)
	metrics.RecordOperationDuration("end", 1*time.Second)

	observer := metrics.operationDuration.WithLabelValues("start")
	metric := &dto.Metric{}
	if err := observer.(prometheus.Histogram).Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Histogram.GetSampleCount() != 2 {
		t.Errorf("expected 2 samples for start, got %d", metric.Histogram.GetSampleCount())
	}

	// Check sum is approximately correct (0.1 + 0.5 = 0.6)
	sum := metric.Histogram.GetSampleSum()
	if sum < 0.55 || sum > 0.65 {
		t.Errorf("expected sum around 0.6, got %f", sum)
	}
}

func TestRecordStepDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := newRentalMetricsWithRegisterer(reg)

	metrics.RecordStepDuration("validate_transport", 50*time.Millisecond)
	metrics.RecordStepDuration("persist", 10*time.Millisecond)
	metrics.RecordStepDuration("update_transport_status", 25*time.Millisecond)

	observer := metrics.stepDuration.WithLabelValues("persist")
	metric := &dto.Metric{}
	if err := observer.(prometheus.Histogram).Write(metric); err != nil {
		t.Fatalf("failed to write persist metric: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 1 {
		t.Errorf("expected 1 sample for persist, got %d", metric.Histogram.GetSampleCount())
	}
}

func TestRecordOutboxEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := newRentalMetricsWithRegisterer(reg)

	metrics.RecordOutboxEvent()
	metrics.RecordOutboxEvent()
	metrics.RecordOutboxEvent()

	metric := &dto.Metric{}
	if err := metrics.outboxEvents.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 3.0 {
		t.Errorf("expected counter value 3.0, got %f", metric.Counter.GetValue())
	}
}
