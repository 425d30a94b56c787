package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics exposes counters/histograms for webhook delivery processing.
type WebhookMetrics struct {
	deliveriesTotal   *prometheus.CounterVec
	processingLatency *prometheus.HistogramVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		deliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careinbox",
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Inbound webhook deliveries by processing outcome",
		}, []string{"status"}),
		processingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "careinbox",
			Subsystem: "webhook",
			Name:      "processing_seconds",
			Help:      "Latency of asynchronous delivery processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.deliveriesTotal, m.processingLatency)
	return m
}

func (m *WebhookMetrics) ObserveDelivery(status string) {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues(status).Inc()
}

func (m *WebhookMetrics) ObserveProcessing(status string, seconds float64) {
	if m == nil {
		return
	}
	m.processingLatency.WithLabelValues(status).Observe(seconds)
}

// SchedulingMetrics exposes counters for the scheduling engine.
type SchedulingMetrics struct {
	bookingsTotal  *prometheus.CounterVec
	deriveDuration prometheus.Histogram
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careinbox",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Reservation attempts by outcome",
		}, []string{"outcome"}),
		deriveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "careinbox",
			Subsystem: "scheduling",
			Name:      "derive_seconds",
			Help:      "Duration of availability derivation passes",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.deriveDuration)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveDerive(seconds float64) {
	if m == nil {
		return
	}
	m.deriveDuration.Observe(seconds)
}
