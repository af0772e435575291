package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var HistogramBuckets = []float64{
	5, 10, 25, 50, 75, 100, 150, 200, 300, 500,
	750, 1000, 1500, 2000, 3000, 5000, 10000, 15000, 30000,
}

// Metric is a definition for the name, description, type, ID, and
// prometheus.Collector type (i.e. CounterVec, Summary, etc) of each metric
type Metric struct {
	MetricCollector prometheus.Collector
	ID              string
	Name            string
	Description     string
	Type            string
	Args            []string
}

// NewMetric associates prometheus.Collector based on Metric.Type
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	var metric prometheus.Collector
	switch m.Type {
	case "counter_vec":
		metric = prometheus.NewCounterVec(
			prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
			m.Args,
		)
	case "counter":
		metric = prometheus.NewCounter(
			prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
		)
	case "histogram_vec":
		metric = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description, Buckets: HistogramBuckets},
			m.Args,
		)
	case "summary_vec":
		metric = prometheus.NewSummaryVec(
			prometheus.SummaryOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
			m.Args,
		)
	}
	return metric
}

var metricReconcile = &Metric{
	ID:          "reconcile",
	Name:        "reconcile_total",
	Description: "Gateway callbacks processed, partitioned by outcome.",
	Type:        "counter_vec",
	Args:        []string{"result"},
}

var metricManualPayment = &Metric{
	ID:          "manualPayment",
	Name:        "manual_payment_total",
	Description: "Manual payment submissions and validations, partitioned by outcome.",
	Type:        "counter_vec",
	Args:        []string{"result"},
}

var metricCheckIn = &Metric{
	ID:          "checkIn",
	Name:        "checkin_total",
	Description: "Successful check-ins, partitioned by method.",
	Type:        "counter_vec",
	Args:        []string{"method"},
}

var metricNotification = &Metric{
	ID:          "notification",
	Name:        "notification_total",
	Description: "Notification deliveries, partitioned by channel and outcome.",
	Type:        "counter_vec",
	Args:        []string{"channel", "result"},
}

// Business holds the domain counters. A nil *Business is valid and records nothing.
type Business struct {
	reconcile     *prometheus.CounterVec
	manualPayment *prometheus.CounterVec
	checkIn       *prometheus.CounterVec
	notification  *prometheus.CounterVec
}

// NewBusiness builds the domain counters and registers them on reg when reg is not nil.
func NewBusiness(reg prometheus.Registerer) *Business {
	b := &Business{
		reconcile:     NewMetric(metricReconcile, "iftar").(*prometheus.CounterVec),
		manualPayment: NewMetric(metricManualPayment, "iftar").(*prometheus.CounterVec),
		checkIn:       NewMetric(metricCheckIn, "iftar").(*prometheus.CounterVec),
		notification:  NewMetric(metricNotification, "iftar").(*prometheus.CounterVec),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{b.reconcile, b.manualPayment, b.checkIn, b.notification} {
			_ = reg.Register(c)
		}
	}
	return b
}

func (b *Business) Reconcile(result string) {
	if b != nil {
		b.reconcile.WithLabelValues(result).Inc()
	}
}

func (b *Business) ManualPayment(result string) {
	if b != nil {
		b.manualPayment.WithLabelValues(result).Inc()
	}
}

func (b *Business) CheckIn(method string) {
	if b != nil {
		b.checkIn.WithLabelValues(method).Inc()
	}
}

func (b *Business) Notification(channel, result string) {
	if b != nil {
		b.notification.WithLabelValues(channel, result).Inc()
	}
}

const (
	RefererKey = "X-Referer"
)
