package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics provides observability for the billing module.
// Tracks lifecycle transitions, command failures and critical path durations.
type Metrics struct {
	InvoicesCreated    prometheus.Counter
	InvoicesSent       prometheus.Counter
	InvoicesCancelled  prometheus.Counter
	PaymentsApplied    prometheus.Counter
	PaymentsVoided     prometheus.Counter
	CommandFailures    *prometheus.CounterVec
	CommandDuration    *prometheus.HistogramVec
	AllocationDuration prometheus.Histogram
}

// New registers the billing metrics with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		InvoicesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "billing_invoices_created_total",
			Help: "Total number of draft invoices created",
		}),
		InvoicesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "billing_invoices_sent_total",
			Help: "Total number of invoices marked as sent",
		}),
		InvoicesCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "billing_invoices_cancelled_total",
			Help: "Total number of invoices cancelled",
		}),
		PaymentsApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "billing_payments_applied_total",
			Help: "Total number of payments applied to invoices",
		}),
		PaymentsVoided: factory.NewCounter(prometheus.CounterOpts{
			Name: "billing_payments_voided_total",
			Help: "Total number of payments voided",
		}),
		CommandFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_command_failures_total",
			Help: "Failed billing commands by command and error code",
		}, []string{"command", "code"}),
		CommandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "billing_command_duration_seconds",
			Help:    "Duration of billing commands including the transaction",
			Buckets: durationBuckets,
		}, []string{"command"}),
		AllocationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "billing_invoice_number_allocation_duration_seconds",
			Help:    "Duration of invoice number allocation",
			Buckets: durationBuckets,
		}),
	}
}

func (m *Metrics) IncrementInvoicesCreated()   { m.InvoicesCreated.Inc() }
func (m *Metrics) IncrementInvoicesSent()      { m.InvoicesSent.Inc() }
func (m *Metrics) IncrementInvoicesCancelled() { m.InvoicesCancelled.Inc() }
func (m *Metrics) IncrementPaymentsApplied()   { m.PaymentsApplied.Inc() }
func (m *Metrics) IncrementPaymentsVoided()    { m.PaymentsVoided.Inc() }

// IncrementCommandFailure records a failed command under its error code.
func (m *Metrics) IncrementCommandFailure(command, code string) {
	m.CommandFailures.WithLabelValues(command, code).Inc()
}

// ObserveCommand records the duration of a command.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCommand(command string, start time.Time) {
	m.CommandDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}

// ObserveAllocation records the duration of an invoice number allocation.
func (m *Metrics) ObserveAllocation(start time.Time) {
	m.AllocationDuration.Observe(time.Since(start).Seconds())
}
