package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"billing/internal/billing/metrics"
	"billing/internal/billing/models"
	dErrors "billing/pkg/domain-errors"
	"billing/pkg/platform/outbox"
	"billing/pkg/platform/sentinel"
	"billing/pkg/requestcontext"
)

// Service orchestrates the invoice lifecycle and payment reconciliation.
// Every mutating command runs in one StoreTx unit of work together with its
// outbox event.
type Service struct {
	invoices  InvoiceStore
	payments  PaymentStore
	customers CustomerStore
	allocator NumberAllocator
	outbox    EventOutbox
	tx        StoreTx
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithOutbox(o EventOutbox) Option {
	return func(s *Service) {
		s.outbox = o
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service.
func New(invoices InvoiceStore, payments PaymentStore, customers CustomerStore, allocator NumberAllocator, opts ...Option) *Service {
	s := &Service{
		invoices:  invoices,
		payments:  payments,
		customers: customers,
		allocator: allocator,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = directTx{}
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("billing/service")
	}
	return s
}

// run wraps a command with a span, duration and failure metrics.
func (s *Service) run(ctx context.Context, command string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "billing."+command, trace.WithAttributes(attrs...))
	defer span.End()

	err := fn(ctx)
	if s.metrics != nil {
		s.metrics.ObserveCommand(command, start)
	}
	if err != nil {
		code := dErrors.CodeOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(code))
		if s.metrics != nil {
			s.metrics.IncrementCommandFailure(command, string(code))
		}
		if code == dErrors.CodeInternal {
			s.logger.ErrorContext(ctx, "billing command failed",
				"command", command,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
	}
	return err
}

// inTx runs fn in the unit of work and normalises what comes back.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return translateTxErr(s.tx.RunInTx(ctx, fn))
}

func translateTxErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent update detected, retry the request").
			WithReason(models.ReasonSerializationFailure)
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "transaction failed")
}

// storeErr maps a store failure; notFound builds the domain error for a
// missing row.
func storeErr(err error, notFound func() *dErrors.Error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) && notFound != nil {
		return notFound()
	}
	if errors.Is(err, sentinel.ErrConflict) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func invoiceNotFound() *dErrors.Error {
	return dErrors.New(dErrors.CodeNotFound, "invoice not found").WithReason(models.ReasonInvoiceNotFound)
}

func paymentNotFound() *dErrors.Error {
	return dErrors.New(dErrors.CodeNotFound, "payment not found").WithReason(models.ReasonPaymentNotFound)
}

func customerNotFound() *dErrors.Error {
	return dErrors.New(dErrors.CodeNotFound, "customer not found").WithReason(models.ReasonCustomerNotFound)
}

func requireActor(actor string) (string, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "", dErrors.New(dErrors.CodeValidation, "actor is required").WithReason(models.ReasonActorRequired)
	}
	return actor, nil
}

// emit appends ev to the outbox within the current unit of work.
func (s *Service) emit(ctx context.Context, ev models.Event) error {
	if s.outbox == nil {
		return nil
	}
	entry, err := outbox.NewEntry(ev.AggregateType(), ev.AggregateID(), string(ev.EventType()), ev, requestcontext.Now(ctx))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode billing event")
	}
	if err := s.outbox.Append(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record billing event")
	}
	return nil
}

// logAudit writes the audit trail line for a committed transition.
func (s *Service) logAudit(ctx context.Context, event models.EventType, attrs ...any) {
	args := append([]any{
		"log_type", "audit",
		"event", string(event),
		"request_id", requestcontext.RequestID(ctx),
	}, attrs...)
	s.logger.InfoContext(ctx, string(event), args...)
}
