package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"billing/internal/billing/models"
	"billing/pkg/domain"
	dErrors "billing/pkg/domain-errors"
	"billing/pkg/platform/sentinel"
	"billing/pkg/requestcontext"
)

type ApplyPaymentCommand struct {
	InvoiceID   domain.InvoiceID
	Amount      domain.Money
	PaymentDate domain.Date
	Method      models.PaymentMethod
	Reference   string
	AppliedBy   string
}

// ApplyPayment records a payment against a SENT invoice. Reaching the total
// moves the invoice to PAID. A zero PaymentDate defaults to today.
func (s *Service) ApplyPayment(ctx context.Context, cmd ApplyPaymentCommand) (*models.Payment, *models.Invoice, error) {
	var (
		payment *models.Payment
		invoice *models.Invoice
	)
	err := s.run(ctx, "apply_payment", func(ctx context.Context) error {
		actor, err := requireActor(cmd.AppliedBy)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		date := cmd.PaymentDate
		if date.IsZero() {
			date = domain.DateOf(now)
		}
		method := cmd.Method
		if method == "" {
			method = models.PaymentMethodOther
		}

		return s.inTx(ctx, func(ctx context.Context) error {
			inv, err := s.invoices.FindByIDForUpdate(ctx, cmd.InvoiceID)
			if err != nil {
				return storeErr(err, invoiceNotFound, "failed to load invoice")
			}
			if err := inv.CanApplyPayment(cmd.Amount); err != nil {
				return err
			}
			p, err := models.NewPayment(domain.NewPaymentID(), inv.ID, cmd.Amount, date, method, cmd.Reference, actor, now)
			if err != nil {
				return err
			}
			if err := inv.ApplyPayment(p.Amount, actor, now); err != nil {
				return err
			}

			if err := s.payments.Save(ctx, p); err != nil {
				return storeErr(err, invoiceNotFound, "failed to save payment")
			}
			if err := s.invoices.Save(ctx, inv); err != nil {
				return storeErr(err, invoiceNotFound, "failed to save invoice")
			}
			if err := s.emit(ctx, models.PaymentApplied{
				PaymentID:     p.ID,
				InvoiceID:     inv.ID,
				Amount:        p.Amount,
				AmountPaid:    inv.AmountPaid,
				InvoiceStatus: inv.Status,
				AppliedBy:     actor,
			}); err != nil {
				return err
			}
			payment, invoice = p, inv
			return nil
		})
	}, attribute.String("invoice_id", cmd.InvoiceID.String()))
	if err != nil {
		return nil, nil, err
	}

	s.logAudit(ctx, models.EventPaymentApplied,
		"payment_id", payment.ID,
		"invoice_id", invoice.ID,
		"amount", payment.Amount.String(),
		"invoice_status", invoice.Status,
		"actor", payment.CreatedBy,
	)
	if s.metrics != nil {
		s.metrics.IncrementPaymentsApplied()
	}
	return payment, invoice, nil
}

// VoidPayment voids an APPLIED payment and reverses it on the invoice in one
// unit of work. The invoice status is not changed by the reversal.
func (s *Service) VoidPayment(ctx context.Context, paymentID domain.PaymentID, reason, voidedBy string) (*models.Payment, *models.Invoice, error) {
	var (
		payment *models.Payment
		invoice *models.Invoice
	)
	err := s.run(ctx, "void_payment", func(ctx context.Context) error {
		actor, err := requireActor(voidedBy)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)

		return s.inTx(ctx, func(ctx context.Context) error {
			p, err := s.payments.FindByIDForUpdate(ctx, paymentID)
			if err != nil {
				return storeErr(err, paymentNotFound, "failed to load payment")
			}
			if err := p.Void(reason, actor, now); err != nil {
				return err
			}

			inv, err := s.invoices.FindByIDForUpdate(ctx, p.InvoiceID)
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return dErrors.Wrap(err, dErrors.CodeIntegrityViolation, "invoice not found for payment").
						WithReason(models.ReasonPaymentInvoiceMissing).
						With("payment_id", paymentID).
						With("invoice_id", p.InvoiceID)
				}
				return storeErr(err, nil, "failed to load invoice")
			}
			if err := inv.ReversePayment(p.Amount, actor, now); err != nil {
				return err
			}

			if err := s.payments.Save(ctx, p); err != nil {
				return storeErr(err, paymentNotFound, "failed to save payment")
			}
			if err := s.invoices.Save(ctx, inv); err != nil {
				return storeErr(err, invoiceNotFound, "failed to save invoice")
			}
			if err := s.emit(ctx, models.PaymentVoided{
				PaymentID:  p.ID,
				InvoiceID:  inv.ID,
				Amount:     p.Amount,
				AmountPaid: inv.AmountPaid,
				Reason:     p.VoidReason,
				VoidedBy:   actor,
			}); err != nil {
				return err
			}
			payment, invoice = p, inv
			return nil
		})
	}, attribute.String("payment_id", paymentID.String()))
	if err != nil {
		return nil, nil, err
	}

	s.logAudit(ctx, models.EventPaymentVoided,
		"payment_id", payment.ID,
		"invoice_id", invoice.ID,
		"amount", payment.Amount.String(),
		"reason", payment.VoidReason,
		"actor", payment.VoidedBy,
	)
	if s.metrics != nil {
		s.metrics.IncrementPaymentsVoided()
	}
	return payment, invoice, nil
}

func (s *Service) GetPayment(ctx context.Context, paymentID domain.PaymentID) (*models.Payment, error) {
	p, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, storeErr(err, paymentNotFound, "failed to load payment")
	}
	return p, nil
}

// ListInvoicePayments returns an invoice's payments, optionally filtered by
// status. An empty status lists all.
func (s *Service) ListInvoicePayments(ctx context.Context, invoiceID domain.InvoiceID, status models.PaymentStatus) ([]*models.Payment, error) {
	if _, err := s.invoices.FindByID(ctx, invoiceID); err != nil {
		return nil, storeErr(err, invoiceNotFound, "failed to load invoice")
	}

	var (
		payments []*models.Payment
		err      error
	)
	if status == "" {
		payments, err = s.payments.FindByInvoiceID(ctx, invoiceID)
	} else {
		payments, err = s.payments.FindByInvoiceIDAndStatus(ctx, invoiceID, status)
	}
	if err != nil {
		return nil, storeErr(err, nil, "failed to list payments")
	}
	return payments, nil
}
