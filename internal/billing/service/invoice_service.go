package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"billing/internal/billing/models"
	"billing/pkg/domain"
	dErrors "billing/pkg/domain-errors"
	"billing/pkg/platform/sentinel"
	"billing/pkg/requestcontext"
)

// CreateInvoice opens a DRAFT invoice for an ACTIVE customer. An empty
// line-item list is allowed; sending requires at least one item.
func (s *Service) CreateInvoice(ctx context.Context, customerID domain.CustomerID, items []models.LineItem, createdBy string) (*models.Invoice, error) {
	var invoice *models.Invoice
	err := s.run(ctx, "create_invoice", func(ctx context.Context) error {
		actor, err := requireActor(createdBy)
		if err != nil {
			return err
		}
		inv, err := models.NewInvoice(domain.NewInvoiceID(), customerID, items, actor, requestcontext.Now(ctx))
		if err != nil {
			return err
		}

		err = s.inTx(ctx, func(ctx context.Context) error {
			customer, err := s.customers.FindByID(ctx, customerID)
			if err != nil {
				return storeErr(err, customerNotFound, "failed to load customer")
			}
			if !customer.IsActive() {
				return dErrors.New(dErrors.CodeInvalidState, "customer is inactive").
					WithReason(models.ReasonCustomerInactive).
					With("customer_id", customerID)
			}
			if err := s.invoices.Save(ctx, inv); err != nil {
				return storeErr(err, customerNotFound, "failed to save invoice")
			}
			return s.emit(ctx, models.InvoiceCreated{
				InvoiceID:  inv.ID,
				CustomerID: inv.CustomerID,
				Total:      inv.Total(),
				LineItems:  len(inv.LineItems),
				CreatedBy:  actor,
			})
		})
		if err != nil {
			return err
		}
		invoice = inv
		return nil
	}, attribute.String("customer_id", customerID.String()))
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, models.EventInvoiceCreated,
		"invoice_id", invoice.ID,
		"customer_id", invoice.CustomerID,
		"actor", invoice.CreatedBy,
	)
	if s.metrics != nil {
		s.metrics.IncrementInvoicesCreated()
	}
	return invoice, nil
}

func (s *Service) GetInvoice(ctx context.Context, invoiceID domain.InvoiceID) (*models.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, storeErr(err, invoiceNotFound, "failed to load invoice")
	}
	return inv, nil
}

// ListCustomerInvoices returns the customer's invoices, oldest first.
func (s *Service) ListCustomerInvoices(ctx context.Context, customerID domain.CustomerID) ([]*models.Invoice, error) {
	if _, err := s.customers.FindByID(ctx, customerID); err != nil {
		return nil, storeErr(err, customerNotFound, "failed to load customer")
	}
	invoices, err := s.invoices.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, storeErr(err, nil, "failed to list invoices")
	}
	return invoices, nil
}

// MarkInvoiceAsSent moves a DRAFT invoice to SENT and assigns its number.
// A zero sentDate defaults to today. The number is allocated for the current
// year inside the same unit of work, so a failed send leaves no number behind
// when the allocator is transactional.
func (s *Service) MarkInvoiceAsSent(ctx context.Context, invoiceID domain.InvoiceID, sentDate domain.Date, sentBy string) (*models.Invoice, error) {
	var invoice *models.Invoice
	err := s.run(ctx, "mark_invoice_as_sent", func(ctx context.Context) error {
		actor, err := requireActor(sentBy)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)

		return s.inTx(ctx, func(ctx context.Context) error {
			inv, err := s.invoices.FindByIDForUpdate(ctx, invoiceID)
			if err != nil {
				return storeErr(err, invoiceNotFound, "failed to load invoice")
			}
			if err := inv.CanMarkAsSent(); err != nil {
				return err
			}
			if err := inv.CheckSendable(); err != nil {
				return err
			}

			number, err := s.allocate(ctx, now.Year())
			if err != nil {
				return err
			}
			date := sentDate
			if date.IsZero() {
				date = domain.DateOf(now)
			}
			if err := inv.MarkAsSent(number, date, actor, now); err != nil {
				return err
			}

			if err := s.invoices.Save(ctx, inv); err != nil {
				if errors.Is(err, sentinel.ErrAlreadyUsed) {
					return dErrors.Wrap(err, dErrors.CodeConflict, "invoice number already assigned").
						WithReason(models.ReasonInvoiceNumberTaken).
						With("number", number)
				}
				return storeErr(err, invoiceNotFound, "failed to save invoice")
			}
			if err := s.emit(ctx, models.InvoiceSent{
				InvoiceID: inv.ID,
				Number:    inv.Number,
				SentDate:  inv.SentDate,
				SentBy:    actor,
				Total:     inv.Total(),
			}); err != nil {
				return err
			}
			invoice = inv
			return nil
		})
	}, attribute.String("invoice_id", invoiceID.String()))
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, models.EventInvoiceSent,
		"invoice_id", invoice.ID,
		"number", invoice.Number,
		"actor", invoice.SentBy,
	)
	if s.metrics != nil {
		s.metrics.IncrementInvoicesSent()
	}
	return invoice, nil
}

func (s *Service) allocate(ctx context.Context, year int) (models.InvoiceNumber, error) {
	start := time.Now()
	number, err := s.allocator.Next(ctx, year)
	if s.metrics != nil {
		s.metrics.ObserveAllocation(start)
	}
	if err != nil {
		if _, ok := dErrors.As(err); ok {
			return "", err
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate invoice number")
	}
	return number, nil
}

// CancelInvoice cancels a DRAFT or SENT invoice. Checks run in this order:
// not found, paid or already cancelled, applied payments, blank reason.
func (s *Service) CancelInvoice(ctx context.Context, invoiceID domain.InvoiceID, reason, cancelledBy string) (*models.Invoice, error) {
	var invoice *models.Invoice
	err := s.run(ctx, "cancel_invoice", func(ctx context.Context) error {
		actor, err := requireActor(cancelledBy)
		if err != nil {
			return err
		}

		return s.inTx(ctx, func(ctx context.Context) error {
			inv, err := s.invoices.FindByIDForUpdate(ctx, invoiceID)
			if err != nil {
				return storeErr(err, invoiceNotFound, "failed to load invoice")
			}
			if err := inv.CanCancel(); err != nil {
				return err
			}

			hasPayments, err := s.payments.ExistsByInvoiceIDAndStatus(ctx, invoiceID, models.PaymentStatusApplied)
			if err != nil {
				return storeErr(err, nil, "failed to check invoice payments")
			}
			if hasPayments {
				return dErrors.New(dErrors.CodeInvalidState, "invoice has applied payments; void them first").
					WithReason(models.ReasonCannotCancelWithPayments).
					With("invoice_id", invoiceID)
			}

			if err := inv.Cancel(reason, actor, requestcontext.Now(ctx)); err != nil {
				return err
			}
			if err := s.invoices.Save(ctx, inv); err != nil {
				return storeErr(err, invoiceNotFound, "failed to save invoice")
			}
			if err := s.emit(ctx, models.InvoiceCancelled{
				InvoiceID:   inv.ID,
				Reason:      inv.CancellationReason,
				CancelledBy: actor,
			}); err != nil {
				return err
			}
			invoice = inv
			return nil
		})
	}, attribute.String("invoice_id", invoiceID.String()))
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, models.EventInvoiceCancelled,
		"invoice_id", invoice.ID,
		"reason", invoice.CancellationReason,
		"actor", invoice.CancelledBy,
	)
	if s.metrics != nil {
		s.metrics.IncrementInvoicesCancelled()
	}
	return invoice, nil
}
