package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"billing/internal/billing/metrics"
	"billing/internal/billing/models"
	"billing/internal/billing/numbering"
	"billing/internal/billing/service/mocks"
	customerstore "billing/internal/billing/store/customer"
	invoicestore "billing/internal/billing/store/invoice"
	paymentstore "billing/internal/billing/store/payment"
	"billing/pkg/domain"
	dErrors "billing/pkg/domain-errors"
	"billing/pkg/platform/outbox"
	"billing/pkg/platform/sentinel"
	"billing/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	invoices  *invoicestore.InMemory
	payments  *paymentstore.InMemory
	customers *customerstore.InMemory
	allocator *numbering.MemoryAllocator
	events    *outbox.MemoryStore
	metrics   *metrics.Metrics
	service   *Service
	customer  *models.Customer
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC))
	s.invoices = invoicestore.NewInMemory()
	s.payments = paymentstore.NewInMemory()
	s.customers = customerstore.NewInMemory()
	s.allocator = numbering.NewMemory(s.invoices)
	s.events = outbox.NewMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = s.newService(s.events)

	c, err := s.service.CreateCustomer(s.ctx, CreateCustomerCommand{Name: "Acme Ltd", Email: "billing@acme.test"})
	s.Require().NoError(err)
	s.customer = c
}

func (s *ServiceSuite) newService(events EventOutbox) *Service {
	tx := NewMemoryTx(time.Second, s.invoices, s.payments, s.customers, s.allocator, s.events)
	return New(s.invoices, s.payments, s.customers, s.allocator,
		WithTx(tx),
		WithOutbox(events),
		WithMetrics(s.metrics),
	)
}

func (s *ServiceSuite) standardItems() []models.LineItem {
	return []models.LineItem{
		{Description: "Consulting", Quantity: 2, UnitPrice: domain.MustParseMoney("10.00")},
		{Description: "Setup fee", Quantity: 1, UnitPrice: domain.MustParseMoney("5.00")},
	}
}

func (s *ServiceSuite) draft() *models.Invoice {
	inv, err := s.service.CreateInvoice(s.ctx, s.customer.ID, s.standardItems(), "alice")
	s.Require().NoError(err)
	return inv
}

func (s *ServiceSuite) sent() *models.Invoice {
	inv, err := s.service.MarkInvoiceAsSent(s.ctx, s.draft().ID, domain.Date{}, "alice")
	s.Require().NoError(err)
	return inv
}

func (s *ServiceSuite) pay(invoiceID domain.InvoiceID, amount string) *models.Payment {
	p, _, err := s.service.ApplyPayment(s.ctx, ApplyPaymentCommand{
		InvoiceID: invoiceID,
		Amount:    domain.MustParseMoney(amount),
		Method:    models.PaymentMethodBankTransfer,
		Reference: "TX-1",
		AppliedBy: "bob",
	})
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code, reason dErrors.Reason) {
	s.T().Helper()
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err), err.Error())
	if reason != "" {
		s.Equal(reason, dErrors.ReasonOf(err))
	}
}

func (s *ServiceSuite) eventTypes() []string {
	var out []string
	for _, e := range s.events.Entries() {
		out = append(out, e.EventType)
	}
	return out
}

func (s *ServiceSuite) TestCreateInvoice() {
	s.Run("computes the total from line items", func() {
		inv := s.draft()
		s.Equal(models.InvoiceStatusDraft, inv.Status)
		s.Equal("25.00", inv.Total().String())
		s.True(inv.AmountPaid.IsZero())
		s.True(inv.Number.IsZero())
		s.Equal("alice", inv.CreatedBy)
	})

	s.Run("allows an empty draft", func() {
		inv, err := s.service.CreateInvoice(s.ctx, s.customer.ID, nil, "alice")
		s.Require().NoError(err)
		s.False(inv.HasLineItems())
	})

	s.Run("rejects invalid line items", func() {
		_, err := s.service.CreateInvoice(s.ctx, s.customer.ID, []models.LineItem{
			{Description: "", Quantity: 1, UnitPrice: domain.MustParseMoney("1.00")},
		}, "alice")
		s.requireCode(err, dErrors.CodeValidation, models.ReasonInvalidLineItem)
	})

	s.Run("unknown customer", func() {
		_, err := s.service.CreateInvoice(s.ctx, domain.NewCustomerID(), s.standardItems(), "alice")
		s.requireCode(err, dErrors.CodeNotFound, models.ReasonCustomerNotFound)
	})

	s.Run("inactive customer", func() {
		c, err := s.service.CreateCustomer(s.ctx, CreateCustomerCommand{Name: "Gone", Email: "gone@acme.test"})
		s.Require().NoError(err)
		_, err = s.service.DeactivateCustomer(s.ctx, c.ID)
		s.Require().NoError(err)

		_, err = s.service.CreateInvoice(s.ctx, c.ID, s.standardItems(), "alice")
		s.requireCode(err, dErrors.CodeInvalidState, models.ReasonCustomerInactive)
	})

	s.Run("requires an actor", func() {
		_, err := s.service.CreateInvoice(s.ctx, s.customer.ID, s.standardItems(), "  ")
		s.requireCode(err, dErrors.CodeValidation, models.ReasonActorRequired)
	})
}

func (s *ServiceSuite) TestMarkInvoiceAsSent() {
	s.Run("assigns the first number of the year and defaults the date", func() {
		inv := s.sent()
		s.Equal(models.InvoiceStatusSent, inv.Status)
		s.Equal(models.InvoiceNumber("INV-2025-0001"), inv.Number)
		s.Equal("2025-03-10", inv.SentDate.String())

		stored, err := s.service.GetInvoice(s.ctx, inv.ID)
		s.Require().NoError(err)
		s.Equal(inv.Number, stored.Number)
	})

	s.Run("numbers increase per send", func() {
		second := s.sent()
		third := s.sent()
		s.Equal(models.InvoiceNumber("INV-2025-0002"), second.Number)
		s.Equal(models.InvoiceNumber("INV-2025-0003"), third.Number)
	})

	s.Run("keeps an explicit sent date", func() {
		inv, err := s.service.MarkInvoiceAsSent(s.ctx, s.draft().ID, domain.NewDate(2025, time.March, 1), "alice")
		s.Require().NoError(err)
		s.Equal("2025-03-01", inv.SentDate.String())
	})

	s.Run("sending twice fails with not draft", func() {
		inv := s.sent()
		_, err := s.service.MarkInvoiceAsSent(s.ctx, inv.ID, domain.Date{}, "alice")
		s.requireCode(err, dErrors.CodeInvalidState, models.ReasonInvoiceNotDraft)
	})

	s.Run("empty draft cannot be sent", func() {
		inv, err := s.service.CreateInvoice(s.ctx, s.customer.ID, nil, "alice")
		s.Require().NoError(err)
		_, err = s.service.MarkInvoiceAsSent(s.ctx, inv.ID, domain.Date{}, "alice")
		s.requireCode(err, dErrors.CodeValidation, models.ReasonInvoiceHasNoLineItems)
	})

	s.Run("zero total cannot be sent", func() {
		inv, err := s.service.CreateInvoice(s.ctx, s.customer.ID, []models.LineItem{
			{Description: "Free trial", Quantity: 1, UnitPrice: domain.Zero},
		}, "alice")
		s.Require().NoError(err)
		_, err = s.service.MarkInvoiceAsSent(s.ctx, inv.ID, domain.Date{}, "alice")
		s.requireCode(err, dErrors.CodeValidation, models.ReasonInvoiceTotalNotPositive)

		stored, err := s.service.GetInvoice(s.ctx, inv.ID)
		s.Require().NoError(err)
		s.True(stored.IsDraft())
		s.True(stored.Number.IsZero())
	})

	s.Run("unknown invoice", func() {
		_, err := s.service.MarkInvoiceAsSent(s.ctx, domain.NewInvoiceID(), domain.Date{}, "alice")
		s.requireCode(err, dErrors.CodeNotFound, models.ReasonInvoiceNotFound)
	})
}

func (s *ServiceSuite) TestNumberSeededFromExistingInvoices() {
	for _, number := range []string{"INV-2025-0001", "INV-2025-0007", "INV-2024-0099"} {
		inv, err := models.NewInvoice(domain.NewInvoiceID(), s.customer.ID, s.standardItems(), "import", requestcontext.Now(s.ctx))
		s.Require().NoError(err)
		inv.ApplyMarkAsSent(models.InvoiceNumber(number), domain.NewDate(2024, time.December, 1), "import", requestcontext.Now(s.ctx))
		s.Require().NoError(s.invoices.Save(s.ctx, inv))
	}

	inv := s.sent()
	s.Equal(models.InvoiceNumber("INV-2025-0008"), inv.Number)
}

func (s *ServiceSuite) TestConcurrentSendsGetDistinctNumbers() {
	const n = 20
	ids := make([]domain.InvoiceID, n)
	for i := range ids {
		ids[i] = s.draft().ID
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[models.InvoiceNumber]bool{}
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id domain.InvoiceID) {
			defer wg.Done()
			inv, err := s.service.MarkInvoiceAsSent(s.ctx, id, domain.Date{}, "alice")
			s.NoError(err)
			if err == nil {
				mu.Lock()
				numbers[inv.Number] = true
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	s.Len(numbers, n)
	s.True(numbers[models.FormatInvoiceNumber(2025, n)])
}

func (s *ServiceSuite) TestCancelInvoice() {
	s.Run("cancels a draft", func() {
		inv, err := s.service.CancelInvoice(s.ctx, s.draft().ID, "customer withdrew", "alice")
		s.Require().NoError(err)
		s.Equal(models.InvoiceStatusCancelled, inv.Status)
		s.Equal("customer withdrew", inv.CancellationReason)
		s.Equal("alice", inv.CancelledBy)
		s.NotNil(inv.CancelledAt)
	})

	s.Run("cancels a sent invoice without payments", func() {
		inv, err := s.service.CancelInvoice(s.ctx, s.sent().ID, "duplicate", "alice")
		s.Require().NoError(err)
		s.Equal(models.InvoiceStatusCancelled, inv.Status)
	})

	s.Run("paid invoice cannot be cancelled", func() {
		inv := s.sent()
		s.pay(inv.ID, "25.00")
		_, err := s.service.CancelInvoice(s.ctx, inv.ID, "too late", "alice")
		s.requireCode(err, dErrors.CodeInvalidState, models.ReasonCannotCancelPaidInvoice)
	})

	s.Run("applied payments block cancellation", func() {
		inv := s.sent()
		s.pay(inv.ID, "10.00")
		_, err := s.service.CancelInvoice(s.ctx, inv.ID, "changed mind", "alice")
		s.requireCode(err, dErrors.CodeInvalidState, models.ReasonCannotCancelWithPayments)
	})

	s.Run("voided payments do not block cancellation", func() {
		inv := s.sent()
		p := s.pay(inv.ID, "10.00")
		_, _, err := s.service.VoidPayment(s.ctx, p.ID, "bounced", "bob")
		s.Require().NoError(err)

		cancelled, err := s.service.CancelInvoice(s.ctx, inv.ID, "changed mind", "alice")
		s.Require().NoError(err)
		s.Equal(models.InvoiceStatusCancelled, cancelled.Status)
	})

	s.Run("cancelling twice is a conflict", func() {
		inv := s.draft()
		_, err := s.service.CancelInvoice(s.ctx, inv.ID, "first", "alice")
		s.Require().NoError(err)
		_, err = s.service.CancelInvoice(s.ctx, inv.ID, "second", "alice")
		s.requireCode(err, dErrors.CodeConflict, models.ReasonInvoiceAlreadyCancelled)
	})

	s.Run("reason is required", func() {
		inv := s.draft()
		_, err := s.service.CancelInvoice(s.ctx, inv.ID, "   ", "alice")
		s.requireCode(err, dErrors.CodeValidation, models.ReasonReasonRequired)

		stored, err := s.service.GetInvoice(s.ctx, inv.ID)
		s.Require().NoError(err)
		s.Equal(models.InvoiceStatusDraft, stored.Status)
	})

	s.Run("unknown invoice", func() {
		_, err := s.service.CancelInvoice(s.ctx, domain.NewInvoiceID(), "x", "alice")
		s.requireCode(err, dErrors.CodeNotFound, models.ReasonInvoiceNotFound)
	})
}

func (s *ServiceSuite) TestApplyPayment() {
	s.Run("partial payment keeps the invoice sent", func() {
		inv := s.sent()
		p, updated, err := s.service.ApplyPayment(s.ctx, ApplyPaymentCommand{
			InvoiceID: inv.ID,
			Amount:    domain.MustParseMoney("10.00"),
			AppliedBy: "bob",
		})
		s.Require().NoError(err)
		s.Equal(models.PaymentStatusApplied, p.Status)
		s.Equal(models.PaymentMethodOther, p.Method)
		s.Equal("2025-03-10", p.PaymentDate.String())
		s.Equal(models.InvoiceStatusSent, updated.Status)
		s.Equal("10.00", updated.AmountPaid.String())
	})

	s.Run("full payment marks the invoice paid", func() {
		inv := s.sent()
		s.pay(inv.ID, "20.00")
		s.pay(inv.ID, "5.00")

		stored, err := s.service.GetInvoice(s.ctx, inv.ID)
		s.Require().NoError(err)
		s.Equal(models.InvoiceStatusPaid, stored.Status)
		s.NotNil(stored.PaidAt)
	})

	s.Run("overpayment is rejected", func() {
		inv := s.sent()
		_, _, err := s.service.ApplyPayment(s.ctx, ApplyPaymentCommand{
			InvoiceID: inv.ID,
			Amount:    domain.MustParseMoney("25.01"),
			AppliedBy: "bob",
		})
		s.requireCode(err, dErrors.CodeValidation, models.ReasonOverpayment)
	})

	s.Run("draft invoices take no payments", func() {
		_, _, err := s.service.ApplyPayment(s.ctx, ApplyPaymentCommand{
			InvoiceID: s.draft().ID,
			Amount:    domain.MustParseMoney("1.00"),
			AppliedBy: "bob",
		})
		s.requireCode(err, dErrors.CodeInvalidState, models.ReasonInvoiceNotSent)
	})

	s.Run("non-positive amount", func() {
		_, _, err := s.service.ApplyPayment(s.ctx, ApplyPaymentCommand{
			InvoiceID: s.sent().ID,
			Amount:    domain.Zero,
			AppliedBy: "bob",
		})
		s.requireCode(err, dErrors.CodeValidation, models.ReasonInvalidAmount)
	})
}

func (s *ServiceSuite) TestVoidPayment() {
	s.Run("void after full payment reverses the amount paid", func() {
		inv := s.sent()
		p := s.pay(inv.ID, "25.00")

		voided, updated, err := s.service.VoidPayment(s.ctx, p.ID, "duplicate charge", "bob")
		s.Require().NoError(err)
		s.Equal(models.PaymentStatusVoided, voided.Status)
		s.Equal("duplicate charge", voided.VoidReason)
		s.Equal("bob", voided.VoidedBy)
		s.NotNil(voided.VoidedAt)
		s.Equal("0.00", updated.AmountPaid.String())
		s.Equal(models.InvoiceStatusPaid, updated.Status)

		stored, err := s.service.GetPayment(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(models.PaymentStatusVoided, stored.Status)
	})

	s.Run("partial void leaves the remainder", func() {
		inv := s.sent()
		s.pay(inv.ID, "15.00")
		p := s.pay(inv.ID, "5.00")

		_, updated, err := s.service.VoidPayment(s.ctx, p.ID, "refunded", "bob")
		s.Require().NoError(err)
		s.Equal("15.00", updated.AmountPaid.String())
	})

	s.Run("voiding twice is a conflict", func() {
		p := s.pay(s.sent().ID, "5.00")
		_, _, err := s.service.VoidPayment(s.ctx, p.ID, "first", "bob")
		s.Require().NoError(err)
		_, _, err = s.service.VoidPayment(s.ctx, p.ID, "second", "bob")
		s.requireCode(err, dErrors.CodeConflict, models.ReasonPaymentAlreadyVoided)
	})

	s.Run("reason is required", func() {
		p := s.pay(s.sent().ID, "5.00")
		_, _, err := s.service.VoidPayment(s.ctx, p.ID, "", "bob")
		s.requireCode(err, dErrors.CodeValidation, models.ReasonReasonRequired)

		stored, err := s.service.GetPayment(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(models.PaymentStatusApplied, stored.Status)
	})

	s.Run("unknown payment", func() {
		_, _, err := s.service.VoidPayment(s.ctx, domain.NewPaymentID(), "x", "bob")
		s.requireCode(err, dErrors.CodeNotFound, models.ReasonPaymentNotFound)
	})

	s.Run("payment whose invoice is missing", func() {
		orphan, err := models.NewPayment(domain.NewPaymentID(), domain.NewInvoiceID(), domain.MustParseMoney("5.00"),
			domain.NewDate(2025, time.March, 1), models.PaymentMethodCash, "", "bob", requestcontext.Now(s.ctx))
		s.Require().NoError(err)
		s.Require().NoError(s.payments.Save(s.ctx, orphan))

		_, _, err = s.service.VoidPayment(s.ctx, orphan.ID, "cleanup", "bob")
		s.requireCode(err, dErrors.CodeIntegrityViolation, models.ReasonPaymentInvoiceMissing)

		stored, err := s.service.GetPayment(s.ctx, orphan.ID)
		s.Require().NoError(err)
		s.Equal(models.PaymentStatusApplied, stored.Status)
	})
}

func (s *ServiceSuite) TestListInvoicePayments() {
	inv := s.sent()
	first := s.pay(inv.ID, "5.00")
	s.pay(inv.ID, "5.00")
	_, _, err := s.service.VoidPayment(s.ctx, first.ID, "bounced", "bob")
	s.Require().NoError(err)

	all, err := s.service.ListInvoicePayments(s.ctx, inv.ID, "")
	s.Require().NoError(err)
	s.Len(all, 2)

	voided, err := s.service.ListInvoicePayments(s.ctx, inv.ID, models.PaymentStatusVoided)
	s.Require().NoError(err)
	s.Require().Len(voided, 1)
	s.Equal(first.ID, voided[0].ID)

	_, err = s.service.ListInvoicePayments(s.ctx, domain.NewInvoiceID(), "")
	s.requireCode(err, dErrors.CodeNotFound, models.ReasonInvoiceNotFound)
}

func (s *ServiceSuite) TestListCustomerInvoices() {
	first := s.draft()
	second := s.sent()

	invoices, err := s.service.ListCustomerInvoices(s.ctx, s.customer.ID)
	s.Require().NoError(err)
	s.Require().Len(invoices, 2)
	ids := []domain.InvoiceID{invoices[0].ID, invoices[1].ID}
	s.ElementsMatch([]domain.InvoiceID{first.ID, second.ID}, ids)

	_, err = s.service.ListCustomerInvoices(s.ctx, domain.NewCustomerID())
	s.requireCode(err, dErrors.CodeNotFound, models.ReasonCustomerNotFound)
}

func (s *ServiceSuite) TestCustomers() {
	s.Run("email is unique ignoring case", func() {
		_, err := s.service.CreateCustomer(s.ctx, CreateCustomerCommand{Name: "Other", Email: "BILLING@acme.test"})
		s.requireCode(err, dErrors.CodeConflict, models.ReasonCustomerEmailTaken)
	})

	s.Run("invalid email", func() {
		_, err := s.service.CreateCustomer(s.ctx, CreateCustomerCommand{Name: "Other", Email: "not-an-email"})
		s.requireCode(err, dErrors.CodeValidation, models.ReasonInvalidCustomer)
	})

	s.Run("get and deactivate", func() {
		c, err := s.service.GetCustomer(s.ctx, s.customer.ID)
		s.Require().NoError(err)
		s.Equal("Acme Ltd", c.Name)

		_, err = s.service.DeactivateCustomer(s.ctx, c.ID)
		s.Require().NoError(err)
		_, err = s.service.DeactivateCustomer(s.ctx, c.ID)
		s.requireCode(err, dErrors.CodeConflict, models.ReasonCustomerAlreadyInState)
	})

	s.Run("unknown customer", func() {
		_, err := s.service.GetCustomer(s.ctx, domain.NewCustomerID())
		s.requireCode(err, dErrors.CodeNotFound, models.ReasonCustomerNotFound)
	})
}

func (s *ServiceSuite) TestEventsFollowCommittedTransitions() {
	inv := s.sent()
	p := s.pay(inv.ID, "25.00")
	_, _, err := s.service.VoidPayment(s.ctx, p.ID, "duplicate charge", "bob")
	s.Require().NoError(err)

	// a failed command records nothing
	_, err = s.service.CancelInvoice(s.ctx, inv.ID, "nope", "alice")
	s.Require().Error(err)

	s.Equal([]string{
		"customer.created",
		"invoice.created",
		"invoice.sent",
		"payment.applied",
		"payment.voided",
	}, s.eventTypes())

	entries := s.events.Entries()
	s.Equal(p.ID.String(), entries[len(entries)-1].AggregateID)
	s.JSONEq(fmt.Sprintf(`{
		"payment_id": %q,
		"invoice_id": %q,
		"amount": "25.00",
		"amount_paid": "0.00",
		"reason": "duplicate charge",
		"voided_by": "bob"
	}`, p.ID, inv.ID), string(entries[len(entries)-1].Payload))
}

func (s *ServiceSuite) TestMetrics() {
	inv := s.sent()
	s.pay(inv.ID, "25.00")
	_, _ = s.service.CancelInvoice(s.ctx, inv.ID, "late", "alice")

	s.Equal(1.0, testutil.ToFloat64(s.metrics.InvoicesCreated))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.InvoicesSent))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.PaymentsApplied))
	s.Equal(0.0, testutil.ToFloat64(s.metrics.InvoicesCancelled))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.CommandFailures.WithLabelValues("cancel_invoice", string(dErrors.CodeInvalidState))))
}

func (s *ServiceSuite) TestRollbackOnOutboxFailure() {
	ctrl := gomock.NewController(s.T())
	failing := mocks.NewMockEventOutbox(ctrl)
	failing.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
	svc := s.newService(failing)

	draft := s.draft()
	_, err := svc.MarkInvoiceAsSent(s.ctx, draft.ID, domain.Date{}, "alice")
	s.requireCode(err, dErrors.CodeInternal, "")

	stored, err := s.service.GetInvoice(s.ctx, draft.ID)
	s.Require().NoError(err)
	s.Equal(models.InvoiceStatusDraft, stored.Status)
	s.True(stored.Number.IsZero())

	// the number was not consumed
	inv, err := s.service.MarkInvoiceAsSent(s.ctx, draft.ID, domain.Date{}, "alice")
	s.Require().NoError(err)
	s.Equal(models.InvoiceNumber("INV-2025-0001"), inv.Number)
}

func (s *ServiceSuite) TestVoidRollsBackBothWrites() {
	inv := s.sent()
	p := s.pay(inv.ID, "25.00")

	ctrl := gomock.NewController(s.T())
	failing := mocks.NewMockEventOutbox(ctrl)
	failing.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
	_, _, err := s.newService(failing).VoidPayment(s.ctx, p.ID, "duplicate charge", "bob")
	s.Require().Error(err)

	storedPayment, err := s.service.GetPayment(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(models.PaymentStatusApplied, storedPayment.Status)

	storedInvoice, err := s.service.GetInvoice(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.Equal("25.00", storedInvoice.AmountPaid.String())
}

func TestService_TranslatesInfrastructureErrors(t *testing.T) {
	ctx := context.Background()
	invoiceID := domain.NewInvoiceID()

	t.Run("serialization failure becomes a retryable conflict", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		tx := mocks.NewMockStoreTx(ctrl)
		tx.EXPECT().RunInTx(gomock.Any(), gomock.Any()).
			Return(fmt.Errorf("%w: could not serialize access", sentinel.ErrConflict))

		svc := New(mocks.NewMockInvoiceStore(ctrl), mocks.NewMockPaymentStore(ctrl), mocks.NewMockCustomerStore(ctrl),
			mocks.NewMockNumberAllocator(ctrl), WithTx(tx))

		_, err := svc.CancelInvoice(ctx, invoiceID, "reason", "alice")
		if dErrors.CodeOf(err) != dErrors.CodeConflict || dErrors.ReasonOf(err) != models.ReasonSerializationFailure {
			t.Fatalf("expected serialization conflict, got %v", err)
		}
	})

	t.Run("store failure becomes internal", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		invoices := mocks.NewMockInvoiceStore(ctrl)
		invoices.EXPECT().FindByIDForUpdate(gomock.Any(), invoiceID).Return(nil, errors.New("connection reset"))

		svc := New(invoices, mocks.NewMockPaymentStore(ctrl), mocks.NewMockCustomerStore(ctrl), mocks.NewMockNumberAllocator(ctrl))

		_, err := svc.CancelInvoice(ctx, invoiceID, "reason", "alice")
		if dErrors.CodeOf(err) != dErrors.CodeInternal {
			t.Fatalf("expected internal error, got %v", err)
		}
	})

	t.Run("allocator failure aborts the send", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		invoices := mocks.NewMockInvoiceStore(ctrl)
		allocator := mocks.NewMockNumberAllocator(ctrl)

		inv, err := models.NewInvoice(invoiceID, domain.NewCustomerID(), []models.LineItem{
			{Description: "Widget", Quantity: 1, UnitPrice: domain.MustParseMoney("3.00")},
		}, "alice", time.Now())
		if err != nil {
			t.Fatal(err)
		}
		invoices.EXPECT().FindByIDForUpdate(gomock.Any(), invoiceID).Return(inv, nil)
		allocator.EXPECT().Next(gomock.Any(), gomock.Any()).Return(models.InvoiceNumber(""), sentinel.ErrUnavailable)

		svc := New(invoices, mocks.NewMockPaymentStore(ctrl), mocks.NewMockCustomerStore(ctrl), allocator)

		_, err = svc.MarkInvoiceAsSent(ctx, invoiceID, domain.Date{}, "alice")
		if dErrors.CodeOf(err) != dErrors.CodeInternal {
			t.Fatalf("expected internal error, got %v", err)
		}
	})

	t.Run("number collision becomes a conflict", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		invoices := mocks.NewMockInvoiceStore(ctrl)
		allocator := mocks.NewMockNumberAllocator(ctrl)

		inv, err := models.NewInvoice(invoiceID, domain.NewCustomerID(), []models.LineItem{
			{Description: "Widget", Quantity: 1, UnitPrice: domain.MustParseMoney("3.00")},
		}, "alice", time.Now())
		if err != nil {
			t.Fatal(err)
		}
		invoices.EXPECT().FindByIDForUpdate(gomock.Any(), invoiceID).Return(inv, nil)
		allocator.EXPECT().Next(gomock.Any(), gomock.Any()).Return(models.InvoiceNumber("INV-2025-0001"), nil)
		invoices.EXPECT().Save(gomock.Any(), gomock.Any()).Return(fmt.Errorf("number: %w", sentinel.ErrAlreadyUsed))

		svc := New(invoices, mocks.NewMockPaymentStore(ctrl), mocks.NewMockCustomerStore(ctrl), allocator)

		_, err = svc.MarkInvoiceAsSent(ctx, invoiceID, domain.Date{}, "alice")
		if !dErrors.HasReason(err, models.ReasonInvoiceNumberTaken) {
			t.Fatalf("expected number taken, got %v", err)
		}
	})
}
