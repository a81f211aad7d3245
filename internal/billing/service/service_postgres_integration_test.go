//go:build integration

package service_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"billing/internal/billing/models"
	"billing/internal/billing/numbering"
	"billing/internal/billing/service"
	customerstore "billing/internal/billing/store/customer"
	invoicestore "billing/internal/billing/store/invoice"
	paymentstore "billing/internal/billing/store/payment"
	"billing/internal/platform/postgres"
	"billing/pkg/domain"
	dErrors "billing/pkg/domain-errors"
	"billing/pkg/platform/outbox"
	"billing/pkg/requestcontext"
	"billing/pkg/testutil/containers"
)

type PostgresServiceSuite struct {
	suite.Suite
	pg       *containers.PostgresContainer
	ctx      context.Context
	events   *outbox.PostgresStore
	service  *service.Service
	customer *models.Customer
}

func TestPostgresServiceSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresServiceSuite))
}

func (s *PostgresServiceSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
}

func (s *PostgresServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	s.Require().NoError(s.pg.TruncateTables(context.Background()))

	db := s.pg.DB
	invoices := invoicestore.NewPostgres(db)
	s.events = outbox.NewPostgresStore(db)
	s.service = service.New(
		invoices,
		paymentstore.NewPostgres(db),
		customerstore.NewPostgres(db),
		numbering.NewPostgres(db, invoices),
		service.WithTx(postgres.NewTxRunner(db, 10*time.Second)),
		service.WithOutbox(s.events),
	)

	c, err := s.service.CreateCustomer(s.ctx, service.CreateCustomerCommand{Name: "Acme Ltd", Email: "billing@acme.test"})
	s.Require().NoError(err)
	s.customer = c
}

func (s *PostgresServiceSuite) draft() *models.Invoice {
	inv, err := s.service.CreateInvoice(s.ctx, s.customer.ID, []models.LineItem{
		{Description: "Consulting", Quantity: 2, UnitPrice: domain.MustParseMoney("10.00")},
		{Description: "Setup fee", Quantity: 1, UnitPrice: domain.MustParseMoney("5.00")},
	}, "alice")
	s.Require().NoError(err)
	return inv
}

func (s *PostgresServiceSuite) TestRoundTripsInvoice() {
	inv := s.draft()
	sent, err := s.service.MarkInvoiceAsSent(s.ctx, inv.ID, domain.Date{}, "alice")
	s.Require().NoError(err)
	s.Equal(models.InvoiceNumber("INV-2025-0001"), sent.Number)

	got, err := s.service.GetInvoice(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.Equal(models.InvoiceStatusSent, got.Status)
	s.Equal("2025-03-10", got.SentDate.String())
	s.Require().Len(got.LineItems, 2)
	s.Equal("Consulting", got.LineItems[0].Description)
	s.Equal("25.00", got.Total().String())
}

func (s *PostgresServiceSuite) TestConcurrentSendsNeverShareANumber() {
	const n = 10
	drafts := make([]*models.Invoice, n)
	for i := range drafts {
		drafts[i] = s.draft()
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []string
		errs    []error
	)
	for _, inv := range drafts {
		wg.Add(1)
		go func(id domain.InvoiceID) {
			defer wg.Done()
			sent, err := s.service.MarkInvoiceAsSent(s.ctx, id, domain.Date{}, "alice")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers = append(numbers, sent.Number.String())
		}(inv.ID)
	}
	wg.Wait()

	for _, err := range errs {
		s.True(dErrors.HasReason(err, models.ReasonSerializationFailure), "unexpected error: %v", err)
	}
	s.Require().NotEmpty(numbers)
	sort.Strings(numbers)
	for i, number := range numbers {
		s.Equal(models.FormatInvoiceNumber(2025, int64(i+1)).String(), number)
	}
}

func (s *PostgresServiceSuite) TestVoidIsAtomicWithOutbox() {
	inv := s.draft()
	_, err := s.service.MarkInvoiceAsSent(s.ctx, inv.ID, domain.Date{}, "alice")
	s.Require().NoError(err)
	p, _, err := s.service.ApplyPayment(s.ctx, service.ApplyPaymentCommand{
		InvoiceID: inv.ID, Amount: domain.MustParseMoney("25.00"), AppliedBy: "alice",
	})
	s.Require().NoError(err)

	voided, invAfter, err := s.service.VoidPayment(s.ctx, p.ID, "bounced", "bob")
	s.Require().NoError(err)
	s.Equal(models.PaymentStatusVoided, voided.Status)
	s.Equal(models.InvoiceStatusPaid, invAfter.Status)
	s.True(invAfter.AmountPaid.IsZero())

	_, _, err = s.service.VoidPayment(s.ctx, p.ID, "again", "bob")
	s.True(dErrors.HasReason(err, models.ReasonPaymentAlreadyVoided))

	entries, err := s.events.FetchUnpublished(context.Background(), 100)
	s.Require().NoError(err)
	var types []string
	for _, e := range entries {
		types = append(types, e.EventType)
	}
	// Every event in this test carries the same request time, so only the set is stable.
	s.ElementsMatch([]string{
		string(models.EventCustomerCreated),
		string(models.EventInvoiceCreated),
		string(models.EventInvoiceSent),
		string(models.EventPaymentApplied),
		string(models.EventPaymentVoided),
	}, types)
}

func (s *PostgresServiceSuite) TestCancelBlockedByAppliedPayments() {
	inv := s.draft()
	_, err := s.service.MarkInvoiceAsSent(s.ctx, inv.ID, domain.Date{}, "alice")
	s.Require().NoError(err)
	_, _, err = s.service.ApplyPayment(s.ctx, service.ApplyPaymentCommand{
		InvoiceID: inv.ID, Amount: domain.MustParseMoney("5.00"), AppliedBy: "alice",
	})
	s.Require().NoError(err)

	_, err = s.service.CancelInvoice(s.ctx, inv.ID, "duplicate", "alice")
	s.True(dErrors.HasReason(err, models.ReasonCannotCancelWithPayments))

	payments, err := s.service.ListInvoicePayments(s.ctx, inv.ID, models.PaymentStatusApplied)
	s.Require().NoError(err)
	s.Len(payments, 1)
}
