package service

//go:generate mockgen -source=ports.go -destination=mocks/ports_mock.go -package=mocks

import (
	"context"

	"billing/internal/billing/models"
	"billing/pkg/domain"
	"billing/pkg/platform/outbox"
)

type InvoiceStore interface {
	Save(ctx context.Context, inv *models.Invoice) error
	FindByID(ctx context.Context, invoiceID domain.InvoiceID) (*models.Invoice, error)
	FindByIDForUpdate(ctx context.Context, invoiceID domain.InvoiceID) (*models.Invoice, error)
	ListNumbersByPrefix(ctx context.Context, prefix string) ([]string, error)
	ListByCustomer(ctx context.Context, customerID domain.CustomerID) ([]*models.Invoice, error)
}

type PaymentStore interface {
	Save(ctx context.Context, p *models.Payment) error
	FindByID(ctx context.Context, paymentID domain.PaymentID) (*models.Payment, error)
	FindByIDForUpdate(ctx context.Context, paymentID domain.PaymentID) (*models.Payment, error)
	FindByInvoiceID(ctx context.Context, invoiceID domain.InvoiceID) ([]*models.Payment, error)
	FindByInvoiceIDAndStatus(ctx context.Context, invoiceID domain.InvoiceID, status models.PaymentStatus) ([]*models.Payment, error)
	ExistsByInvoiceIDAndStatus(ctx context.Context, invoiceID domain.InvoiceID, status models.PaymentStatus) (bool, error)
}

type CustomerStore interface {
	Save(ctx context.Context, c *models.Customer) error
	FindByID(ctx context.Context, customerID domain.CustomerID) (*models.Customer, error)
	FindByEmail(ctx context.Context, email string) (*models.Customer, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// NumberAllocator hands out the next invoice number for a year. It must be
// called inside the unit of work that saves the invoice.
type NumberAllocator interface {
	Next(ctx context.Context, year int) (models.InvoiceNumber, error)
}

// EventOutbox records billing events in the caller's unit of work.
type EventOutbox interface {
	Append(ctx context.Context, entry outbox.Entry) error
}

// StoreTx provides the transactional boundary for billing mutations.
// Implementations wrap a database transaction or, in memory, one coarse lock
// with snapshot rollback. Stores pick the transaction up from ctx.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
