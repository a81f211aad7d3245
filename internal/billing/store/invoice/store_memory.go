package invoice

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"billing/internal/billing/models"
	"billing/pkg/domain"
	"billing/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested invoice does not exist
// - Return ErrAlreadyUsed when an invoice number is held by another invoice
// - Return nil for successful operations

// InMemory stores invoices in a map for tests and single-process runs.
// Values are cloned on the way in and out so callers never share state
// with the store.
type InMemory struct {
	mu       sync.RWMutex
	invoices map[domain.InvoiceID]*models.Invoice
	numbers  map[models.InvoiceNumber]domain.InvoiceID
}

func NewInMemory() *InMemory {
	return &InMemory{
		invoices: make(map[domain.InvoiceID]*models.Invoice),
		numbers:  make(map[models.InvoiceNumber]domain.InvoiceID),
	}
}

// Save inserts or replaces the invoice.
func (s *InMemory) Save(_ context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !inv.Number.IsZero() {
		if owner, taken := s.numbers[inv.Number]; taken && owner != inv.ID {
			return fmt.Errorf("invoice number %s: %w", inv.Number, sentinel.ErrAlreadyUsed)
		}
		s.numbers[inv.Number] = inv.ID
	}
	s.invoices[inv.ID] = inv.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, invoiceID domain.InvoiceID) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if inv, ok := s.invoices[invoiceID]; ok {
		return inv.Clone(), nil
	}
	return nil, fmt.Errorf("invoice %s: %w", invoiceID, sentinel.ErrNotFound)
}

// FindByIDForUpdate is FindByID; the in-memory unit of work already
// serializes writers.
func (s *InMemory) FindByIDForUpdate(ctx context.Context, invoiceID domain.InvoiceID) (*models.Invoice, error) {
	return s.FindByID(ctx, invoiceID)
}

// ListNumbersByPrefix returns the assigned numbers starting with prefix.
func (s *InMemory) ListNumbersByPrefix(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for number := range s.numbers {
		if strings.HasPrefix(string(number), prefix) {
			out = append(out, string(number))
		}
	}
	sort.Strings(out)
	return out, nil
}

// ListByCustomer returns a customer's invoices, oldest first.
func (s *InMemory) ListByCustomer(_ context.Context, customerID domain.CustomerID) ([]*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Invoice
	for _, inv := range s.invoices {
		if inv.CustomerID == customerID {
			out = append(out, inv.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Snapshot captures the store contents and returns a func restoring them.
func (s *InMemory) Snapshot() func() {
	s.mu.RLock()
	invoices := maps.Clone(s.invoices)
	numbers := maps.Clone(s.numbers)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.invoices = invoices
		s.numbers = numbers
		s.mu.Unlock()
	}
}
