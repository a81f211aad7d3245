package payment

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"billing/internal/billing/models"
	"billing/pkg/domain"
	"billing/pkg/platform/sentinel"
)

// InMemory stores payments in a map for tests and single-process runs.
type InMemory struct {
	mu       sync.RWMutex
	payments map[domain.PaymentID]*models.Payment
}

func NewInMemory() *InMemory {
	return &InMemory{payments: make(map[domain.PaymentID]*models.Payment)}
}

func (s *InMemory) Save(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, paymentID domain.PaymentID) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.payments[paymentID]; ok {
		return p.Clone(), nil
	}
	return nil, fmt.Errorf("payment %s: %w", paymentID, sentinel.ErrNotFound)
}

// FindByIDForUpdate is FindByID; the in-memory unit of work already
// serializes writers.
func (s *InMemory) FindByIDForUpdate(ctx context.Context, paymentID domain.PaymentID) (*models.Payment, error) {
	return s.FindByID(ctx, paymentID)
}

// FindByInvoiceID returns the invoice's payments in the order they were recorded.
func (s *InMemory) FindByInvoiceID(_ context.Context, invoiceID domain.InvoiceID) ([]*models.Payment, error) {
	return s.filter(func(p *models.Payment) bool { return p.InvoiceID == invoiceID }), nil
}

func (s *InMemory) FindByInvoiceIDAndStatus(_ context.Context, invoiceID domain.InvoiceID, status models.PaymentStatus) ([]*models.Payment, error) {
	return s.filter(func(p *models.Payment) bool {
		return p.InvoiceID == invoiceID && p.Status == status
	}), nil
}

func (s *InMemory) ExistsByInvoiceIDAndStatus(_ context.Context, invoiceID domain.InvoiceID, status models.PaymentStatus) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.payments {
		if p.InvoiceID == invoiceID && p.Status == status {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemory) filter(keep func(*models.Payment) bool) []*models.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Payment{}
	for _, p := range s.payments {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Snapshot captures the store contents and returns a func restoring them.
func (s *InMemory) Snapshot() func() {
	s.mu.RLock()
	payments := maps.Clone(s.payments)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.payments = payments
		s.mu.Unlock()
	}
}
