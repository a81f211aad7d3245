package customer

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"billing/internal/billing/models"
	"billing/pkg/domain"
	"billing/pkg/platform/sentinel"
)

// InMemory stores customers in a map for tests and single-process runs.
// Emails are unique case-insensitively.
type InMemory struct {
	mu        sync.RWMutex
	customers map[domain.CustomerID]*models.Customer
	emails    map[string]domain.CustomerID
}

func NewInMemory() *InMemory {
	return &InMemory{
		customers: make(map[domain.CustomerID]*models.Customer),
		emails:    make(map[string]domain.CustomerID),
	}
}

func (s *InMemory) Save(_ context.Context, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(c.Email)
	if owner, taken := s.emails[email]; taken && owner != c.ID {
		return fmt.Errorf("customer email: %w", sentinel.ErrAlreadyUsed)
	}
	if existing, ok := s.customers[c.ID]; ok {
		delete(s.emails, strings.ToLower(existing.Email))
	}
	s.emails[email] = c.ID
	s.customers[c.ID] = c.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, customerID domain.CustomerID) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.customers[customerID]; ok {
		return c.Clone(), nil
	}
	return nil, fmt.Errorf("customer %s: %w", customerID, sentinel.ErrNotFound)
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.emails[strings.ToLower(strings.TrimSpace(email))]; ok {
		return s.customers[id].Clone(), nil
	}
	return nil, fmt.Errorf("customer email: %w", sentinel.ErrNotFound)
}

func (s *InMemory) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.emails[strings.ToLower(strings.TrimSpace(email))]
	return ok, nil
}

// Snapshot captures the store contents and returns a func restoring them.
func (s *InMemory) Snapshot() func() {
	s.mu.RLock()
	customers := maps.Clone(s.customers)
	emails := maps.Clone(s.emails)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.customers = customers
		s.emails = emails
		s.mu.Unlock()
	}
}
