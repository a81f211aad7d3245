package models

import (
	"net/mail"
	"strings"
	"time"

	"billing/pkg/domain"
	dErrors "billing/pkg/domain-errors"
)

const (
	maxCustomerNameLength = 200
	maxEmailLength        = 254
)

// Customer is who invoices are addressed to. Invoices reference customers by
// ID only, so editing a customer never rewrites existing invoices.
//
// Invariants:
//   - Name is non-empty and at most 200 characters
//   - Email is a valid address, stored lower-cased, unique across customers
//   - Status transitions: ACTIVE <-> INACTIVE only
type Customer struct {
	ID             domain.CustomerID `json:"id"`
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	Phone          string            `json:"phone,omitempty"`
	BillingAddress string            `json:"billing_address,omitempty"`
	TaxID          string            `json:"tax_id,omitempty"`
	Status         CustomerStatus    `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func NewCustomer(customerID domain.CustomerID, name, email, phone, billingAddress, taxID string, now time.Time) (*Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "customer name cannot be empty")
	}
	if len(name) > maxCustomerNameLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "customer name must be 200 characters or less")
	}
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return &Customer{
		ID:             customerID,
		Name:           name,
		Email:          normalized,
		Phone:          strings.TrimSpace(phone),
		BillingAddress: strings.TrimSpace(billingAddress),
		TaxID:          strings.TrimSpace(taxID),
		Status:         CustomerStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// NormalizeEmail validates an address and lower-cases it for uniqueness checks.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", dErrors.New(dErrors.CodeInvariantViolation, "customer email cannot be empty")
	}
	if len(email) > maxEmailLength {
		return "", dErrors.New(dErrors.CodeInvariantViolation, "customer email is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", dErrors.New(dErrors.CodeInvariantViolation, "customer email is invalid").With("email", email)
	}
	return strings.ToLower(addr.Address), nil
}

func (c *Customer) IsActive() bool {
	return c.Status == CustomerStatusActive
}

// CanDeactivate checks if the customer can transition to INACTIVE.
func (c *Customer) CanDeactivate() error {
	if !c.Status.CanTransitionTo(CustomerStatusInactive) {
		return dErrors.New(dErrors.CodeInvariantViolation, "customer is already inactive")
	}
	return nil
}

func (c *Customer) ApplyDeactivation(now time.Time) {
	c.Status = CustomerStatusInactive
	c.UpdatedAt = now
}

func (c *Customer) Deactivate(now time.Time) error {
	if err := c.CanDeactivate(); err != nil {
		return err
	}
	c.ApplyDeactivation(now)
	return nil
}

// CanReactivate checks if the customer can transition to ACTIVE.
func (c *Customer) CanReactivate() error {
	if !c.Status.CanTransitionTo(CustomerStatusActive) {
		return dErrors.New(dErrors.CodeInvariantViolation, "customer is already active")
	}
	return nil
}

func (c *Customer) ApplyReactivation(now time.Time) {
	c.Status = CustomerStatusActive
	c.UpdatedAt = now
}

func (c *Customer) Reactivate(now time.Time) error {
	if err := c.CanReactivate(); err != nil {
		return err
	}
	c.ApplyReactivation(now)
	return nil
}

func (c *Customer) Clone() *Customer {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
