package models

import (
	"strings"
	"time"

	"billing/pkg/domain"
	dErrors "billing/pkg/domain-errors"
)

const maxReferenceLength = 128

// Payment is one application of money against an invoice. It references the
// invoice by ID only; the invoice holds no list of its payments.
//
// Invariants:
//   - Amount is strictly positive
//   - Status is APPLIED or VOIDED; VOIDED is terminal
//   - VoidReason/VoidedBy/VoidedAt are set only by Void
type Payment struct {
	ID          domain.PaymentID `json:"id"`
	InvoiceID   domain.InvoiceID `json:"invoice_id"`
	Amount      domain.Money     `json:"amount"`
	PaymentDate domain.Date      `json:"payment_date"`
	Method      PaymentMethod    `json:"method"`
	Reference   string           `json:"reference,omitempty"`
	Status      PaymentStatus    `json:"status"`
	VoidReason  string           `json:"void_reason,omitempty"`
	VoidedBy    string           `json:"voided_by,omitempty"`
	VoidedAt    *time.Time       `json:"voided_at,omitempty"`
	CreatedBy   string           `json:"created_by"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NewPayment builds an APPLIED payment.
func NewPayment(
	paymentID domain.PaymentID,
	invoiceID domain.InvoiceID,
	amount domain.Money,
	paymentDate domain.Date,
	method PaymentMethod,
	reference string,
	createdBy string,
	now time.Time,
) (*Payment, error) {
	if invoiceID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "invoice is required")
	}
	if !amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeValidation, "payment amount must be positive").
			WithReason(ReasonInvalidAmount).
			With("amount", amount.String())
	}
	if paymentDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "payment date is required")
	}
	if !method.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unsupported payment method").With("method", method)
	}
	reference = strings.TrimSpace(reference)
	if len(reference) > maxReferenceLength {
		return nil, dErrors.New(dErrors.CodeValidation, "payment reference is too long")
	}
	return &Payment{
		ID:          paymentID,
		InvoiceID:   invoiceID,
		Amount:      amount,
		PaymentDate: paymentDate,
		Method:      method,
		Reference:   reference,
		Status:      PaymentStatusApplied,
		CreatedBy:   strings.TrimSpace(createdBy),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (p *Payment) IsApplied() bool {
	return p.Status == PaymentStatusApplied
}

// CanVoid rejects anything but an APPLIED payment with Conflict.
func (p *Payment) CanVoid() error {
	if !p.Status.CanTransitionTo(PaymentStatusVoided) {
		return dErrors.New(dErrors.CodeConflict, "payment is already voided").
			WithReason(ReasonPaymentAlreadyVoided).
			With("payment_id", p.ID.String())
	}
	return nil
}

// ApplyVoid records the void. Call CanVoid first.
func (p *Payment) ApplyVoid(reason, voidedBy string, now time.Time) {
	p.Status = PaymentStatusVoided
	p.VoidReason = reason
	p.VoidedBy = voidedBy
	p.VoidedAt = &now
	p.UpdatedAt = now
}

// Void validates and applies APPLIED -> VOIDED. It never touches the invoice;
// reversing the invoice's paid amount is the caller's job.
func (p *Payment) Void(reason, voidedBy string, now time.Time) error {
	if err := p.CanVoid(); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ReasonRequired("void reason is required")
	}
	p.ApplyVoid(reason, voidedBy, now)
	return nil
}

// Clone returns a copy safe to hand out of a store.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	c := *p
	if p.VoidedAt != nil {
		t := *p.VoidedAt
		c.VoidedAt = &t
	}
	return &c
}
