package models

import (
	"strings"
	"time"

	"billing/pkg/domain"
	dErrors "billing/pkg/domain-errors"
)

// Invoice is the aggregate root for a bill sent to a customer.
//
// Invariants:
//   - Status moves DRAFT -> SENT -> PAID, or DRAFT/SENT -> CANCELLED
//   - Number and SentDate are set once, on the transition to SENT
//   - Line items are frozen once the invoice leaves DRAFT
//   - 0 <= AmountPaid <= Total() at all times
//   - CancellationReason/CancelledBy are set only by Cancel
//
// AmountPaid is a projection of the APPLIED payments recorded against the
// invoice. Payment application and voiding keep it in sync inside the same
// unit of work that changes the payment.
type Invoice struct {
	ID                 domain.InvoiceID  `json:"id"`
	CustomerID         domain.CustomerID `json:"customer_id"`
	Number             InvoiceNumber     `json:"number,omitempty"`
	Status             InvoiceStatus     `json:"status"`
	LineItems          []LineItem        `json:"line_items"`
	SentDate           domain.Date       `json:"sent_date"`
	SentBy             string            `json:"sent_by,omitempty"`
	AmountPaid         domain.Money      `json:"amount_paid"`
	PaidAt             *time.Time        `json:"paid_at,omitempty"`
	CancellationReason string            `json:"cancellation_reason,omitempty"`
	CancelledBy        string            `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	CreatedBy          string            `json:"created_by"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedBy          string            `json:"updated_by"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// NewInvoice builds a DRAFT invoice with no number and nothing paid. Every
// supplied line item is validated; an empty list is allowed for drafts.
func NewInvoice(invoiceID domain.InvoiceID, customerID domain.CustomerID, items []LineItem, createdBy string, now time.Time) (*Invoice, error) {
	if customerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "customer is required").WithReason(ReasonInvalidCustomer)
	}
	validated := make([]LineItem, 0, len(items))
	for i, item := range items {
		li, err := NewLineItem(item.Description, item.Quantity, item.UnitPrice)
		if err != nil {
			if de, ok := dErrors.As(err); ok {
				return nil, de.With("line_item", i)
			}
			return nil, err
		}
		validated = append(validated, li)
	}
	createdBy = strings.TrimSpace(createdBy)
	return &Invoice{
		ID:         invoiceID,
		CustomerID: customerID,
		Status:     InvoiceStatusDraft,
		LineItems:  validated,
		AmountPaid: domain.Zero,
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedBy:  createdBy,
		UpdatedAt:  now,
	}, nil
}

// Total is the sum of all line item amounts.
func (inv *Invoice) Total() domain.Money {
	total := domain.Zero
	for _, li := range inv.LineItems {
		total = total.Add(li.Amount())
	}
	return total
}

// Outstanding is what remains to be paid.
func (inv *Invoice) Outstanding() domain.Money {
	return inv.Total().Sub(inv.AmountPaid)
}

func (inv *Invoice) HasLineItems() bool {
	return len(inv.LineItems) > 0
}

func (inv *Invoice) IsDraft() bool {
	return inv.Status == InvoiceStatusDraft
}

func (inv *Invoice) IsPaid() bool {
	return inv.Status == InvoiceStatusPaid
}

func (inv *Invoice) IsCancelled() bool {
	return inv.Status == InvoiceStatusCancelled
}

// CanMarkAsSent checks the DRAFT -> SENT transition.
func (inv *Invoice) CanMarkAsSent() error {
	if !inv.Status.CanTransitionTo(InvoiceStatusSent) {
		return dErrors.New(dErrors.CodeInvalidState, "only draft invoices can be sent").
			WithReason(ReasonInvoiceNotDraft).
			With("status", inv.Status)
	}
	return nil
}

// CheckSendable rejects drafts with no line items or a zero total. A zero
// total invoice could never be paid.
func (inv *Invoice) CheckSendable() error {
	if !inv.HasLineItems() {
		return dErrors.New(dErrors.CodeValidation, "invoice must have at least one line item").
			WithReason(ReasonInvoiceHasNoLineItems)
	}
	if !inv.Total().IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "invoice total must be positive").
			WithReason(ReasonInvoiceTotalNotPositive).
			With("total", inv.Total().String())
	}
	return nil
}

// ApplyMarkAsSent assigns the number and sent date. Call CanMarkAsSent first.
func (inv *Invoice) ApplyMarkAsSent(number InvoiceNumber, sentDate domain.Date, sentBy string, now time.Time) {
	inv.Number = number
	inv.SentDate = sentDate
	inv.SentBy = sentBy
	inv.Status = InvoiceStatusSent
	inv.touch(sentBy, now)
}

// MarkAsSent validates and applies the DRAFT -> SENT transition.
func (inv *Invoice) MarkAsSent(number InvoiceNumber, sentDate domain.Date, sentBy string, now time.Time) error {
	if err := inv.CanMarkAsSent(); err != nil {
		return err
	}
	if err := inv.CheckSendable(); err != nil {
		return err
	}
	if number.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "invoice number is required").WithReason(ReasonInvoiceNumberRequired)
	}
	if sentDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "sent date is required")
	}
	inv.ApplyMarkAsSent(number, sentDate, sentBy, now)
	return nil
}

// CanCancel rejects PAID invoices with InvalidState and already cancelled
// ones with Conflict.
func (inv *Invoice) CanCancel() error {
	switch inv.Status {
	case InvoiceStatusPaid:
		return dErrors.New(dErrors.CodeInvalidState, "paid invoices cannot be cancelled").
			WithReason(ReasonCannotCancelPaidInvoice)
	case InvoiceStatusCancelled:
		return dErrors.New(dErrors.CodeConflict, "invoice is already cancelled").
			WithReason(ReasonInvoiceAlreadyCancelled)
	}
	if !inv.Status.CanTransitionTo(InvoiceStatusCancelled) {
		return dErrors.New(dErrors.CodeInvalidState, "invoice cannot be cancelled").With("status", inv.Status)
	}
	return nil
}

// ApplyCancellation records the cancellation. Call CanCancel first.
func (inv *Invoice) ApplyCancellation(reason, cancelledBy string, now time.Time) {
	inv.Status = InvoiceStatusCancelled
	inv.CancellationReason = reason
	inv.CancelledBy = cancelledBy
	inv.CancelledAt = &now
	inv.touch(cancelledBy, now)
}

// Cancel validates and applies cancellation. The reason is mandatory.
func (inv *Invoice) Cancel(reason, cancelledBy string, now time.Time) error {
	if err := inv.CanCancel(); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ReasonRequired("cancellation reason is required")
	}
	inv.ApplyCancellation(reason, cancelledBy, now)
	return nil
}

// CanApplyPayment checks that amount can be recorded against the invoice
// without exceeding the total.
func (inv *Invoice) CanApplyPayment(amount domain.Money) error {
	if inv.Status != InvoiceStatusSent {
		return dErrors.New(dErrors.CodeInvalidState, "payments can only be applied to sent invoices").
			WithReason(ReasonInvoiceNotSent).
			With("status", inv.Status)
	}
	if !amount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "payment amount must be positive").
			WithReason(ReasonInvalidAmount).
			With("amount", amount.String())
	}
	if inv.AmountPaid.Add(amount).GreaterThan(inv.Total()) {
		return dErrors.New(dErrors.CodeValidation, "payment exceeds outstanding amount").
			WithReason(ReasonOverpayment).
			With("amount", amount.String()).
			With("outstanding", inv.Outstanding().String())
	}
	return nil
}

// ApplyPayment records amount as paid. Reaching the total moves the invoice
// to PAID.
func (inv *Invoice) ApplyPayment(amount domain.Money, actor string, now time.Time) error {
	if err := inv.CanApplyPayment(amount); err != nil {
		return err
	}
	inv.AmountPaid = inv.AmountPaid.Add(amount)
	if inv.AmountPaid.Equal(inv.Total()) {
		inv.Status = InvoiceStatusPaid
		inv.PaidAt = &now
	}
	inv.touch(actor, now)
	return nil
}

// ReversePayment takes amount back off AmountPaid after a payment is voided.
// Status is left unchanged.
func (inv *Invoice) ReversePayment(amount domain.Money, actor string, now time.Time) error {
	if !amount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "reversal amount must be positive").
			WithReason(ReasonInvalidAmount).
			With("amount", amount.String())
	}
	remaining := inv.AmountPaid.Sub(amount)
	if remaining.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "reversal exceeds amount paid").
			WithReason(ReasonInvalidAmount).
			With("amount", amount.String()).
			With("amount_paid", inv.AmountPaid.String())
	}
	inv.AmountPaid = remaining
	inv.touch(actor, now)
	return nil
}

func (inv *Invoice) touch(actor string, now time.Time) {
	if actor != "" {
		inv.UpdatedBy = actor
	}
	inv.UpdatedAt = now
}

// Clone returns a deep copy safe to hand out of a store.
func (inv *Invoice) Clone() *Invoice {
	if inv == nil {
		return nil
	}
	c := *inv
	c.LineItems = append([]LineItem(nil), inv.LineItems...)
	if inv.PaidAt != nil {
		t := *inv.PaidAt
		c.PaidAt = &t
	}
	if inv.CancelledAt != nil {
		t := *inv.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}

// ReasonRequired is the Validation error for a blank free-text reason.
func ReasonRequired(msg string) *dErrors.Error {
	return dErrors.New(dErrors.CodeValidation, msg).WithReason(ReasonReasonRequired)
}
