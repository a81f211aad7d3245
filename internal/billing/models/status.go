package models

import (
	"strings"

	dErrors "billing/pkg/domain-errors"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusSent      InvoiceStatus = "SENT"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// invoiceTransitions lists the allowed target states for each state.
var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft: {InvoiceStatusSent, InvoiceStatusCancelled},
	InvoiceStatusSent:  {InvoiceStatusPaid, InvoiceStatusCancelled},
}

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows s -> target.
func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) bool {
	for _, allowed := range invoiceTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (s InvoiceStatus) String() string {
	return string(s)
}

// ParseInvoiceStatus accepts the status name in any case.
func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	status := InvoiceStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid invoice status").With("status", s)
	}
	return status, nil
}

// PaymentStatus is the lifecycle state of a payment. VOIDED is terminal.
type PaymentStatus string

const (
	PaymentStatusApplied PaymentStatus = "APPLIED"
	PaymentStatusVoided  PaymentStatus = "VOIDED"
)

func (s PaymentStatus) IsValid() bool {
	return s == PaymentStatusApplied || s == PaymentStatusVoided
}

func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	return s == PaymentStatusApplied && target == PaymentStatusVoided
}

func (s PaymentStatus) String() string {
	return string(s)
}

// ParsePaymentStatus accepts the status name in any case.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	status := PaymentStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid payment status").With("status", s)
	}
	return status, nil
}

// PaymentMethod is how a payment was made.
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCheck        PaymentMethod = "CHECK"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodCard, PaymentMethodCash, PaymentMethodCheck, PaymentMethodOther:
		return true
	}
	return false
}

// ParsePaymentMethod accepts the method name in any case. Blank maps to OTHER.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PaymentMethodOther, nil
	}
	method := PaymentMethod(strings.ToUpper(s))
	if !method.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unsupported payment method").With("method", s)
	}
	return method, nil
}

// CustomerStatus is ACTIVE or INACTIVE.
type CustomerStatus string

const (
	CustomerStatusActive   CustomerStatus = "ACTIVE"
	CustomerStatusInactive CustomerStatus = "INACTIVE"
)

func (s CustomerStatus) IsValid() bool {
	return s == CustomerStatusActive || s == CustomerStatusInactive
}

// CanTransitionTo allows ACTIVE <-> INACTIVE only.
func (s CustomerStatus) CanTransitionTo(target CustomerStatus) bool {
	return s.IsValid() && target.IsValid() && s != target
}
