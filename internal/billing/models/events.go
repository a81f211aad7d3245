package models

import (
	"billing/pkg/domain"
)

// EventType names a committed billing transition.
type EventType string

const (
	EventInvoiceCreated   EventType = "invoice.created"
	EventInvoiceSent      EventType = "invoice.sent"
	EventInvoiceCancelled EventType = "invoice.cancelled"
	EventPaymentApplied   EventType = "payment.applied"
	EventPaymentVoided    EventType = "payment.voided"
	EventCustomerCreated  EventType = "customer.created"
)

const (
	AggregateInvoice  = "invoice"
	AggregatePayment  = "payment"
	AggregateCustomer = "customer"
)

// Event is a billing fact written to the outbox in the same unit of work as
// the state change it describes.
type Event interface {
	EventType() EventType
	AggregateType() string
	AggregateID() string
}

type InvoiceCreated struct {
	InvoiceID  domain.InvoiceID  `json:"invoice_id"`
	CustomerID domain.CustomerID `json:"customer_id"`
	Total      domain.Money      `json:"total"`
	LineItems  int               `json:"line_items"`
	CreatedBy  string            `json:"created_by"`
}

func (e InvoiceCreated) EventType() EventType  { return EventInvoiceCreated }
func (e InvoiceCreated) AggregateType() string { return AggregateInvoice }
func (e InvoiceCreated) AggregateID() string   { return e.InvoiceID.String() }

type InvoiceSent struct {
	InvoiceID domain.InvoiceID `json:"invoice_id"`
	Number    InvoiceNumber    `json:"number"`
	SentDate  domain.Date      `json:"sent_date"`
	SentBy    string           `json:"sent_by"`
	Total     domain.Money     `json:"total"`
}

func (e InvoiceSent) EventType() EventType  { return EventInvoiceSent }
func (e InvoiceSent) AggregateType() string { return AggregateInvoice }
func (e InvoiceSent) AggregateID() string   { return e.InvoiceID.String() }

type InvoiceCancelled struct {
	InvoiceID   domain.InvoiceID `json:"invoice_id"`
	Reason      string           `json:"reason"`
	CancelledBy string           `json:"cancelled_by"`
}

func (e InvoiceCancelled) EventType() EventType  { return EventInvoiceCancelled }
func (e InvoiceCancelled) AggregateType() string { return AggregateInvoice }
func (e InvoiceCancelled) AggregateID() string   { return e.InvoiceID.String() }

type PaymentApplied struct {
	PaymentID     domain.PaymentID `json:"payment_id"`
	InvoiceID     domain.InvoiceID `json:"invoice_id"`
	Amount        domain.Money     `json:"amount"`
	AmountPaid    domain.Money     `json:"amount_paid"`
	InvoiceStatus InvoiceStatus    `json:"invoice_status"`
	AppliedBy     string           `json:"applied_by"`
}

func (e PaymentApplied) EventType() EventType  { return EventPaymentApplied }
func (e PaymentApplied) AggregateType() string { return AggregatePayment }
func (e PaymentApplied) AggregateID() string   { return e.PaymentID.String() }

type PaymentVoided struct {
	PaymentID  domain.PaymentID `json:"payment_id"`
	InvoiceID  domain.InvoiceID `json:"invoice_id"`
	Amount     domain.Money     `json:"amount"`
	AmountPaid domain.Money     `json:"amount_paid"`
	Reason     string           `json:"reason"`
	VoidedBy   string           `json:"voided_by"`
}

func (e PaymentVoided) EventType() EventType  { return EventPaymentVoided }
func (e PaymentVoided) AggregateType() string { return AggregatePayment }
func (e PaymentVoided) AggregateID() string   { return e.PaymentID.String() }

type CustomerCreated struct {
	CustomerID domain.CustomerID `json:"customer_id"`
	Email      string            `json:"email"`
}

func (e CustomerCreated) EventType() EventType  { return EventCustomerCreated }
func (e CustomerCreated) AggregateType() string { return AggregateCustomer }
func (e CustomerCreated) AggregateID() string   { return e.CustomerID.String() }
