package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "billing/pkg/domain-errors"
)

// Typed identifiers keep invoice, payment and customer IDs from being mixed
// up at compile time. All are UUIDs underneath.
type (
	InvoiceID  uuid.UUID
	PaymentID  uuid.UUID
	CustomerID uuid.UUID
	EventID    uuid.UUID
)

// maxIDLength bounds input before it reaches the UUID parser.
const maxIDLength = 64

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "%s is required", kind)
	}
	if len(s) > maxIDLength || !utf8.ValidString(s) || strings.TrimSpace(s) != s {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "invalid %s", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "invalid %s", kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "invalid %s", kind)
	}
	return u, nil
}

// ParseInvoiceID parses an invoice ID at a trust boundary.
func ParseInvoiceID(s string) (InvoiceID, error) {
	u, err := parseUUID("invoice id", s)
	return InvoiceID(u), err
}

// ParsePaymentID parses a payment ID at a trust boundary.
func ParsePaymentID(s string) (PaymentID, error) {
	u, err := parseUUID("payment id", s)
	return PaymentID(u), err
}

// ParseCustomerID parses a customer ID at a trust boundary.
func ParseCustomerID(s string) (CustomerID, error) {
	u, err := parseUUID("customer id", s)
	return CustomerID(u), err
}

func NewInvoiceID() InvoiceID { return InvoiceID(uuid.New()) }
func NewPaymentID() PaymentID { return PaymentID(uuid.New()) }
func NewCustomerID() CustomerID { return CustomerID(uuid.New()) }
func NewEventID() EventID { return EventID(uuid.New()) }

func (id InvoiceID) String() string { return uuid.UUID(id).String() }
func (id PaymentID) String() string { return uuid.UUID(id).String() }
func (id CustomerID) String() string { return uuid.UUID(id).String() }
func (id EventID) String() string { return uuid.UUID(id).String() }

func (id InvoiceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id CustomerID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id InvoiceID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id PaymentID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id CustomerID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
