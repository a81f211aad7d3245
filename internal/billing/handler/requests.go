package handler

import (
	"strings"

	"billing/internal/billing/models"
	"billing/pkg/domain"
	dErrors "billing/pkg/domain-errors"
)

const (
	maxLineItems    = 200
	maxReasonLength = 500
)

// CreateCustomerRequest is the body of POST /customers.
type CreateCustomerRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	BillingAddress string `json:"billing_address"`
	TaxID          string `json:"tax_id"`
}

func (r *CreateCustomerRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	return nil
}

type LineItemRequest struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

// CreateInvoiceRequest is the body of POST /invoices.
type CreateInvoiceRequest struct {
	CustomerID string            `json:"customer_id"`
	LineItems  []LineItemRequest `json:"line_items"`

	// Parsed values (populated by Validate)
	parsedCustomerID domain.CustomerID
	parsedItems      []models.LineItem
}

func (r *CreateInvoiceRequest) Validate() error {
	if len(r.LineItems) > maxLineItems {
		return dErrors.New(dErrors.CodeValidation, "too many line items")
	}
	customerID, err := domain.ParseCustomerID(strings.TrimSpace(r.CustomerID))
	if err != nil {
		return err
	}
	r.parsedCustomerID = customerID

	r.parsedItems = make([]models.LineItem, 0, len(r.LineItems))
	for i, item := range r.LineItems {
		price, err := domain.ParseMoney(item.UnitPrice)
		if err != nil {
			if de, ok := dErrors.As(err); ok {
				return de.With("line_item", i)
			}
			return err
		}
		r.parsedItems = append(r.parsedItems, models.LineItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   price,
		})
	}
	return nil
}

// SendInvoiceRequest is the optional body of POST /invoices/{id}/send.
type SendInvoiceRequest struct {
	SentDate string `json:"sent_date"`

	parsedSentDate domain.Date
}

func (r *SendInvoiceRequest) Validate() error {
	r.SentDate = strings.TrimSpace(r.SentDate)
	if r.SentDate == "" {
		return nil
	}
	d, err := domain.ParseDate(r.SentDate)
	if err != nil {
		return err
	}
	r.parsedSentDate = d
	return nil
}

// ReasonRequest is the body of the cancel and void endpoints. Blank reasons
// are left for the domain to reject.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

func (r *ReasonRequest) Validate() error {
	if len(r.Reason) > maxReasonLength {
		return dErrors.New(dErrors.CodeValidation, "reason is too long")
	}
	return nil
}

// ApplyPaymentRequest is the body of POST /invoices/{id}/payments.
type ApplyPaymentRequest struct {
	Amount      string `json:"amount"`
	PaymentDate string `json:"payment_date"`
	Method      string `json:"method"`
	Reference   string `json:"reference"`

	parsedAmount domain.Money
	parsedDate   domain.Date
	parsedMethod models.PaymentMethod
}

func (r *ApplyPaymentRequest) Validate() error {
	if strings.TrimSpace(r.Amount) == "" {
		return dErrors.New(dErrors.CodeValidation, "amount is required").WithReason(models.ReasonInvalidAmount)
	}
	amount, err := domain.ParseMoney(r.Amount)
	if err != nil {
		return err
	}
	r.parsedAmount = amount

	if strings.TrimSpace(r.PaymentDate) != "" {
		d, err := domain.ParseDate(r.PaymentDate)
		if err != nil {
			return err
		}
		r.parsedDate = d
	}

	method, err := models.ParsePaymentMethod(r.Method)
	if err != nil {
		return err
	}
	r.parsedMethod = method
	return nil
}
