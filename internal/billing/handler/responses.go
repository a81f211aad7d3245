package handler

import (
	"time"

	"billing/internal/billing/models"
)

// Responses are flat projections of the aggregates. Money is rendered as a
// two-decimal string and dates as YYYY-MM-DD.

type CustomerResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	BillingAddress string    `json:"billing_address,omitempty"`
	TaxID          string    `json:"tax_id,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toCustomerResponse(c *models.Customer) CustomerResponse {
	return CustomerResponse{
		ID:             c.ID.String(),
		Name:           c.Name,
		Email:          c.Email,
		Phone:          c.Phone,
		BillingAddress: c.BillingAddress,
		TaxID:          c.TaxID,
		Status:         string(c.Status),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

type LineItemResponse struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Amount      string `json:"amount"`
}

type InvoiceResponse struct {
	ID                 string             `json:"id"`
	CustomerID         string             `json:"customer_id"`
	Number             string             `json:"number,omitempty"`
	Status             string             `json:"status"`
	LineItems          []LineItemResponse `json:"line_items"`
	Total              string             `json:"total"`
	AmountPaid         string             `json:"amount_paid"`
	Outstanding        string             `json:"outstanding"`
	SentDate           string             `json:"sent_date,omitempty"`
	SentBy             string             `json:"sent_by,omitempty"`
	PaidAt             *time.Time         `json:"paid_at,omitempty"`
	CancellationReason string             `json:"cancellation_reason,omitempty"`
	CancelledBy        string             `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
	CreatedBy          string             `json:"created_by"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedBy          string             `json:"updated_by"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func toInvoiceResponse(inv *models.Invoice) InvoiceResponse {
	items := make([]LineItemResponse, 0, len(inv.LineItems))
	for _, li := range inv.LineItems {
		items = append(items, LineItemResponse{
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice.String(),
			Amount:      li.Amount().String(),
		})
	}
	resp := InvoiceResponse{
		ID:                 inv.ID.String(),
		CustomerID:         inv.CustomerID.String(),
		Number:             inv.Number.String(),
		Status:             string(inv.Status),
		LineItems:          items,
		Total:              inv.Total().String(),
		AmountPaid:         inv.AmountPaid.String(),
		Outstanding:        inv.Outstanding().String(),
		SentBy:             inv.SentBy,
		PaidAt:             inv.PaidAt,
		CancellationReason: inv.CancellationReason,
		CancelledBy:        inv.CancelledBy,
		CancelledAt:        inv.CancelledAt,
		CreatedBy:          inv.CreatedBy,
		CreatedAt:          inv.CreatedAt,
		UpdatedBy:          inv.UpdatedBy,
		UpdatedAt:          inv.UpdatedAt,
	}
	if !inv.SentDate.IsZero() {
		resp.SentDate = inv.SentDate.String()
	}
	return resp
}

func toInvoiceResponses(invoices []*models.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv))
	}
	return out
}

type PaymentResponse struct {
	ID          string     `json:"id"`
	InvoiceID   string     `json:"invoice_id"`
	Amount      string     `json:"amount"`
	PaymentDate string     `json:"payment_date"`
	Method      string     `json:"method"`
	Reference   string     `json:"reference,omitempty"`
	Status      string     `json:"status"`
	VoidReason  string     `json:"void_reason,omitempty"`
	VoidedBy    string     `json:"voided_by,omitempty"`
	VoidedAt    *time.Time `json:"voided_at,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toPaymentResponse(p *models.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          p.ID.String(),
		InvoiceID:   p.InvoiceID.String(),
		Amount:      p.Amount.String(),
		PaymentDate: p.PaymentDate.String(),
		Method:      string(p.Method),
		Reference:   p.Reference,
		Status:      string(p.Status),
		VoidReason:  p.VoidReason,
		VoidedBy:    p.VoidedBy,
		VoidedAt:    p.VoidedAt,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toPaymentResponses(payments []*models.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	return out
}

// PaymentResultResponse pairs a payment with the invoice it changed.
type PaymentResultResponse struct {
	Payment PaymentResponse `json:"payment"`
	Invoice InvoiceResponse `json:"invoice"`
}
