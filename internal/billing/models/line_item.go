package models

import (
	"strings"

	"billing/pkg/domain"
	dErrors "billing/pkg/domain-errors"
)

const maxDescriptionLength = 512

// LineItem is one billed row of an invoice. Line items are value objects:
// they never change once the invoice leaves DRAFT.
type LineItem struct {
	Description string       `json:"description"`
	Quantity    int64        `json:"quantity"`
	UnitPrice   domain.Money `json:"unit_price"`
}

// NewLineItem validates and builds a line item.
func NewLineItem(description string, quantity int64, unitPrice domain.Money) (LineItem, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return LineItem{}, invalidLineItem("line item description is required")
	}
	if len(description) > maxDescriptionLength {
		return LineItem{}, invalidLineItem("line item description is too long")
	}
	if quantity <= 0 {
		return LineItem{}, invalidLineItem("line item quantity must be positive").With("quantity", quantity)
	}
	if unitPrice.IsNegative() {
		return LineItem{}, invalidLineItem("line item unit price cannot be negative").With("unit_price", unitPrice.String())
	}
	return LineItem{Description: description, Quantity: quantity, UnitPrice: unitPrice}, nil
}

// Amount is quantity x unit price.
func (li LineItem) Amount() domain.Money {
	return li.UnitPrice.MulInt(li.Quantity)
}

func invalidLineItem(msg string) *dErrors.Error {
	return dErrors.New(dErrors.CodeValidation, msg).WithReason(ReasonInvalidLineItem)
}
