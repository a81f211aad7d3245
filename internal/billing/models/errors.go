package models

import dErrors "billing/pkg/domain-errors"

// Reasons raised by billing models and services.
const (
	ReasonInvoiceNotFound          dErrors.Reason = "invoice_not_found"
	ReasonInvoiceNotDraft          dErrors.Reason = "invoice_not_draft"
	ReasonInvoiceNotSent           dErrors.Reason = "invoice_not_sent"
	ReasonInvoiceHasNoLineItems    dErrors.Reason = "invoice_has_no_line_items"
	ReasonInvoiceTotalNotPositive  dErrors.Reason = "invoice_total_not_positive"
	ReasonCannotCancelPaidInvoice  dErrors.Reason = "cannot_cancel_paid_invoice"
	ReasonCannotCancelWithPayments dErrors.Reason = "cannot_cancel_invoice_with_payments"
	ReasonInvoiceAlreadyCancelled  dErrors.Reason = "invoice_already_cancelled"
	ReasonInvoiceNumberTaken       dErrors.Reason = "invoice_number_taken"
	ReasonPaymentNotFound          dErrors.Reason = "payment_not_found"
	ReasonPaymentAlreadyVoided     dErrors.Reason = "payment_already_voided"
	ReasonPaymentInvoiceMissing    dErrors.Reason = "payment_invoice_missing"
	ReasonInvalidAmount            dErrors.Reason = "invalid_amount"
	ReasonOverpayment              dErrors.Reason = "overpayment"
	ReasonReasonRequired           dErrors.Reason = "reason_required"
	ReasonInvalidLineItem          dErrors.Reason = "invalid_line_item"
	ReasonCustomerNotFound         dErrors.Reason = "customer_not_found"
	ReasonCustomerInactive         dErrors.Reason = "customer_inactive"
	ReasonCustomerEmailTaken       dErrors.Reason = "customer_email_taken"
	ReasonCustomerAlreadyInState   dErrors.Reason = "customer_already_in_state"
	ReasonSerializationFailure     dErrors.Reason = "serialization_failure"
	ReasonInvalidCustomer          dErrors.Reason = "invalid_customer"
	ReasonInvoiceNumberRequired    dErrors.Reason = "invoice_number_required"
	ReasonActorRequired            dErrors.Reason = "actor_required"
)
