// Package handler exposes the billing service over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"billing/internal/billing/models"
	"billing/internal/billing/service"
	"billing/pkg/domain"
	"billing/pkg/platform/httputil"
	"billing/pkg/requestcontext"
)

// Service defines the billing operations the handlers call.
type Service interface {
	CreateCustomer(ctx context.Context, cmd service.CreateCustomerCommand) (*models.Customer, error)
	GetCustomer(ctx context.Context, customerID domain.CustomerID) (*models.Customer, error)
	DeactivateCustomer(ctx context.Context, customerID domain.CustomerID) (*models.Customer, error)
	ReactivateCustomer(ctx context.Context, customerID domain.CustomerID) (*models.Customer, error)
	CreateInvoice(ctx context.Context, customerID domain.CustomerID, items []models.LineItem, createdBy string) (*models.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID domain.InvoiceID) (*models.Invoice, error)
	ListCustomerInvoices(ctx context.Context, customerID domain.CustomerID) ([]*models.Invoice, error)
	MarkInvoiceAsSent(ctx context.Context, invoiceID domain.InvoiceID, sentDate domain.Date, sentBy string) (*models.Invoice, error)
	CancelInvoice(ctx context.Context, invoiceID domain.InvoiceID, reason, cancelledBy string) (*models.Invoice, error)
	ApplyPayment(ctx context.Context, cmd service.ApplyPaymentCommand) (*models.Payment, *models.Invoice, error)
	VoidPayment(ctx context.Context, paymentID domain.PaymentID, reason, voidedBy string) (*models.Payment, *models.Invoice, error)
	GetPayment(ctx context.Context, paymentID domain.PaymentID) (*models.Payment, error)
	ListInvoicePayments(ctx context.Context, invoiceID domain.InvoiceID, status models.PaymentStatus) ([]*models.Payment, error)
}

// Handler wires billing endpoints to the billing service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts billing endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/customers", h.HandleCreateCustomer)
	r.Get("/customers/{id}", h.HandleGetCustomer)
	r.Post("/customers/{id}/deactivate", h.HandleDeactivateCustomer)
	r.Post("/customers/{id}/reactivate", h.HandleReactivateCustomer)
	r.Get("/customers/{id}/invoices", h.HandleListCustomerInvoices)

	r.Post("/invoices", h.HandleCreateInvoice)
	r.Get("/invoices/{id}", h.HandleGetInvoice)
	r.Post("/invoices/{id}/send", h.HandleSendInvoice)
	r.Post("/invoices/{id}/cancel", h.HandleCancelInvoice)
	r.Post("/invoices/{id}/payments", h.HandleApplyPayment)
	r.Get("/invoices/{id}/payments", h.HandleListInvoicePayments)

	r.Get("/payments/{id}", h.HandleGetPayment)
	r.Post("/payments/{id}/void", h.HandleVoidPayment)
}

func (h *Handler) HandleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateCustomerRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.service.CreateCustomer(ctx, service.CreateCustomerCommand{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		BillingAddress: req.BillingAddress,
		TaxID:          req.TaxID,
	})
	if err != nil {
		h.fail(ctx, w, "create customer failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCustomerResponse(c))
}

func (h *Handler) HandleGetCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, err := domain.ParseCustomerID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.GetCustomer(ctx, customerID)
	if err != nil {
		h.fail(ctx, w, "get customer failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCustomerResponse(c))
}

func (h *Handler) HandleDeactivateCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, err := domain.ParseCustomerID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.DeactivateCustomer(ctx, customerID)
	if err != nil {
		h.fail(ctx, w, "deactivate customer failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCustomerResponse(c))
}

func (h *Handler) HandleReactivateCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, err := domain.ParseCustomerID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.ReactivateCustomer(ctx, customerID)
	if err != nil {
		h.fail(ctx, w, "reactivate customer failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCustomerResponse(c))
}

func (h *Handler) HandleListCustomerInvoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, err := domain.ParseCustomerID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	invoices, err := h.service.ListCustomerInvoices(ctx, customerID)
	if err != nil {
		h.fail(ctx, w, "list customer invoices failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toInvoiceResponses(invoices))
}

func (h *Handler) HandleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateInvoiceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	inv, err := h.service.CreateInvoice(ctx, req.parsedCustomerID, req.parsedItems, requestcontext.Actor(ctx))
	if err != nil {
		h.fail(ctx, w, "create invoice failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

func (h *Handler) HandleGetInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	invoiceID, err := domain.ParseInvoiceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	inv, err := h.service.GetInvoice(ctx, invoiceID)
	if err != nil {
		h.fail(ctx, w, "get invoice failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

// HandleSendInvoice handles POST /invoices/{id}/send. The body is optional;
// without a sent_date the invoice is sent today.
func (h *Handler) HandleSendInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	invoiceID, err := domain.ParseInvoiceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[SendInvoiceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	inv, err := h.service.MarkInvoiceAsSent(ctx, invoiceID, req.parsedSentDate, requestcontext.Actor(ctx))
	if err != nil {
		h.fail(ctx, w, "send invoice failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) HandleCancelInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	invoiceID, err := domain.ParseInvoiceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReasonRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	inv, err := h.service.CancelInvoice(ctx, invoiceID, req.Reason, requestcontext.Actor(ctx))
	if err != nil {
		h.fail(ctx, w, "cancel invoice failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) HandleApplyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	invoiceID, err := domain.ParseInvoiceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ApplyPaymentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p, inv, err := h.service.ApplyPayment(ctx, service.ApplyPaymentCommand{
		InvoiceID:   invoiceID,
		Amount:      req.parsedAmount,
		PaymentDate: req.parsedDate,
		Method:      req.parsedMethod,
		Reference:   req.Reference,
		AppliedBy:   requestcontext.Actor(ctx),
	})
	if err != nil {
		h.fail(ctx, w, "apply payment failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, PaymentResultResponse{
		Payment: toPaymentResponse(p),
		Invoice: toInvoiceResponse(inv),
	})
}

// HandleListInvoicePayments handles GET /invoices/{id}/payments with an
// optional ?status=APPLIED|VOIDED filter.
func (h *Handler) HandleListInvoicePayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	invoiceID, err := domain.ParseInvoiceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var status models.PaymentStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err = models.ParsePaymentStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	payments, err := h.service.ListInvoicePayments(ctx, invoiceID, status)
	if err != nil {
		h.fail(ctx, w, "list invoice payments failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPaymentResponses(payments))
}

func (h *Handler) HandleGetPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paymentID, err := domain.ParsePaymentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.GetPayment(ctx, paymentID)
	if err != nil {
		h.fail(ctx, w, "get payment failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (h *Handler) HandleVoidPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	paymentID, err := domain.ParsePaymentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReasonRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p, inv, err := h.service.VoidPayment(ctx, paymentID, req.Reason, requestcontext.Actor(ctx))
	if err != nil {
		h.fail(ctx, w, "void payment failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PaymentResultResponse{
		Payment: toPaymentResponse(p),
		Invoice: toInvoiceResponse(inv),
	})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
