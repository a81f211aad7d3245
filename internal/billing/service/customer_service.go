package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"billing/internal/billing/models"
	"billing/pkg/domain"
	dErrors "billing/pkg/domain-errors"
	"billing/pkg/platform/sentinel"
	"billing/pkg/requestcontext"
)

type CreateCustomerCommand struct {
	Name           string
	Email          string
	Phone          string
	BillingAddress string
	TaxID          string
}

// CreateCustomer registers an ACTIVE customer. Emails are unique
// case-insensitively.
func (s *Service) CreateCustomer(ctx context.Context, cmd CreateCustomerCommand) (*models.Customer, error) {
	var customer *models.Customer
	err := s.run(ctx, "create_customer", func(ctx context.Context) error {
		c, err := models.NewCustomer(domain.NewCustomerID(), cmd.Name, cmd.Email, cmd.Phone, cmd.BillingAddress, cmd.TaxID, requestcontext.Now(ctx))
		if err != nil {
			// Convert invariant violations to validation errors for API response
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return dErrors.New(dErrors.CodeValidation, err.Error()).WithReason(models.ReasonInvalidCustomer)
			}
			return err
		}

		err = s.inTx(ctx, func(ctx context.Context) error {
			taken, err := s.customers.ExistsByEmail(ctx, c.Email)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check customer email")
			}
			if taken {
				return emailTaken()
			}
			if err := s.customers.Save(ctx, c); err != nil {
				if errors.Is(err, sentinel.ErrAlreadyUsed) {
					return emailTaken()
				}
				return storeErr(err, nil, "failed to save customer")
			}
			return s.emit(ctx, models.CustomerCreated{CustomerID: c.ID, Email: c.Email})
		})
		if err != nil {
			return err
		}
		customer = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, models.EventCustomerCreated, "customer_id", customer.ID)
	return customer, nil
}

func emailTaken() *dErrors.Error {
	return dErrors.New(dErrors.CodeConflict, "customer email must be unique").WithReason(models.ReasonCustomerEmailTaken)
}

func (s *Service) GetCustomer(ctx context.Context, customerID domain.CustomerID) (*models.Customer, error) {
	c, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, storeErr(err, customerNotFound, "failed to load customer")
	}
	return c, nil
}

// DeactivateCustomer blocks new invoices for the customer. Existing invoices
// are untouched.
func (s *Service) DeactivateCustomer(ctx context.Context, customerID domain.CustomerID) (*models.Customer, error) {
	return s.changeCustomerStatus(ctx, "deactivate_customer", "customer deactivated", customerID,
		func(c *models.Customer) error { return c.Deactivate(requestcontext.Now(ctx)) })
}

func (s *Service) ReactivateCustomer(ctx context.Context, customerID domain.CustomerID) (*models.Customer, error) {
	return s.changeCustomerStatus(ctx, "reactivate_customer", "customer reactivated", customerID,
		func(c *models.Customer) error { return c.Reactivate(requestcontext.Now(ctx)) })
}

func (s *Service) changeCustomerStatus(ctx context.Context, command, auditMsg string, customerID domain.CustomerID, transition func(*models.Customer) error) (*models.Customer, error) {
	var customer *models.Customer
	err := s.run(ctx, command, func(ctx context.Context) error {
		return s.inTx(ctx, func(ctx context.Context) error {
			c, err := s.customers.FindByID(ctx, customerID)
			if err != nil {
				return storeErr(err, customerNotFound, "failed to load customer")
			}
			if err := transition(c); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
					return dErrors.New(dErrors.CodeConflict, err.Error()).WithReason(models.ReasonCustomerAlreadyInState)
				}
				return err
			}
			if err := s.customers.Save(ctx, c); err != nil {
				return storeErr(err, nil, "failed to save customer")
			}
			customer = c
			return nil
		})
	}, attribute.String("customer_id", customerID.String()))
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, auditMsg,
		"log_type", "audit",
		"customer_id", customerID,
		"status", customer.Status,
		"request_id", requestcontext.RequestID(ctx),
	)
	return customer, nil
}
