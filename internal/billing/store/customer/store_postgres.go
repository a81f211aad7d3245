package customer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"billing/internal/billing/models"
	"billing/internal/platform/postgres"
	"billing/pkg/domain"
	"billing/pkg/platform/sentinel"
	txcontext "billing/pkg/platform/tx"
)

// PostgresStore persists customers in PostgreSQL. Email uniqueness is
// enforced by a unique index on LOWER(email).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const (
	customerColumns = `id, name, email, phone, billing_address, tax_id, status, created_at, updated_at`
	upsertCustomer  = `
		INSERT INTO customers (` + customerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			billing_address = EXCLUDED.billing_address,
			tax_id = EXCLUDED.tax_id,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
)

func (s *PostgresStore) Save(ctx context.Context, c *models.Customer) error {
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, upsertCustomer,
		uuid.UUID(c.ID),
		c.Name,
		c.Email,
		c.Phone,
		c.BillingAddress,
		c.TaxID,
		string(c.Status),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("customer email: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, customerID domain.CustomerID) (*models.Customer, error) {
	return s.findOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, uuid.UUID(customerID))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	return s.findOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE LOWER(email) = $1`,
		strings.ToLower(strings.TrimSpace(email)))
}

func (s *PostgresStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM customers WHERE LOWER(email) = $1)`,
		strings.ToLower(strings.TrimSpace(email))).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check customer email: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.Customer, error) {
	var (
		c      models.Customer
		id     uuid.UUID
		status string
	)
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, arg).Scan(
		&id,
		&c.Name,
		&c.Email,
		&c.Phone,
		&c.BillingAddress,
		&c.TaxID,
		&status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("customer: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find customer: %w", err)
	}
	c.ID = domain.CustomerID(id)
	c.Status = models.CustomerStatus(status)
	return &c, nil
}
