package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"billing/internal/billing/models"
	"billing/internal/platform/postgres"
	"billing/pkg/domain"
	"billing/pkg/platform/sentinel"
	txcontext "billing/pkg/platform/tx"
)

// PostgresStore persists payments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const (
	paymentColumns = `
		id, invoice_id, amount, payment_date, method, reference, status,
		void_reason, voided_by, voided_at, created_by, created_at, updated_at
	`
	upsertPaymentQuery = `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			void_reason = EXCLUDED.void_reason,
			voided_by = EXCLUDED.voided_by,
			voided_at = EXCLUDED.voided_at,
			updated_at = EXCLUDED.updated_at
	`
)

func (s *PostgresStore) Save(ctx context.Context, p *models.Payment) error {
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, upsertPaymentQuery,
		uuid.UUID(p.ID),
		uuid.UUID(p.InvoiceID),
		p.Amount,
		p.PaymentDate,
		string(p.Method),
		p.Reference,
		string(p.Status),
		p.VoidReason,
		p.VoidedBy,
		p.VoidedAt,
		p.CreatedBy,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("invoice %s: %w", p.InvoiceID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("upsert payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, paymentID domain.PaymentID) (*models.Payment, error) {
	return s.find(ctx, paymentID, "")
}

// FindByIDForUpdate locks the payment row until the surrounding transaction ends.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, paymentID domain.PaymentID) (*models.Payment, error) {
	if !txcontext.InTx(ctx) {
		return s.find(ctx, paymentID, "")
	}
	return s.find(ctx, paymentID, " FOR UPDATE")
}

func (s *PostgresStore) find(ctx context.Context, paymentID domain.PaymentID, lock string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1` + lock
	p, err := scanPayment(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(paymentID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment %s: %w", paymentID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByInvoiceID(ctx context.Context, invoiceID domain.InvoiceID) ([]*models.Payment, error) {
	return s.list(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE invoice_id = $1 ORDER BY created_at, id`,
		uuid.UUID(invoiceID))
}

func (s *PostgresStore) FindByInvoiceIDAndStatus(ctx context.Context, invoiceID domain.InvoiceID, status models.PaymentStatus) ([]*models.Payment, error) {
	return s.list(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE invoice_id = $1 AND status = $2 ORDER BY created_at, id`,
		uuid.UUID(invoiceID), string(status))
}

func (s *PostgresStore) ExistsByInvoiceIDAndStatus(ctx context.Context, invoiceID domain.InvoiceID, status models.PaymentStatus) (bool, error) {
	var exists bool
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE invoice_id = $1 AND status = $2)`,
		uuid.UUID(invoiceID), string(status)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check payments: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Payment, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	payments := []*models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		p         models.Payment
		id        uuid.UUID
		invoiceID uuid.UUID
		method    string
		status    string
	)
	err := row.Scan(
		&id,
		&invoiceID,
		&p.Amount,
		&p.PaymentDate,
		&method,
		&p.Reference,
		&status,
		&p.VoidReason,
		&p.VoidedBy,
		&p.VoidedAt,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ID = domain.PaymentID(id)
	p.InvoiceID = domain.InvoiceID(invoiceID)
	p.Method = models.PaymentMethod(method)
	p.Status = models.PaymentStatus(status)
	return &p, nil
}
