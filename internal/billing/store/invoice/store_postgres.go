package invoice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"billing/internal/billing/models"
	"billing/internal/platform/postgres"
	"billing/pkg/domain"
	"billing/pkg/platform/sentinel"
	txcontext "billing/pkg/platform/tx"
)

// PostgresStore persists invoices and their line items in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const (
	invoiceColumns = `
		id, customer_id, number, status, sent_date, sent_by, amount_paid, paid_at,
		cancellation_reason, cancelled_by, cancelled_at, created_by, created_at, updated_by, updated_at
	`
	upsertInvoiceQuery = `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			number = EXCLUDED.number,
			status = EXCLUDED.status,
			sent_date = EXCLUDED.sent_date,
			sent_by = EXCLUDED.sent_by,
			amount_paid = EXCLUDED.amount_paid,
			paid_at = EXCLUDED.paid_at,
			cancellation_reason = EXCLUDED.cancellation_reason,
			cancelled_by = EXCLUDED.cancelled_by,
			cancelled_at = EXCLUDED.cancelled_at,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
	`
	deleteLineItemsQuery = `DELETE FROM invoice_line_items WHERE invoice_id = $1`
	insertLineItemsQuery = `
		INSERT INTO invoice_line_items (invoice_id, position, description, quantity, unit_price)
		SELECT $1, item.position, item.description, item.quantity, item.unit_price
		FROM unnest($2::int[], $3::text[], $4::bigint[], $5::numeric[])
			AS item(position, description, quantity, unit_price)
	`
	selectLineItemsQuery = `
		SELECT description, quantity, unit_price
		FROM invoice_line_items
		WHERE invoice_id = $1
		ORDER BY position
	`
)

// Save upserts the invoice row and rewrites its line items. Outside a
// caller-supplied transaction it opens its own so both writes land together.
func (s *PostgresStore) Save(ctx context.Context, inv *models.Invoice) error {
	if txcontext.InTx(ctx) {
		return s.save(ctx, inv)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save invoice: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := s.save(txcontext.WithTx(ctx, tx), inv); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save invoice: %w", err)
	}
	return nil
}

func (s *PostgresStore) save(ctx context.Context, inv *models.Invoice) error {
	q := txcontext.Executor(ctx, s.db)

	_, err := q.ExecContext(ctx, upsertInvoiceQuery,
		uuid.UUID(inv.ID),
		uuid.UUID(inv.CustomerID),
		nullString(string(inv.Number)),
		string(inv.Status),
		nullDate(inv.SentDate),
		inv.SentBy,
		inv.AmountPaid,
		inv.PaidAt,
		inv.CancellationReason,
		inv.CancelledBy,
		inv.CancelledAt,
		inv.CreatedBy,
		inv.CreatedAt,
		inv.UpdatedBy,
		inv.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("invoice number %s: %w", inv.Number, sentinel.ErrAlreadyUsed)
		}
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("customer %s: %w", inv.CustomerID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("upsert invoice: %w", err)
	}

	if _, err := q.ExecContext(ctx, deleteLineItemsQuery, uuid.UUID(inv.ID)); err != nil {
		return fmt.Errorf("delete line items: %w", err)
	}
	if len(inv.LineItems) == 0 {
		return nil
	}

	positions := make([]int64, len(inv.LineItems))
	descriptions := make([]string, len(inv.LineItems))
	quantities := make([]int64, len(inv.LineItems))
	prices := make([]string, len(inv.LineItems))
	for i, li := range inv.LineItems {
		positions[i] = int64(i)
		descriptions[i] = li.Description
		quantities[i] = li.Quantity
		prices[i] = li.UnitPrice.String()
	}
	_, err = q.ExecContext(ctx, insertLineItemsQuery,
		uuid.UUID(inv.ID),
		pq.Array(positions),
		pq.Array(descriptions),
		pq.Array(quantities),
		pq.Array(prices),
	)
	if err != nil {
		return fmt.Errorf("insert line items: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, invoiceID domain.InvoiceID) (*models.Invoice, error) {
	return s.find(ctx, invoiceID, "")
}

// FindByIDForUpdate locks the invoice row until the surrounding transaction
// ends. Without a transaction it behaves like FindByID.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, invoiceID domain.InvoiceID) (*models.Invoice, error) {
	if !txcontext.InTx(ctx) {
		return s.find(ctx, invoiceID, "")
	}
	return s.find(ctx, invoiceID, " FOR UPDATE")
}

func (s *PostgresStore) find(ctx context.Context, invoiceID domain.InvoiceID, lock string) (*models.Invoice, error) {
	q := txcontext.Executor(ctx, s.db)
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1` + lock

	inv, err := scanInvoice(q.QueryRowContext(ctx, query, uuid.UUID(invoiceID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("invoice %s: %w", invoiceID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find invoice: %w", err)
	}

	items, err := s.lineItems(ctx, q, invoiceID)
	if err != nil {
		return nil, err
	}
	inv.LineItems = items
	return inv, nil
}

func (s *PostgresStore) lineItems(ctx context.Context, q txcontext.Querier, invoiceID domain.InvoiceID) ([]models.LineItem, error) {
	rows, err := q.QueryContext(ctx, selectLineItemsQuery, uuid.UUID(invoiceID))
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer rows.Close()

	items := []models.LineItem{}
	for rows.Next() {
		var li models.LineItem
		if err := rows.Scan(&li.Description, &li.Quantity, &li.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		items = append(items, li)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate line items: %w", err)
	}
	return items, nil
}

// ListNumbersByPrefix returns the assigned numbers starting with prefix.
func (s *PostgresStore) ListNumbersByPrefix(ctx context.Context, prefix string) ([]string, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT number FROM invoices WHERE starts_with(number, $1) ORDER BY number`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list invoice numbers: %w", err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan invoice number: %w", err)
		}
		numbers = append(numbers, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoice numbers: %w", err)
	}
	return numbers, nil
}

// ListByCustomer returns a customer's invoices, oldest first.
func (s *PostgresStore) ListByCustomer(ctx context.Context, customerID domain.CustomerID) ([]*models.Invoice, error) {
	q := txcontext.Executor(ctx, s.db)
	rows, err := q.QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE customer_id = $1 ORDER BY created_at, id`,
		uuid.UUID(customerID))
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	var invoices []*models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}

	for _, inv := range invoices {
		items, err := s.lineItems(ctx, q, inv.ID)
		if err != nil {
			return nil, err
		}
		inv.LineItems = items
	}
	return invoices, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var (
		inv        models.Invoice
		id         uuid.UUID
		customerID uuid.UUID
		number     sql.NullString
		status     string
		sentDate   sql.NullTime
	)
	err := row.Scan(
		&id,
		&customerID,
		&number,
		&status,
		&sentDate,
		&inv.SentBy,
		&inv.AmountPaid,
		&inv.PaidAt,
		&inv.CancellationReason,
		&inv.CancelledBy,
		&inv.CancelledAt,
		&inv.CreatedBy,
		&inv.CreatedAt,
		&inv.UpdatedBy,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.ID = domain.InvoiceID(id)
	inv.CustomerID = domain.CustomerID(customerID)
	inv.Number = models.InvoiceNumber(number.String)
	inv.Status = models.InvoiceStatus(status)
	if sentDate.Valid {
		inv.SentDate = domain.DateOf(sentDate.Time)
	}
	return &inv, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDate(d domain.Date) sql.NullTime {
	return sql.NullTime{Time: d.Time(), Valid: !d.IsZero()}
}
