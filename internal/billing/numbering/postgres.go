package numbering

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"billing/internal/billing/models"
	txcontext "billing/pkg/platform/tx"
)

// PostgresAllocator increments a row per year in invoice_number_counters.
// The UPDATE takes a row lock held until the surrounding transaction ends,
// which serializes allocation for the year and makes it gapless: a rolled
// back send releases its number.
type PostgresAllocator struct {
	db     *sql.DB
	source NumberSource
}

func NewPostgres(db *sql.DB, source NumberSource) *PostgresAllocator {
	return &PostgresAllocator{db: db, source: source}
}

const (
	incrementCounterQuery = `
		UPDATE invoice_number_counters
		SET last_value = last_value + 1, updated_at = NOW()
		WHERE year = $1
		RETURNING last_value
	`
	seedCounterQuery = `
		INSERT INTO invoice_number_counters (year, last_value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (year) DO NOTHING
	`
)

func (a *PostgresAllocator) Next(ctx context.Context, year int) (models.InvoiceNumber, error) {
	seq, err := a.increment(ctx, year)
	if errors.Is(err, sql.ErrNoRows) {
		highest, seedErr := seed(ctx, a.source, year)
		if seedErr != nil {
			return "", fmt.Errorf("seed invoice counter for %d: %w", year, seedErr)
		}
		if _, seedErr = txcontext.Executor(ctx, a.db).ExecContext(ctx, seedCounterQuery, year, highest); seedErr != nil {
			return "", fmt.Errorf("insert invoice counter for %d: %w", year, seedErr)
		}
		seq, err = a.increment(ctx, year)
	}
	if err != nil {
		return "", fmt.Errorf("increment invoice counter for %d: %w", year, err)
	}
	return models.FormatInvoiceNumber(year, seq), nil
}

func (a *PostgresAllocator) increment(ctx context.Context, year int) (int64, error) {
	var seq int64
	err := txcontext.Executor(ctx, a.db).QueryRowContext(ctx, incrementCounterQuery, year).Scan(&seq)
	return seq, err
}
