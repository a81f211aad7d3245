// Package numbering allocates year-scoped invoice numbers.
//
// Numbers for year Y look like INV-Y-0001. The next number is one past the
// highest numeric suffix already used for Y; non-numeric suffixes count as 0.
// Every allocator serializes on a per-year counter that is seeded from a scan
// of existing numbers the first time a year is seen, so two concurrent sends
// can never draw the same number.
package numbering

import (
	"context"

	"billing/internal/billing/models"
)

// Allocator hands out the next invoice number for a year.
type Allocator interface {
	Next(ctx context.Context, year int) (models.InvoiceNumber, error)
}

// NumberSource lists the invoice numbers already issued under a prefix.
type NumberSource interface {
	ListNumbersByPrefix(ctx context.Context, prefix string) ([]string, error)
}

// NextAfter computes the number following the highest existing one for year.
// Numbers belonging to other years are ignored.
func NextAfter(existing []string, year int) models.InvoiceNumber {
	return models.FormatInvoiceNumber(year, MaxSequence(existing, year)+1)
}

// MaxSequence returns the highest numeric suffix among existing for year.
func MaxSequence(existing []string, year int) int64 {
	var highest int64
	for _, n := range existing {
		if seq := models.SequenceOf(n, year); seq > highest {
			highest = seq
		}
	}
	return highest
}

func seed(ctx context.Context, source NumberSource, year int) (int64, error) {
	if source == nil {
		return 0, nil
	}
	existing, err := source.ListNumbersByPrefix(ctx, models.YearPrefix(year))
	if err != nil {
		return 0, err
	}
	return MaxSequence(existing, year), nil
}
