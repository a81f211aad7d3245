package models

import (
	"fmt"
	"strconv"
	"strings"
)

// InvoiceNumber is the human-readable identifier assigned when an invoice is
// sent, formatted INV-<year>-<sequence> with the sequence zero-padded to four
// digits. Sequences past 9999 keep growing.
type InvoiceNumber string

const invoiceNumberPrefix = "INV-"

// YearPrefix returns the number prefix shared by all invoices of year.
func YearPrefix(year int) string {
	return fmt.Sprintf("%s%d-", invoiceNumberPrefix, year)
}

// FormatInvoiceNumber renders the number for a year and sequence.
func FormatInvoiceNumber(year int, seq int64) InvoiceNumber {
	return InvoiceNumber(fmt.Sprintf("%s%04d", YearPrefix(year), seq))
}

// SequenceOf extracts the numeric suffix of number within year. A number
// from another year, or with a non-numeric suffix, counts as 0.
func SequenceOf(number string, year int) int64 {
	prefix := YearPrefix(year)
	if !strings.HasPrefix(number, prefix) {
		return 0
	}
	seq, err := strconv.ParseInt(number[len(prefix):], 10, 64)
	if err != nil || seq < 0 {
		return 0
	}
	return seq
}

func (n InvoiceNumber) String() string {
	return string(n)
}

func (n InvoiceNumber) IsZero() bool {
	return n == ""
}
