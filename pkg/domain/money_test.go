package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "billing/pkg/domain-errors"
)

func TestParseMoney(t *testing.T) {
	t.Run("normalizes to two decimals", func(t *testing.T) {
		m, err := ParseMoney("5")
		require.NoError(t, err)
		assert.Equal(t, "5.00", m.String())
	})

	t.Run("rejects more than two decimals", func(t *testing.T) {
		_, err := ParseMoney("1.005")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		_, err := ParseMoney("ten")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects blank input", func(t *testing.T) {
		_, err := ParseMoney("  ")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestMoneyArithmetic(t *testing.T) {
	total := MustParseMoney("10.00").MulInt(2).Add(MustParseMoney("5.00"))
	assert.Equal(t, "25.00", total.String())

	remaining := total.Sub(MoneyFromCents(2500))
	assert.True(t, remaining.IsZero())
	assert.False(t, remaining.IsNegative())

	assert.True(t, Zero.Sub(MoneyFromCents(1)).IsNegative())
	assert.True(t, total.GreaterThan(MoneyFromCents(2499)))
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Amount: MustParseMoney("12.5")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"12.50"}`, string(b))

	var decoded struct {
		Amount Money `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount":7.25}`), &decoded))
	assert.Equal(t, "7.25", decoded.Amount.String())
}

func TestDate(t *testing.T) {
	d := DateOf(time.Date(2025, time.March, 4, 17, 30, 0, 0, time.UTC))
	assert.Equal(t, "2025-03-04", d.String())
	assert.Equal(t, 2025, d.Year())

	parsed, err := ParseDate("2025-03-04")
	require.NoError(t, err)
	assert.Equal(t, d, parsed)

	_, err = ParseDate("03/04/2025")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	var scanned Date
	require.NoError(t, scanned.Scan(time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, d, scanned)
}
