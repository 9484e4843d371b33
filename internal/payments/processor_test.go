package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProcessor(t *testing.T) {
	processor := NewMockProcessor()

	declines := 0
	for i := 0; i < 200; i++ {
		receipt, err := processor.Charge(context.Background(), ChargeRequest{Amount: 44.99})
		if err != nil {
			require.True(t, errors.Is(err, ErrCardDeclined))
			declines++
			continue
		}
		assert.NotEmpty(t, receipt.TransactionID)
		assert.Equal(t, 44.99, receipt.Amount)
		assert.Equal(t, "USD", receipt.Currency)
		assert.Equal(t, "succeeded", receipt.Status)
		assert.False(t, receipt.ProcessedAt.IsZero())
	}

	// About one in ten charges is declined; over 200 attempts at least
	// one of each outcome is effectively certain.
	assert.Greater(t, declines, 0)
	assert.Less(t, declines, 200)
}

func TestMockProcessor_CurrencyPassthrough(t *testing.T) {
	processor := NewMockProcessor()

	for i := 0; i < 50; i++ {
		receipt, err := processor.Charge(context.Background(), ChargeRequest{Amount: 10, Currency: "EUR"})
		if err != nil {
			continue
		}
		assert.Equal(t, "EUR", receipt.Currency)
		return
	}
	t.Fatal("no charge succeeded in 50 attempts")
}
