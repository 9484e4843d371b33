package payments

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// ErrCardDeclined is returned when the (mock) card network declines a charge.
var ErrCardDeclined = errors.New("card declined")

// ChargeRequest describes a payment to process.
type ChargeRequest struct {
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Description  string  `json:"description"`
	EvaluationID string  `json:"evaluation_id,omitempty"`
}

// Receipt is the record of a processed charge.
type Receipt struct {
	TransactionID string    `json:"transaction_id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// Processor charges payments.
type Processor interface {
	Charge(ctx context.Context, req ChargeRequest) (*Receipt, error)
}

// MockProcessor stands in for a real payment gateway. Roughly one charge
// in ten is declined.
type MockProcessor struct {
	rng *rand.Rand
}

// NewMockProcessor creates a mock processor seeded from the clock.
func NewMockProcessor() *MockProcessor {
	return &MockProcessor{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Charge processes a mock payment.
func (p *MockProcessor) Charge(_ context.Context, req ChargeRequest) (*Receipt, error) {
	if p.rng.Intn(10) == 0 {
		return nil, ErrCardDeclined
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	return &Receipt{
		TransactionID: uuid.NewString(),
		Amount:        req.Amount,
		Currency:      currency,
		Status:        "succeeded",
		ProcessedAt:   time.Now(),
	}, nil
}
