package carfax

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Report is the vehicle-history payload attached to an evaluation's
// carfax section.
type Report struct {
	ReportID       string    `bson:"report_id" json:"report_id"`
	VIN            string    `bson:"vin" json:"vin"`
	Owners         int       `bson:"owners" json:"owners"`
	Accidents      int       `bson:"accidents" json:"accidents"`
	ServiceRecords int       `bson:"service_records" json:"service_records"`
	TitleStatus    string    `bson:"title_status" json:"title_status"`
	LastReported   time.Time `bson:"last_reported" json:"last_reported"`
}

// ReportProvider fetches a vehicle-history report for a VIN.
type ReportProvider interface {
	FetchReport(ctx context.Context, vin string) (*Report, error)
}

// MockProvider stands in for the real Carfax integration and fabricates
// report contents.
type MockProvider struct {
	rng *rand.Rand
}

// NewMockProvider creates a mock provider seeded from the clock.
func NewMockProvider() *MockProvider {
	return &MockProvider{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// FetchReport returns a fabricated report for the given VIN.
func (p *MockProvider) FetchReport(_ context.Context, vin string) (*Report, error) {
	title := "clean"
	switch roll := p.rng.Intn(100); {
	case roll >= 95:
		title = "salvage"
	case roll >= 88:
		title = "rebuilt"
	}

	return &Report{
		ReportID:       uuid.NewString(),
		VIN:            vin,
		Owners:         1 + p.rng.Intn(4),
		Accidents:      p.rng.Intn(3),
		ServiceRecords: 3 + p.rng.Intn(13),
		TitleStatus:    title,
		LastReported:   time.Now().AddDate(0, -p.rng.Intn(18), 0),
	}, nil
}
