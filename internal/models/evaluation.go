package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status represents an evaluation's position in the buying workflow
type Status string

const (
	StatusDraft          Status = "draft"
	StatusAnalyzing      Status = "analyzing"
	StatusInProgress     Status = "in_progress"
	StatusAwaitingCarfax Status = "awaiting_carfax"
	StatusCompleted      Status = "completed"
	StatusArchived       Status = "archived"
)

// IsValidStatus checks if a status is valid
func IsValidStatus(status Status) bool {
	switch status {
	case StatusDraft, StatusAnalyzing, StatusInProgress, StatusAwaitingCarfax, StatusCompleted, StatusArchived:
		return true
	default:
		return false
	}
}

// CarDetails holds the basic facts about the car under consideration.
type CarDetails struct {
	Year        int     `bson:"year" json:"year"`
	Make        string  `bson:"make" json:"make"`
	Model       string  `bson:"model" json:"model"`
	Mileage     int     `bson:"mileage" json:"mileage"`
	Price       float64 `bson:"price" json:"price"` // asking price in USD
	VIN         string  `bson:"vin,omitempty" json:"vin,omitempty"`
	Description string  `bson:"description,omitempty" json:"description,omitempty"`
}

// Photo is metadata for an uploaded photo. Files themselves are not stored.
type Photo struct {
	ID         string    `bson:"id" json:"id"`
	Filename   string    `bson:"filename" json:"filename"`
	URL        string    `bson:"url" json:"url"`
	UploadedAt time.Time `bson:"uploaded_at" json:"uploaded_at"`
}

// CarfaxSection tracks the state of a Carfax report order for the evaluation.
// Data is the raw report payload returned by the report provider.
type CarfaxSection struct {
	Requested  bool        `bson:"requested" json:"requested"`
	Purchased  bool        `bson:"purchased" json:"purchased"`
	WantCarfax bool        `bson:"want_carfax" json:"want_carfax"`
	Price      float64     `bson:"price" json:"price"`
	VIN        string      `bson:"vin,omitempty" json:"vin,omitempty"`
	ReportID   string      `bson:"report_id,omitempty" json:"report_id,omitempty"`
	Data       interface{} `bson:"data,omitempty" json:"data,omitempty"`
}

// Comparable is a similar listing found during market analysis.
type Comparable struct {
	Source   string  `bson:"source" json:"source"`
	Price    float64 `bson:"price" json:"price"`
	Mileage  int     `bson:"mileage" json:"mileage"`
	Location string  `bson:"location" json:"location"`
}

// MarketAnalysis holds the output of the market estimator.
type MarketAnalysis struct {
	EstimatedValue float64      `bson:"estimated_value" json:"estimated_value"`
	PriceVsMarket  float64      `bson:"price_vs_market" json:"price_vs_market"` // percent above (+) or below (-) market
	DealScore      int          `bson:"deal_score" json:"deal_score"`           // 0-100
	Comparables    []Comparable `bson:"comparables" json:"comparables"`
}

// GeneralInspection covers the walk-around check.
type GeneralInspection struct {
	Completed bool     `bson:"completed" json:"completed"`
	Notes     string   `bson:"notes,omitempty" json:"notes,omitempty"`
	Issues    []string `bson:"issues,omitempty" json:"issues,omitempty"`
}

// MechanicalResult is a single line item from the mechanical checklist.
type MechanicalResult struct {
	Category string `bson:"category" json:"category"`
	Item     string `bson:"item" json:"item"`
	Status   string `bson:"status" json:"status"` // "pass", "fail", "warning"
	Notes    string `bson:"notes,omitempty" json:"notes,omitempty"`
}

// MechanicalInspection covers the mechanical checklist.
type MechanicalInspection struct {
	Completed bool               `bson:"completed" json:"completed"`
	Results   []MechanicalResult `bson:"results,omitempty" json:"results,omitempty"`
}

// PaperworkInspection covers title and ownership verification.
type PaperworkInspection struct {
	Completed         bool     `bson:"completed" json:"completed"`
	VINMatch          *bool    `bson:"vin_match,omitempty" json:"vin_match,omitempty"`
	TitleStatus       string   `bson:"title_status,omitempty" json:"title_status,omitempty"`
	OwnershipVerified *bool    `bson:"ownership_verified,omitempty" json:"ownership_verified,omitempty"`
	Liens             []string `bson:"liens,omitempty" json:"liens,omitempty"`
}

// Inspection groups the three independently completable inspection sections.
type Inspection struct {
	General    GeneralInspection    `bson:"general" json:"general"`
	Mechanical MechanicalInspection `bson:"mechanical" json:"mechanical"`
	Paperwork  PaperworkInspection  `bson:"paperwork" json:"paperwork"`
}

// RepairCost is an estimated cost for an issue found during inspection.
type RepairCost struct {
	Issue         string  `bson:"issue" json:"issue"`
	EstimatedCost float64 `bson:"estimated_cost" json:"estimated_cost"`
	Priority      string  `bson:"priority" json:"priority"` // "low", "medium", "high"
}

// Recommendations holds the generated offer guidance.
type Recommendations struct {
	SuggestedOffer    float64      `bson:"suggested_offer" json:"suggested_offer"`
	MaxOffer          float64      `bson:"max_offer" json:"max_offer"`
	WalkAwayPrice     float64      `bson:"walk_away_price" json:"walk_away_price"`
	RepairCosts       []RepairCost `bson:"repair_costs,omitempty" json:"repair_costs,omitempty"`
	NegotiationPoints []string     `bson:"negotiation_points,omitempty" json:"negotiation_points,omitempty"`
}

// Evaluation is one car-buying evaluation. It is owned either by a
// registered user (UserID set) or by an anonymous browser session
// (SessionID set); never both.
type Evaluation struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          string             `bson:"user_id,omitempty" json:"user_id,omitempty"`
	SessionID       string             `bson:"session_id,omitempty" json:"session_id,omitempty"`
	Car             CarDetails         `bson:"car" json:"car"`
	Photos          []Photo            `bson:"photos,omitempty" json:"photos,omitempty"`
	Carfax          CarfaxSection      `bson:"carfax" json:"carfax"`
	Market          *MarketAnalysis    `bson:"market,omitempty" json:"market,omitempty"`
	Inspection      Inspection         `bson:"inspection" json:"inspection"`
	Recommendations *Recommendations   `bson:"recommendations,omitempty" json:"recommendations,omitempty"`
	Status          Status             `bson:"status" json:"status"`
	Progress        int                `bson:"progress" json:"progress"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}

// Section weights for progress scoring. They sum to 100.
const (
	weightBasicDetails    = 20
	weightPhotos          = 10
	weightMarket          = 25
	weightGeneral         = 10
	weightMechanical      = 10
	weightPaperwork       = 10
	weightRecommendations = 15
)

// CalculateProgress returns the 0-100 completion score for the evaluation.
// The score is a weighted sum of independent section checks; there is no
// partial credit within a section. Progress is always derived from the
// current record state, never taken from client input.
func (e *Evaluation) CalculateProgress() int {
	progress := 0
	if e.Car.Year > 0 && e.Car.Make != "" && e.Car.Model != "" && e.Car.Mileage >= 0 && e.Car.Price >= 0 {
		progress += weightBasicDetails
	}
	if len(e.Photos) > 0 {
		progress += weightPhotos
	}
	if e.Market != nil {
		progress += weightMarket
	}
	if e.Inspection.General.Completed {
		progress += weightGeneral
	}
	if e.Inspection.Mechanical.Completed {
		progress += weightMechanical
	}
	if e.Inspection.Paperwork.Completed {
		progress += weightPaperwork
	}
	if e.Recommendations != nil {
		progress += weightRecommendations
	}
	return progress
}

// OwnedBy reports whether the principal may act on this evaluation.
// A user principal must match UserID exactly; a guest principal must
// match SessionID exactly. An anonymous guest owns nothing.
func (e *Evaluation) OwnedBy(p Principal) bool {
	if p.IsUser() {
		return e.UserID == p.UserID
	}
	return p.SessionID != "" && e.SessionID == p.SessionID
}

// DisplayName returns a short human-readable label for the car.
func (e *Evaluation) DisplayName() string {
	return fmt.Sprintf("%d %s %s", e.Car.Year, e.Car.Make, e.Car.Model)
}

// EvaluationSummary is the list-view projection of an evaluation.
type EvaluationSummary struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Price       float64   `json:"price"`
	Mileage     int       `json:"mileage"`
	Status      Status    `json:"status"`
	Progress    int       `json:"progress"`
	DealScore   *int      `json:"deal_score,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summary projects the evaluation into its list-view form.
func (e *Evaluation) Summary() EvaluationSummary {
	s := EvaluationSummary{
		ID:          e.ID.Hex(),
		DisplayName: e.DisplayName(),
		Price:       e.Car.Price,
		Mileage:     e.Car.Mileage,
		Status:      e.Status,
		Progress:    e.Progress,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if e.Market != nil {
		score := e.Market.DealScore
		s.DealScore = &score
	}
	return s
}
