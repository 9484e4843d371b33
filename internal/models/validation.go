package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	minYear           = 1990
	maxMakeLen        = 50
	maxModelLen       = 50
	maxDescriptionLen = 1000
	vinLength         = 17
)

// vinAlphabet is the set of characters allowed in a VIN. I, O and Q are
// excluded to avoid confusion with 1 and 0.
const vinAlphabet = "ABCDEFGHJKLMNPRSTUVWXYZ0123456789"

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects field-level validation failures.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, fe := range v {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (v *ValidationErrors) add(field, message string) {
	*v = append(*v, FieldError{Field: field, Message: message})
}

// NormalizeVIN upper-cases a VIN and trims surrounding whitespace.
func NormalizeVIN(vin string) string {
	return strings.ToUpper(strings.TrimSpace(vin))
}

// ValidVIN reports whether vin is exactly 17 characters from the VIN
// alphabet. The input is expected to be normalized already.
func ValidVIN(vin string) bool {
	if len(vin) != vinLength {
		return false
	}
	for _, r := range vin {
		if !strings.ContainsRune(vinAlphabet, r) {
			return false
		}
	}
	return true
}

// Validate checks the car details against the field constraints. The
// year upper bound is re-checked against the clock every time, so the
// valid range shifts as real time advances. A nil return means the
// details are acceptable.
func (c *CarDetails) Validate() error {
	var errs ValidationErrors

	maxYear := time.Now().Year() + 1
	if c.Year < minYear || c.Year > maxYear {
		errs.add("year", fmt.Sprintf("must be between %d and %d", minYear, maxYear))
	}
	if c.Make == "" {
		errs.add("make", "is required")
	} else if len(c.Make) > maxMakeLen {
		errs.add("make", fmt.Sprintf("must be at most %d characters", maxMakeLen))
	}
	if c.Model == "" {
		errs.add("model", "is required")
	} else if len(c.Model) > maxModelLen {
		errs.add("model", fmt.Sprintf("must be at most %d characters", maxModelLen))
	}
	if c.Mileage < 0 {
		errs.add("mileage", "must be zero or greater")
	}
	if c.Price < 0 {
		errs.add("price", "must be zero or greater")
	}
	if c.VIN != "" {
		c.VIN = NormalizeVIN(c.VIN)
		if !ValidVIN(c.VIN) {
			errs.add("vin", "must be exactly 17 characters from the VIN alphabet (no I, O or Q)")
		}
	}
	if len(c.Description) > maxDescriptionLen {
		errs.add("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLen))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// EvaluationPatch is the allow-listed partial update for an evaluation.
// Only fields present here can be changed through the update endpoint;
// id, owner, session and creation time are not patchable by construction.
type EvaluationPatch struct {
	Year        *int     `json:"year,omitempty"`
	Make        *string  `json:"make,omitempty"`
	Model       *string  `json:"model,omitempty"`
	Mileage     *int     `json:"mileage,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	VIN         *string  `json:"vin,omitempty"`
	Description *string  `json:"description,omitempty"`
	WantCarfax  *bool    `json:"want_carfax,omitempty"`
}

// Apply merges the patch into the evaluation's mutable fields and
// re-validates the resulting car details.
func (p *EvaluationPatch) Apply(e *Evaluation) error {
	if p.Year != nil {
		e.Car.Year = *p.Year
	}
	if p.Make != nil {
		e.Car.Make = *p.Make
	}
	if p.Model != nil {
		e.Car.Model = *p.Model
	}
	if p.Mileage != nil {
		e.Car.Mileage = *p.Mileage
	}
	if p.Price != nil {
		e.Car.Price = *p.Price
	}
	if p.VIN != nil {
		e.Car.VIN = *p.VIN
	}
	if p.Description != nil {
		e.Car.Description = *p.Description
	}
	if p.WantCarfax != nil {
		e.Carfax.WantCarfax = *p.WantCarfax
	}
	return e.Car.Validate()
}

// Inspection section names accepted by the inspection endpoint.
const (
	InspectionGeneral    = "general"
	InspectionMechanical = "mechanical"
	InspectionPaperwork  = "paperwork"
)

// InspectionRequest carries an update for one inspection section.
// Which fields are consulted depends on InspectionType.
type InspectionRequest struct {
	InspectionType    string             `json:"inspection_type"`
	Notes             string             `json:"notes,omitempty"`
	Issues            []string           `json:"issues,omitempty"`
	Results           []MechanicalResult `json:"results,omitempty"`
	VINMatch          *bool              `json:"vin_match,omitempty"`
	TitleStatus       string             `json:"title_status,omitempty"`
	OwnershipVerified *bool              `json:"ownership_verified,omitempty"`
	Liens             []string           `json:"liens,omitempty"`
}

// Validate checks the inspection request type and mechanical result statuses.
func (r *InspectionRequest) Validate() error {
	var errs ValidationErrors

	switch r.InspectionType {
	case InspectionGeneral, InspectionMechanical, InspectionPaperwork:
	default:
		errs.add("inspection_type", "must be one of general, mechanical, paperwork")
	}
	for i, res := range r.Results {
		switch res.Status {
		case "pass", "fail", "warning":
		default:
			errs.add(fmt.Sprintf("results[%d].status", i), "must be one of pass, fail, warning")
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ApplyInspection merges the request into the named inspection section
// and marks that section completed.
func (e *Evaluation) ApplyInspection(r *InspectionRequest) {
	switch r.InspectionType {
	case InspectionGeneral:
		e.Inspection.General.Completed = true
		if r.Notes != "" {
			e.Inspection.General.Notes = r.Notes
		}
		if r.Issues != nil {
			e.Inspection.General.Issues = r.Issues
		}
	case InspectionMechanical:
		e.Inspection.Mechanical.Completed = true
		if r.Results != nil {
			e.Inspection.Mechanical.Results = r.Results
		}
	case InspectionPaperwork:
		e.Inspection.Paperwork.Completed = true
		if r.VINMatch != nil {
			e.Inspection.Paperwork.VINMatch = r.VINMatch
		}
		if r.TitleStatus != "" {
			e.Inspection.Paperwork.TitleStatus = r.TitleStatus
		}
		if r.OwnershipVerified != nil {
			e.Inspection.Paperwork.OwnershipVerified = r.OwnershipVerified
		}
		if r.Liens != nil {
			e.Inspection.Paperwork.Liens = r.Liens
		}
	}
}
