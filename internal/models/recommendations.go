package models

import (
	"fmt"
	"math"
)

// Flat repair estimates per mechanical category, in USD. Used when an
// inspection flags an item and no better number is available.
var repairEstimates = map[string]float64{
	"engine":       1200,
	"transmission": 1800,
	"brakes":       400,
	"suspension":   600,
	"electrical":   350,
	"exhaust":      450,
	"cooling":      500,
	"tires":        550,
}

const defaultRepairEstimate = 300

// BuildRecommendations derives offer guidance from the evaluation's
// stored market analysis and inspection findings. It is deterministic:
// the same evaluation state always produces the same recommendations.
func BuildRecommendations(e *Evaluation) *Recommendations {
	base := e.Car.Price
	if e.Market != nil && e.Market.EstimatedValue > 0 {
		base = e.Market.EstimatedValue
	}

	rec := &Recommendations{}

	var totalRepairs float64
	for _, res := range e.Inspection.Mechanical.Results {
		if res.Status == "pass" {
			continue
		}
		cost, ok := repairEstimates[res.Category]
		if !ok {
			cost = defaultRepairEstimate
		}
		priority := "high"
		if res.Status == "warning" {
			cost = math.Round(cost / 3)
			priority = "medium"
		}
		rec.RepairCosts = append(rec.RepairCosts, RepairCost{
			Issue:         res.Item,
			EstimatedCost: cost,
			Priority:      priority,
		})
		totalRepairs += cost
	}
	for _, issue := range e.Inspection.General.Issues {
		rec.RepairCosts = append(rec.RepairCosts, RepairCost{
			Issue:         issue,
			EstimatedCost: defaultRepairEstimate,
			Priority:      "low",
		})
		totalRepairs += defaultRepairEstimate
	}

	rec.SuggestedOffer = math.Max(0, math.Round(base*0.92-totalRepairs))
	rec.MaxOffer = math.Max(rec.SuggestedOffer, math.Round(base*0.97-totalRepairs))
	rec.WalkAwayPrice = math.Max(rec.MaxOffer, math.Round(base))

	if n := len(rec.RepairCosts); n > 0 {
		rec.NegotiationPoints = append(rec.NegotiationPoints,
			fmt.Sprintf("Inspection found %d issue(s) with an estimated repair cost of $%.0f", n, totalRepairs))
	}
	if e.Market != nil && e.Market.PriceVsMarket > 0 {
		rec.NegotiationPoints = append(rec.NegotiationPoints,
			fmt.Sprintf("Asking price is %.0f%% above the estimated market value", e.Market.PriceVsMarket))
	}
	if e.Inspection.Paperwork.TitleStatus != "" && e.Inspection.Paperwork.TitleStatus != "clean" {
		rec.NegotiationPoints = append(rec.NegotiationPoints,
			fmt.Sprintf("Title status is %q, which lowers resale value", e.Inspection.Paperwork.TitleStatus))
	}
	if !e.Carfax.Purchased {
		rec.NegotiationPoints = append(rec.NegotiationPoints,
			"Vehicle history report has not been reviewed yet")
	}

	return rec
}
