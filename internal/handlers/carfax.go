package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/autoassist/car-buying-assistant/internal/payments"
)

// Price of a vehicle-history report, in USD.
const carfaxReportPrice = 44.99

// RequestCarfax handles POST /api/evaluations/{id}/carfax. The request
// is always recorded; when purchase is set, the report price is charged
// and the mock report is fetched and stored. The workflow status is not
// changed by a report order.
func (h *EvaluationHandler) RequestCarfax(w http.ResponseWriter, r *http.Request) {
	eval, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var req struct {
		Purchase bool `json:"purchase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if eval.Car.VIN == "" {
		writeError(w, http.StatusBadRequest, "A VIN is required to order a vehicle history report")
		return
	}

	eval.Carfax.Requested = true
	eval.Carfax.WantCarfax = true
	eval.Carfax.VIN = eval.Car.VIN
	eval.Carfax.Price = carfaxReportPrice

	if req.Purchase && !eval.Carfax.Purchased {
		_, err := h.processor.Charge(r.Context(), payments.ChargeRequest{
			Amount:       carfaxReportPrice,
			Currency:     "USD",
			Description:  "Vehicle history report for " + eval.Car.VIN,
			EvaluationID: eval.ID.Hex(),
		})
		if err != nil {
			if errors.Is(err, payments.ErrCardDeclined) {
				writeError(w, http.StatusPaymentRequired, "Payment declined")
				return
			}
			serverError(w, h.logger, h.production, err)
			return
		}

		report, err := h.reports.FetchReport(r.Context(), eval.Car.VIN)
		if err != nil {
			serverError(w, h.logger, h.production, err)
			return
		}
		eval.Carfax.Purchased = true
		eval.Carfax.ReportID = report.ReportID
		eval.Carfax.Data = report
	}

	eval.Progress = eval.CalculateProgress()

	if err := h.evaluations.Update(r.Context(), eval.ID.Hex(), eval); err != nil {
		serverError(w, h.logger, h.production, err)
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{"evaluation": eval})
}
