package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/autoassist/car-buying-assistant/internal/payments"
)

// PaymentHandler handles standalone payment requests
type PaymentHandler struct {
	processor  payments.Processor
	logger     *log.Logger
	production bool
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(processor payments.Processor, logger *log.Logger, production bool) *PaymentHandler {
	return &PaymentHandler{
		processor:  processor,
		logger:     logger,
		production: production,
	}
}

// Charge handles POST /api/payments/charge
func (h *PaymentHandler) Charge(w http.ResponseWriter, r *http.Request) {
	var req payments.ChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "Amount must be greater than zero")
		return
	}

	receipt, err := h.processor.Charge(r.Context(), req)
	if err != nil {
		if errors.Is(err, payments.ErrCardDeclined) {
			writeError(w, http.StatusPaymentRequired, "Payment declined")
			return
		}
		serverError(w, h.logger, h.production, err)
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{"receipt": receipt})
}
