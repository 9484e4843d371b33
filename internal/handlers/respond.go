package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/autoassist/car-buying-assistant/internal/models"
)

// response is the uniform JSON envelope for every API reply.
type response struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message,omitempty"`
	Data    interface{}             `json:"data,omitempty"`
	Errors  models.ValidationErrors `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, response{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{Success: true, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{Success: false, Message: message})
}

// writeValidationError renders field-level messages when err carries
// them, otherwise a plain 400.
func writeValidationError(w http.ResponseWriter, err error) {
	var verrs models.ValidationErrors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusBadRequest, response{
			Success: false,
			Message: "Validation failed",
			Errors:  verrs,
		})
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// serverError logs err and replies 500. Internal detail is exposed only
// outside production mode.
func serverError(w http.ResponseWriter, logger *log.Logger, production bool, err error) {
	logger.WithError(err).Error("internal server error")
	message := "Internal server error"
	if !production {
		message = err.Error()
	}
	writeError(w, http.StatusInternalServerError, message)
}
