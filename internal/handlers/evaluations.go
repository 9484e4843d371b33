package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/autoassist/car-buying-assistant/internal/auth"
	"github.com/autoassist/car-buying-assistant/internal/db"
	"github.com/autoassist/car-buying-assistant/internal/events"
	"github.com/autoassist/car-buying-assistant/internal/market"
	"github.com/autoassist/car-buying-assistant/internal/middleware"
	"github.com/autoassist/car-buying-assistant/internal/models"
	"github.com/autoassist/car-buying-assistant/internal/payments"

	carfaxpkg "github.com/autoassist/car-buying-assistant/internal/carfax"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// EvaluationHandler handles evaluation requests
type EvaluationHandler struct {
	evaluations db.EvaluationCollection
	estimator   market.Estimator
	reports     carfaxpkg.ReportProvider
	processor   payments.Processor
	publisher   events.Publisher
	authService *auth.Service
	logger      *log.Logger
	production  bool
}

// NewEvaluationHandler creates a new evaluation handler
func NewEvaluationHandler(
	evaluations db.EvaluationCollection,
	estimator market.Estimator,
	reports carfaxpkg.ReportProvider,
	processor payments.Processor,
	publisher events.Publisher,
	authService *auth.Service,
	logger *log.Logger,
	production bool,
) *EvaluationHandler {
	return &EvaluationHandler{
		evaluations: evaluations,
		estimator:   estimator,
		reports:     reports,
		processor:   processor,
		publisher:   publisher,
		authService: authService,
		logger:      logger,
		production:  production,
	}
}

// Create handles POST /api/evaluations. A guest without a session token
// gets one minted; it is returned in the body and the X-Session-Id
// response header and must accompany every later request.
func (h *EvaluationHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "Principal not resolved")
		return
	}

	var car models.CarDetails
	if err := json.NewDecoder(r.Body).Decode(&car); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := car.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	eval := &models.Evaluation{
		Car:    car,
		Status: models.StatusDraft,
	}

	mintedSession := ""
	if principal.IsUser() {
		eval.UserID = principal.UserID
	} else {
		sessionID := principal.SessionID
		if sessionID == "" {
			sessionID = h.authService.MintSessionToken()
			mintedSession = sessionID
		}
		eval.SessionID = sessionID
	}

	eval.Progress = eval.CalculateProgress()

	if err := h.evaluations.Insert(r.Context(), eval); err != nil {
		serverError(w, h.logger, h.production, err)
		return
	}

	data := map[string]interface{}{
		"evaluation": eval.Summary(),
	}
	if eval.SessionID != "" {
		data["session_id"] = eval.SessionID
	}
	if mintedSession != "" {
		w.Header().Set(middleware.SessionHeader, mintedSession)
	}
	writeData(w, http.StatusCreated, data)
}

// List handles GET /api/evaluations with page/limit query parameters.
func (h *EvaluationHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "Principal not resolved")
		return
	}

	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(r, "limit", defaultPageLimit)
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	evals, total, err := h.evaluations.FindByPrincipal(r.Context(), principal, page, limit)
	if err != nil {
		serverError(w, h.logger, h.production, err)
		return
	}

	summaries := make([]models.EvaluationSummary, 0, len(evals))
	for i := range evals {
		summaries = append(summaries, evals[i].Summary())
	}

	totalPages := int(total) / limit
	if int(total)%limit != 0 {
		totalPages++
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"evaluations": summaries,
		"pagination": map[string]interface{}{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": totalPages,
		},
	})
}

// Get handles GET /api/evaluations/{id}.
func (h *EvaluationHandler) Get(w http.ResponseWriter, r *http.Request) {
	eval, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"evaluation": eval})
}

// Update handles PUT /api/evaluations/{id} with an allow-listed partial
// patch. Progress is recomputed; it is never taken from the client.
func (h *EvaluationHandler) Update(w http.ResponseWriter, r *http.Request) {
	eval, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var patch models.EvaluationPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := patch.Apply(eval); err != nil {
		writeValidationError(w, err)
		return
	}
	eval.Progress = eval.CalculateProgress()

	if err := h.evaluations.Update(r.Context(), eval.ID.Hex(), eval); err != nil {
		serverError(w, h.logger, h.production, err)
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{"evaluation": eval})
}

// Delete handles DELETE /api/evaluations/{id}.
func (h *EvaluationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	eval, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	if err := h.evaluations.Delete(r.Context(), eval.ID.Hex()); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Evaluation not found")
			return
		}
		serverError(w, h.logger, h.production, err)
		return
	}

	writeMessage(w, http.StatusOK, "Evaluation deleted")
}

// Analyze handles POST /api/evaluations/{id}/analyze. It runs the
// market estimator, stores the result and moves the evaluation to
// analyzing, even when it was already past that point.
func (h *EvaluationHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	eval, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	analysis, err := h.estimator.Estimate(eval.Car)
	if err != nil {
		serverError(w, h.logger, h.production, err)
		return
	}

	eval.Market = analysis
	eval.Status = models.StatusAnalyzing
	eval.Progress = eval.CalculateProgress()

	if err := h.evaluations.Update(r.Context(), eval.ID.Hex(), eval); err != nil {
		serverError(w, h.logger, h.production, err)
		return
	}

	h.publisher.StatusChanged(eval.ID.Hex(), eval.Status, eval.Progress)
	writeData(w, http.StatusOK, map[string]interface{}{"evaluation": eval})
}

// UpdateInspection handles PUT /api/evaluations/{id}/inspection. The
// named section is merged and marked completed, and the evaluation
// moves to in_progress.
func (h *EvaluationHandler) UpdateInspection(w http.ResponseWriter, r *http.Request) {
	eval, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var req models.InspectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	eval.ApplyInspection(&req)
	eval.Status = models.StatusInProgress
	eval.Progress = eval.CalculateProgress()

	if err := h.evaluations.Update(r.Context(), eval.ID.Hex(), eval); err != nil {
		serverError(w, h.logger, h.production, err)
		return
	}

	h.publisher.StatusChanged(eval.ID.Hex(), eval.Status, eval.Progress)
	writeData(w, http.StatusOK, map[string]interface{}{"evaluation": eval})
}

// GenerateRecommendations handles POST /api/evaluations/{id}/recommendations.
// Offer guidance is derived from the stored market analysis and
// inspection findings and the evaluation is marked completed.
func (h *EvaluationHandler) GenerateRecommendations(w http.ResponseWriter, r *http.Request) {
	eval, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	eval.Recommendations = models.BuildRecommendations(eval)
	eval.Status = models.StatusCompleted
	eval.Progress = eval.CalculateProgress()

	if err := h.evaluations.Update(r.Context(), eval.ID.Hex(), eval); err != nil {
		serverError(w, h.logger, h.production, err)
		return
	}

	h.publisher.StatusChanged(eval.ID.Hex(), eval.Status, eval.Progress)
	writeData(w, http.StatusOK, map[string]interface{}{"evaluation": eval})
}

// AddPhoto handles POST /api/evaluations/{id}/photos. Only metadata is
// recorded; there is no file storage.
func (h *EvaluationHandler) AddPhoto(w http.ResponseWriter, r *http.Request) {
	eval, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var req struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "Filename is required")
		return
	}

	photo := models.Photo{
		ID:         uuid.NewString(),
		Filename:   req.Filename,
		UploadedAt: time.Now(),
	}
	photo.URL = "/photos/" + eval.ID.Hex() + "/" + photo.ID + "/" + photo.Filename
	eval.Photos = append(eval.Photos, photo)
	eval.Progress = eval.CalculateProgress()

	if err := h.evaluations.Update(r.Context(), eval.ID.Hex(), eval); err != nil {
		serverError(w, h.logger, h.production, err)
		return
	}

	writeData(w, http.StatusCreated, map[string]interface{}{"evaluation": eval})
}

// loadOwned fetches the evaluation addressed by the request and checks
// ownership. A mismatched authenticated user gets 403; everyone else
// without a claim on the record gets 404, so record existence is never
// leaked.
func (h *EvaluationHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*models.Evaluation, bool) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "Principal not resolved")
		return nil, false
	}

	id := chi.URLParam(r, "id")
	eval, err := h.evaluations.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Evaluation not found")
			return nil, false
		}
		serverError(w, h.logger, h.production, err)
		return nil, false
	}

	if !eval.OwnedBy(principal) {
		if principal.IsUser() {
			writeError(w, http.StatusForbidden, "You do not have access to this evaluation")
		} else {
			writeError(w, http.StatusNotFound, "Evaluation not found")
		}
		return nil, false
	}

	return eval, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
