package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/autoassist/car-buying-assistant/internal/auth"
	"github.com/autoassist/car-buying-assistant/internal/carfax"
	"github.com/autoassist/car-buying-assistant/internal/db"
	"github.com/autoassist/car-buying-assistant/internal/events"
	"github.com/autoassist/car-buying-assistant/internal/middleware"
	"github.com/autoassist/car-buying-assistant/internal/models"
	"github.com/autoassist/car-buying-assistant/internal/payments"
)

// fakeEvaluationCollection is an in-memory EvaluationCollection.
type fakeEvaluationCollection struct {
	evals map[string]models.Evaluation
	seq   int
}

func newFakeEvaluationCollection() *fakeEvaluationCollection {
	return &fakeEvaluationCollection{evals: make(map[string]models.Evaluation)}
}

func (f *fakeEvaluationCollection) Insert(_ context.Context, eval *models.Evaluation) error {
	if eval.ID.IsZero() {
		eval.ID = primitive.NewObjectID()
	}
	f.seq++
	eval.CreatedAt = time.Now().Add(time.Duration(f.seq) * time.Millisecond)
	eval.UpdatedAt = eval.CreatedAt
	f.evals[eval.ID.Hex()] = *eval
	return nil
}

func (f *fakeEvaluationCollection) FindByID(_ context.Context, id string) (*models.Evaluation, error) {
	eval, ok := f.evals[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := eval
	return &copied, nil
}

func (f *fakeEvaluationCollection) FindByPrincipal(_ context.Context, p models.Principal, page, limit int) ([]models.Evaluation, int64, error) {
	if p.IsGuest() && p.SessionID == "" {
		return []models.Evaluation{}, 0, nil
	}

	matched := []models.Evaluation{}
	for _, eval := range f.evals {
		e := eval
		if e.OwnedBy(p) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return []models.Evaluation{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (f *fakeEvaluationCollection) Update(_ context.Context, id string, eval *models.Evaluation) error {
	if _, ok := f.evals[id]; !ok {
		return db.ErrNotFound
	}
	eval.UpdatedAt = time.Now()
	f.evals[id] = *eval
	return nil
}

func (f *fakeEvaluationCollection) Delete(_ context.Context, id string) error {
	if _, ok := f.evals[id]; !ok {
		return db.ErrNotFound
	}
	delete(f.evals, id)
	return nil
}

// stubEstimator returns a fixed analysis so scores are predictable.
type stubEstimator struct{}

func (stubEstimator) Estimate(models.CarDetails) (*models.MarketAnalysis, error) {
	return &models.MarketAnalysis{
		EstimatedValue: 17000,
		PriceVsMarket:  6,
		DealScore:      72,
		Comparables: []models.Comparable{
			{Source: "AutoTrader", Price: 17200, Mileage: 28000, Location: "Austin, TX"},
		},
	}, nil
}

type stubReportProvider struct{}

func (stubReportProvider) FetchReport(_ context.Context, vin string) (*carfax.Report, error) {
	return &carfax.Report{
		ReportID:    "report-1",
		VIN:         vin,
		Owners:      2,
		TitleStatus: "clean",
	}, nil
}

type stubProcessor struct {
	decline bool
}

func (s stubProcessor) Charge(_ context.Context, req payments.ChargeRequest) (*payments.Receipt, error) {
	if s.decline {
		return nil, payments.ErrCardDeclined
	}
	return &payments.Receipt{
		TransactionID: "txn-1",
		Amount:        req.Amount,
		Currency:      "USD",
		Status:        "succeeded",
		ProcessedAt:   time.Now(),
	}, nil
}

type testEnv struct {
	router      http.Handler
	evals       *fakeEvaluationCollection
	authService *auth.Service
}

func newTestEnv(t *testing.T, processor payments.Processor) *testEnv {
	t.Helper()

	logger := log.New()
	logger.SetOutput(io.Discard)

	evals := newFakeEvaluationCollection()
	users := newFakeUserCollection()
	authService := auth.NewService("test-secret", time.Hour)

	evalHandler := NewEvaluationHandler(
		evals,
		stubEstimator{},
		stubReportProvider{},
		processor,
		events.NopPublisher{},
		authService,
		logger,
		false,
	)
	authHandler := NewAuthHandler(authService, users, logger, false)
	paymentHandler := NewPaymentHandler(processor, logger, false)

	router := NewRouter(
		logger,
		middleware.NewIdentity(authService),
		middleware.NewRateLimitStore(),
		10000,
		time.Minute,
		authHandler,
		evalHandler,
		paymentHandler,
	)

	return &testEnv{router: router, evals: evals, authService: authService}
}

func (e *testEnv) do(t *testing.T, method, path string, payload interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var resp struct {
		Success bool                   `json:"success"`
		Message string                 `json:"message"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}

func guestHeaders(sessionID string) map[string]string {
	return map[string]string{middleware.SessionHeader: sessionID}
}

func userHeaders(t *testing.T, env *testEnv, userID string) map[string]string {
	t.Helper()
	id, err := primitive.ObjectIDFromHex(userID)
	require.NoError(t, err)
	token, err := env.authService.GenerateToken(&models.User{ID: id, Email: "buyer@example.com"})
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

var testCar = map[string]interface{}{
	"year":    2020,
	"make":    "Honda",
	"model":   "Civic",
	"mileage": 30000,
	"price":   18000,
}

// createGuestEvaluation creates an evaluation as a guest with no session
// and returns the evaluation id and the minted session token.
func createGuestEvaluation(t *testing.T, env *testEnv) (string, string) {
	t.Helper()

	w := env.do(t, http.MethodPost, "/api/evaluations", testCar, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	data := decodeData(t, w)
	sessionID, _ := data["session_id"].(string)
	require.NotEmpty(t, sessionID, "session token should be minted for anonymous guests")

	eval := data["evaluation"].(map[string]interface{})
	id := eval["id"].(string)
	require.NotEmpty(t, id)
	return id, sessionID
}

func TestEvaluationWorkflow_GuestScenario(t *testing.T) {
	env := newTestEnv(t, stubProcessor{})

	// Create with no session header: record created, session minted,
	// status draft, progress 20.
	w := env.do(t, http.MethodPost, "/api/evaluations", testCar, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.SessionHeader))

	data := decodeData(t, w)
	sessionID := data["session_id"].(string)
	eval := data["evaluation"].(map[string]interface{})
	id := eval["id"].(string)
	assert.Equal(t, "draft", eval["status"])
	assert.Equal(t, float64(20), eval["progress"])

	// Analyze: status analyzing, progress up by 25 to 45.
	w = env.do(t, http.MethodPost, "/api/evaluations/"+id+"/analyze", nil, guestHeaders(sessionID))
	require.Equal(t, http.StatusOK, w.Code)
	eval = decodeData(t, w)["evaluation"].(map[string]interface{})
	assert.Equal(t, "analyzing", eval["status"])
	assert.Equal(t, float64(45), eval["progress"])

	// Mechanical inspection: status in_progress, progress 55.
	inspection := map[string]interface{}{
		"inspection_type": "mechanical",
		"results": []map[string]interface{}{
			{"category": "brakes", "item": "Front pads", "status": "pass"},
		},
	}
	w = env.do(t, http.MethodPut, "/api/evaluations/"+id+"/inspection", inspection, guestHeaders(sessionID))
	require.Equal(t, http.StatusOK, w.Code)
	eval = decodeData(t, w)["evaluation"].(map[string]interface{})
	assert.Equal(t, "in_progress", eval["status"])
	assert.Equal(t, float64(55), eval["progress"])

	// Recommendations: status completed, progress 70.
	w = env.do(t, http.MethodPost, "/api/evaluations/"+id+"/recommendations", nil, guestHeaders(sessionID))
	require.Equal(t, http.StatusOK, w.Code)
	eval = decodeData(t, w)["evaluation"].(map[string]interface{})
	assert.Equal(t, "completed", eval["status"])
	assert.Equal(t, float64(70), eval["progress"])

	// Re-running analyze after completion resets the status.
	w = env.do(t, http.MethodPost, "/api/evaluations/"+id+"/analyze", nil, guestHeaders(sessionID))
	require.Equal(t, http.StatusOK, w.Code)
	eval = decodeData(t, w)["evaluation"].(map[string]interface{})
	assert.Equal(t, "analyzing", eval["status"])
}

func TestEvaluationCreate_Validation(t *testing.T) {
	env := newTestEnv(t, stubProcessor{})

	bad := map[string]interface{}{
		"year": 1800, "make": "Honda", "model": "Civic", "mileage": 30000, "price": 18000,
	}
	w := env.do(t, http.MethodPost, "/api/evaluations", bad, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Success bool                `json:"success"`
		Errors  []models.FieldError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotEmpty(t, resp.Errors)
	assert.Equal(t, "year", resp.Errors[0].Field)
}

func TestEvaluationCreate_VINStoredUpperCased(t *testing.T) {
	env := newTestEnv(t, stubProcessor{})

	car := map[string]interface{}{
		"year": 2020, "make": "Honda", "model": "Civic", "mileage": 30000, "price": 18000,
		"vin": "1hgcm82633a123456",
	}
	w := env.do(t, http.MethodPost, "/api/evaluations", car, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	data := decodeData(t, w)
	id := data["evaluation"].(map[string]interface{})["id"].(string)
	stored, err := env.evals.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "1HGCM82633A123456", stored.Car.VIN)
}

func TestEvaluationAccess_GuestIsolation(t *testing.T) {
	env := newTestEnv(t, stubProcessor{})

	id, _ := createGuestEvaluation(t, env)
	other := guestHeaders("some-other-session")

	w := env.do(t, http.MethodGet, "/api/evaluations/"+id, nil, other)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPut, "/api/evaluations/"+id, map[string]interface{}{"price": 1}, other)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/api/evaluations/"+id, nil, other)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// The record is untouched.
	stored, err := env.evals.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, float64(18000), stored.Car.Price)
}

func TestEvaluationAccess_UserMismatchIsForbidden(t *testing.T) {
	env := newTestEnv(t, stubProcessor{})

	owner := primitive.NewObjectID().Hex()
	intruder := primitive.NewObjectID().Hex()

	w := env.do(t, http.MethodPost, "/api/evaluations", testCar, userHeaders(t, env, owner))
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeData(t, w)["evaluation"].(map[string]interface{})["id"].(string)

	w = env.do(t, http.MethodGet, "/api/evaluations/"+id, nil, userHeaders(t, env, intruder))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/evaluations/"+id, nil, userHeaders(t, env, owner))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEvaluationGet_NotFound(t *testing.T) {
	env := newTestEnv(t, stubProcessor{})

	w := env.do(t, http.MethodGet, "/api/evaluations/"+primitive.NewObjectID().Hex(), nil, guestHeaders("s1"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEvaluationList_ScopedAndPaginated(t *testing.T) {
	env := newTestEnv(t, stubProcessor{})

	_, session := createGuestEvaluation(t, env)
	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodPost, "/api/evaluations", testCar, guestHeaders(session))
		require.Equal(t, http.StatusCreated, w.Code)
	}
	// Another guest's record must not show up.
	createGuestEvaluation(t, env)

	w := env.do(t, http.MethodGet, "/api/evaluations?page=1&limit=2", nil, guestHeaders(session))
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeData(t, w)
	list := data["evaluations"].([]interface{})
	assert.Len(t, list, 2)

	pagination := data["pagination"].(map[string]interface{})
	assert.Equal(t, float64(3), pagination["total"])
	assert.Equal(t, float64(2), pagination["total_pages"])
}

func TestEvaluationList_AnonymousGuestGetsEmptyPage(t *testing.T) {
	env := newTestEnv(t, stubProcessor{})
	createGuestEvaluation(t, env)

	w := env.do(t, http.MethodGet, "/api/evaluations", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeData(t, w)
	assert.Empty(t, data["evaluations"])
}

func TestEvaluationUpdate_PatchAndRecompute(t *testing.T) {
	env := newTestEnv(t, stubProcessor{})
	id, session := createGuestEvaluation(t, env)

	w := env.do(t, http.MethodPut, "/api/evaluations/"+id,
		map[string]interface{}{"price": 16500, "description": "One owner"}, guestHeaders(session))
	require.Equal(t, http.StatusOK, w.Code)

	eval := decodeData(t, w)["evaluation"].(map[string]interface{})
	car := eval["car"].(map[string]interface{})
	assert.Equal(t, float64(16500), car["price"])
	assert.Equal(t, "One owner", car["description"])
	assert.Equal(t, float64(20), eval["progress"])

	// Invalid patches are rejected with field errors.
	w = env.do(t, http.MethodPut, "/api/evaluations/"+id,
		map[string]interface{}{"year": 1800}, guestHeaders(session))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvaluationDelete(t *testing.T) {
	env := newTestEnv(t, stubProcessor{})
	id, session := createGuestEvaluation(t, env)

	w := env.do(t, http.MethodDelete, "/api/evaluations/"+id, nil, guestHeaders(session))
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/evaluations/"+id, nil, guestHeaders(session))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEvaluationAddPhoto(t *testing.T) {
	env := newTestEnv(t, stubProcessor{})
	id, session := createGuestEvaluation(t, env)

	w := env.do(t, http.MethodPost, "/api/evaluations/"+id+"/photos",
		map[string]interface{}{"filename": "front.jpg"}, guestHeaders(session))
	require.Equal(t, http.StatusCreated, w.Code)

	eval := decodeData(t, w)["evaluation"].(map[string]interface{})
	assert.Equal(t, float64(30), eval["progress"])

	photos := eval["photos"].([]interface{})
	require.Len(t, photos, 1)
	photo := photos[0].(map[string]interface{})
	assert.Equal(t, "front.jpg", photo["filename"])
	assert.NotEmpty(t, photo["url"])

	// Missing filename is rejected.
	w = env.do(t, http.MethodPost, "/api/evaluations/"+id+"/photos",
		map[string]interface{}{}, guestHeaders(session))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestCarfax(t *testing.T) {
	env := newTestEnv(t, stubProcessor{})

	// Without a VIN the order is rejected.
	id, session := createGuestEvaluation(t, env)
	w := env.do(t, http.MethodPost, "/api/evaluations/"+id+"/carfax",
		map[string]interface{}{"purchase": true}, guestHeaders(session))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// With a VIN the purchase goes through and the report is stored.
	car := map[string]interface{}{
		"year": 2020, "make": "Honda", "model": "Civic", "mileage": 30000, "price": 18000,
		"vin": "1HGCM82633A123456",
	}
	w = env.do(t, http.MethodPost, "/api/evaluations", car, guestHeaders(session))
	require.Equal(t, http.StatusCreated, w.Code)
	id = decodeData(t, w)["evaluation"].(map[string]interface{})["id"].(string)

	w = env.do(t, http.MethodPost, "/api/evaluations/"+id+"/carfax",
		map[string]interface{}{"purchase": true}, guestHeaders(session))
	require.Equal(t, http.StatusOK, w.Code)

	eval := decodeData(t, w)["evaluation"].(map[string]interface{})
	carfaxSection := eval["carfax"].(map[string]interface{})
	assert.Equal(t, true, carfaxSection["requested"])
	assert.Equal(t, true, carfaxSection["purchased"])
	assert.Equal(t, "report-1", carfaxSection["report_id"])
	// Ordering a report does not move the workflow status.
	assert.Equal(t, "draft", eval["status"])
}

func TestRequestCarfax_PaymentDeclined(t *testing.T) {
	env := newTestEnv(t, stubProcessor{decline: true})

	car := map[string]interface{}{
		"year": 2020, "make": "Honda", "model": "Civic", "mileage": 30000, "price": 18000,
		"vin": "1HGCM82633A123456",
	}
	w := env.do(t, http.MethodPost, "/api/evaluations", car, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	id := data["evaluation"].(map[string]interface{})["id"].(string)
	session := data["session_id"].(string)

	w = env.do(t, http.MethodPost, "/api/evaluations/"+id+"/carfax",
		map[string]interface{}{"purchase": true}, guestHeaders(session))
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	// The failed purchase leaves no partial carfax state behind.
	stored, err := env.evals.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, stored.Carfax.Purchased)
	assert.False(t, stored.Carfax.Requested)
}

func TestPaymentCharge(t *testing.T) {
	env := newTestEnv(t, stubProcessor{})

	w := env.do(t, http.MethodPost, "/api/payments/charge",
		map[string]interface{}{"amount": 44.99, "description": "report"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	receipt := decodeData(t, w)["receipt"].(map[string]interface{})
	assert.Equal(t, "succeeded", receipt["status"])

	w = env.do(t, http.MethodPost, "/api/payments/charge",
		map[string]interface{}{"amount": 0}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentCharge_Declined(t *testing.T) {
	env := newTestEnv(t, stubProcessor{decline: true})

	w := env.do(t, http.MethodPost, "/api/payments/charge",
		map[string]interface{}{"amount": 44.99}, nil)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}
