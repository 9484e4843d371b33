package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/autoassist/car-buying-assistant/internal/middleware"
)

// NewRouter assembles the full API surface. Every route runs through
// request logging, rate limiting and principal resolution; the guarded
// auth routes additionally require an authenticated user.
func NewRouter(
	logger *log.Logger,
	identity *middleware.Identity,
	limiter *middleware.RateLimitStore,
	rateMax int,
	rateWindow time.Duration,
	authHandler *AuthHandler,
	evalHandler *EvaluationHandler,
	paymentHandler *PaymentHandler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.RateLimit(limiter, rateMax, rateWindow))
	r.Use(identity.Resolve)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusOK, "ok")
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Get("/profile", authHandler.GetProfile)
				r.Put("/profile", authHandler.UpdateProfile)
				r.Post("/change-password", authHandler.ChangePassword)
			})
		})

		r.Route("/evaluations", func(r chi.Router) {
			r.Post("/", evalHandler.Create)
			r.Get("/", evalHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", evalHandler.Get)
				r.Put("/", evalHandler.Update)
				r.Delete("/", evalHandler.Delete)
				r.Post("/analyze", evalHandler.Analyze)
				r.Put("/inspection", evalHandler.UpdateInspection)
				r.Post("/recommendations", evalHandler.GenerateRecommendations)
				r.Post("/photos", evalHandler.AddPhoto)
				r.Post("/carfax", evalHandler.RequestCarfax)
			})
		})

		r.Post("/payments/charge", paymentHandler.Charge)
	})

	return r
}
