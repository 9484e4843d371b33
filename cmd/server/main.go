package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/autoassist/car-buying-assistant/internal/auth"
	"github.com/autoassist/car-buying-assistant/internal/carfax"
	"github.com/autoassist/car-buying-assistant/internal/config"
	"github.com/autoassist/car-buying-assistant/internal/db"
	"github.com/autoassist/car-buying-assistant/internal/events"
	"github.com/autoassist/car-buying-assistant/internal/handlers"
	"github.com/autoassist/car-buying-assistant/internal/market"
	"github.com/autoassist/car-buying-assistant/internal/middleware"
	"github.com/autoassist/car-buying-assistant/internal/payments"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := log.New()
	if cfg.IsProduction() {
		logger.SetFormatter(&log.JSONFormatter{})
	}

	client, err := db.ConnectMongo(cfg.MongoURI)
	if err != nil {
		logger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())
	logger.Info("Connected to MongoDB")

	database := client.Database(cfg.MongoDatabase)
	evaluations := &db.MongoEvaluationCollection{Collection: database.Collection("evaluations")}
	users := &db.MongoUserCollection{Collection: database.Collection("users")}

	authService := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.MQTTBroker != "" {
		mqttPub, err := events.NewMQTTPublisher(cfg.MQTTBroker, "car-buying-assistant", cfg.MQTTTopic, logger)
		if err != nil {
			logger.WithError(err).Warn("MQTT unavailable, status events disabled")
		} else {
			defer mqttPub.Close()
			publisher = mqttPub
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := middleware.NewRateLimitStore()
	limiter.StartSweeper(ctx, cfg.RateLimitWindow)

	identity := middleware.NewIdentity(authService)
	authHandler := handlers.NewAuthHandler(authService, users, logger, cfg.IsProduction())
	evalHandler := handlers.NewEvaluationHandler(
		evaluations,
		market.NewMockEstimator(),
		carfax.NewMockProvider(),
		payments.NewMockProcessor(),
		publisher,
		authService,
		logger,
		cfg.IsProduction(),
	)
	paymentHandler := handlers.NewPaymentHandler(payments.NewMockProcessor(), logger, cfg.IsProduction())

	router := handlers.NewRouter(
		logger,
		identity,
		limiter,
		cfg.RateLimitMax,
		cfg.RateLimitWindow,
		authHandler,
		evalHandler,
		paymentHandler,
	)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Infof("HTTP server listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}
