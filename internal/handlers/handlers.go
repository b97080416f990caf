package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"SensorHub/internal/config"
	"SensorHub/internal/feed"
	"SensorHub/internal/middleware"
	"SensorHub/internal/service"
)

type Handler struct {
	Router chi.Router
}

// NewHandler разводящий для хендлеров
func NewHandler(
	ingestService *service.IngestService,
	readingFeed *feed.Feed,
	gatherer prometheus.Gatherer,
	logger *zap.SugaredLogger,
	cfg *config.Config,
) (*Handler, error) {
	allowed, err := config.ParsePrefixes(cfg.AllowedNetworks)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	r.Use(middleware.WithLogging)
	r.Use(middleware.WithAllowedNetworks(allowed))

	readingHandler := NewReadingHandler(ingestService, readingFeed, logger, cfg)

	// Ingestion
	r.Post("/sensor-reading/{sensorId}", readingHandler.Receive)

	// Observers
	r.Group(func(r chi.Router) {
		r.Use(middleware.WithObserverAuth(cfg.ObserverSecret))
		r.With(middleware.WithGzip).Get("/readings", readingHandler.List)
		r.Get("/ws", readingHandler.Subscribe)
	})

	// Service
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Handler{Router: r}, nil
}
