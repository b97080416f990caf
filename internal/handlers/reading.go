package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"SensorHub/internal/config"
	"SensorHub/internal/feed"
	"SensorHub/internal/middleware"
	"SensorHub/internal/service"
)

const (
	maxReadingBody = 1 << 20
	observerBuffer = 64
)

// ReadingHandler принимает показания датчиков и отдаёт их наблюдателям.
type ReadingHandler struct {
	IngestService *service.IngestService
	Feed          *feed.Feed
	Logger        *zap.SugaredLogger
	Config        *config.Config

	upgrader websocket.Upgrader
}

// NewReadingHandler создаёт хендлер показаний
func NewReadingHandler(ingestService *service.IngestService, f *feed.Feed, logger *zap.SugaredLogger, cfg *config.Config) *ReadingHandler {
	return &ReadingHandler{
		IngestService: ingestService,
		Feed:          f,
		Logger:        logger,
		Config:        cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// доступ уже ограничен списком сетей и токеном наблюдателя
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// AcceptedResponse — ответ на принятое показание.
type AcceptedResponse struct {
	Message    string          `json:"message"`
	SensorID   string          `json:"sensorId"`
	SensorData json.RawMessage `json:"sensorData"`
}

// ErrorResponse — тело ответа об ошибке.
type ErrorResponse struct {
	ErrorMessage string `json:"error_message"`
	Err          string `json:"err"`
}

// Receive приём показания: POST /sensor-reading/{sensorId}
func (h *ReadingHandler) Receive(w http.ResponseWriter, r *http.Request) {
	sensorID := chi.URLParam(r, "sensorId")

	r.Body = http.MaxBytesReader(w, r.Body, maxReadingBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.Logger.Warnw("Receive: failed to read body", "sensor_id", sensorID, "error", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			ErrorMessage: "Invalid sensor reading",
			Err:          "request body is too large or unreadable",
		})
		return
	}

	if _, err := h.IngestService.Ingest(r.Context(), sensorID, body); err != nil {
		stage, _ := service.StageOf(err)
		if errors.Is(err, service.ErrValidation) {
			h.Logger.Warnw("Receive: invalid reading", "sensor_id", sensorID, "error", err)
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				ErrorMessage: "Invalid sensor reading",
				Err:          err.Error(),
			})
			return
		}
		h.Logger.Errorw("Receive: pipeline failed",
			"sensor_id", sensorID,
			"stage", string(stage),
			"component", stage.Component(),
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			ErrorMessage: "Internal error",
			Err:          "failed to process sensor reading",
		})
		return
	}

	writeJSON(w, http.StatusOK, AcceptedResponse{
		Message:    "Sensor data received",
		SensorID:   sensorID,
		SensorData: json.RawMessage(body),
	})
}

// List снимок журнала: GET /readings
func (h *ReadingHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.IngestService.Readings())
}

// Subscribe подписка на живую ленту: GET /ws
func (h *ReadingHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.Logger.Warnw("Subscribe: upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	obs := feed.NewWSObserver(conn, observerBuffer)
	if err := h.Feed.Register(obs); err != nil {
		h.Logger.Warnw("Subscribe: register failed", "remote", r.RemoteAddr, "error", err)
		_ = obs.Close()
		return
	}
	defer h.Feed.Unregister(obs)

	name, _ := middleware.GetObserverFromContext(r.Context())
	h.Logger.Infow("observer connected", "remote", r.RemoteAddr, "observer", name, "total", h.Feed.Observers())
	obs.Run(r.Context())
	h.Logger.Infow("observer disconnected", "remote", r.RemoteAddr, "observer", name)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
