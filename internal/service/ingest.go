package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"SensorHub/internal/encryption"
	"SensorHub/internal/keystore"
	"SensorHub/internal/metrics"
	"SensorHub/internal/model"
	"SensorHub/internal/storage"
)

// Encryptor шифрует данные под условием.
type Encryptor interface {
	Encrypt(ctx context.Context, plaintext []byte, cond encryption.Condition, id *keystore.Identity) ([]byte, error)
}

// Feed — журнал показаний и рассылка наблюдателям.
type Feed interface {
	Append(r model.EnrichedReading)
	Publish(r model.EnrichedReading) int
	Snapshot() []model.EnrichedReading
}

// Options — параметры конвейера, общие для всех запросов.
type Options struct {
	OwnerID     string
	Condition   encryption.Condition
	Identity    *keystore.Identity
	StepTimeout time.Duration
	// Redact — не хранить и не рассылать открытые значения показаний.
	Redact bool
}

// IngestService проводит показание через шаги
// validate → encrypt → store → log → broadcast.
type IngestService struct {
	enc     Encryptor
	store   storage.BlobStore
	feed    Feed
	opts    Options
	metrics *metrics.Metrics
	logger  *zap.SugaredLogger

	now   func() time.Time
	newID func() string
}

// NewIngestService собирает конвейер. Condition и Identity только читаются.
func NewIngestService(enc Encryptor, store storage.BlobStore, feed Feed, opts Options, m *metrics.Metrics, logger *zap.SugaredLogger) *IngestService {
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 15 * time.Second
	}
	return &IngestService{
		enc:     enc,
		store:   store,
		feed:    feed,
		opts:    opts,
		metrics: m,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Ingest выполняет конвейер для одного показания. Ошибки возвращаются как *StageError.
// Откатов нет: сохранённый шифртекст остаётся в хранилище, даже если
// последующие шаги не выполнены.
func (s *IngestService) Ingest(ctx context.Context, sensorID string, body []byte) (model.EnrichedReading, error) {
	var (
		reading   model.Reading
		plaintext []byte
		payload   []byte
		address   string
		entry     model.EnrichedReading
	)

	// Received
	err := s.step(StageValidate, func() error {
		if err := ValidateSensorID(sensorID); err != nil {
			return err
		}
		r, err := ParseReading(body)
		if err != nil {
			return err
		}
		reading = r
		plaintext, err = r.Marshal()
		return err
	})
	if err != nil {
		return model.EnrichedReading{}, err
	}

	// Received → Encrypted
	err = s.step(StageEncrypt, func() error {
		cctx, cancel := context.WithTimeout(ctx, s.opts.StepTimeout)
		defer cancel()
		var err error
		payload, err = s.enc.Encrypt(cctx, plaintext, s.opts.Condition, s.opts.Identity)
		return err
	})
	if err != nil {
		return model.EnrichedReading{}, err
	}

	// Encrypted → Stored
	err = s.step(StageStore, func() error {
		cctx, cancel := context.WithTimeout(ctx, s.opts.StepTimeout)
		defer cancel()
		var err error
		address, err = s.store.Store(cctx, s.opts.OwnerID, payload)
		return err
	})
	if err != nil {
		return model.EnrichedReading{}, err
	}

	// Stored → Logged
	_ = s.step(StageLog, func() error {
		entry = model.EnrichedReading{
			ID:         s.newID(),
			SensorID:   sensorID,
			SensorData: reading,
			Address:    address,
			ReceivedAt: s.now().UTC(),
		}
		if s.opts.Redact {
			entry = entry.Redacted()
		}
		s.feed.Append(entry)
		return nil
	})

	// Logged → Acknowledged; рассылка best-effort
	var delivered int
	_ = s.step(StageBroadcast, func() error {
		delivered = s.feed.Publish(entry)
		return nil
	})

	s.metrics.IncAccepted()
	s.logger.Infow("reading accepted",
		"sensor_id", sensorID,
		"id", entry.ID,
		"address", address,
		"observers", delivered,
	)
	return entry, nil
}

// Readings возвращает снимок журнала.
func (s *IngestService) Readings() []model.EnrichedReading {
	return s.feed.Snapshot()
}

func (s *IngestService) step(stage Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.ObserveStage(string(stage), time.Since(start))
	if err != nil {
		s.metrics.IncFailed(string(stage))
		return &StageError{Stage: stage, Err: err}
	}
	return nil
}
