package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"SensorHub/internal/encryption"
	"SensorHub/internal/feed"
	"SensorHub/internal/keystore"
	"SensorHub/internal/storage"
)

// мок шифратора
type mockEncryptor struct{ mock.Mock }

func (m *mockEncryptor) Encrypt(ctx context.Context, plaintext []byte, cond encryption.Condition, id *keystore.Identity) ([]byte, error) {
	args := m.Called(ctx, plaintext, cond, id)
	if fn, ok := args.Get(0).(func(context.Context, []byte, encryption.Condition, *keystore.Identity) []byte); ok {
		return fn(ctx, plaintext, cond, id), args.Error(1)
	}
	if b, ok := args.Get(0).([]byte); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

// memStore — контентно-адресуемое хранилище в памяти
type memStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	err   error
}

func newMemStore() *memStore { return &memStore{blobs: map[string][]byte{}} }

func (s *memStore) Store(_ context.Context, _ string, payload []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	addr := storage.ContentAddress(payload)
	s.mu.Lock()
	s.blobs[addr] = append([]byte(nil), payload...)
	s.mu.Unlock()
	return addr, nil
}

func (s *memStore) Fetch(_ context.Context, address string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[address]
	if !ok {
		return nil, storage.ErrStorage
	}
	return b, nil
}

// recObserver запоминает рассылки
type recObserver struct {
	mu   sync.Mutex
	msgs []feed.Message
}

func (o *recObserver) Send(b []byte) error {
	var m feed.Message
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	o.mu.Lock()
	o.msgs = append(o.msgs, m)
	o.mu.Unlock()
	return nil
}

func (o *recObserver) Close() error { return nil }

func (o *recObserver) readings() []feed.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []feed.Message
	for _, m := range o.msgs {
		if m.Type == feed.MessageReading {
			out = append(out, m)
		}
	}
	return out
}

var testCond = encryption.IsSubscribed("0x5FbDB2315678afecb367f032d93F642f64180aa3", 80002)

func newTestService(t *testing.T, enc Encryptor, st storage.BlobStore, redact bool) (*IngestService, *feed.Feed, *recObserver) {
	t.Helper()
	f := feed.New(zap.NewNop().Sugar())
	obs := &recObserver{}
	require.NoError(t, f.Register(obs))
	svc := NewIngestService(enc, st, f, Options{
		OwnerID:     "home-1",
		Condition:   testCond,
		StepTimeout: time.Second,
		Redact:      redact,
	}, nil, zap.NewNop().Sugar())
	return svc, f, obs
}

// cipherOf — детерминированный «шифртекст» для моков
func cipherOf(plain []byte) []byte { return append([]byte("ct:"), plain...) }

func passThroughEncryptor() *mockEncryptor {
	m := &mockEncryptor{}
	m.On("Encrypt", mock.Anything, mock.Anything, testCond, (*keystore.Identity)(nil)).
		Return(func(_ context.Context, p []byte, _ encryption.Condition, _ *keystore.Identity) []byte {
			return cipherOf(p)
		}, nil)
	return m
}

func TestIngest_KitchenScenario(t *testing.T) {
	enc := passThroughEncryptor()
	st := newMemStore()
	svc, f, obs := newTestService(t, enc, st, false)

	entry, err := svc.Ingest(context.Background(), "kitchen-1", []byte(`{"temperature":21.5,"pressure":1013,"humidity":40}`))
	require.NoError(t, err)

	assert.Equal(t, "kitchen-1", entry.SensorID)
	assert.NotEmpty(t, entry.Address)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, json.Number("21.5"), entry.SensorData["temperature"])
	assert.Equal(t, json.Number("1013"), entry.SensorData["pressure"])
	assert.Equal(t, json.Number("40"), entry.SensorData["humidity"])

	snap := f.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, entry, snap[0])

	msgs := obs.readings()
	require.Len(t, msgs, 1)
	assert.Equal(t, entry.ID, msgs[0].Reading.ID)

	// адрес возвращает тот же шифртекст
	stored, err := st.Fetch(context.Background(), entry.Address)
	require.NoError(t, err)
	assert.Equal(t, cipherOf([]byte(`{"humidity":40,"pressure":1013,"temperature":21.5}`)), stored)
}

func TestIngest_MalformedNeverEncrypts(t *testing.T) {
	bodies := map[string]string{
		"not json":      `temperature=21`,
		"array":         `[1,2,3]`,
		"null":          `null`,
		"empty object":  `{}`,
		"nested":        `{"t":{"v":1}}`,
		"null value":    `{"t":null}`,
		"trailing data": `{"t":1}{"x":2}`,
		"empty":         ``,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			enc := &mockEncryptor{}
			svc, f, obs := newTestService(t, enc, newMemStore(), false)

			_, err := svc.Ingest(context.Background(), "s1", []byte(body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			stage, ok := StageOf(err)
			assert.True(t, ok)
			assert.Equal(t, StageValidate, stage)

			enc.AssertNotCalled(t, "Encrypt", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			assert.Equal(t, 0, f.Len())
			assert.Empty(t, obs.readings())
		})
	}
}

func TestIngest_InvalidSensorID(t *testing.T) {
	enc := &mockEncryptor{}
	svc, _, _ := newTestService(t, enc, newMemStore(), false)
	for _, id := range []string{"", "a b", "../etc", string(make([]byte, 200))} {
		_, err := svc.Ingest(context.Background(), id, []byte(`{"t":1}`))
		assert.ErrorIs(t, err, ErrValidation, "id %q", id)
	}
	enc.AssertNotCalled(t, "Encrypt", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIngest_EncryptFailure(t *testing.T) {
	enc := &mockEncryptor{}
	enc.On("Encrypt", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: threshold network unavailable", encryption.ErrEncryption)).Once()
	st := newMemStore()
	svc, f, obs := newTestService(t, enc, st, false)

	_, err := svc.Ingest(context.Background(), "s1", []byte(`{"t":1}`))
	assert.ErrorIs(t, err, encryption.ErrEncryption)
	stage, _ := StageOf(err)
	assert.Equal(t, StageEncrypt, stage)
	assert.Equal(t, "ConditionEncryptor", stage.Component())
	assert.Empty(t, st.blobs)
	assert.Equal(t, 0, f.Len())
	assert.Empty(t, obs.readings())
}

func TestIngest_StoreFailureNoLogNoBroadcast(t *testing.T) {
	enc := passThroughEncryptor()
	st := newMemStore()
	st.err = fmt.Errorf("%w: %w", storage.ErrStorage, storage.ErrUnauthorized)
	svc, f, obs := newTestService(t, enc, st, false)

	_, err := svc.Ingest(context.Background(), "s1", []byte(`{"t":1}`))
	assert.ErrorIs(t, err, storage.ErrUnauthorized)
	stage, _ := StageOf(err)
	assert.Equal(t, StageStore, stage)
	assert.Equal(t, 0, f.Len())
	assert.Empty(t, obs.readings())
}

func TestIngest_EncryptTimeout(t *testing.T) {
	enc := &mockEncryptor{}
	enc.On("Encrypt", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded).Once()
	f := feed.New(zap.NewNop().Sugar())
	svc := NewIngestService(enc, newMemStore(), f, Options{Condition: testCond, StepTimeout: 20 * time.Millisecond}, nil, zap.NewNop().Sugar())

	_, err := svc.Ingest(context.Background(), "s1", []byte(`{"t":1}`))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	stage, _ := StageOf(err)
	assert.Equal(t, StageEncrypt, stage)
}

func TestIngest_NoDeduplication(t *testing.T) {
	svc, f, obs := newTestService(t, passThroughEncryptor(), newMemStore(), false)
	body := []byte(`{"t":1}`)

	a, err := svc.Ingest(context.Background(), "s1", body)
	require.NoError(t, err)
	b, err := svc.Ingest(context.Background(), "s1", body)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, f.Len())
	assert.Len(t, obs.readings(), 2)
}

func TestIngest_ConcurrentNoLoss(t *testing.T) {
	svc, f, _ := newTestService(t, passThroughEncryptor(), newMemStore(), false)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Ingest(context.Background(), fmt.Sprintf("s%d", i), []byte(fmt.Sprintf(`{"seq":%d}`, i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap := svc.Readings()
	require.Len(t, snap, n)
	seen := map[string]bool{}
	for _, r := range snap {
		assert.False(t, seen[r.SensorID])
		seen[r.SensorID] = true
	}
	assert.Equal(t, n, f.Len())
}

func TestIngest_Redact(t *testing.T) {
	svc, f, obs := newTestService(t, passThroughEncryptor(), newMemStore(), true)
	entry, err := svc.Ingest(context.Background(), "s1", []byte(`{"t":1}`))
	require.NoError(t, err)
	assert.Nil(t, entry.SensorData)
	assert.Nil(t, f.Snapshot()[0].SensorData)
	assert.Nil(t, obs.readings()[0].Reading.SensorData)
	assert.NotEmpty(t, entry.Address)
}
