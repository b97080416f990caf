package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"SensorHub/internal/config"
	"SensorHub/internal/encryption"
	"SensorHub/internal/feed"
	"SensorHub/internal/handlers"
	"SensorHub/internal/keystore"
	"SensorHub/internal/metrics"
	"SensorHub/internal/service"
	"SensorHub/internal/storage"
)

const pinataJWT = "good-jwt"

// fakeEncryptor помечает шифртекст, не шифруя по-настоящему
type fakeEncryptor struct{ err error }

func (e fakeEncryptor) Encrypt(_ context.Context, plaintext []byte, _ encryption.Condition, _ *keystore.Identity) ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return append([]byte("sealed:"), plaintext...), nil
}

// fakePinata — минимальный pinJSONToIPFS
type fakePinata struct {
	mu     sync.Mutex
	pinned map[string]json.RawMessage
	calls  int
}

func newFakePinata(t *testing.T) (*fakePinata, *httptest.Server) {
	fp := &fakePinata{pinned: map[string]json.RawMessage{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp.mu.Lock()
		defer fp.mu.Unlock()
		if r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/ipfs/") {
			doc, ok := fp.pinned[strings.TrimPrefix(r.URL.Path, "/ipfs/")]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write(doc)
			return
		}
		fp.calls++
		if r.Header.Get("Authorization") != "Bearer "+pinataJWT {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req struct {
			Content json.RawMessage `json:"pinataContent"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		cid := storage.ContentAddress(req.Content)
		fp.pinned[cid] = req.Content
		_ = json.NewEncoder(w).Encode(map[string]any{"IpfsHash": cid, "PinSize": len(req.Content)})
	}))
	t.Cleanup(srv.Close)
	return fp, srv
}

func (fp *fakePinata) count() (calls, pinned int) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.calls, len(fp.pinned)
}

type testEnv struct {
	handler *handlers.Handler
	store   *storage.PinataStore
	feed    *feed.Feed
	pinata  *fakePinata
	reg     *prometheus.Registry
	cfg     *config.Config
}

type envOption func(cfg *config.Config, jwt *string, enc *fakeEncryptor)

func withJWT(jwt string) envOption {
	return func(_ *config.Config, j *string, _ *fakeEncryptor) { *j = jwt }
}

func withObserverSecret(secret string) envOption {
	return func(cfg *config.Config, _ *string, _ *fakeEncryptor) { cfg.ObserverSecret = secret }
}

func withEncryptError(err error) envOption {
	return func(_ *config.Config, _ *string, e *fakeEncryptor) { e.err = err }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	cfg := &config.Config{
		HomeUUID:        "home-1",
		AllowedNetworks: []string{"127.0.0.0/8", "192.168.0.0/16"},
		StepTimeout:     5 * time.Second,
	}
	jwt := pinataJWT
	enc := fakeEncryptor{}
	for _, o := range opts {
		o(cfg, &jwt, &enc)
	}

	fp, srv := newFakePinata(t)
	store := storage.NewPinataStore(jwt, srv.URL, srv.URL, srv.Client())

	logger := zap.NewNop().Sugar()
	f := feed.New(logger)
	t.Cleanup(f.Close)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	metrics.RegisterFeed(reg, f.Len, f.Observers)

	svc := service.NewIngestService(enc, store, f, service.Options{
		OwnerID:     cfg.HomeUUID,
		Condition:   encryption.AfterTimestamp(80002, 0),
		StepTimeout: cfg.StepTimeout,
	}, m, logger)

	h, err := handlers.NewHandler(svc, f, reg, logger, cfg)
	require.NoError(t, err)
	return &testEnv{handler: h, store: store, feed: f, pinata: fp, reg: reg, cfg: cfg}
}

func (e *testEnv) do(method, target, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "192.168.1.10:40000"
	for _, m := range mutate {
		m(req)
	}
	rr := httptest.NewRecorder()
	e.handler.Router.ServeHTTP(rr, req)
	return rr
}
