package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"SensorHub/internal/config"
	"SensorHub/internal/encryption"
	"SensorHub/internal/feed"
	"SensorHub/internal/handlers"
	"SensorHub/internal/keystore"
	"SensorHub/internal/metrics"
	"SensorHub/internal/middleware"
	"SensorHub/internal/repo"
	"SensorHub/internal/service"
	"SensorHub/internal/storage"
)

func main() {
	cfg := config.NewConfig()

	// создаём предустановленный регистратор zap
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.LogJSON {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}

	// делаем регистратор SugaredLogger
	sugar := logger.Sugar()
	middleware.SetLogger(sugar) // передаём логгер в middleware
	//сброс буфера логгера
	defer func() {
		if err := logger.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) {
			sugar.Errorw("Failed to sync logger", "error", err)
		}
	}()

	if err := cfg.Validate(); err != nil {
		sugar.Fatalw("invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// идентичность сервера: создаётся при первом запуске
	identity, err := keystore.Obtain(cfg.WalletPath, cfg.WalletPassword)
	if err != nil {
		sugar.Fatalw("failed to open keystore", "path", cfg.WalletPath, "error", err)
	}
	sugar.Infow("Keystore ready", "address", identity.Address().Hex())

	// шифрование
	chain, err := ethclient.DialContext(ctx, cfg.RPCProvider)
	if err != nil {
		sugar.Fatalw("failed to create RPC client", "error", err)
	}
	defer chain.Close()
	httpClient := &http.Client{Timeout: cfg.StepTimeout}
	encryptor := encryption.NewThresholdEncryptor(
		cfg.TacoDomain,
		chain,
		encryption.NewPorterRitualSource(cfg.PorterURL, httpClient),
	)
	condition := encryption.IsSubscribed(cfg.ContractAddress, cfg.ChainID)

	// хранилище
	var store storage.BlobStore
	switch cfg.StorageBackend {
	case "local":
		gormDB, err := repo.InitDB(cfg.DatabaseDSN)
		if err != nil {
			sugar.Fatalw("failed to initialize database", "error", err)
		}
		store = storage.NewLocalStore(repo.NewBlobRepository(gormDB))
	default:
		pinata := storage.NewPinataStore(cfg.PinataJWT, cfg.PinataAPIURL, cfg.PinataGatewayURL, httpClient)
		actx, cancel := context.WithTimeout(ctx, cfg.StepTimeout)
		if err := pinata.TestAuthentication(actx); err != nil {
			// не фатально: ошибка повторится на первом показании
			sugar.Warnw("Pinata authentication check failed", "error", err)
		}
		cancel()
		store = pinata
	}

	// лента
	var feedOpts []feed.Option
	if cfg.NATSURL != "" {
		relay, err := feed.NewNATSRelay(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			sugar.Fatalw("failed to connect to NATS", "url", cfg.NATSURL, "error", err)
		}
		defer relay.Close()
		feedOpts = append(feedOpts, feed.WithRelay(relay))
	}
	readingFeed := feed.New(sugar, feedOpts...)
	defer readingFeed.Close()

	// метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	metrics.RegisterFeed(reg, readingFeed.Len, readingFeed.Observers)

	ingestService := service.NewIngestService(encryptor, store, readingFeed, service.Options{
		OwnerID:     cfg.HomeUUID,
		Condition:   condition,
		Identity:    identity,
		StepTimeout: cfg.StepTimeout,
		Redact:      cfg.Redact,
	}, m, sugar)

	h, err := handlers.NewHandler(ingestService, readingFeed, reg, sugar, cfg)
	if err != nil {
		sugar.Fatalw("failed to build router", "error", err)
	}

	addr := cfg.BaseURL

	sugar.Infow(
		"Starting server",
		"addr", addr,
	)

	sugar.Infow("Config",
		"BaseURL", cfg.BaseURL,
		"StorageBackend", cfg.StorageBackend,
		"TacoDomain", cfg.TacoDomain,
		"ChainID", cfg.ChainID,
		"AllowedNetworks", cfg.AllowedNetworks,
		"Redact", cfg.Redact,
		"NATS", cfg.NATSURL != "",
	)

	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router,
		ReadHeaderTimeout: 10 * time.Second,
		// отмена ctx закрывает и websocket-подписки
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		sugar.Infow("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			sugar.Errorw("Server shutdown failed", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sugar.Fatalw("Server failed", "error", err)
	}
}
