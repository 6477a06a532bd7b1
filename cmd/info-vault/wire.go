package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/thewatergategroups/info-vault/internal/adapters/driven/ai"
	"github.com/thewatergategroups/info-vault/internal/adapters/driven/entrypoint"
	"github.com/thewatergategroups/info-vault/internal/adapters/driven/google"
	driveconnector "github.com/thewatergategroups/info-vault/internal/adapters/driven/google/drive"
	gmailconnector "github.com/thewatergategroups/info-vault/internal/adapters/driven/google/gmail"
	"github.com/thewatergategroups/info-vault/internal/adapters/driven/pgvector"
	"github.com/thewatergategroups/info-vault/internal/adapters/driven/postgres"
	redisadapter "github.com/thewatergategroups/info-vault/internal/adapters/driven/redis"
	"github.com/thewatergategroups/info-vault/internal/adapters/driven/s3"
	"github.com/thewatergategroups/info-vault/internal/adapters/driven/vespa"
	"github.com/thewatergategroups/info-vault/internal/adapters/driving/http"
	"github.com/thewatergategroups/info-vault/internal/config"
	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
	"github.com/thewatergategroups/info-vault/internal/core/services"
	"github.com/thewatergategroups/info-vault/internal/parser"
	"github.com/thewatergategroups/info-vault/internal/runtime"
	"github.com/thewatergategroups/info-vault/internal/worker"
)

// wiring collects what build opens so a failed startup can release it.
type wiring struct {
	ctx     context.Context
	cfg     *config.Config
	logger  *slog.Logger
	coord   *runtime.Coordinator
	closers []func() error

	redis  *redis.Client
	pubsub *redisadapter.PubSub
	blobs  *s3.Store
	db     *postgres.DB
	pool   *pgxpool.Pool
	tokens *redisadapter.TokenStore
	worker *worker.Worker
}

func (w *wiring) onClose(fn func() error) {
	w.closers = append(w.closers, fn)
}

func (w *wiring) release() {
	for i := len(w.closers) - 1; i >= 0; i-- {
		if err := w.closers[i](); err != nil {
			w.logger.Warn("cleanup failed", "error", err)
		}
	}
}

// build connects the infrastructure the run mode needs and registers its
// components with a coordinator.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime.Coordinator, error) {
	w := &wiring{
		ctx:    ctx,
		cfg:    cfg,
		logger: logger,
		coord: runtime.NewCoordinator(runtime.CoordinatorConfig{
			ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
			Logger:          logger,
		}),
	}

	if err := w.wire(); err != nil {
		w.release()
		return nil, err
	}
	for _, fn := range w.closers {
		w.coord.OnClose(fn)
	}
	return w.coord, nil
}

func (w *wiring) wire() error {
	mode := w.cfg.RunMode
	api := mode == config.ModeAPI || mode == config.ModeAll
	ingest := mode == config.ModeWorker || mode == config.ModeAll
	sweep := mode == config.ModeConnectors || mode == config.ModeAll

	if err := w.connectRedis(); err != nil {
		return err
	}
	if api || ingest {
		if err := w.connectBlobStore(); err != nil {
			return err
		}
	}

	if ingest {
		if err := w.wireWorker(); err != nil {
			return err
		}
	}
	if api {
		if err := w.wireAPI(); err != nil {
			return err
		}
	}
	if sweep {
		if !w.cfg.ConnectorsEnabled() {
			if mode == config.ModeConnectors {
				return fmt.Errorf("%w: connectors mode needs GMAIL_ENABLED or DRIVE_ENABLED", domain.ErrInvalidInput)
			}
			w.logger.Info("no connectors enabled; scheduler not started")
			return nil
		}
		if err := w.wireScheduler(); err != nil {
			return err
		}
	}
	return nil
}

func (w *wiring) connectRedis() error {
	opts, err := redis.ParseURL(w.cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	w.redis = redis.NewClient(opts)
	w.onClose(w.redis.Close)

	if err := w.redis.Ping(w.ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	w.pubsub = redisadapter.NewPubSub(w.redis, redisadapter.PubSubConfig{
		Channel: w.cfg.Redis.NotificationChannel,
		Logger:  w.logger,
	})

	w.tokens = redisadapter.NewTokenStore(w.redis, "")
	if key := w.cfg.Redis.TokenEncryptionKey; key != "" {
		sealer, err := redisadapter.NewSealer(decodeKey(key))
		if err != nil {
			return fmt.Errorf("invalid TOKEN_ENCRYPTION_KEY: %w", err)
		}
		w.tokens.WithSealer(sealer)
	}

	w.logger.Info("connected to redis", "channel", w.pubsub.Channel())
	return nil
}

// decodeKey accepts a hex-encoded key and falls back to the raw bytes.
func decodeKey(key string) []byte {
	if b, err := hex.DecodeString(key); err == nil {
		return b
	}
	return []byte(key)
}

// connectBlobStore fails startup when the bucket is unreachable.
func (w *wiring) connectBlobStore() error {
	store, err := s3.New(w.ctx, s3.Config{
		Bucket:    w.cfg.S3.Bucket,
		Region:    w.cfg.S3.Region,
		Endpoint:  w.cfg.S3.Endpoint,
		AccessKey: w.cfg.S3.AccessKey,
		SecretKey: w.cfg.S3.SecretKey,
		PathStyle: w.cfg.S3.PathStyle,
		Logger:    w.logger,
	})
	if err != nil {
		return err
	}
	if err := store.EnsureBucket(w.ctx); err != nil {
		return err
	}
	w.blobs = store
	return nil
}

func (w *wiring) connectPostgres() error {
	if w.db != nil {
		return nil
	}
	dbCfg := postgres.DefaultConfig(w.cfg.Postgres.URL)
	dbCfg.MaxOpenConns = w.cfg.Postgres.MaxOpenConns
	dbCfg.MaxIdleConns = w.cfg.Postgres.MaxIdleConns
	dbCfg.ConnMaxLifetime = w.cfg.Postgres.ConnMaxLifetime
	dbCfg.ConnMaxIdleTime = w.cfg.Postgres.ConnMaxIdleTime

	db, err := postgres.Connect(w.ctx, dbCfg)
	if err != nil {
		return err
	}
	w.onClose(db.Close)

	if err := db.InitSchema(w.ctx); err != nil {
		return err
	}
	w.db = db
	w.logger.Info("connected to postgres")
	return nil
}

func (w *wiring) wireAPI() error {
	if err := w.connectPostgres(); err != nil {
		return err
	}

	documents := services.NewDocumentService(w.blobs, postgres.NewDocumentStore(w.db), w.pubsub, w.logger)

	deps := http.Dependencies{
		Documents: documents,
		Checks: []http.ReadinessCheck{
			{Name: "postgres", Pinger: http.PingFunc(w.db.Ping)},
			{Name: "redis", Pinger: http.PingFunc(w.pubsub.Ping)},
			{Name: "s3", Pinger: http.PingFunc(w.blobs.Exists)},
		},
	}
	if w.worker != nil {
		deps.Checks = append(deps.Checks, http.ReadinessCheck{Name: "worker", Pinger: http.PingFunc(w.workerReady)})
	}
	if w.cfg.Google.Configured() {
		deps.Authorizer = google.NewAuthorizer(w.oauthConfig(), w.tokens)
	}

	httpCfg := http.DefaultConfig()
	httpCfg.Host = w.cfg.HTTP.Host
	httpCfg.Port = w.cfg.HTTP.Port
	httpCfg.Version = version
	httpCfg.AllowedOrigins = w.cfg.HTTP.AllowedOrigins
	httpCfg.MaxUploadBytes = w.cfg.HTTP.MaxUploadBytes
	httpCfg.ShutdownTimeout = w.cfg.HTTP.ShutdownTimeout
	httpCfg.Logger = w.logger

	w.coord.Register("http", http.NewServer(httpCfg, deps))
	return nil
}

// workerReady fails while the in-process worker is not listening.
func (w *wiring) workerReady(ctx context.Context) error {
	health := w.worker.Health(ctx)
	switch {
	case !health.Running:
		return errors.New("worker not running")
	case !health.BrokerHealth:
		return fmt.Errorf("worker broker unhealthy: %s", health.Error)
	}
	return nil
}

func (w *wiring) wireWorker() error {
	backends, err := w.indexBackends()
	if err != nil {
		return err
	}

	ingestion, err := services.NewIngestionService(services.IngestionConfig{
		BlobStore:      w.blobs,
		Parser:         parser.DefaultRegistry(),
		Backends:       backends,
		Logger:         w.logger,
		BackendTimeout: w.cfg.Index.BackendTimeout,
	})
	if err != nil {
		return err
	}
	w.onClose(func() error {
		ingestion.Close()
		return nil
	})

	w.worker = worker.NewWorker(worker.WorkerConfig{
		Subscriber: w.pubsub,
		Ingestion:  ingestion,
		Logger:     w.logger,
	})
	w.coord.Register("worker", w.worker)
	return nil
}

// indexBackends builds one backend per INDEX_BACKENDS entry. pgvector
// backends share a pool and each gets a table named after its provider.
func (w *wiring) indexBackends() ([]driven.IndexBackend, error) {
	var backends []driven.IndexBackend

	for _, name := range w.cfg.Index.Backends {
		switch name {
		case config.BackendVespa:
			vcfg := vespa.DefaultConfig(w.cfg.Index.VespaURL)
			vcfg.Logger = w.logger
			backends = append(backends, vespa.NewBackend(vcfg))

		case config.BackendPgvectorOpenAI, config.BackendPgvectorOllama, config.BackendPgvectorGemini:
			backend, err := w.pgvectorBackend(name)
			if err != nil {
				return nil, err
			}
			backends = append(backends, backend)
		}
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("%w: no index backends configured", domain.ErrInvalidInput)
	}
	return backends, nil
}

func (w *wiring) embeddingSettings(backend string) (*ai.EmbeddingSettings, string) {
	idx := w.cfg.Index
	switch backend {
	case config.BackendPgvectorOpenAI:
		return &ai.EmbeddingSettings{Provider: ai.ProviderOpenAI, APIKey: idx.OpenAIAPIKey, Model: idx.OpenAIModel, BaseURL: idx.OpenAIBaseURL}, "chunks_openai"
	case config.BackendPgvectorOllama:
		return &ai.EmbeddingSettings{Provider: ai.ProviderOllama, Model: idx.OllamaModel, BaseURL: idx.OllamaHost}, "chunks_ollama"
	default:
		return &ai.EmbeddingSettings{Provider: ai.ProviderGemini, APIKey: idx.GeminiAPIKey, Model: idx.GeminiModel}, "chunks_gemini"
	}
}

func (w *wiring) pgvectorBackend(name string) (*pgvector.Backend, error) {
	settings, table := w.embeddingSettings(name)

	embedder, err := ai.NewEmbeddingService(w.ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder for %s: %w", name, err)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: %s is missing provider credentials", domain.ErrInvalidInput, name)
	}
	w.onClose(embedder.Close)

	if w.pool == nil {
		pool, err := pgvector.Connect(w.ctx, w.cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		w.onClose(func() error {
			pool.Close()
			return nil
		})
		w.pool = pool
	}

	backend, err := pgvector.NewBackend(w.pool, pgvector.Config{
		Name:     name,
		Table:    table,
		Embedder: embedder,
		Logger:   w.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureSchema(w.ctx); err != nil {
		return nil, err
	}
	return backend, nil
}

func (w *wiring) oauthConfig() *oauth2.Config {
	return google.OAuthConfig(w.cfg.Google.ClientID, w.cfg.Google.ClientSecret, w.cfg.Google.RedirectURL)
}

func (w *wiring) wireScheduler() error {
	tokens := google.NewTokenSource(w.ctx, w.oauthConfig(), w.tokens, w.logger)

	var jobs []services.SweepJob

	if gc := w.cfg.Gmail; gc.Enabled {
		svc, err := google.NewGmailService(w.ctx, tokens)
		if err != nil {
			return err
		}
		jobs = append(jobs, services.SweepJob{
			Connector: gmailconnector.New(svc, gmailconnector.Config{
				Query:      gc.Query,
				MaxResults: gc.PageSize,
				FetchLimit: gc.FetchLimit,
				Logger:     w.logger,
			}),
			Filter:            domain.ExcludeExtensions(gc.ExcludedExtensions),
			Concurrency:       gc.Concurrency,
			ExpandConcurrency: gc.MessageConcurrency,
			Interval:          gc.PollInterval,
		})
	}

	if dc := w.cfg.Drive; dc.Enabled {
		svc, err := google.NewDriveService(w.ctx, tokens)
		if err != nil {
			return err
		}
		jobs = append(jobs, services.SweepJob{
			Connector: driveconnector.New(svc, driveconnector.Config{
				Query:    dc.Query,
				PageSize: dc.PageSize,
				Logger:   w.logger,
			}),
			Filter:      domain.ExcludeExtensions(dc.ExcludedExtensions),
			Concurrency: dc.Concurrency,
			Interval:    dc.PollInterval,
		})
	}

	enumerator := services.NewEnumerator(services.EnumeratorConfig{
		Entrypoint: entrypoint.NewClient(entrypoint.Config{
			BaseURL: w.cfg.IngestionAPIURL,
			Logger:  w.logger,
		}),
		Logger: w.logger,
	})

	lock, err := w.sweepLock()
	if err != nil {
		return err
	}

	w.coord.Register("scheduler", services.NewScheduler(services.SchedulerConfig{
		Enumerator: enumerator,
		Jobs:       jobs,
		Lock:       lock,
		Logger:     w.logger,
	}))
	return nil
}

func (w *wiring) sweepLock() (driven.DistributedLock, error) {
	switch w.cfg.LockBackend {
	case config.LockRedis:
		return redisadapter.NewLock(w.redis, ""), nil
	case config.LockPostgres:
		if err := w.connectPostgres(); err != nil {
			return nil, err
		}
		return postgres.NewAdvisoryLock(w.db), nil
	default:
		return nil, nil
	}
}
