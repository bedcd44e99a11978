package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"selah/internal/util"
	"selah/pkg/ai"
	"selah/pkg/events"
	"selah/pkg/queue"
	"selah/pkg/storage"
	"selah/pkg/store"
	"selah/services/journal/internal/app"
	"selah/services/journal/internal/config"
	"selah/services/journal/internal/server"
)

const defaultSessionTTL = 7 * 24 * time.Hour

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := util.InitLogger(cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error("journal exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.FileConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionTTL, err := config.ParseDuration(cfg.SessionTTL, defaultSessionTTL)
	if err != nil {
		return fmt.Errorf("session TTL: %w", err)
	}
	jwtLeeway, err := config.ParseDuration(cfg.JWTLeeway, 0)
	if err != nil {
		return fmt.Errorf("jwt leeway: %w", err)
	}
	guidanceTimeout, err := config.ParseDuration(cfg.GuidanceTimeout, 0)
	if err != nil {
		return fmt.Errorf("guidance timeout: %w", err)
	}
	audioExpiry, err := config.ParseDuration(cfg.AudioURLExpiry, time.Hour)
	if err != nil {
		return fmt.Errorf("audio URL expiry: %w", err)
	}
	loc, err := config.LoadLocation(cfg.Timezone)
	if err != nil {
		return err
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	var rdb redis.UniversalClient
	var revoker store.TokenRevoker = store.NewMemoryTokenRevoker()
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		revoker = store.NewRedisTokenRevoker(rdb, sessionTTL)
	} else {
		logger.Warn("redis not configured; sessions revoke in-process only and rate limits are off")
	}

	sessions, err := store.NewJWTSessionStore(cfg.JWTSecret, sessionTTL, revoker, store.JWTOptions{
		Issuer:          cfg.JWTIssuer,
		Audience:        cfg.JWTAudience,
		Leeway:          jwtLeeway,
		PreviousSecrets: cfg.JWTPreviousSecrets,
	})
	if err != nil {
		return fmt.Errorf("init sessions: %w", err)
	}

	appCfg := app.Config{
		DatabaseURL:     cfg.DatabaseURL,
		EmbeddingDim:    cfg.EmbeddingDim,
		Sessions:        sessions,
		GuidanceTimeout: guidanceTimeout,
		Location:        loc,
	}

	appCfg.Generator, err = newGenerator(cfg, guidanceTimeout)
	switch {
	case errors.Is(err, ai.ErrAPIKeyRequired):
		logger.Warn("guidance disabled: no API key for provider", "provider", cfg.GuidanceProvider)
	case err != nil:
		return fmt.Errorf("init guidance generator: %w", err)
	}

	transcriber, err := ai.NewWhisperTranscriber(ai.TranscriberConfig{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.TranscribeModel,
	})
	switch {
	case errors.Is(err, ai.ErrAPIKeyRequired):
		logger.Warn("transcription disabled: OPENAI_API_KEY not set")
	case err != nil:
		return fmt.Errorf("init transcriber: %w", err)
	default:
		appCfg.Transcriber = transcriber
	}

	if cfg.EmbeddingBaseURL != "" && cfg.EmbeddingModel != "" {
		appCfg.Embedder = ai.NewOllamaEmbedder(ai.NewOllamaClient(cfg.EmbeddingBaseURL), cfg.EmbeddingModel, cfg.EmbeddingDim)
	}

	if cfg.MinioEndpoint != "" {
		objects, err := storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:      cfg.MinioEndpoint,
			Region:        cfg.MinioRegion,
			AccessKey:     cfg.MinioAccessKey,
			SecretKey:     cfg.MinioSecretKey,
			Bucket:        cfg.MinioBucket,
			UseSSL:        cfg.MinioUseSSL,
			RetentionDays: cfg.AudioRetentionDays,
		})
		if err != nil {
			return fmt.Errorf("init object storage: %w", err)
		}
		appCfg.Archive = storage.NewAudioArchive(objects, audioExpiry)
	}

	if cfg.AMQPURL != "" {
		publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return fmt.Errorf("init event publisher: %w", err)
		}
		defer publisher.Close()
		appCfg.Publisher = publisher
	}

	var jobs *queue.RedisQueue
	if rdb != nil {
		jobs, err = queue.New(queue.Config{
			Client: rdb,
			Prefix: "selah:journal:streak-reconcile",
			Group:  "journal",
		})
		if err != nil {
			return fmt.Errorf("init reconcile queue: %w", err)
		}
		appCfg.Queue = jobs
	}

	appCore, err := app.New(appCfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer appCore.Close()

	if jobs != nil {
		concurrency := max(cfg.QueueConcurrency, 1)
		jobs.Start(ctx, concurrency, func(ctx context.Context, job queue.Job) error {
			return appCore.ReconcileStreak(ctx, job.UserID)
		})
	}

	httpServer, err := server.New(server.Config{
		App:                          appCore,
		AllowedOrigins:               cfg.AllowedOrigins,
		TrustedProxies:               trusted,
		MaxAudioBytes:                cfg.MaxAudioBytes,
		Redis:                        rdb,
		SignupRateLimitPerMinute:     cfg.SignupRateLimitPerMinute,
		LoginRateLimitPerMinute:      cfg.LoginRateLimitPerMinute,
		GuidanceRateLimitPerMinute:   cfg.GuidanceRateLimitPerMinute,
		TranscribeRateLimitPerMinute: cfg.TranscribeRateLimitPerMinute,
	})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      util.WithRequestID(util.WithRequestLog("journal", httpServer.Router())),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("journal server listening", "addr", addr, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down journal server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newGenerator picks the API key matching the configured provider.
func newGenerator(cfg config.FileConfig, timeout time.Duration) (ai.TextGenerator, error) {
	key := cfg.AnthropicAPIKey
	if strings.EqualFold(strings.TrimSpace(cfg.GuidanceProvider), ai.ProviderOpenAI) {
		key = cfg.OpenAIAPIKey
	}
	return ai.NewTextGenerator(ai.GeneratorConfig{
		Provider:    cfg.GuidanceProvider,
		APIKey:      key,
		BaseURL:     cfg.GuidanceBaseURL,
		Model:       cfg.GuidanceModel,
		MaxTokens:   cfg.GuidanceMaxTokens,
		Temperature: cfg.GuidanceTemperature,
		Timeout:     timeout,
	})
}
