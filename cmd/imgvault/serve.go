package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"imgvault/internal/auth"
	"imgvault/internal/backend"
	"imgvault/internal/config"
	"imgvault/internal/envelope"
	"imgvault/internal/ingest"
	"imgvault/internal/ratelimit"
	"imgvault/internal/server"
)

func newServeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"srv"},
		Short:   "Run the imgvault API server",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if err := opts.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := buildApp(ctx, opts.cfg, slog.Default())
			if err != nil {
				return err
			}
			return a.run(ctx)
		},
	}
}

type app struct {
	server *server.Server
	worker *ingest.Worker
}

// buildApp wires the upload pipeline, the worker and the HTTP server.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		return nil, err
	}
	codec, err := envelope.New(key)
	if err != nil {
		return nil, err
	}

	store, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := store.TestConnection(ctx); err != nil {
		logger.Warn("backend connection test failed", "backend", cfg.Backend.Kind, "error", err)
	} else {
		logger.Info("backend connected", "backend", cfg.Backend.Kind)
	}

	queue, err := ingest.NewQueue(cfg.Worker.QueueCapacity)
	if err != nil {
		return nil, err
	}
	jobs := ingest.NewJobStore()
	pipeline, err := ingest.NewPipeline(ingest.PipelineOptions{
		MaxFileSize:  cfg.MaxFileSize,
		AllowedTypes: cfg.AllowedImageTypes,
		Sealer:       codec,
		Queue:        queue,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	worker, err := ingest.NewWorker(ingest.WorkerOptions{
		Queue:   queue,
		Store:   jobs,
		Backend: store,
		Delay:   cfg.UploadDelay(),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	admin, err := auth.NewAdminVerifier(cfg.AdminSecret)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		logger.Info("admin endpoint disabled; set admin_secret to enable it")
	}

	srv, err := server.New(server.Options{
		Addr:              cfg.BindAddress,
		Pipeline:          pipeline,
		Jobs:              jobs,
		Codec:             codec,
		Backend:           store,
		Limiter:           ratelimit.New(cfg.RateLimitPerMinute),
		Admin:             admin,
		Version:           version,
		TrustForwardedFor: cfg.TrustForwardedFor,
		FetchClient:       &http.Client{Timeout: cfg.BackendTimeout()},
		Logger:            logger.With("component", "server"),
	})
	if err != nil {
		return nil, err
	}

	return &app{server: srv, worker: worker}, nil
}

// run serves until ctx is cancelled, then stops the worker.
func (a *app) run(ctx context.Context) error {
	workerCtx, stopWorker := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.worker.Run(workerCtx)
	}()

	err := a.server.ListenAndServe(ctx)
	stopWorker()
	wg.Wait()
	return err
}

func newBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backend.Backend, error) {
	switch cfg.Backend.Kind {
	case config.BackendTelegram:
		tg, err := backend.NewTelegram(backend.TelegramConfig{
			BotToken:  cfg.Backend.Telegram.BotToken,
			ChatID:    cfg.Backend.Telegram.ChatID,
			LogChatID: cfg.Backend.Telegram.LogChatID,
			APIURL:    cfg.Backend.Telegram.APIURL,
			Timeout:   cfg.BackendTimeout(),
		}, nil, logger)
		if err != nil {
			return nil, err
		}
		return tg, nil
	case config.BackendS3:
		s3, err := backend.NewS3(ctx, backend.S3Config{
			Bucket:          cfg.Backend.S3.Bucket,
			Region:          cfg.Backend.S3.Region,
			Endpoint:        cfg.Backend.S3.Endpoint,
			AccessKeyID:     cfg.Backend.S3.AccessKeyID,
			SecretAccessKey: cfg.Backend.S3.SecretAccessKey,
			PathStyle:       cfg.Backend.S3.PathStyle,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s3, nil
	case config.BackendLocal:
		local, err := backend.NewLocal(cfg.Backend.Local.Root, logger)
		if err != nil {
			return nil, err
		}
		return local, nil
	case config.BackendMemory:
		logger.Warn("memory backend keeps images only until restart")
		return backend.NewMemory(logger), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
	}
}
