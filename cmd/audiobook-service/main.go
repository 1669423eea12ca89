// main package for the audiobook-service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/book-expert/audiobook-service/internal/api/handlers"
	"github.com/book-expert/audiobook-service/internal/auth"
	"github.com/book-expert/audiobook-service/internal/config"
	"github.com/book-expert/audiobook-service/internal/database"
	"github.com/book-expert/audiobook-service/internal/extract"
	"github.com/book-expert/audiobook-service/internal/notify"
	"github.com/book-expert/audiobook-service/internal/repository"
	"github.com/book-expert/audiobook-service/internal/server"
	"github.com/book-expert/audiobook-service/internal/service"
	"github.com/book-expert/audiobook-service/internal/storage"
	"github.com/book-expert/audiobook-service/internal/token"
	"github.com/book-expert/audiobook-service/internal/tts"
	"github.com/book-expert/audiobook-service/internal/worker"
)

const connectTimeout = 10 * time.Second

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "audiobook-service.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runService(ctx, cfg, log)
}

func runService(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	migrateErr := database.Migrate(cfg.Database, log)
	if migrateErr != nil {
		return migrateErr
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := database.Connect(connectCtx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	streamErr := worker.EnsureJobStream(jetstreamContext, cfg.NATS)
	if streamErr != nil {
		return streamErr
	}

	store, err := storage.New(cfg, jetstreamContext, log)
	if err != nil {
		return err
	}

	synthesizer, err := tts.NewSynthesizer(cfg, log)
	if err != nil {
		return err
	}

	users := repository.NewUserRepository(pool)
	books := repository.NewBookRepository(pool)
	jobs := repository.NewAudioJobRepository(pool)

	tokens := auth.NewManager(cfg.Auth)
	issuer := token.NewIssuer(cfg.Auth.SecretKey)
	dispatcher := worker.NewDispatcher(jetstreamContext, cfg.NATS.JobSubject)
	sink := notify.NewNATSSink(natsConnection, cfg.NATS.NotifySubjectPrefix, log)

	accountService := service.NewAccountService(users, tokens, log)
	bookService := service.NewBookService(books, store, extract.NewExtractor(cfg.Upload.MaxTextChars), cfg.Upload, log)

	audioService, err := service.NewAudioService(jobs, books, store, dispatcher, issuer, cfg, log)
	if err != nil {
		return err
	}

	runner := worker.NewRunner(jobs, books, synthesizer, store, sink, worker.RunnerOptions{
		MaxChunkChars: cfg.TTS.MaxChunkChars,
		ChunkGap:      time.Duration(cfg.TTS.ChunkGapMillis) * time.Millisecond,
		SoftLimit:     time.Duration(cfg.TTS.SoftLimitSeconds) * time.Second,
		HardLimit:     time.Duration(cfg.TTS.HardLimitSeconds) * time.Second,
	}, log)

	queueWorker := worker.NewWorker(jetstreamContext, cfg.NATS, runner, log)

	handler := handlers.NewHandler(accountService, bookService, audioService, log)
	httpServer := server.New(cfg.HTTP, handler, tokens, pool, log)

	log.System("Audiobook service initialized: http port %d, job subject %s", cfg.HTTP.Port, cfg.NATS.JobSubject)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return httpServer.Run(groupCtx) })
	group.Go(func() error { return queueWorker.Run(groupCtx) })

	runErr := group.Wait()
	if runErr != nil {
		return fmt.Errorf("service failed: %w", runErr)
	}

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
