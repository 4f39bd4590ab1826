package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/legalease/internal/config"
	"github.com/jonathan/legalease/internal/db"
	"github.com/jonathan/legalease/internal/jobs"
	"github.com/jonathan/legalease/internal/llm"
	"github.com/jonathan/legalease/internal/ocr"
	"github.com/jonathan/legalease/internal/pipeline"
	"github.com/jonathan/legalease/internal/server"
	"github.com/jonathan/legalease/internal/storage"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that accepts document processing jobs and streams their progress.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides SERVER_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg := config.Load()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()
	database, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.Migrate(ctx); err != nil {
		return err
	}
	store := db.NewJobStore(database)

	client, err := llm.NewClient(ctx, &llm.Config{Models: map[llm.ModelTier]string{
		llm.TierLite:     cfg.LLM.LiteModel,
		llm.TierStandard: cfg.LLM.StandardModel,
	}}, cfg.LLM.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer client.Close()

	engine := ocr.NewTesseract(ocr.Config{
		Pdftoppm:    cfg.OCR.Pdftoppm,
		Tesseract:   cfg.OCR.Tesseract,
		Languages:   cfg.OCR.Languages,
		DPI:         cfg.OCR.DPI,
		MaxPages:    cfg.OCR.MaxPages,
		TessdataDir: cfg.OCR.TessdataDir,
	})

	hub := jobs.NewHub()
	outputs := storage.NewLocalFS(cfg.Pipeline.OutputDir)
	runner := pipeline.NewRunner(store, hub, engine, llm.NewTranslator(client), outputs, logger, pipeline.DefaultRetryPolicy())

	// The pool executes through Track so the dispatcher's in-flight map
	// is released on job completion; the cycle is closed after both exist.
	track := &jobs.Track{Inner: runner}
	pool := jobs.NewPool(track, logger,
		jobs.WithWorkers(cfg.Pipeline.Workers),
		jobs.WithQueueSize(cfg.Pipeline.QueueSize),
		jobs.WithJobTimeout(cfg.Pipeline.JobTimeout),
	)
	dispatcher := jobs.NewDispatcher(store, pool, outputs, logger, jobs.DispatcherConfig{
		StaleAfter:    cfg.Pipeline.StaleAfter,
		ForceReimport: cfg.Pipeline.ForceReimport,
	})
	track.Dispatcher = dispatcher

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		SSEIdleTimeout:  cfg.Server.SSEIdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, store, hub, dispatcher, logger)
	srv.OnShutdown = func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.JobTimeout)
		defer cancel()
		pool.Shutdown(drainCtx)
	}

	return srv.Start()
}
