package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/legalease/internal/config"
	"github.com/jonathan/legalease/internal/jobs"
	"github.com/jonathan/legalease/internal/llm"
	"github.com/jonathan/legalease/internal/ocr"
	"github.com/jonathan/legalease/internal/pipeline"
	"github.com/jonathan/legalease/internal/storage"
)

var (
	processOutputDir string
	processTimeout   time.Duration
)

var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Process a single document end-to-end",
	Long: `Run the OCR, translation, simplification, and summarization pipeline on one
document without a database or server. The final job record is printed as JSON
and the rendered PDF is written next to it.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processOutputDir, "output-dir", "o", "", "Directory for the rendered PDF (overrides OUTPUT_DIR)")
	processCmd.Flags().DurationVar(&processTimeout, "timeout", 15*time.Minute, "Maximum processing time")
	rootCmd.AddCommand(processCmd)
}

func runProcess(_ *cobra.Command, args []string) error {
	sourcePath := args[0]

	cfg := config.Load()
	if processOutputDir != "" {
		cfg.Pipeline.OutputDir = processOutputDir
	}
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	kind, err := jobs.KindForPath(sourcePath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

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

	store := jobs.NewMemoryStore()
	hub := jobs.NewHub()
	outputs := storage.NewLocalFS(cfg.Pipeline.OutputDir)
	runner := pipeline.NewRunner(store, hub, engine, llm.NewTranslator(client), outputs, logger, pipeline.DefaultRetryPolicy())

	job := &jobs.Job{
		ID:         uuid.New(),
		SourceKind: kind,
		SourcePath: sourcePath,
		Status:     jobs.StatusQueued,
	}
	if err := store.Create(ctx, job); err != nil {
		return err
	}

	runErr := runner.Run(ctx, job.ID)

	final, err := store.Get(ctx, job.ID)
	if err != nil || final == nil {
		return fmt.Errorf("failed to load final job record: %v", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(final); err != nil {
		return err
	}
	return runErr
}
