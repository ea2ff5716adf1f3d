package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"classlens/internal/analyzer"
	"classlens/internal/config"
	"classlens/internal/models"
	"classlens/internal/storage"
)

func newRunCommand(configFlag *string, verboseFlag *bool) *cobra.Command {
	var outputFlag string

	cmd := &cobra.Command{
		Use:   "run <video>",
		Short: "Analyze a classroom video and write the verdict report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runPipeline(ctx, *configFlag, *verboseFlag, args[0], outputFlag)
		},
	}
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output directory (default: <video>_output next to the video)")
	return cmd
}

func runPipeline(ctx context.Context, configPath string, verbose bool, videoPath, outputDir string) error {
	logger := newLogger(verbose)

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration %s: %w", resolved, err)
	}
	if !exists {
		logger.Debug("no config file found, using defaults", "path", resolved)
	}

	videoName := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	if outputDir == "" {
		abs, err := filepath.Abs(videoPath)
		if err != nil {
			return fmt.Errorf("resolve video path: %w", err)
		}
		outputDir = filepath.Join(filepath.Dir(abs), videoName+"_output")
	}

	unlock, err := acquireRunLock(outputDir)
	if err != nil {
		return err
	}
	defer unlock()

	runID := uuid.NewString()
	store, closeStores, err := buildStores(ctx, cfg, outputDir, videoName, runID)
	if err != nil {
		return err
	}
	defer closeStores()

	classifier, err := analyzer.NewVisionAgent(ctx, logger, cfg.Ollama, cfg.Models.Classifier, cfg.Prompts.Classifier)
	if err != nil {
		return err
	}
	summarizer, err := analyzer.NewVisionAgent(ctx, logger, cfg.Ollama, cfg.Models.Summarizer, cfg.Prompts.Summarizer)
	if err != nil {
		return err
	}

	logger.Info("starting analysis", "video", videoPath, "output", outputDir, "run", runID)

	processor := analyzer.NewProcessor(classifier, summarizer, store, cfg, runID, logger)
	rep, err := processor.ProcessVideo(ctx, videoPath, outputDir)
	if err != nil {
		return err
	}

	fmt.Println(renderVerdictTable(rep.Verdict))
	fmt.Printf("Report written to %s\n", filepath.Join(outputDir, "final.txt"))
	return nil
}

// acquireRunLock claims the output directory before anything is written to
// it. One run per output directory at a time; interleaved runs would corrupt
// the per-frame artifacts.
func acquireRunLock(outputDir string) (func(), error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	lock := flock.New(filepath.Join(outputDir, "classlens.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, errors.New("another classlens run is already using this output directory")
	}
	return func() { _ = lock.Unlock() }, nil
}

// buildStores assembles the filesystem store and, when configured, the
// Postgres store behind a single fan-out.
func buildStores(ctx context.Context, cfg *config.Config, outputDir, videoName, runID string) (storage.Store, func(), error) {
	fsStore, err := storage.NewFSStore(filepath.Join(outputDir, "analysis"), filepath.Join(outputDir, "final.txt"))
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Postgres.Enabled {
		return fsStore, func() {}, nil
	}

	pgStore, err := storage.NewPostgresStore(ctx, cfg.Postgres, runID, videoName)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewMulti(fsStore, pgStore), pgStore.Close, nil
}

func renderVerdictTable(v models.Verdict) string {
	failed := v.SampledCount - v.TotalCount
	return renderTable(
		[]string{"Decision", "Yes", "No", "Analyzed", "Sampled", "Failed"},
		[][]string{{
			string(v.Decision),
			fmt.Sprintf("%d", v.YesCount),
			fmt.Sprintf("%d", v.NoCount),
			fmt.Sprintf("%d", v.TotalCount),
			fmt.Sprintf("%d", v.SampledCount),
			fmt.Sprintf("%d", failed),
		}},
	)
}
