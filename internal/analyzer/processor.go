package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"classlens/internal/config"
	"classlens/internal/extractor"
	"classlens/internal/models"
	"classlens/internal/parse"
	"classlens/internal/storage"
	"classlens/internal/verdict"
)

// Processor runs the analysis pipeline: sample frames, classify each one,
// and aggregate the labels into a verdict.
type Processor struct {
	classifier Classifier
	summarizer Summarizer
	store      storage.Store
	cfg        *config.Config
	runID      string
	logger     *slog.Logger

	mu         sync.Mutex
	nextCallAt time.Time
}

// NewProcessor wires the pipeline components together.
func NewProcessor(classifier Classifier, summarizer Summarizer, store storage.Store, cfg *config.Config, runID string, logger *slog.Logger) *Processor {
	return &Processor{
		classifier: classifier,
		summarizer: summarizer,
		store:      store,
		cfg:        cfg,
		runID:      runID,
		logger:     logger,
	}
}

// ProcessVideo extracts frames from the video into outputDir/frames and
// analyzes them.
func (p *Processor) ProcessVideo(ctx context.Context, videoPath, outputDir string) (models.Report, error) {
	framesDir := filepath.Join(outputDir, "frames")
	frames, err := extractor.ExtractFrames(videoPath, framesDir, p.cfg.Sampling.FrameInterval, p.logger)
	if err != nil {
		return models.Report{}, err
	}

	videoName := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	return p.AnalyzeFrames(ctx, videoName, frames)
}

// AnalyzeFrames classifies each sampled frame, aggregates the labels into
// the final verdict, and persists the report. Frames whose replies cannot
// be parsed are excluded from the tally rather than guessed; the report's
// analyzed-versus-sampled counts make such exclusions visible.
func (p *Processor) AnalyzeFrames(ctx context.Context, videoName string, framePaths []string) (models.Report, error) {
	if len(framePaths) == 0 {
		return models.Report{}, extractor.ErrNoFrames
	}

	items := make([]models.WorkItem, 0, len(framePaths))
	interval := float64(p.cfg.Sampling.FrameInterval)
	for _, path := range framePaths {
		id, err := extractor.FrameID(path)
		if err != nil {
			p.logger.Warn("skipping file with unexpected name", "path", path)
			continue
		}
		items = append(items, models.WorkItem{
			FramePath: path,
			FrameID:   id,
			Timestamp: float64(id-1) * interval,
			Total:     len(framePaths),
		})
	}
	if len(items) == 0 {
		return models.Report{}, extractor.ErrNoFrames
	}

	existing := make(map[int]models.FrameRecord)
	if loaded, err := p.store.LoadFrameRecords(ctx); err == nil && len(loaded) > 0 {
		for _, rec := range loaded {
			existing[rec.FrameID] = rec
		}
		p.logger.Info("resuming from existing frame records", "count", len(existing))
	}

	p.logger.Info("classifying frames",
		"count", len(items), "workers", p.cfg.Sampling.Workers)
	records := p.classifyFrames(ctx, items, existing)
	if err := ctx.Err(); err != nil && len(records) == 0 {
		return models.Report{}, err
	}

	verdict.SortByFrameID(records)
	v := verdict.Decide(records, len(items))
	if v.TotalCount == 0 {
		return models.Report{}, errors.New("no frame classified successfully, verdict would be meaningless")
	}

	rep := models.Report{
		RunID:       p.runID,
		VideoName:   videoName,
		Verdict:     v,
		Summary:     p.summarize(ctx, records),
		GeneratedAt: time.Now(),
	}
	if err := p.store.SaveReport(ctx, rep); err != nil {
		return rep, fmt.Errorf("save report: %w", err)
	}

	p.logger.Info("verdict",
		"decision", v.Decision,
		"yes", v.YesCount,
		"no", v.NoCount,
		"analyzed", v.TotalCount,
		"sampled", v.SampledCount)
	return rep, nil
}

func (p *Processor) classifyFrames(ctx context.Context, items []models.WorkItem, existing map[int]models.FrameRecord) []models.FrameRecord {
	workChan := make(chan models.WorkItem, len(items))
	resultsChan := make(chan models.FrameRecord, len(items))

	var wg sync.WaitGroup
	remaining := atomic.Int64{}
	remaining.Store(int64(len(items)))

	for i := 0; i < p.cfg.Sampling.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workChan {
				if rec, ok := existing[item.FrameID]; ok {
					p.logger.Debug("frame already classified, reusing record", "frame", item.FrameID)
					resultsChan <- rec
					remaining.Add(-1)
					continue
				}
				if ctx.Err() != nil {
					return
				}

				rec, err := p.classifyFrame(ctx, item)
				if err != nil {
					p.logger.Warn("frame excluded from tally",
						"frame", item.FrameID, "of", item.Total, "err", err)
					remaining.Add(-1)
					continue
				}
				if err := p.store.SaveFrameRecord(ctx, rec); err != nil {
					p.logger.Warn("frame record not persisted", "frame", item.FrameID, "err", err)
				}
				resultsChan <- rec

				left := remaining.Add(-1)
				p.logger.Info("frame classified",
					"frame", item.FrameID,
					"label", rec.Label,
					"confidence", rec.Confidence,
					"remaining", left)
			}
		}()
	}

	go func() {
		for _, item := range items {
			workChan <- item
		}
		close(workChan)
	}()

	wg.Wait()
	close(resultsChan)

	records := make([]models.FrameRecord, 0, len(items))
	for rec := range resultsChan {
		records = append(records, rec)
	}
	return records
}

func (p *Processor) classifyFrame(ctx context.Context, item models.WorkItem) (models.FrameRecord, error) {
	if err := p.throttle(ctx); err != nil {
		return models.FrameRecord{}, err
	}
	input := fmt.Sprintf("Frame %d of %d, sampled at %g seconds.", item.FrameID, item.Total, item.Timestamp)
	raw, err := p.classifier.Classify(ctx, item.FramePath, input)
	if err != nil {
		return models.FrameRecord{}, fmt.Errorf("classification call: %w", err)
	}

	rec, err := parse.FrameResponse(raw, item.FrameID, item.Timestamp)
	if err != nil {
		return models.FrameRecord{}, err
	}
	if p.cfg.Prompts.Reflection != "" {
		rec = p.reflect(ctx, item, rec, raw)
	}
	return rec, nil
}

// reflect gives the model one more look at the frame together with its
// first answer. Reflection is strictly best-effort: any failure keeps the
// original record.
func (p *Processor) reflect(ctx context.Context, item models.WorkItem, original models.FrameRecord, firstReply string) models.FrameRecord {
	if err := p.throttle(ctx); err != nil {
		return original
	}
	input := p.cfg.Prompts.Reflection + "\n\nYour previous answer was:\n" + firstReply
	raw, err := p.classifier.Classify(ctx, item.FramePath, input)
	if err != nil {
		p.logger.Debug("reflection call failed, keeping first answer",
			"frame", item.FrameID, "err", err)
		return original
	}

	revised, err := parse.FrameResponse(raw, item.FrameID, item.Timestamp)
	if err != nil {
		p.logger.Debug("reflection reply unparsable, keeping first answer", "frame", item.FrameID)
		return original
	}
	if revised.Confidence == 0 && original.Confidence > 0 {
		// The second pass gave no usable confidence; the first answer stands.
		return original
	}
	if revised != original {
		p.logger.Info("reflection revised frame",
			"frame", item.FrameID,
			"label", revised.Label,
			"was", original.Label)
	}
	return revised
}

// summarize produces the narrative for the report. The narrative is
// diagnostic only: the verdict is always counted locally from records, so a
// failed summary call never changes the decision, it only shortens the
// report.
func (p *Processor) summarize(ctx context.Context, records []models.FrameRecord) string {
	if p.summarizer == nil || len(records) == 0 {
		return ""
	}

	chunks := verdict.Chunks(records, p.cfg.Summarizing.TokenBudget, nil)
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		p.logger.Info("summarizing chunk", "chunk", i+1, "of", len(chunks), "frames", len(chunk))
		if err := p.throttle(ctx); err != nil {
			break
		}
		text, err := p.summarizer.Summarize(ctx, verdict.EntryBlock(chunk))
		if err != nil {
			p.logger.Warn("chunk summary failed, narrative will omit this chunk",
				"chunk", i+1, "err", err)
			continue
		}
		if label, confidence, ok := parse.LabelConfidence(text); ok {
			p.logger.Debug("chunk summary decision line",
				"chunk", i+1, "label", label, "confidence", confidence)
		}
		parts = append(parts, strings.TrimSpace(text))
	}

	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}

	// Condense the per-chunk narratives into one; fall back to joining them.
	if err := p.throttle(ctx); err == nil {
		combined, err := p.summarizer.Summarize(ctx, strings.Join(parts, "\n\n"))
		if err == nil {
			return strings.TrimSpace(combined)
		}
		p.logger.Warn("combining chunk summaries failed, joining them instead", "err", err)
	}
	return strings.Join(parts, "\n\n")
}

// throttle enforces the configured minimum spacing between external call
// initiations, shared across workers.
func (p *Processor) throttle(ctx context.Context) error {
	delay := time.Duration(p.cfg.Sampling.RequestDelay) * time.Second
	if delay <= 0 {
		return ctx.Err()
	}

	p.mu.Lock()
	now := time.Now()
	at := p.nextCallAt
	if at.Before(now) {
		at = now
	}
	p.nextCallAt = at.Add(delay)
	p.mu.Unlock()

	wait := time.Until(at)
	if wait <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
