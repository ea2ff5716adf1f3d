// Package storage persists pipeline artifacts: one JSON record per
// classified frame and a final report. The filesystem store is always
// active; a Postgres store can be layered on for cross-run queries.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"classlens/internal/models"
)

// Store persists frame records as they are produced and the report at the
// end of a run. Frame records are written immediately so an interrupted run
// leaves valid standalone artifacts.
type Store interface {
	SaveFrameRecord(ctx context.Context, rec models.FrameRecord) error
	LoadFrameRecords(ctx context.Context) ([]models.FrameRecord, error)
	SaveReport(ctx context.Context, rep models.Report) error
}

// FSStore writes per-frame records under an analysis directory and the
// final report as a text file.
type FSStore struct {
	analysisDir string
	reportPath  string
}

// NewFSStore creates a filesystem store rooted at analysisDir, writing the
// final report to reportPath.
func NewFSStore(analysisDir, reportPath string) (*FSStore, error) {
	if err := os.MkdirAll(analysisDir, 0o755); err != nil {
		return nil, fmt.Errorf("create analysis directory '%s': %w", analysisDir, err)
	}
	return &FSStore{analysisDir: analysisDir, reportPath: reportPath}, nil
}

// SaveFrameRecord writes the record to its own JSON file. A replacement
// record (same frame id) overwrites the original, keeping exactly one live
// record per frame.
func (s *FSStore) SaveFrameRecord(_ context.Context, rec models.FrameRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode frame record %d: %w", rec.FrameID, err)
	}
	path := filepath.Join(s.analysisDir, recordFileName(rec.FrameID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write frame record %d: %w", rec.FrameID, err)
	}
	return nil
}

// LoadFrameRecords reads every record file in the analysis directory,
// sorted by frame id. Files that fail to decode are skipped: a partial or
// corrupted artifact must not block re-running the pipeline.
func (s *FSStore) LoadFrameRecords(_ context.Context) ([]models.FrameRecord, error) {
	entries, err := os.ReadDir(s.analysisDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read analysis directory '%s': %w", s.analysisDir, err)
	}

	var records []models.FrameRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.analysisDir, entry.Name()))
		if err != nil {
			continue
		}
		var rec models.FrameRecord
		if err := json.Unmarshal(data, &rec); err != nil || rec.FrameID <= 0 {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].FrameID < records[j].FrameID })
	return records, nil
}

// SaveReport renders the report as text to the configured path.
func (s *FSStore) SaveReport(_ context.Context, rep models.Report) error {
	if err := os.WriteFile(s.reportPath, []byte(ReportText(rep)), 0o644); err != nil {
		return fmt.Errorf("write report '%s': %w", s.reportPath, err)
	}
	return nil
}

// ReportPath returns where the final report is written.
func (s *FSStore) ReportPath() string {
	return s.reportPath
}

func recordFileName(frameID int) string {
	return fmt.Sprintf("frame_%04d.json", frameID)
}

// ReportText renders the operator-facing final report. It always states how
// many frames were analyzed versus sampled so a high classification-failure
// rate is visible next to the verdict.
func ReportText(rep models.Report) string {
	var b strings.Builder
	v := rep.Verdict
	fmt.Fprintf(&b, "Overall Decision: %s\n", v.Decision)
	fmt.Fprintf(&b, "Yes frames: %d\n", v.YesCount)
	fmt.Fprintf(&b, "No frames: %d\n", v.NoCount)
	failed := v.SampledCount - v.TotalCount
	fmt.Fprintf(&b, "Frames analyzed: %d of %d sampled (%d failed to classify)\n",
		v.TotalCount, v.SampledCount, failed)
	fmt.Fprintf(&b, "Run: %s at %s\n", rep.RunID, rep.GeneratedAt.Format("2006-01-02 15:04:05"))
	if rep.Summary != "" {
		fmt.Fprintf(&b, "\nFull summary:\n%s\n", rep.Summary)
	}
	return b.String()
}

// Multi fans writes out to every store and reads from the first store that
// returns records.
type Multi struct {
	stores []Store
}

// NewMulti combines stores; writes go to all of them.
func NewMulti(stores ...Store) *Multi {
	return &Multi{stores: stores}
}

func (m *Multi) SaveFrameRecord(ctx context.Context, rec models.FrameRecord) error {
	for _, s := range m.stores {
		if err := s.SaveFrameRecord(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (m *Multi) LoadFrameRecords(ctx context.Context) ([]models.FrameRecord, error) {
	for _, s := range m.stores {
		records, err := s.LoadFrameRecords(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			return records, nil
		}
	}
	return nil, nil
}

func (m *Multi) SaveReport(ctx context.Context, rep models.Report) error {
	for _, s := range m.stores {
		if err := s.SaveReport(ctx, rep); err != nil {
			return err
		}
	}
	return nil
}
