// Package extractor samples still frames from a video with ffmpeg.
package extractor

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoFrames reports that sampling produced zero frames. A verdict over
// zero frames is meaningless, so callers treat this as fatal.
var ErrNoFrames = errors.New("no frames sampled from video")

const framePattern = "frame_%04d.jpg"

// ExtractFrames samples one frame every interval seconds from videoPath into
// framesDir and returns the sorted frame paths. If the directory already
// holds frames from an earlier run they are reused instead of re-extracted.
func ExtractFrames(videoPath, framesDir string, interval int, logger *slog.Logger) ([]string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("video file not readable at '%s': %w", videoPath, err)
	}
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create frames directory '%s': %w", framesDir, err)
	}

	if existing, err := listFrames(framesDir); err == nil && len(existing) > 0 {
		logger.Info("reusing previously extracted frames",
			"dir", framesDir, "count", len(existing))
		return existing, nil
	}

	logger.Info("extracting frames",
		"video", videoPath, "dir", framesDir, "interval_seconds", interval)

	cmd := exec.Command(
		"ffmpeg",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=1/%d", interval),
		filepath.Join(framesDir, framePattern),
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w\noutput: %s", err, string(output))
	}

	frames, err := listFrames(framesDir)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: '%s'", ErrNoFrames, videoPath)
	}

	logger.Info("frames extracted", "count", len(frames))
	return frames, nil
}

// FrameID parses the sequence number out of a frame file name or path.
func FrameID(framePath string) (int, error) {
	var id int
	if _, err := fmt.Sscanf(filepath.Base(framePath), framePattern, &id); err != nil {
		return 0, fmt.Errorf("unexpected frame filename '%s': %w", filepath.Base(framePath), err)
	}
	return id, nil
}

func listFrames(framesDir string) ([]string, error) {
	entries, err := os.ReadDir(framesDir)
	if err != nil {
		return nil, fmt.Errorf("read frames directory '%s': %w", framesDir, err)
	}
	var frames []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(strings.ToLower(entry.Name()), ".jpg") {
			frames = append(frames, filepath.Join(framesDir, entry.Name()))
		}
	}
	sort.Strings(frames)
	return frames, nil
}
