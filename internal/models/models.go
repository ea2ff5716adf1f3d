package models

import "time"

// Label is the binary classification of one frame: whether a class is in
// progress in the image.
type Label string

const (
	LabelYes Label = "Yes"
	LabelNo  Label = "No"
)

// FrameRecord is the outcome of classifying one sampled frame. FrameID and
// Timestamp are assigned by the pipeline from the frame's position in the
// video, never taken from the model's reply. A reflection pass may produce a
// replacement record with the same identity and a new label/confidence; the
// replacement supersedes the original everywhere downstream.
type FrameRecord struct {
	FrameID    int     `json:"frame_id"`
	Timestamp  float64 `json:"timestamp"`
	Label      Label   `json:"label"`
	Confidence int     `json:"confidence"`
}

// Verdict is the final decision over all live frame records. Decision is a
// pure function of YesCount and NoCount: Yes iff YesCount > NoCount, so a
// tie resolves to No. TotalCount is the number of frames that classified
// successfully; SampledCount is how many frames were sampled from the video,
// so callers can detect partial runs.
type Verdict struct {
	Decision     Label `json:"decision"`
	YesCount     int   `json:"yes_count"`
	NoCount      int   `json:"no_count"`
	TotalCount   int   `json:"total_count"`
	SampledCount int   `json:"sampled_count"`
}

// Report is everything the pipeline persists at the end of a run.
type Report struct {
	RunID       string    `json:"run_id"`
	VideoName   string    `json:"video_name"`
	Verdict     Verdict   `json:"verdict"`
	Summary     string    `json:"summary,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// WorkItem represents a frame queued for classification.
type WorkItem struct {
	FramePath string
	FrameID   int
	Timestamp float64
	Total     int
}
