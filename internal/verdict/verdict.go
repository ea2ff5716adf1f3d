// Package verdict holds the aggregation core: chunking frame records to fit
// the summarizer's context window and computing the final majority-vote
// decision. The decision is always counted locally from frame records, never
// re-derived from a model-written summary, so it cannot depend on how the
// records were chunked.
package verdict

import (
	"fmt"
	"sort"
	"strings"

	"classlens/internal/models"
)

// TokenEstimator approximates how many tokens a piece of text costs. The
// budget carries slack, so exactness is not required.
type TokenEstimator func(string) int

// EstimateTokens is the default estimator: roughly four bytes per token.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Entry renders one frame record the way it is presented to the summarizer.
func Entry(r models.FrameRecord) string {
	return fmt.Sprintf("Frame %d at %gs: %s (%d%%)", r.FrameID, r.Timestamp, r.Label, r.Confidence)
}

// EntryBlock renders a chunk of records, one entry per line.
func EntryBlock(records []models.FrameRecord) string {
	lines := make([]string, len(records))
	for i, r := range records {
		lines[i] = Entry(r)
	}
	return strings.Join(lines, "\n")
}

// Chunks splits records into ordered, contiguous chunks whose rendered text
// stays within budget tokens each. Accumulation is greedy: a record that
// would push the current chunk over budget starts a new one. A single record
// that alone exceeds the budget still becomes its own chunk; degrading to an
// oversized call beats dropping the record. A nil estimator uses
// EstimateTokens.
//
// Every input record lands in exactly one chunk, in input order. When the
// whole sequence fits, the result is a single chunk; there is no separate
// unchunked path.
func Chunks(records []models.FrameRecord, budget int, estimate TokenEstimator) [][]models.FrameRecord {
	if estimate == nil {
		estimate = EstimateTokens
	}

	var chunks [][]models.FrameRecord
	var current []models.FrameRecord
	used := 0

	for _, r := range records {
		cost := estimate(Entry(r))
		if len(current) > 0 && used+cost > budget {
			chunks = append(chunks, current)
			current = nil
			used = 0
		}
		current = append(current, r)
		used += cost
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// Decide computes the final verdict from frame records by majority vote.
// Records are de-duplicated by frame id, the later record superseding the
// earlier one (a reflection replacement arrives after the original). The
// decision is Yes iff strictly more live records say Yes than No; a tie is
// No. sampled is the number of frames sampled from the video, recorded so a
// verdict over a partial set is distinguishable from a complete one.
func Decide(records []models.FrameRecord, sampled int) models.Verdict {
	live := make(map[int]models.Label, len(records))
	for _, r := range records {
		live[r.FrameID] = r.Label
	}

	v := models.Verdict{SampledCount: sampled}
	for _, label := range live {
		if label == models.LabelYes {
			v.YesCount++
		} else {
			v.NoCount++
		}
	}
	v.TotalCount = v.YesCount + v.NoCount
	v.Decision = models.LabelNo
	if v.YesCount > v.NoCount {
		v.Decision = models.LabelYes
	}
	return v
}

// SortByFrameID orders records by frame id in place. Workers may complete
// out of order; aggregation and persistence always run over the sorted
// sequence.
func SortByFrameID(records []models.FrameRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].FrameID < records[j].FrameID
	})
}
