// Package parse turns raw model replies into frame records. Replies are
// free text that usually, but not always, embeds a JSON object; the parser
// tolerates surrounding prose, markdown fences, and loose field types, and
// falls back to pattern matching when no usable JSON can be located.
package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"classlens/internal/models"
)

// ErrUnparsable reports that a reply contained no recognizable label. A
// frame whose reply is unparsable is excluded from the tally rather than
// defaulted to a guessed label.
var ErrUnparsable = errors.New("no recognizable label in model response")

var (
	labelPattern      = regexp.MustCompile(`(?i)\b(yes|no)\b`)
	confidencePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
)

// FrameResponse converts one raw classification reply into a FrameRecord.
// frameID and timestamp come from the caller; the model's own echoed
// "frame"/"timestamp" fields are informational only and never override them.
func FrameResponse(raw string, frameID int, timestamp float64) (models.FrameRecord, error) {
	rec := models.FrameRecord{FrameID: frameID, Timestamp: timestamp}

	for _, candidate := range jsonObjects(raw) {
		var fields map[string]any
		if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
			continue
		}
		label, ok := normalizeLabel(fields["label"])
		if !ok {
			continue
		}
		rec.Label = label
		rec.Confidence = normalizeConfidence(fields["confidence"])
		return rec, nil
	}

	// No usable JSON object; fall back to scanning the whole reply.
	label, confidence, ok := LabelConfidence(raw)
	if !ok {
		return models.FrameRecord{}, fmt.Errorf("frame %d: %w", frameID, ErrUnparsable)
	}
	rec.Label = label
	rec.Confidence = confidence
	return rec, nil
}

// LabelConfidence extracts a yes/no label and a confidence percentage from
// free text. It is used both as the parser fallback and to read the decision
// line out of chunk-summary narratives, which follow no fixed wording.
func LabelConfidence(text string) (models.Label, int, bool) {
	m := labelPattern.FindStringSubmatch(text)
	if m == nil {
		return "", 0, false
	}
	label := models.LabelNo
	if strings.EqualFold(m[1], "yes") {
		label = models.LabelYes
	}

	confidence := 0
	if c := confidencePattern.FindStringSubmatch(text); c != nil {
		if f, err := strconv.ParseFloat(c[1], 64); err == nil {
			confidence = clampConfidence(f)
		}
	}
	return label, confidence, true
}

// jsonObjects returns every balanced top-level {...} substring of raw, in
// order of appearance. Braces inside JSON strings are ignored.
func jsonObjects(raw string) []string {
	var objects []string
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, r := range raw {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				objects = append(objects, raw[start:i+1])
				start = -1
			}
		}
	}
	return objects
}

func normalizeLabel(value any) (models.Label, bool) {
	switch v := value.(type) {
	case bool:
		if v {
			return models.LabelYes, true
		}
		return models.LabelNo, true
	case string:
		switch strings.ToLower(strings.TrimRight(strings.TrimSpace(v), ".!")) {
		case "yes", "y", "true":
			return models.LabelYes, true
		case "no", "n", "false":
			return models.LabelNo, true
		}
	}
	return "", false
}

// normalizeConfidence accepts a bare number or a string with an optional
// trailing "%". Anything unusable records the 0 sentinel rather than
// failing the record.
func normalizeConfidence(value any) int {
	switch v := value.(type) {
	case float64:
		return clampConfidence(v)
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "%"))
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return clampConfidence(f)
		}
	}
	return 0
}

func clampConfidence(f float64) int {
	c := int(math.Round(f))
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
