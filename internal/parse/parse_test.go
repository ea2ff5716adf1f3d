package parse

import (
	"errors"
	"testing"

	"classlens/internal/models"
)

func TestFrameResponseWellFormed(t *testing.T) {
	raw := `{"frame":"f1","timestamp":30,"label":"Yes","confidence":"92%"}`
	rec, err := FrameResponse(raw, 7, 60)
	if err != nil {
		t.Fatalf("FrameResponse returned error: %v", err)
	}
	if rec.FrameID != 7 {
		t.Fatalf("caller-supplied frame id must win: got %d", rec.FrameID)
	}
	if rec.Timestamp != 60 {
		t.Fatalf("caller-supplied timestamp must win: got %v", rec.Timestamp)
	}
	if rec.Label != models.LabelYes {
		t.Fatalf("unexpected label: %q", rec.Label)
	}
	if rec.Confidence != 92 {
		t.Fatalf("unexpected confidence: %d", rec.Confidence)
	}
}

func TestFrameResponseToleratesProseAndFences(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"prose", `Sure! Here is my assessment: {"label":"no","confidence":71} Hope that helps.`},
		{"fences", "```json\n{\"label\": \"No\", \"confidence\": \"71\"}\n```"},
		{"leading braces in prose", `The {room} looks empty. {"label":"No","confidence":71}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := FrameResponse(tc.raw, 1, 0)
			if err != nil {
				t.Fatalf("FrameResponse returned error: %v", err)
			}
			if rec.Label != models.LabelNo || rec.Confidence != 71 {
				t.Fatalf("got %s/%d, want No/71", rec.Label, rec.Confidence)
			}
		})
	}
}

func TestFrameResponseLabelVariants(t *testing.T) {
	cases := []struct {
		raw  string
		want models.Label
	}{
		{`{"label":"YES","confidence":50}`, models.LabelYes},
		{`{"label":"yes."}`, models.LabelYes},
		{`{"label":true,"confidence":50}`, models.LabelYes},
		{`{"label":false}`, models.LabelNo},
		{`{"label":"n"}`, models.LabelNo},
	}
	for _, tc := range cases {
		rec, err := FrameResponse(tc.raw, 1, 0)
		if err != nil {
			t.Fatalf("%s: %v", tc.raw, err)
		}
		if rec.Label != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.raw, rec.Label, tc.want)
		}
	}
}

func TestFrameResponseConfidenceNormalization(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{`{"label":"Yes","confidence":92}`, 92},
		{`{"label":"Yes","confidence":92.6}`, 93},
		{`{"label":"Yes","confidence":"92%"}`, 92},
		{`{"label":"Yes","confidence":"150%"}`, 100},
		{`{"label":"Yes","confidence":-3}`, 0},
		{`{"label":"Yes"}`, 0},
		{`{"label":"Yes","confidence":"high"}`, 0},
	}
	for _, tc := range cases {
		rec, err := FrameResponse(tc.raw, 1, 0)
		if err != nil {
			t.Fatalf("%s: %v", tc.raw, err)
		}
		if rec.Confidence != tc.want {
			t.Fatalf("%s: got %d, want %d", tc.raw, rec.Confidence, tc.want)
		}
	}
}

func TestFrameResponseRegexFallback(t *testing.T) {
	rec, err := FrameResponse("I believe the answer is Yes, roughly 85% confident.", 3, 20)
	if err != nil {
		t.Fatalf("FrameResponse returned error: %v", err)
	}
	if rec.Label != models.LabelYes || rec.Confidence != 85 {
		t.Fatalf("got %s/%d, want Yes/85", rec.Label, rec.Confidence)
	}
}

func TestFrameResponseJSONWithoutLabelFallsBack(t *testing.T) {
	// The embedded object has no label field, but the prose does.
	rec, err := FrameResponse(`{"frame":"f1"} Overall: no, about 60%`, 2, 10)
	if err != nil {
		t.Fatalf("FrameResponse returned error: %v", err)
	}
	if rec.Label != models.LabelNo || rec.Confidence != 60 {
		t.Fatalf("got %s/%d, want No/60", rec.Label, rec.Confidence)
	}
}

func TestFrameResponseUnparsable(t *testing.T) {
	for _, raw := range []string{"", "I cannot tell what is happening here.", `{"label":"maybe"}`} {
		_, err := FrameResponse(raw, 1, 0)
		if !errors.Is(err, ErrUnparsable) {
			t.Fatalf("%q: expected ErrUnparsable, got %v", raw, err)
		}
	}
}

func TestLabelConfidenceSummaryLine(t *testing.T) {
	label, confidence, ok := LabelConfidence("Final decision: Yes (confidence 73%). Most frames show instruction.")
	if !ok {
		t.Fatal("expected a match")
	}
	if label != models.LabelYes || confidence != 73 {
		t.Fatalf("got %s/%d, want Yes/73", label, confidence)
	}
}
