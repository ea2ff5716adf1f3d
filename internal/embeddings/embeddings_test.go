package embeddings

import (
	"math"
	"testing"
)

func TestEmbedIsDeterministic(t *testing.T) {
	a := Embed("class in progress across most frames")
	b := Embed("class in progress across most frames")
	if len(a) != Dim || len(b) != Dim {
		t.Fatalf("embedding length %d/%d, want %d", len(a), len(b), Dim)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at index %d", i)
		}
	}
}

func TestEmbedIsNormalized(t *testing.T) {
	vec := Embed("students seated, teacher at the board, worksheets visible")
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("squared norm = %v, want 1", norm)
	}
}

func TestEmbedEmptyContentIsZeroVector(t *testing.T) {
	vec := Embed("")
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("index %d = %v, want 0", i, v)
		}
	}
}

func TestEmbedDistinguishesContent(t *testing.T) {
	a := Embed("an empty classroom with the lights off")
	b := Embed("a lecture in full swing with attentive students")
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different content produced identical embeddings")
	}
}

func TestServiceCachesAndDelivers(t *testing.T) {
	s := NewService(2)
	defer s.Close()

	first := <-s.GetEmbedding("summary text")
	if first.Error != nil {
		t.Fatalf("unexpected error: %v", first.Error)
	}
	second := <-s.GetEmbedding("summary text")
	if second.Error != nil {
		t.Fatalf("unexpected error: %v", second.Error)
	}
	for i := range first.Embedding {
		if first.Embedding[i] != second.Embedding[i] {
			t.Fatal("cached embedding differs from original")
		}
	}
}
