package indexer

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

// numberedWords produces "w0 w1 ... wN-1" so window boundaries are easy to assert.
func numberedWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func TestChunk_EmptyInput(t *testing.T) {
	if chunks := Chunk("", 150, 0.15, nil); chunks != nil {
		t.Errorf("expected nil for empty input, got %v", chunks)
	}
	if chunks := Chunk("   \n\t  ", 150, 0.15, nil); chunks != nil {
		t.Errorf("expected nil for whitespace-only input, got %v", chunks)
	}
}

func TestChunk_SingleWindow(t *testing.T) {
	chunks := Chunk("hello world", 150, 0.15, nil)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "hello world" {
		t.Errorf("unexpected chunk content: %q", chunks[0])
	}
}

func TestChunk_DefaultParameters(t *testing.T) {
	// 300 words at size 150, overlap 0.15: step = floor(150*0.85) = 127,
	// so windows start at 0, 127, 254 and the input yields exactly 3 chunks.
	text := numberedWords(300)
	chunks := Chunk(text, 150, 0.15, nil)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks for 300 words, got %d", len(chunks))
	}

	first := strings.Fields(chunks[0])
	if len(first) != 150 {
		t.Errorf("expected first chunk to hold 150 words, got %d", len(first))
	}
	if first[0] != "w0" || first[149] != "w149" {
		t.Errorf("unexpected first window bounds: %s..%s", first[0], first[len(first)-1])
	}

	second := strings.Fields(chunks[1])
	if second[0] != "w127" {
		t.Errorf("expected second window to start at w127, got %s", second[0])
	}

	last := strings.Fields(chunks[2])
	if last[0] != "w254" || last[len(last)-1] != "w299" {
		t.Errorf("unexpected final window bounds: %s..%s", last[0], last[len(last)-1])
	}
	if len(last) != 46 {
		t.Errorf("expected final partial window of 46 words, got %d", len(last))
	}
}

func TestChunk_CoversEveryWord(t *testing.T) {
	text := numberedWords(500)
	chunks := Chunk(text, 150, 0.15, nil)

	seen := make(map[string]bool)
	for _, chunk := range chunks {
		for _, w := range strings.Fields(chunk) {
			seen[w] = true
		}
	}
	for i := 0; i < 500; i++ {
		if !seen[fmt.Sprintf("w%d", i)] {
			t.Fatalf("word w%d missing from all chunks", i)
		}
	}
}

func TestChunk_Deterministic(t *testing.T) {
	text := numberedWords(400)
	a := Chunk(text, 150, 0.15, nil)
	b := Chunk(text, 150, 0.15, nil)
	if !reflect.DeepEqual(a, b) {
		t.Error("chunking the same input twice produced different output")
	}
}

func TestChunk_OnlyIndices(t *testing.T) {
	text := numberedWords(300)
	all := Chunk(text, 150, 0.15, nil)
	filtered := Chunk(text, 150, 0.15, []int{1})

	if len(filtered) != 1 {
		t.Fatalf("expected 1 filtered chunk, got %d", len(filtered))
	}
	if filtered[0] != all[1] {
		t.Error("filtered chunk differs from the same window of the full output")
	}

	// An empty (non-nil) set selects nothing.
	if got := Chunk(text, 150, 0.15, []int{}); got != nil {
		t.Errorf("expected no chunks for empty index set, got %d", len(got))
	}

	// Out-of-range indices are ignored.
	if got := Chunk(text, 150, 0.15, []int{99}); got != nil {
		t.Errorf("expected no chunks for out-of-range index, got %d", len(got))
	}
}

func TestChunk_HighOverlapStepFloor(t *testing.T) {
	// step would be floor(4*0.05) = 0; it must be clamped to 1 so the
	// window pointer always advances.
	chunks := Chunk("a b c d", 4, 0.95, nil)
	if len(chunks) != 4 {
		t.Errorf("expected 4 chunks with step clamped to 1, got %d", len(chunks))
	}
}

func TestChunk_InvalidParametersFallBack(t *testing.T) {
	text := numberedWords(300)
	defaulted := Chunk(text, 0, -1, nil)
	explicit := Chunk(text, DefaultChunkSizeWords, DefaultChunkOverlap, nil)
	if !reflect.DeepEqual(defaulted, explicit) {
		t.Error("invalid parameters should fall back to defaults")
	}
}

func TestChunkCount(t *testing.T) {
	tests := []struct {
		words   int
		size    int
		overlap float64
		want    int
	}{
		{0, 150, 0.15, 0},
		{1, 150, 0.15, 1},
		{150, 150, 0.15, 2},
		{127, 150, 0.15, 1},
		{300, 150, 0.15, 3},
		{500, 150, 0.15, 4},
	}

	for _, tt := range tests {
		if got := ChunkCount(tt.words, tt.size, tt.overlap); got != tt.want {
			t.Errorf("ChunkCount(%d, %d, %v) = %d, want %d", tt.words, tt.size, tt.overlap, got, tt.want)
		}
	}
}

func TestChunkCount_MatchesChunk(t *testing.T) {
	for _, n := range []int{1, 50, 127, 128, 254, 255, 300, 1000} {
		text := numberedWords(n)
		chunks := Chunk(text, 150, 0.15, nil)
		if count := ChunkCount(n, 150, 0.15); count != len(chunks) {
			t.Errorf("ChunkCount(%d) = %d but Chunk produced %d windows", n, count, len(chunks))
		}
	}
}
