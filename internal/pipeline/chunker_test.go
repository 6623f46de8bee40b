package pipeline

import (
	"strings"
	"testing"
)

func TestSplitTextOverlappingWindows(t *testing.T) {
	text := strings.Repeat("a", 1200)
	chunks := splitText(text, 500, 100)

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if len(chunks[0]) != 500 || len(chunks[1]) != 500 {
		t.Errorf("full windows are %d and %d chars, want 500", len(chunks[0]), len(chunks[1]))
	}
	// Last window is the remainder past the second stride: 1200 - 800.
	if len(chunks[2]) != 400 {
		t.Errorf("final window is %d chars, want 400", len(chunks[2]))
	}
}

func TestSplitTextOverlapIsShared(t *testing.T) {
	// Distinct runes so overlap regions are checkable by content.
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteRune(rune('a' + i))
	}
	chunks := splitText(b.String(), 10, 4)

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		tail := string(prev[len(prev)-4:])
		if !strings.HasPrefix(chunks[i], tail) {
			t.Errorf("chunk %d does not start with the previous chunk's last 4 runes: %q vs %q", i, chunks[i], tail)
		}
	}
}

func TestSplitTextShortInput(t *testing.T) {
	chunks := splitText("short text", 500, 100)
	if len(chunks) != 1 || chunks[0] != "short text" {
		t.Errorf("short text should yield itself as a single chunk, got %v", chunks)
	}
}

func TestSplitTextEmpty(t *testing.T) {
	if got := splitText("", 500, 100); got != nil {
		t.Errorf("empty input should yield no chunks, got %v", got)
	}
}

func TestSplitTextDegenerateSizes(t *testing.T) {
	if got := splitText("anything", 0, 0); got != nil {
		t.Errorf("zero size should yield no chunks, got %v", got)
	}
	// Overlap >= size must still advance.
	chunks := splitText(strings.Repeat("x", 30), 10, 10)
	if len(chunks) != 3 {
		t.Errorf("overlap equal to size should fall back to non-overlapping windows, got %d chunks", len(chunks))
	}
}

func TestSplitTextCountsRunes(t *testing.T) {
	text := strings.Repeat("ü", 12)
	chunks := splitText(text, 5, 0)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if n := len([]rune(chunks[0])); n != 5 {
		t.Errorf("first window has %d runes, want 5", n)
	}
}

func TestSplitTextCoversAllInput(t *testing.T) {
	text := strings.Repeat("abcdefghij", 25)
	chunks := splitText(text, 80, 20)

	// Reassembling with the overlap dropped must reproduce the input.
	var b strings.Builder
	b.WriteString(chunks[0])
	for _, c := range chunks[1:] {
		runes := []rune(c)
		b.WriteString(string(runes[20:]))
	}
	if b.String() != text {
		t.Error("chunks do not cover the input exactly")
	}
}
