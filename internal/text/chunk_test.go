package text

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestChunkText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{
			name:  "single sentence no split needed",
			text:  "Hello world.",
			limit: 100,
			want:  []string{"Hello world."},
		},
		{
			name:  "two sentences within limit stay together",
			text:  "Hello there. How are you?",
			limit: 100,
			want:  []string{"Hello there. How are you?"},
		},
		{
			name:  "two sentences exceeding limit",
			text:  "Hello there. How are you?",
			limit: 14,
			want:  []string{"Hello there.", "How are you?"},
		},
		{
			name:  "splits on exclamation and question marks",
			text:  "First! Second? Third.",
			limit: 8,
			want:  []string{"First!", "Second?", "Third."},
		},
		{
			name:  "greedy accumulation up to limit",
			text:  "One two. Three four. Five six.",
			limit: 20,
			want:  []string{"One two. Three four.", "Five six."},
		},
		{
			name:  "oversized sentence stands alone",
			text:  "Short. This single sentence is far longer than the limit allows. End.",
			limit: 10,
			want: []string{
				"Short.",
				"This single sentence is far longer than the limit allows.",
				"End.",
			},
		},
		{
			name:  "paragraphs never share a chunk",
			text:  "First para.\n\nSecond para.",
			limit: 100,
			want:  []string{"First para.", "Second para."},
		},
		{
			name:  "blank line with spaces still separates paragraphs",
			text:  "First.\n   \nSecond.",
			limit: 100,
			want:  []string{"First.", "Second."},
		},
		{
			name:  "abbreviation does not split",
			text:  "Dr. Smith arrived. He waved.",
			limit: 18,
			want:  []string{"Dr. Smith arrived.", "He waved."},
		},
		{
			name:  "initial does not split",
			text:  "J. Smith arrived. He waved.",
			limit: 17,
			want:  []string{"J. Smith arrived.", "He waved."},
		},
		{
			name:  "no terminator returns whole text",
			text:  "Hello world",
			limit: 5,
			want:  []string{"Hello world"},
		},
		{
			name:  "zero limit uses default",
			text:  "Hello there. How are you?",
			limit: 0,
			want:  []string{"Hello there. How are you?"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChunkText(tt.text, tt.limit)
			if err != nil {
				t.Fatalf("ChunkText(%q, %d) error: %v", tt.text, tt.limit, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ChunkText(%q, %d) = %v, want %v", tt.text, tt.limit, got, tt.want)
			}
		})
	}
}

func TestChunkTextEmpty(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t\n"} {
		_, err := ChunkText(text, 100)
		if !errors.Is(err, ErrEmptyText) {
			t.Errorf("ChunkText(%q) error = %v, want ErrEmptyText", text, err)
		}
	}
}

func TestChunkTextPreservesOrderAndContent(t *testing.T) {
	text := "Alpha one. Bravo two. Charlie three. Delta four. Echo five."

	chunks, err := ChunkText(text, 25)
	if err != nil {
		t.Fatal(err)
	}

	joined := strings.Join(chunks, " ")
	if joined != text {
		t.Errorf("concatenated chunks = %q, want original %q", joined, text)
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		para string
		want []string
	}{
		{
			name: "basic split",
			para: "One. Two. Three.",
			want: []string{"One.", "Two.", "Three."},
		},
		{
			name: "terminator without following space does not split",
			para: "version 1.5 released. done.",
			want: []string{"version 1.5 released.", "done."},
		},
		{
			name: "abbreviations attach to sentence",
			para: "Call Mrs. Jones today. She knows.",
			want: []string{"Call Mrs. Jones today.", "She knows."},
		},
		{
			name: "trailing text without terminator kept",
			para: "Done. and then some",
			want: []string{"Done.", "and then some"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.para)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitSentences(%q) = %v, want %v", tt.para, got, tt.want)
			}
		})
	}
}
