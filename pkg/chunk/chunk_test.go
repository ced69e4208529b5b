package chunk

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/papergraph/papergraph/pkg/ai"
	"github.com/papergraph/papergraph/pkg/common"
)

func TestSplitIntoSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty input",
			text: "",
			want: []string(nil),
		},
		{
			name: "single sentence",
			text: "Hello world.",
			want: []string{"Hello world."},
		},
		{
			name: "multiple sentences",
			text: "Hello world. This is a test! How are you?",
			want: []string{
				"Hello world.",
				"This is a test!",
				"How are you?",
			},
		},
		{
			name: "sentences with empty lines",
			text: "First sentence.\n\nSecond sentence.\n\nThird sentence.",
			want: []string{
				"First sentence.",
				"Second sentence.",
				"Third sentence.",
			},
		},
		{
			name: "multi-line sentence",
			text: "This is a long\nsentence that spans\nmultiple lines.",
			want: []string{"This is a long sentence that spans multiple lines."},
		},
		{
			name: "markdown table as single sentence",
			text: "Header1 | Header2\n------- | -------\nValue1  | Value2\nValue3  | Value4",
			want: []string{
				"Header1 | Header2\n------- | -------\nValue1  | Value2\nValue3  | Value4",
			},
		},
		{
			name: "text with table",
			text: "Introduction text.\nHeader1 | Header2\n------- | -------\nValue1  | Value2\nConclusion text.",
			want: []string{
				"Introduction text.",
				"Header1 | Header2\n------- | -------\nValue1  | Value2",
				"Conclusion text.",
			},
		},
		{
			name: "numeric listing should stay in same sentence",
			text: "Today we discuss three points. 1. First item 2. Second item 3. Third item. Done!",
			want: []string{
				"Today we discuss three points.",
				"1. First item 2. Second item 3. Third item.",
				"Done!",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitIntoSentences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitIntoSentences() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	text := "First sentence here. Second sentence here. Third sentence here. Fourth sentence here."

	chunks, err := Split("doc1", text, 12)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	prevEnd := 0
	for i, c := range chunks {
		if c.DocumentID != "doc1" {
			t.Errorf("chunk %d document id = %q", i, c.DocumentID)
		}
		if c.ID == "" {
			t.Errorf("chunk %d has empty id", i)
		}
		if c.Index != i {
			t.Errorf("chunk %d index = %d", i, c.Index)
		}
		if c.Start != prevEnd {
			t.Errorf("chunk %d start = %d, want %d", i, c.Start, prevEnd)
		}
		if c.End <= c.Start {
			t.Errorf("chunk %d has empty range [%d,%d)", i, c.Start, c.End)
		}
		prevEnd = c.End
	}

	var joined strings.Builder
	for i, c := range chunks {
		if i > 0 {
			joined.WriteString(" ")
		}
		joined.WriteString(c.Text)
	}
	if joined.String() != text {
		t.Errorf("chunks do not cover input:\n got %q\nwant %q", joined.String(), text)
	}
}

func TestSplitEmptyText(t *testing.T) {
	chunks, err := Split("doc1", "   \n\n  ", 100)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}

func TestSplitSingleChunkUnderLimit(t *testing.T) {
	chunks, err := Split("doc1", "Hello world. Goodbye world.", 100)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "Hello world. Goodbye world." {
		t.Errorf("chunk text = %q", chunks[0].Text)
	}
}

func TestSplitStableIDs(t *testing.T) {
	text := "Graphs store entities and their relations. Vectors store passages for retrieval. Both views serve the same documents."

	first, err := Split("doc1", text, 12)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(first) < 2 {
		t.Fatalf("chunks = %d, want at least 2", len(first))
	}

	second, err := Split("doc1", text, 12)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("second split produced %d chunks, want %d", len(second), len(first))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("chunk %d id changed between runs: %q vs %q", i, first[i].ID, second[i].ID)
		}
	}

	other, err := Split("doc2", text, 12)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if other[0].ID == first[0].ID {
		t.Error("different documents share a chunk id")
	}
}

type fakeEmbedClient struct {
	ai.PaperAIClient

	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEmbedClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(input)), 1}, nil
}

type fakeBatchClient struct {
	fakeEmbedClient

	short bool
}

func (f *fakeBatchClient) GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error) {
	f.calls++
	if f.short {
		return [][]float32{{1}}, nil
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{float32(len(inputs[i])), 2}
	}
	return out, nil
}

func TestEmbedChunksPerChunk(t *testing.T) {
	client := &fakeEmbedClient{}
	embedder := NewEmbedder(client, 2)

	chunks := []common.Chunk{
		{ID: "c1", Text: "alpha"},
		{ID: "c2", Text: "beta"},
	}
	if err := embedder.EmbedChunks(context.Background(), chunks); err != nil {
		t.Fatalf("EmbedChunks() error = %v", err)
	}
	if client.calls != 2 {
		t.Errorf("calls = %d, want 2", client.calls)
	}
	for i, c := range chunks {
		if len(c.Embedding) == 0 {
			t.Errorf("chunk %d has no embedding", i)
		}
	}
}

func TestEmbedChunksBatchFastPath(t *testing.T) {
	client := &fakeBatchClient{}
	embedder := NewEmbedder(client, 2)

	chunks := []common.Chunk{
		{ID: "c1", Text: "alpha"},
		{ID: "c2", Text: "beta"},
		{ID: "c3", Text: "gamma"},
	}
	if err := embedder.EmbedChunks(context.Background(), chunks); err != nil {
		t.Fatalf("EmbedChunks() error = %v", err)
	}
	if client.calls != 1 {
		t.Errorf("calls = %d, want 1 batched call", client.calls)
	}
	for i, c := range chunks {
		if len(c.Embedding) != 2 {
			t.Errorf("chunk %d embedding = %v", i, c.Embedding)
		}
	}
}

func TestEmbedChunksBatchLengthMismatch(t *testing.T) {
	client := &fakeBatchClient{short: true}
	embedder := NewEmbedder(client, 2)

	chunks := []common.Chunk{
		{ID: "c1", Text: "alpha"},
		{ID: "c2", Text: "beta"},
	}
	err := embedder.EmbedChunks(context.Background(), chunks)
	if err == nil {
		t.Fatal("EmbedChunks() returned nil for a short vector batch")
	}
	for i, c := range chunks {
		if len(c.Embedding) != 0 {
			t.Errorf("chunk %d got an embedding from a mismatched batch", i)
		}
	}
}

func TestEmbedChunksPropagatesError(t *testing.T) {
	wantErr := errors.New("backend down")
	client := &fakeEmbedClient{err: wantErr}
	embedder := NewEmbedder(client, 1)

	err := embedder.EmbedChunks(context.Background(), []common.Chunk{{ID: "c1", Text: "alpha"}})
	if !errors.Is(err, wantErr) {
		t.Errorf("EmbedChunks() error = %v, want %v", err, wantErr)
	}
}
