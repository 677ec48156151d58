package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/kailas-cloud/ragdex/internal/domain/chunk"
	"github.com/kailas-cloud/ragdex/internal/domain/rerank"
	"github.com/kailas-cloud/ragdex/internal/domain/search"
)

func candidates(n int) []search.Candidate {
	out := make([]search.Candidate, n)
	for i := range out {
		out[i] = search.Candidate{
			ChunkID:    "chunk-" + string(rune('a'+i)),
			DocumentID: "doc-1",
			Ordinal:    i,
			Content:    "content " + string(rune('a'+i)),
			Combined:   1 - float64(i)*0.1,
		}
	}
	return out
}

func TestSearch_OverfetchesAndTruncates(t *testing.T) {
	svc, m := newTestPipeline()
	m.retriever.candidates = candidates(7)

	result, err := svc.Search(context.Background(), "acme", "q",
		search.Options{Limit: 2}, rerank.StrategySemantic, rerank.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.retriever.lastOpts.Limit != 6 {
		t.Errorf("expected retrieval widened to 6, got %d", m.retriever.lastOpts.Limit)
	}
	if len(result.Hits) != 2 {
		t.Errorf("expected 2 hits after truncation, got %d", len(result.Hits))
	}
	if m.reranker.lastStrategy != rerank.StrategySemantic {
		t.Errorf("expected strategy passed through, got %q", m.reranker.lastStrategy)
	}
}

func TestSearch_EmptyRetrievalIsEmptySuccess(t *testing.T) {
	svc, m := newTestPipeline()
	m.retriever.candidates = nil

	result, err := svc.Search(context.Background(), "acme", "q",
		search.Options{}, rerank.StrategySemantic, rerank.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Hits == nil || len(result.Hits) != 0 {
		t.Errorf("expected an empty non-nil hit list, got %v", result.Hits)
	}
	if m.reranker.lastStrategy != "" {
		t.Error("reranker must not run with no candidates")
	}
}

func TestSearch_RetrievalErrorPropagates(t *testing.T) {
	svc, m := newTestPipeline()
	m.retriever.err = errors.New("index gone")

	if _, err := svc.Search(context.Background(), "acme", "q",
		search.Options{}, rerank.StrategySemantic, rerank.Options{}); err == nil {
		t.Error("expected the retrieval error surfaced")
	}
}

func TestSearch_WindowJoinsAdjacentChunks(t *testing.T) {
	svc, m := newTestPipeline()
	cands := candidates(1)
	cands[0].Ordinal = 1
	cands[0].Content = "middle"
	m.retriever.candidates = cands

	prev, _ := chunk.New("n-0", "doc-1", 0, "before", nil)
	next, _ := chunk.New("n-2", "doc-1", 2, "after", nil)
	m.chunks.neighbors = []chunk.Chunk{next, prev}

	result, err := svc.Search(context.Background(), "acme", "q",
		search.Options{}, rerank.StrategySemantic, rerank.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.Hits[0].Window; got != "before\nmiddle\nafter" {
		t.Errorf("unexpected window %q", got)
	}
	if len(m.chunks.lastOrdinals) != 2 || m.chunks.lastOrdinals[0] != 0 || m.chunks.lastOrdinals[1] != 2 {
		t.Errorf("expected ordinals [0 2] requested, got %v", m.chunks.lastOrdinals)
	}
}

func TestSearch_WindowOmitsMissingPredecessor(t *testing.T) {
	svc, m := newTestPipeline()
	m.retriever.candidates = candidates(1)

	_, err := svc.Search(context.Background(), "acme", "q",
		search.Options{}, rerank.StrategySemantic, rerank.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The first chunk has no predecessor; only the successor is requested.
	if len(m.chunks.lastOrdinals) != 1 || m.chunks.lastOrdinals[0] != 1 {
		t.Errorf("expected ordinals [1] requested, got %v", m.chunks.lastOrdinals)
	}
}

func TestSearch_WindowDegradesToChunkText(t *testing.T) {
	svc, m := newTestPipeline()
	m.retriever.candidates = candidates(1)
	m.chunks.neighborsErr = errors.New("hash gone")

	result, err := svc.Search(context.Background(), "acme", "q",
		search.Options{}, rerank.StrategySemantic, rerank.Options{})
	if err != nil {
		t.Fatalf("enrichment trouble must not fail the search: %v", err)
	}
	if result.Hits[0].Window != result.Hits[0].Content {
		t.Errorf("expected bare chunk text, got %q", result.Hits[0].Window)
	}
}

func TestGenerateAnswer_NilGenerator(t *testing.T) {
	svc := New(&mockChunker{}, &mockChunkStore{}, &mockDocStore{},
		&mockEmbCache{}, &mockBatcher{}, &mockRetriever{}, &mockReranker{},
		nil, nil, Config{}, nil)

	ans, err := svc.GenerateAnswer(context.Background(), "acme", "q", AnswerOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Success {
		t.Error("expected a structured failure when generation is disabled")
	}
	if ans.Message != "answer generation is not configured" {
		t.Errorf("unexpected message %q", ans.Message)
	}
}

func TestGenerateAnswer_NoHits(t *testing.T) {
	svc, m := newTestPipeline()
	m.retriever.candidates = nil

	ans, err := svc.GenerateAnswer(context.Background(), "acme", "q", AnswerOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ans.Success {
		t.Error("zero matches is a success")
	}
	if ans.Answer != NoInformationAnswer {
		t.Errorf("unexpected answer %q", ans.Answer)
	}
	if ans.Confidence != 0 {
		t.Errorf("expected confidence 0, got %v", ans.Confidence)
	}
	if m.generator.contexts != nil {
		t.Error("generator must not run without hits")
	}
}

func TestGenerateAnswer_Success(t *testing.T) {
	svc, m := newTestPipeline()
	cands := candidates(1)
	cands[0].Combined = 1.0
	m.retriever.candidates = cands
	m.generator.text = strings.Repeat("x", 200)

	ans, err := svc.GenerateAnswer(context.Background(), "acme", "q", AnswerOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ans.Success {
		t.Fatalf("expected success, got %q", ans.Message)
	}
	if len(ans.Sources) != 1 || ans.Sources[0].DocumentID != "doc-1" {
		t.Errorf("unexpected sources %+v", ans.Sources)
	}
	if len(m.generator.contexts) != 1 {
		t.Fatalf("expected 1 context, got %d", len(m.generator.contexts))
	}
	// 0.6*1.0 score + 0.2 full length + 0.2*(1/5) sources.
	if math.Abs(ans.Confidence-0.84) > 1e-9 {
		t.Errorf("expected confidence 0.84, got %v", ans.Confidence)
	}
}

func TestGenerateAnswer_CapsContexts(t *testing.T) {
	svc, m := newTestPipeline()
	m.retriever.candidates = candidates(5)

	_, err := svc.GenerateAnswer(context.Background(), "acme", "q", AnswerOptions{
		Search:      search.Options{Limit: 5},
		MaxContexts: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.generator.contexts) != 2 {
		t.Errorf("expected 2 contexts, got %d", len(m.generator.contexts))
	}
}

func TestGenerateAnswer_GenerationFailure(t *testing.T) {
	svc, m := newTestPipeline()
	m.retriever.candidates = candidates(1)
	m.generator.err = errors.New("model overloaded")

	ans, err := svc.GenerateAnswer(context.Background(), "acme", "q", AnswerOptions{})
	if err != nil {
		t.Fatalf("provider failure must not cross the boundary: %v", err)
	}
	if ans.Success {
		t.Error("expected a structured failure")
	}
	if !strings.HasPrefix(ans.Message, "generation failed") {
		t.Errorf("unexpected message %q", ans.Message)
	}
	if len(ans.Sources) != 1 {
		t.Error("sources must still be reported on generation failure")
	}
}
