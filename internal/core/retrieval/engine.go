package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"docchat/internal/core"
	"docchat/internal/models"
)

const (
	// topK is how many chunk matches feed the prompt.
	topK = 6

	// searchThreshold filters the vector search itself; matches below it are
	// noise and never surface.
	searchThreshold = 0.2

	// minSimilarity is the relevance gate: if no candidate reaches it, the
	// engine answers with a fallback instead of generating.
	minSimilarity = 0.35

	// faqPoolSize is how many FAQ rows are loaded for in-process rescoring;
	// faqTopK of them survive.
	faqPoolSize = 8
	faqTopK     = 4

	noMatchAnswer   = "관련된 문서를 찾지 못했습니다. 더 구체적으로 질문해 주세요."
	greetingAnswer  = "안녕하세요! 궁금한 내용을 말씀해 주세요. 업로드한 문서 기반으로 답변해 드릴게요."
)

// Candidate is one retrieval hit offered to the prompt builder.
type Candidate struct {
	ID         string
	Content    string
	Similarity float64
	DocTitle   string
	FromFAQ    bool
}

// Result is the outcome of one retrieval pass. When Relevant is false,
// FallbackAnswer holds the canned reply to persist and return.
type Result struct {
	Relevant       bool
	FallbackAnswer string
	Candidates     []Candidate
	Query          string
}

// Engine embeds the query, searches chunks, merges the FAQ pool, and applies
// the relevance gate.
type Engine struct {
	db       core.DbClient
	embedder core.EmbeddingProvider
	logger   *slog.Logger
}

func NewEngine(db core.DbClient, embedder core.EmbeddingProvider, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{db: db, embedder: embedder, logger: logger}
}

// Retrieve runs document-scoped retrieval. documentID of "" widens the
// search to every ready document the user can see.
func (e *Engine) Retrieve(ctx context.Context, question, lastUserMessage, documentID, userID string) (*Result, error) {
	if IsGreeting(question) {
		return &Result{FallbackAnswer: greetingAnswer}, nil
	}

	query := BuildQuery(question, lastUserMessage)

	vectors, err := e.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 query vector, got %d", core.ErrEmbeddingProvider, len(vectors))
	}
	queryVec := vectors[0]

	var matches []models.ChunkMatch
	if documentID != "" {
		matches, err = e.db.SearchChunks(ctx, queryVec, documentID, topK, searchThreshold)
	} else {
		matches, err = e.db.SearchChunksAllUser(ctx, queryVec, userID, topK, searchThreshold)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrRetrieval, err)
	}

	// FAQ merge is best effort; a broken FAQ table never blocks an answer.
	// FAQ candidates lead the list so the prompt numbers them first.
	faqs, err := e.faqCandidates(ctx, queryVec)
	if err != nil {
		e.logger.Warn("faq retrieval failed", "error", err)
		faqs = nil
	}

	candidates := make([]Candidate, 0, len(faqs)+len(matches))
	candidates = append(candidates, faqs...)
	for _, m := range matches {
		candidates = append(candidates, Candidate{
			ID:         m.ID,
			Content:    m.Content,
			Similarity: m.Similarity,
			DocTitle:   m.DocTitle,
		})
	}

	best := 0.0
	for _, c := range candidates {
		if c.Similarity > best {
			best = c.Similarity
		}
	}
	if best < minSimilarity {
		return &Result{FallbackAnswer: noMatchAnswer, Query: query}, nil
	}

	return &Result{Relevant: true, Candidates: candidates, Query: query}, nil
}

// faqCandidates rescores the FAQ pool against the query vector and keeps the
// top entries.
func (e *Engine) faqCandidates(ctx context.Context, queryVec []float32) ([]Candidate, error) {
	faqs, err := e.db.ListFAQEmbeddings(ctx, faqPoolSize)
	if err != nil {
		return nil, err
	}
	if len(faqs) == 0 {
		return nil, nil
	}

	scored := make([]Candidate, 0, len(faqs))
	for _, f := range faqs {
		scored = append(scored, Candidate{
			ID:         fmt.Sprintf("faq-%d", f.ID),
			Content:    f.Content,
			Similarity: dotProduct(queryVec, f.Embedding),
			FromFAQ:    true,
		})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if len(scored) > faqTopK {
		scored = scored[:faqTopK]
	}
	return scored, nil
}

// dotProduct is cosine similarity for unit-normalized embedding vectors,
// which is what the provider returns.
func dotProduct(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
