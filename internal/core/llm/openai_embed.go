package llm

import (
	"context"
	"fmt"
	"sort"

	openai "github.com/sashabaranov/go-openai"

	"docchat/internal/core"
)

// embeddingBatchSize is the provider batch limit respected per request.
const embeddingBatchSize = 96

// embeddingAPI is the slice of the OpenAI client the embedder needs; tests
// inject a fake here.
type embeddingAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIEmbedder batches texts to the embeddings endpoint, preserving input
// order across batches and across provider-side reordering.
type OpenAIEmbedder struct {
	api   embeddingAPI
	model openai.EmbeddingModel
}

func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", core.ErrEmbeddingProvider)
	}
	return &OpenAIEmbedder{
		api:   openai.NewClient(apiKey),
		model: openai.EmbeddingModel(model),
	}, nil
}

// EmbedTexts returns one vector per input text, index-aligned. Any batch
// failure aborts the whole call; there is no partial-success mode.
func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		resp, err := e.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: batch,
			Model: e.model,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrEmbeddingProvider, err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d inputs",
				core.ErrEmbeddingProvider, len(resp.Data), len(batch))
		}

		out = append(out, sortByIndex(resp.Data)...)
	}
	return out, nil
}

// sortByIndex restores input order within a batch; the provider may return
// items out of order.
func sortByIndex(data []openai.Embedding) [][]float32 {
	sorted := make([]openai.Embedding, len(data))
	copy(sorted, data)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	vecs := make([][]float32, len(sorted))
	for i, d := range sorted {
		vecs[i] = d.Embedding
	}
	return vecs
}

var _ core.EmbeddingProvider = (*OpenAIEmbedder)(nil)
