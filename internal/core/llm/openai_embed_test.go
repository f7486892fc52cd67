package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/core"
)

type fakeEmbeddingAPI struct {
	batches [][]string
	reverse bool
	failOn  int
}

func (f *fakeEmbeddingAPI) CreateEmbeddings(_ context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	req, ok := conv.(openai.EmbeddingRequest)
	if !ok {
		return openai.EmbeddingResponse{}, errors.New("unexpected request type")
	}
	inputs, ok := req.Input.([]string)
	if !ok {
		return openai.EmbeddingResponse{}, errors.New("unexpected input type")
	}

	f.batches = append(f.batches, inputs)
	if f.failOn > 0 && len(f.batches) == f.failOn {
		return openai.EmbeddingResponse{}, errors.New("provider unavailable")
	}

	data := make([]openai.Embedding, len(inputs))
	for i := range inputs {
		idx := i
		if f.reverse {
			idx = len(inputs) - 1 - i
		}
		data[i] = openai.Embedding{
			Index:     idx,
			Embedding: []float32{float32(idx)},
		}
	}
	return openai.EmbeddingResponse{Data: data}, nil
}

func TestEmbedTexts_Empty(t *testing.T) {
	e := &OpenAIEmbedder{api: &fakeEmbeddingAPI{}}
	vecs, err := e.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbedTexts_SplitsIntoBatches(t *testing.T) {
	texts := make([]string, embeddingBatchSize+10)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk-%d", i)
	}

	api := &fakeEmbeddingAPI{}
	e := &OpenAIEmbedder{api: api}

	vecs, err := e.EmbedTexts(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	require.Len(t, api.batches, 2)
	assert.Len(t, api.batches[0], embeddingBatchSize)
	assert.Len(t, api.batches[1], 10)
}

func TestEmbedTexts_RestoresProviderOrder(t *testing.T) {
	api := &fakeEmbeddingAPI{reverse: true}
	e := &OpenAIEmbedder{api: api}

	vecs, err := e.EmbedTexts(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Equal(t, []float32{float32(i)}, v)
	}
}

func TestEmbedTexts_BatchFailureAborts(t *testing.T) {
	texts := make([]string, embeddingBatchSize+1)
	for i := range texts {
		texts[i] = "x"
	}

	api := &fakeEmbeddingAPI{failOn: 2}
	e := &OpenAIEmbedder{api: api}

	_, err := e.EmbedTexts(context.Background(), texts)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingProvider)
}
