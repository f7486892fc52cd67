package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/core"
	"docchat/internal/models"
)

type fakeDB struct {
	core.DbClient

	doc        *models.Document
	processing bool

	statusLog []string
	errorMsg  string
	inserted  [][]models.Chunk
	deleted   []string
}

func (f *fakeDB) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	if f.doc == nil || f.doc.ID != id {
		return nil, core.ErrNotFound
	}
	return f.doc, nil
}

func (f *fakeDB) BeginProcessing(_ context.Context, _ string) error {
	if f.processing {
		return core.ErrIngestionConflict
	}
	f.processing = true
	f.statusLog = append(f.statusLog, models.StatusProcessing)
	return nil
}

func (f *fakeDB) SetDocumentStatus(_ context.Context, _, status, errorMessage string) error {
	f.processing = false
	f.statusLog = append(f.statusLog, status)
	f.errorMsg = errorMessage
	return nil
}

func (f *fakeDB) DeleteChunksByDocument(_ context.Context, documentID string) error {
	f.deleted = append(f.deleted, documentID)
	return nil
}

func (f *fakeDB) InsertChunks(_ context.Context, chunks []models.Chunk) error {
	batch := make([]models.Chunk, len(chunks))
	copy(batch, chunks)
	f.inserted = append(f.inserted, batch)
	return nil
}

type fakeStore struct {
	core.ObjectClient
	data []byte
	err  error
}

func (f *fakeStore) GetFile(_ context.Context, _ string) ([]byte, error) {
	return f.data, f.err
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

type fakeExtract struct {
	text string
	err  error
}

func (f *fakeExtract) Extract(_ context.Context, _ []byte, _ string) (string, error) {
	return f.text, f.err
}

func newTestPipeline(t *testing.T, db *fakeDB, store *fakeStore, emb *fakeEmbedder, ext *fakeExtract) *Pipeline {
	t.Helper()
	chunker, err := NewChunker(10, 2)
	require.NoError(t, err)
	return NewPipeline(db, store, emb, ext, chunker, nil)
}

func testDoc() *models.Document {
	return &models.Document{
		ID:          "doc-1",
		UserID:      "user-1",
		Title:       "계약서.pdf",
		StoragePath: "user-1/doc-1.pdf",
		MimeType:    "application/pdf",
		Status:      models.StatusQueued,
		CreatedAt:   time.Now(),
	}
}

func TestProcess_Success(t *testing.T) {
	db := &fakeDB{doc: testDoc()}
	store := &fakeStore{data: []byte("%PDF")}
	ext := &fakeExtract{text: strings.Repeat("가나다라마바사아 ", 30)}

	p := newTestPipeline(t, db, store, &fakeEmbedder{}, ext)
	require.NoError(t, p.Process(context.Background(), "doc-1"))

	assert.Equal(t, []string{models.StatusProcessing, models.StatusReady}, db.statusLog)
	assert.Equal(t, []string{"doc-1"}, db.deleted)
	require.NotEmpty(t, db.inserted)

	i := 0
	for _, batch := range db.inserted {
		for _, ch := range batch {
			assert.Equal(t, "doc-1", ch.DocumentID)
			assert.Equal(t, "user-1", ch.UserID)
			assert.NotEmpty(t, ch.ID)
			assert.Equal(t, i, ch.Metadata["index"])
			i++
		}
	}
}

func TestProcess_BatchesInserts(t *testing.T) {
	db := &fakeDB{doc: testDoc()}
	store := &fakeStore{data: []byte("%PDF")}
	// Enough text for well over chunkInsertBatchSize windows of size 10.
	ext := &fakeExtract{text: strings.Repeat("abcdefgh ", 120)}

	p := newTestPipeline(t, db, store, &fakeEmbedder{}, ext)
	require.NoError(t, p.Process(context.Background(), "doc-1"))

	require.Greater(t, len(db.inserted), 1)
	for _, batch := range db.inserted {
		assert.LessOrEqual(t, len(batch), chunkInsertBatchSize)
	}
}

func TestProcess_UnsupportedMime(t *testing.T) {
	doc := testDoc()
	doc.MimeType = "application/zip"
	db := &fakeDB{doc: doc}

	p := newTestPipeline(t, db, &fakeStore{}, &fakeEmbedder{}, &fakeExtract{})
	err := p.Process(context.Background(), "doc-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
	assert.Equal(t, []string{models.StatusFailed}, db.statusLog)
}

func TestProcess_EmptyExtraction(t *testing.T) {
	db := &fakeDB{doc: testDoc()}
	store := &fakeStore{data: []byte("%PDF")}

	p := newTestPipeline(t, db, store, &fakeEmbedder{}, &fakeExtract{text: "   "})
	err := p.Process(context.Background(), "doc-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrExtractionEmpty)
	assert.Equal(t, models.StatusFailed, db.statusLog[len(db.statusLog)-1])
	assert.Equal(t, emptyBodyMessage, db.errorMsg)
}

func TestProcess_ConcurrentRunRejected(t *testing.T) {
	db := &fakeDB{doc: testDoc(), processing: true}

	p := newTestPipeline(t, db, &fakeStore{}, &fakeEmbedder{}, &fakeExtract{text: "text"})
	err := p.Process(context.Background(), "doc-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrIngestionConflict)
}

func TestProcess_EmbeddingFailureMarksFailed(t *testing.T) {
	db := &fakeDB{doc: testDoc()}
	store := &fakeStore{data: []byte("%PDF")}
	emb := &fakeEmbedder{err: errors.New("provider down")}

	p := newTestPipeline(t, db, store, emb, &fakeExtract{text: "long enough text to chunk"})
	err := p.Process(context.Background(), "doc-1")

	require.Error(t, err)
	assert.Equal(t, models.StatusFailed, db.statusLog[len(db.statusLog)-1])
	assert.Contains(t, db.errorMsg, "provider down")
	// Embedding failed before the delete, so existing chunks survive.
	assert.Empty(t, db.deleted)
}

func TestProcess_ErrorMessageTruncated(t *testing.T) {
	db := &fakeDB{doc: testDoc()}
	store := &fakeStore{err: errors.New(strings.Repeat("x", 1000))}

	p := newTestPipeline(t, db, store, &fakeEmbedder{}, &fakeExtract{})
	err := p.Process(context.Background(), "doc-1")

	require.Error(t, err)
	assert.Len(t, []rune(db.errorMsg), errorMessageLimit)
}

func TestAllowedMimeType(t *testing.T) {
	assert.True(t, AllowedMimeType("application/pdf"))
	assert.True(t, AllowedMimeType("application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
	assert.True(t, AllowedMimeType("application/haansoftdocx"))
	assert.True(t, AllowedMimeType("text/plain"))
	assert.True(t, AllowedMimeType("text/markdown"))
	assert.False(t, AllowedMimeType("application/zip"))
	assert.False(t, AllowedMimeType("image/png"))
}
