package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"docchat/internal/core"
	"docchat/internal/models"
)

const (
	// chunkInsertBatchSize bounds each insert transaction.
	chunkInsertBatchSize = 50

	// errorMessageLimit caps the persisted failure message.
	errorMessageLimit = 400

	emptyBodyMessage = "본문을 추출할 수 없습니다."
)

// Extractor turns a stored blob into plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Pipeline runs the full ingestion of one document: download, extract,
// chunk, embed, persist. Process is synchronous; callers decide whether to
// run it inline or on a goroutine.
type Pipeline struct {
	db       core.DbClient
	store    core.ObjectClient
	embedder core.EmbeddingProvider
	extract  Extractor
	chunker  *Chunker
	logger   *slog.Logger
}

func NewPipeline(db core.DbClient, store core.ObjectClient, embedder core.EmbeddingProvider, extract Extractor, chunker *Chunker, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		db:       db,
		store:    store,
		embedder: embedder,
		extract:  extract,
		chunker:  chunker,
		logger:   logger,
	}
}

// AllowedMimeType reports whether uploads of this type are accepted.
func AllowedMimeType(mimeType string) bool {
	switch {
	case strings.Contains(mimeType, "pdf"):
		return true
	case strings.Contains(mimeType, "wordprocessingml"), strings.Contains(mimeType, "haansoft"):
		return true
	case strings.HasPrefix(mimeType, "text/"):
		return true
	}
	return false
}

// Process ingests the document end to end. The document always lands in a
// terminal state: ready on success, failed otherwise. Re-ingestion of a
// document fully replaces its chunks; concurrent runs on the same document
// are rejected with ErrIngestionConflict.
func (p *Pipeline) Process(ctx context.Context, documentID string) error {
	doc, err := p.db.GetDocumentByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	if !AllowedMimeType(doc.MimeType) {
		p.markFailed(ctx, documentID, "지원하지 않는 파일 형식입니다: "+doc.MimeType)
		return fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, doc.MimeType)
	}

	if err := p.db.BeginProcessing(ctx, documentID); err != nil {
		if errors.Is(err, core.ErrIngestionConflict) {
			return err
		}
		return fmt.Errorf("begin processing: %w", err)
	}

	log := p.logger.With("document_id", documentID, "mime_type", doc.MimeType)

	data, err := p.store.GetFile(ctx, doc.StoragePath)
	if err != nil {
		p.markFailed(ctx, documentID, err.Error())
		return fmt.Errorf("download blob: %w", err)
	}

	text, err := p.extract.Extract(ctx, data, doc.MimeType)
	if err != nil {
		p.markFailed(ctx, documentID, err.Error())
		return fmt.Errorf("extract text: %w", err)
	}

	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		p.markFailed(ctx, documentID, emptyBodyMessage)
		return fmt.Errorf("%w: %s", core.ErrExtractionEmpty, documentID)
	}
	log.Info("document extracted", "chunks", len(chunks))

	vectors, err := p.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		p.markFailed(ctx, documentID, err.Error())
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		p.markFailed(ctx, documentID, "embedding count mismatch")
		return fmt.Errorf("%w: got %d vectors for %d chunks", core.ErrEmbeddingProvider, len(vectors), len(chunks))
	}

	// Full replacement so re-ingestion never leaves stale windows behind.
	if err := p.db.DeleteChunksByDocument(ctx, documentID); err != nil {
		p.markFailed(ctx, documentID, err.Error())
		return fmt.Errorf("delete old chunks: %w", err)
	}

	rows := make([]models.Chunk, len(chunks))
	for i, content := range chunks {
		rows[i] = models.Chunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			UserID:     doc.UserID,
			Content:    content,
			Embedding:  vectors[i],
			Metadata: map[string]any{
				"index":     i,
				"doc_title": doc.Title,
			},
		}
	}
	for start := 0; start < len(rows); start += chunkInsertBatchSize {
		end := start + chunkInsertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := p.db.InsertChunks(ctx, rows[start:end]); err != nil {
			p.markFailed(ctx, documentID, err.Error())
			return fmt.Errorf("insert chunks: %w", err)
		}
	}

	if err := p.db.SetDocumentStatus(ctx, documentID, models.StatusReady, ""); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	log.Info("document ready")
	return nil
}

// markFailed records the terminal failed state. Runs detached from the
// request context so cancellation cannot leave the document stuck in
// processing.
func (p *Pipeline) markFailed(ctx context.Context, documentID, message string) {
	if runes := []rune(message); len(runes) > errorMessageLimit {
		message = string(runes[:errorMessageLimit])
	}
	detached := context.WithoutCancel(ctx)
	if err := p.db.SetDocumentStatus(detached, documentID, models.StatusFailed, message); err != nil {
		p.logger.Error("mark document failed", "document_id", documentID, "error", err)
	}
}
