package core

import (
	"context"
	"io"
	"time"

	"docchat/internal/models"
)

// DbClient defines all persistence operations the services need. It abstracts
// Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	// GetDocumentForUser resolves a document the user owns or that is shared;
	// absence and foreign ownership are both reported as ErrNotFound.
	GetDocumentForUser(ctx context.Context, id, userID string) (*models.Document, error)
	ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error)
	// SetDocumentStatus updates status and error message; an empty message
	// clears any prior error.
	SetDocumentStatus(ctx context.Context, id, status, errorMessage string) error
	// BeginProcessing transitions queued/ready/failed -> processing as a
	// check-and-set, so concurrent re-ingestion of one document is serialized.
	// Returns ErrIngestionConflict when the document is already processing.
	BeginProcessing(ctx context.Context, id string) error
	DeleteDocument(ctx context.Context, id, userID string) error
	// CountReadyDocuments counts the user's own or shared ready documents,
	// virtual documents excluded.
	CountReadyDocuments(ctx context.Context, userID string) (int, error)
	// EnsureVirtualDocument looks up the user's virtual document with the
	// given sentinel MIME type, creating it lazily when missing.
	EnsureVirtualDocument(ctx context.Context, userID, mimeType, title, storagePath string) (string, error)

	InsertChunks(ctx context.Context, chunks []models.Chunk) error
	DeleteChunksByDocument(ctx context.Context, documentID string) error
	// SearchChunks runs cosine similarity search scoped to one document.
	SearchChunks(ctx context.Context, query []float32, documentID string, limit int, threshold float64) ([]models.ChunkMatch, error)
	// SearchChunksAllUser searches across all of the user's (or shared) ready
	// documents.
	SearchChunksAllUser(ctx context.Context, query []float32, userID string, limit int, threshold float64) ([]models.ChunkMatch, error)
	ListFAQEmbeddings(ctx context.Context, limit int) ([]models.FAQEmbedding, error)

	CreateThread(ctx context.Context, thread *models.Thread) error
	GetThread(ctx context.Context, id, userID string) (*models.Thread, error)
	ListThreadsByUser(ctx context.Context, userID string) ([]models.Thread, error)
	UpdateThreadTitle(ctx context.Context, id, userID, title string) error
	DeleteThread(ctx context.Context, id, userID string) error

	InsertMessage(ctx context.Context, msg *models.Message) error
	ListThreadMessages(ctx context.Context, threadID, userID string) ([]models.Message, error)
	// RecentHistory returns the latest non-system messages in chronological
	// order, capped at limit.
	RecentHistory(ctx context.Context, threadID, userID string, limit int) ([]models.Message, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data io.Reader, contentType string) (string, error)
	GetFile(ctx context.Context, key string) ([]byte, error)
	DeleteFile(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// EmbeddingProvider turns texts into vectors, index-order preserving.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatMessage is one turn of conversation history handed to the LLM.
type ChatMessage struct {
	Role    string // "user" | "assistant"
	Content string
}

// StreamHandler receives incremental text deltas. Returning an error stops
// the stream (e.g. the client disconnected).
type StreamHandler func(delta string) error

// LLMProvider is the hosted chat model. Streaming and non-streaming variants
// must produce the same final text for the same inputs.
type LLMProvider interface {
	Complete(ctx context.Context, systemPrompt string, history []ChatMessage, userPrompt string) (string, error)
	CompleteStream(ctx context.Context, systemPrompt string, history []ChatMessage, userPrompt string, fn StreamHandler) (string, error)

	// WebSearchComplete answers with a web_search tool enabled and returns the
	// URLs cited during the tool-call trace, in first-use order.
	WebSearchComplete(ctx context.Context, instructions string, history []ChatMessage, question string) (string, []string, error)
	WebSearchCompleteStream(ctx context.Context, instructions string, history []ChatMessage, question string, fn StreamHandler) (string, []string, error)

	// GenerateTitle summarizes a question into a short thread title.
	GenerateTitle(ctx context.Context, question string) (string, error)
}

// VisionTranscriber extracts text verbatim from a page image. Used as the
// last extraction fallback for image-only PDFs.
type VisionTranscriber interface {
	TranscribeImage(ctx context.Context, png []byte) (string, error)
}

// ModerationProvider classifies text before any generation happens.
type ModerationProvider interface {
	// Classify returns true when the text is flagged. An error means the
	// check itself failed and must surface as ErrModerationService.
	Classify(ctx context.Context, text string) (bool, error)
}

// WebResult is one hit from a live web search.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearcher backs the LLM's web_search tool.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]WebResult, error)
}
