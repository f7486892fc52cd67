package models

import (
	"time"
)

// Document lifecycle states. A document always terminates in ready or failed.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// Sentinel MIME types for virtual documents. They carry no blob and anchor
// chat threads to a non-file-backed scope.
const (
	WebChatMimeType = "application/vnd.dochat.web-chat"
	AllDocsMimeType = "application/vnd.dochat.all-docs"
)

// IsVirtualMimeType reports whether the MIME type marks a virtual document.
func IsVirtualMimeType(mimeType string) bool {
	return mimeType == WebChatMimeType || mimeType == AllDocsMimeType
}

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Document represents a user-uploaded file, or a virtual scope anchor.
type Document struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	Title        string    `db:"title" json:"title"`
	StoragePath  string    `db:"storage_path" json:"storage_path"`
	MimeType     string    `db:"mime_type" json:"mime_type"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	Status       string    `db:"status" json:"status"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	IsShared     bool      `db:"is_shared" json:"is_shared"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Chunk represents one embedded text window of a document. Chunks are
// immutable and fully replaced when the document is re-ingested.
type Chunk struct {
	ID         string         `db:"id" json:"id"`
	DocumentID string         `db:"document_id" json:"document_id"`
	UserID     string         `db:"user_id" json:"user_id"`
	Content    string         `db:"content" json:"content"`
	Embedding  []float32      `db:"embedding" json:"embedding"` // pgvector column
	Metadata   map[string]any `db:"metadata" json:"metadata"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// ChunkMatch is a similarity search hit.
type ChunkMatch struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	DocTitle   string  `json:"doc_title"`
}

// Thread binds one conversation to exactly one document (real or virtual)
// for its whole lifetime.
type Thread struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Title      string    `db:"title" json:"title"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Message is one entry of a thread's append-only log.
type Message struct {
	ID        string    `db:"id" json:"id"`
	ThreadID  string    `db:"thread_id" json:"thread_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Role      string    `db:"role" json:"role"` // user | assistant | system
	Content   string    `db:"content" json:"content"`
	Sources   []Source  `db:"sources" json:"sources"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Source is a citation attached to an assistant message. Type discriminates
// between a retrieved chunk and a web URL.
type Source struct {
	Type       string  `json:"type"` // "chunk" | "url"
	ID         string  `json:"id,omitempty"`
	Order      int     `json:"order"`
	Similarity float64 `json:"similarity,omitempty"`
	Snippet    string  `json:"snippet,omitempty"`
	DocTitle   string  `json:"doc_title,omitempty"`
	URL        string  `json:"url,omitempty"`
	Title      string  `json:"title,omitempty"`
}

// FAQEmbedding is a row of the independently maintained FAQ corpus merged
// into document-mode retrieval as a secondary candidate pool.
type FAQEmbedding struct {
	ID        int64          `db:"id" json:"id"`
	FaqID     int64          `db:"faq_id" json:"faq_id"`
	Content   string         `db:"content" json:"content"`
	Embedding []float32      `db:"embedding" json:"embedding"`
	Metadata  map[string]any `db:"metadata" json:"metadata"`
}
