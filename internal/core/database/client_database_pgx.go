package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"docchat/internal/config"
	"docchat/internal/core"
	"docchat/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	dsn := cfg.DatabaseURL
	if cfg.SslCertPath != "" {
		u, err := url.Parse(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		q := u.Query()
		q.Set("sslmode", "verify-ca")
		q.Set("sslrootcert", cfg.SslCertPath)
		u.RawQuery = q.Encode()
		dsn = u.String()
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`
	_, err := c.db.ExecContext(ctx, q, user.ID, user.Email, user.PasswordHash, nullTime(user.CreatedAt))
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, email, password_hash, created_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Documents

const documentColumns = `
	id, user_id, title, storage_path, mime_type, size_bytes,
	status, COALESCE(error_message, ''), is_shared, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	var d models.Document
	err := row.Scan(
		&d.ID, &d.UserID, &d.Title, &d.StoragePath, &d.MimeType, &d.SizeBytes,
		&d.Status, &d.ErrorMessage, &d.IsShared, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, user_id, title, storage_path, mime_type, size_bytes, status, is_shared, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()), COALESCE($10, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.UserID, doc.Title, doc.StoragePath, doc.MimeType, doc.SizeBytes,
		doc.Status, doc.IsShared, nullTime(doc.CreatedAt), nullTime(doc.UpdatedAt))
	return err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	d, err := scanDocument(c.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	return d, err
}

func (c *DatabaseClient) GetDocumentForUser(ctx context.Context, id, userID string) (*models.Document, error) {
	q := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE id = $1 AND (user_id = $2 OR is_shared)
	`
	d, err := scanDocument(c.db.QueryRowContext(ctx, q, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	return d, err
}

// ListDocumentsByUser returns the user's own non-virtual documents, newest
// first.
func (c *DatabaseClient) ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error) {
	q := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE user_id = $1 AND mime_type NOT IN ($2, $3)
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID, models.WebChatMimeType, models.AllDocsMimeType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) SetDocumentStatus(ctx context.Context, id, status, errorMessage string) error {
	const q = `
		UPDATE documents
		SET status = $2, error_message = NULLIF($3, ''), updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status, errorMessage)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// BeginProcessing is the check-and-set that serializes ingestion per
// document. Zero rows affected means another ingestion holds the document.
func (c *DatabaseClient) BeginProcessing(ctx context.Context, id string) error {
	const q = `
		UPDATE documents
		SET status = $2, error_message = NULL, updated_at = now()
		WHERE id = $1 AND status <> $2
	`
	res, err := c.db.ExecContext(ctx, q, id, models.StatusProcessing)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		var exists bool
		if err := c.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return core.ErrNotFound
		}
		return core.ErrIngestionConflict
	}
	return nil
}

// DeleteDocument removes the row; chunks and threads go with it via cascade.
func (c *DatabaseClient) DeleteDocument(ctx context.Context, id, userID string) error {
	const q = `DELETE FROM documents WHERE id = $1 AND user_id = $2`
	res, err := c.db.ExecContext(ctx, q, id, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (c *DatabaseClient) CountReadyDocuments(ctx context.Context, userID string) (int, error) {
	const q = `
		SELECT count(*)
		FROM documents
		WHERE (user_id = $1 OR is_shared)
		  AND status = $2
		  AND mime_type NOT IN ($3, $4)
	`
	var n int
	err := c.db.QueryRowContext(ctx, q, userID, models.StatusReady,
		models.WebChatMimeType, models.AllDocsMimeType).Scan(&n)
	return n, err
}

// EnsureVirtualDocument is lazy and idempotent: one virtual document per
// (user, sentinel MIME type), created on first use.
func (c *DatabaseClient) EnsureVirtualDocument(ctx context.Context, userID, mimeType, title, storagePath string) (string, error) {
	const sel = `
		SELECT id FROM documents
		WHERE user_id = $1 AND mime_type = $2
		ORDER BY created_at ASC
		LIMIT 1
	`
	var id string
	err := c.db.QueryRowContext(ctx, sel, userID, mimeType).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	id = uuid.NewString()
	const ins = `
		INSERT INTO documents
			(id, user_id, title, storage_path, mime_type, size_bytes, status, is_shared)
		VALUES ($1, $2, $3, $4, $5, 0, $6, false)
	`
	if _, err := c.db.ExecContext(ctx, ins, id, userID, title, storagePath, mimeType, models.StatusReady); err != nil {
		// Concurrent first use can race the insert; fall back to the winner.
		var existing string
		if selErr := c.db.QueryRowContext(ctx, sel, userID, mimeType).Scan(&existing); selErr == nil {
			return existing, nil
		}
		return "", err
	}
	return id, nil
}

// Chunks

// InsertChunks inserts chunks in a single transaction.
func (c *DatabaseClient) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO document_chunks
			(id, document_id, user_id, content, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		meta, err := json.Marshal(ch.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		vec := pgvector.NewVector(ch.Embedding)
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.DocumentID, ch.UserID, ch.Content, vec, meta, nullTime(ch.CreatedAt),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (c *DatabaseClient) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	const q = `DELETE FROM document_chunks WHERE document_id = $1`
	_, err := c.db.ExecContext(ctx, q, documentID)
	return err
}

// SearchChunks finds chunks of one document above the cosine similarity
// threshold, most similar first.
func (c *DatabaseClient) SearchChunks(ctx context.Context, query []float32, documentID string, limit int, threshold float64) ([]models.ChunkMatch, error) {
	const q = `
		SELECT c.id, c.content, 1 - (c.embedding <=> $2) AS similarity, d.title
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.document_id = $1
		  AND 1 - (c.embedding <=> $2) >= $3
		ORDER BY c.embedding <=> $2
		LIMIT $4
	`
	vec := pgvector.NewVector(query)
	rows, err := c.db.QueryContext(ctx, q, documentID, vec, threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMatches(rows)
}

// SearchChunksAllUser searches every ready document the user owns or that is
// shared with everyone. Virtual documents never hold chunks but are excluded
// anyway.
func (c *DatabaseClient) SearchChunksAllUser(ctx context.Context, query []float32, userID string, limit int, threshold float64) ([]models.ChunkMatch, error) {
	const q = `
		SELECT c.id, c.content, 1 - (c.embedding <=> $2) AS similarity, d.title
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE (d.user_id = $1 OR d.is_shared)
		  AND d.status = $3
		  AND d.mime_type NOT IN ($4, $5)
		  AND 1 - (c.embedding <=> $2) >= $6
		ORDER BY c.embedding <=> $2
		LIMIT $7
	`
	vec := pgvector.NewVector(query)
	rows, err := c.db.QueryContext(ctx, q, userID, vec, models.StatusReady,
		models.WebChatMimeType, models.AllDocsMimeType, threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMatches(rows)
}

func scanMatches(rows *sql.Rows) ([]models.ChunkMatch, error) {
	var out []models.ChunkMatch
	for rows.Next() {
		var m models.ChunkMatch
		if err := rows.Scan(&m.ID, &m.Content, &m.Similarity, &m.DocTitle); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) ListFAQEmbeddings(ctx context.Context, limit int) ([]models.FAQEmbedding, error) {
	const q = `
		SELECT id, faq_id, content, embedding, metadata
		FROM faq_embeddings
		ORDER BY id ASC
		LIMIT $1
	`
	rows, err := c.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FAQEmbedding
	for rows.Next() {
		var (
			f    models.FAQEmbedding
			emb  pgvector.Vector
			meta []byte
		)
		if err := rows.Scan(&f.ID, &f.FaqID, &f.Content, &emb, &meta); err != nil {
			return nil, err
		}
		f.Embedding = emb.Slice()
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &f.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal faq metadata: %w", err)
			}
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Threads

func (c *DatabaseClient) CreateThread(ctx context.Context, thread *models.Thread) error {
	if thread == nil {
		return errors.New("nil thread")
	}
	const q = `
		INSERT INTO chat_threads (id, document_id, user_id, title, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		thread.ID, thread.DocumentID, thread.UserID, thread.Title, nullTime(thread.CreatedAt))
	return err
}

func (c *DatabaseClient) GetThread(ctx context.Context, id, userID string) (*models.Thread, error) {
	const q = `
		SELECT id, document_id, user_id, title, created_at
		FROM chat_threads
		WHERE id = $1 AND user_id = $2
	`
	var t models.Thread
	err := c.db.QueryRowContext(ctx, q, id, userID).Scan(
		&t.ID, &t.DocumentID, &t.UserID, &t.Title, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *DatabaseClient) ListThreadsByUser(ctx context.Context, userID string) ([]models.Thread, error) {
	const q = `
		SELECT id, document_id, user_id, title, created_at
		FROM chat_threads
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Thread
	for rows.Next() {
		var t models.Thread
		if err := rows.Scan(&t.ID, &t.DocumentID, &t.UserID, &t.Title, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateThreadTitle(ctx context.Context, id, userID, title string) error {
	const q = `
		UPDATE chat_threads SET title = $3
		WHERE id = $1 AND user_id = $2
	`
	res, err := c.db.ExecContext(ctx, q, id, userID, title)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (c *DatabaseClient) DeleteThread(ctx context.Context, id, userID string) error {
	const q = `DELETE FROM chat_threads WHERE id = $1 AND user_id = $2`
	res, err := c.db.ExecContext(ctx, q, id, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Messages

func (c *DatabaseClient) InsertMessage(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return errors.New("nil message")
	}
	sources, err := json.Marshal(msg.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	const q = `
		INSERT INTO chat_messages (id, thread_id, user_id, role, content, sources, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
	`
	_, err = c.db.ExecContext(ctx, q,
		msg.ID, msg.ThreadID, msg.UserID, msg.Role, msg.Content, sources, nullTime(msg.CreatedAt))
	return err
}

func (c *DatabaseClient) ListThreadMessages(ctx context.Context, threadID, userID string) ([]models.Message, error) {
	const q = `
		SELECT m.id, m.thread_id, m.user_id, m.role, m.content, m.sources, m.created_at
		FROM chat_messages m
		JOIN chat_threads t ON t.id = m.thread_id
		WHERE m.thread_id = $1 AND t.user_id = $2
		ORDER BY m.created_at ASC
	`
	rows, err := c.db.QueryContext(ctx, q, threadID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// RecentHistory returns the newest non-system messages in chronological
// order.
func (c *DatabaseClient) RecentHistory(ctx context.Context, threadID, userID string, limit int) ([]models.Message, error) {
	const q = `
		SELECT m.id, m.thread_id, m.user_id, m.role, m.content, m.sources, m.created_at
		FROM chat_messages m
		JOIN chat_threads t ON t.id = m.thread_id
		WHERE m.thread_id = $1 AND t.user_id = $2 AND m.role <> 'system'
		ORDER BY m.created_at DESC
		LIMIT $3
	`
	rows, err := c.db.QueryContext(ctx, q, threadID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	var out []models.Message
	for rows.Next() {
		var (
			m       models.Message
			sources []byte
		)
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.UserID, &m.Role, &m.Content, &sources, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &m.Sources); err != nil {
				return nil, fmt.Errorf("unmarshal sources: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// nullTime maps the zero time to NULL so COALESCE(.., now()) applies.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
