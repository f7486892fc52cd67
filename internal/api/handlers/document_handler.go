package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	middleware "docchat/internal/api/middlewares"
	"docchat/internal/config"
	"docchat/internal/core"
	"docchat/internal/core/ingest"
	"docchat/internal/models"
)

const signedURLTTL = 5 * time.Minute

// Ingestor runs the synchronous ingestion of an uploaded document.
type Ingestor interface {
	Process(ctx context.Context, documentID string) error
}

type DocumentHandler struct {
	dbclient core.DbClient
	store    core.ObjectClient
	ingestor Ingestor
	cfg      *config.Config
}

func NewDocumentHandler(dbclient core.DbClient, store core.ObjectClient, ingestor Ingestor, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{dbclient: dbclient, store: store, ingestor: ingestor, cfg: cfg}
}

// Upload accepts a multipart file, stores the blob, and ingests it within
// the request. The response carries the document in its terminal state.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, core.ErrAuthRequired)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxFileSizeBytes+1024)
	if err := r.ParseMultipartForm(h.cfg.MaxFileSizeBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "파일이 너무 크거나 요청 형식이 잘못되었습니다."})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file 필드가 필요합니다."})
		return
	}
	defer file.Close()

	if header.Size > h.cfg.MaxFileSizeBytes {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "파일 크기가 제한을 초과했습니다."})
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if !ingest.AllowedMimeType(mimeType) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "지원하지 않는 파일 형식입니다: " + mimeType})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, err)
		return
	}

	docID := uuid.NewString()
	key := fmt.Sprintf("%s/%s%s", userID, docID, filepath.Ext(header.Filename))

	if _, err := h.store.UploadFile(r.Context(), key, bytes.NewReader(data), mimeType); err != nil {
		writeError(w, err)
		return
	}

	doc := &models.Document{
		ID:          docID,
		UserID:      userID,
		Title:       header.Filename,
		StoragePath: key,
		MimeType:    mimeType,
		SizeBytes:   header.Size,
		Status:      models.StatusQueued,
	}
	if err := h.dbclient.CreateDocument(r.Context(), doc); err != nil {
		writeError(w, err)
		return
	}

	// Ingestion is synchronous; the pipeline leaves the document in a
	// terminal state either way, so report that state rather than the error.
	_ = h.ingestor.Process(r.Context(), docID)

	final, err := h.dbclient.GetDocumentByID(r.Context(), docID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, final)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, core.ErrAuthRequired)
		return
	}

	docs, err := h.dbclient.ListDocumentsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// Download responds with a short-lived signed URL for the original blob.
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, core.ErrAuthRequired)
		return
	}

	doc, err := h.dbclient.GetDocumentForUser(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if models.IsVirtualMimeType(doc.MimeType) {
		writeError(w, core.ErrNotFound)
		return
	}

	url, err := h.store.SignedURL(r.Context(), doc.StoragePath, signedURLTTL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Delete removes the blob and the document row; chunks and threads cascade.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, core.ErrAuthRequired)
		return
	}

	id := chi.URLParam(r, "id")
	doc, err := h.dbclient.GetDocumentForUser(r.Context(), id, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if doc.UserID != userID {
		// Shared documents are readable by everyone but deletable only by
		// their owner.
		writeError(w, core.ErrNotFound)
		return
	}

	if !models.IsVirtualMimeType(doc.MimeType) {
		if err := h.store.DeleteFile(r.Context(), doc.StoragePath); err != nil {
			writeError(w, err)
			return
		}
	}
	if err := h.dbclient.DeleteDocument(r.Context(), id, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
