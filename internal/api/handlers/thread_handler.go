package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	middleware "docchat/internal/api/middlewares"
	"docchat/internal/core"
	"docchat/internal/models"
)

const (
	newWebThreadTitle     = "새 웹 검색 대화"
	newAllDocsThreadTitle = "내 문서 전체 대화"
	threadTitleLimit      = 60
)

var titleSpaceRun = regexp.MustCompile(`\s+`)

type ThreadHandler struct {
	dbclient core.DbClient
}

func NewThreadHandler(dbclient core.DbClient) *ThreadHandler {
	return &ThreadHandler{dbclient: dbclient}
}

type newChatRequest struct {
	Mode  string `json:"mode"`
	Title string `json:"title"`
}

// Create opens an empty thread ahead of the first question: web mode anchors
// to the web virtual document, document mode to the all-docs one (requiring
// at least one ready document).
func (h *ThreadHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, core.ErrAuthRequired)
		return
	}

	var req newChatRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	title := titleSpaceRun.ReplaceAllString(strings.TrimSpace(req.Title), " ")
	if runes := []rune(title); len(runes) > threadTitleLimit {
		title = string(runes[:threadTitleLimit])
	}

	var documentID string
	if req.Mode == "web" {
		id, err := h.dbclient.EnsureVirtualDocument(r.Context(), userID, models.WebChatMimeType,
			"웹 검색 대화", userID+"/__virtual__/web-chat")
		if err != nil {
			writeError(w, err)
			return
		}
		documentID = id
		if title == "" {
			title = newWebThreadTitle
		}
	} else {
		ready, err := h.dbclient.CountReadyDocuments(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		if ready == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "처리 완료된 문서가 없습니다. 먼저 문서를 업로드하고 처리 완료를 기다려주세요.",
			})
			return
		}
		id, err := h.dbclient.EnsureVirtualDocument(r.Context(), userID, models.AllDocsMimeType,
			"모든 문서 대화", userID+"/__virtual__/all-docs")
		if err != nil {
			writeError(w, err)
			return
		}
		documentID = id
		if title == "" {
			title = newAllDocsThreadTitle
		}
	}

	thread := &models.Thread{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		UserID:     userID,
		Title:      title,
	}
	if err := h.dbclient.CreateThread(r.Context(), thread); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"threadId": thread.ID})
}

func (h *ThreadHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, core.ErrAuthRequired)
		return
	}

	threads, err := h.dbclient.ListThreadsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if threads == nil {
		threads = []models.Thread{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": threads})
}

func (h *ThreadHandler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, core.ErrAuthRequired)
		return
	}

	threadID := chi.URLParam(r, "id")
	if _, err := h.dbclient.GetThread(r.Context(), threadID, userID); err != nil {
		writeError(w, err)
		return
	}

	msgs, err := h.dbclient.ListThreadMessages(r.Context(), threadID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (h *ThreadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, core.ErrAuthRequired)
		return
	}

	if err := h.dbclient.DeleteThread(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
