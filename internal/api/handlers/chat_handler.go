package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	middleware "docchat/internal/api/middlewares"
	"docchat/internal/chat"
	"docchat/internal/core"
)

// ChatService runs one chat turn; streaming callers pass a delta handler.
type ChatService interface {
	Chat(ctx context.Context, req chat.Request, emit core.StreamHandler) (*chat.Response, error)
}

type ChatHandler struct {
	service ChatService
}

func NewChatHandler(service ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

type chatRequest struct {
	Question   string `json:"question"`
	DocumentID string `json:"documentId"`
	ThreadID   string `json:"threadId"`
	Mode       string `json:"mode"`
}

// Ask handles POST /api/chat. With ?stream=1 the answer is delivered as an
// event stream of chunk deltas followed by a done event; otherwise the full
// response returns as one JSON body.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, core.ErrAuthRequired)
		return
	}

	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	req := chat.Request{
		UserID:     userID,
		Question:   body.Question,
		DocumentID: body.DocumentID,
		ThreadID:   body.ThreadID,
		Mode:       body.Mode,
	}

	if r.URL.Query().Get("stream") == "1" || strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		h.askStream(w, r, req)
		return
	}

	res, err := h.service.Chat(r.Context(), req, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type streamEvent struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Answer  string `json:"answer,omitempty"`
	Sources any    `json:"sources,omitempty"`
	Message string `json:"message,omitempty"`
}

func (h *ChatHandler) askStream(w http.ResponseWriter, r *http.Request, req chat.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(ev streamEvent) error {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	emit := func(delta string) error {
		return send(streamEvent{Type: "chunk", Text: delta})
	}

	res, err := h.service.Chat(r.Context(), req, emit)
	if err != nil {
		_, message := errorStatus(err)
		_ = send(streamEvent{Type: "error", Message: message})
		return
	}

	_ = send(streamEvent{Type: "done", Answer: res.Answer, Sources: res.Sources})
}
