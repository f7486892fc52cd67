package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	middleware "docchat/internal/api/middlewares"
	"docchat/internal/chat"
	"docchat/internal/core"
	"docchat/internal/models"
)

type fakeChatService struct {
	res    *chat.Response
	err    error
	deltas []string

	gotUserID string
	gotReq    chat.Request
}

func (f *fakeChatService) Chat(_ context.Context, req chat.Request, emit core.StreamHandler) (*chat.Response, error) {
	f.gotUserID = req.UserID
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	if emit != nil {
		for _, d := range f.deltas {
			if err := emit(d); err != nil {
				break
			}
		}
	}
	return f.res, nil
}

const testSecret = "test-secret"

func authedRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	claims := jwt.MapClaims{"user_id": "user-1"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serveChat(svc ChatService, req *http.Request) *httptest.ResponseRecorder {
	h := NewChatHandler(svc)
	rec := httptest.NewRecorder()
	middleware.JWTMiddleware(testSecret)(http.HandlerFunc(h.Ask)).ServeHTTP(rec, req)
	return rec
}

func TestAsk_NonStreaming(t *testing.T) {
	svc := &fakeChatService{
		res: &chat.Response{
			ThreadID: "t1",
			Answer:   "답변입니다",
			Sources:  []models.Source{{Type: "chunk", ID: "c1", Order: 1}},
		},
	}

	req := authedRequest(t, http.MethodPost, "/api/chat", `{"question":"질문","documentId":"doc-1"}`)
	rec := serveChat(svc, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", svc.gotUserID)
	assert.Equal(t, "doc-1", svc.gotReq.DocumentID)

	var res chat.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "t1", res.ThreadID)
	assert.Equal(t, "답변입니다", res.Answer)
	require.Len(t, res.Sources, 1)
}

func TestAsk_Streaming(t *testing.T) {
	svc := &fakeChatService{
		deltas: []string{"답변", "입니다"},
		res:    &chat.Response{ThreadID: "t1", Answer: "답변입니다", Sources: []models.Source{}},
	}

	req := authedRequest(t, http.MethodPost, "/api/chat?stream=1", `{"question":"질문"}`)
	rec := serveChat(svc, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var events []streamEvent
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev streamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}

	require.Len(t, events, 3)
	assert.Equal(t, "chunk", events[0].Type)
	assert.Equal(t, "답변", events[0].Text)
	assert.Equal(t, "chunk", events[1].Type)
	assert.Equal(t, "done", events[2].Type)
	assert.Equal(t, "답변입니다", events[2].Answer)
}

func TestAsk_StreamingError(t *testing.T) {
	svc := &fakeChatService{err: core.ErrModerationService}

	req := authedRequest(t, http.MethodPost, "/api/chat?stream=1", `{"question":"질문"}`)
	rec := serveChat(svc, req)

	body := rec.Body.String()
	assert.Contains(t, body, `"type":"error"`)
	assert.NotContains(t, body, `"type":"done"`)
}

func TestAsk_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{core.ErrValidation, http.StatusBadRequest},
		{core.ErrNotFound, http.StatusNotFound},
		{core.ErrModerationService, http.StatusServiceUnavailable},
		{core.ErrPersistence, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		svc := &fakeChatService{err: tt.err}
		req := authedRequest(t, http.MethodPost, "/api/chat", `{"question":"질문"}`)
		rec := serveChat(svc, req)
		assert.Equal(t, tt.code, rec.Code, tt.err)
	}
}

func TestAsk_Unauthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"question":"질문"}`))
	rec := serveChat(&fakeChatService{}, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
