package chat

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"docchat/internal/core"
	"docchat/internal/core/retrieval"
	"docchat/internal/models"
)

const (
	docHistoryLimit = 12
	webHistoryLimit = 20

	sourceSnippetLen  = 200
	titleCandidateLen = 60
	docTitleInThread  = 40

	moderationBlockMessage = "요청하신 내용은 안전 정책상 도와드릴 수 없습니다. 다른 방식으로 질문해 주세요."
	notInDocumentAnswer    = "문서에서 확인되지 않음"
	webEmptyAnswer         = "답변을 생성할 수 없습니다."
	noReadyDocumentsError  = "처리 완료된 문서가 없습니다. 먼저 문서를 업로드하고 처리 완료를 기다려주세요."
	documentNotReadyError  = "문서 처리 중입니다. 잠시 후 다시 시도해주세요."

	webChatTitle    = "웹 검색 대화"
	allDocsTitle    = "모든 문서 대화"
	newChatTitle    = "새 대화"
	newWebChatTitle = "새 웹 검색 대화"

	webInstructions = "한국어로 답하며, 최신 정보를 위해 웹 검색을 활용한다. 불확실하면 '확실하지 않습니다'라고 말한다. " +
		"항상 가장 최근/공식 릴리스 노트·벤더 문서를 우선 사용하고, 오래된 정보는 배제한다. " +
		"출력 형식: ## 핵심 요약(최신 날짜/버전 명시) → 상세(불릿 3~6개, 굵게 키워드) → 추가 팁/다음 단계(필요 시). " +
		"답변에 출처/번호/링크/URL은 넣지 마라(출처 표시는 UI에서 처리)."
)

var spaceRun = regexp.MustCompile(`\s+`)

// Retriever is the document-grounded retrieval pass.
type Retriever interface {
	Retrieve(ctx context.Context, question, lastUserMessage, documentID, userID string) (*retrieval.Result, error)
}

// Request is one chat turn. ThreadID empty starts a new thread; Mode is
// "document", "web" or "" for auto.
type Request struct {
	UserID     string
	Question   string
	DocumentID string
	ThreadID   string
	Mode       string
}

// Response is the completed turn. Streaming callers receive the same data
// after the deltas.
type Response struct {
	ThreadID string          `json:"threadId"`
	Answer   string          `json:"answer"`
	Sources  []models.Source `json:"sources"`
}

// Orchestrator drives one chat turn end to end: mode resolution, moderation,
// thread and message persistence, generation, citation.
type Orchestrator struct {
	db        core.DbClient
	llm       core.LLMProvider
	moderator core.ModerationProvider
	retriever Retriever
	logger    *slog.Logger
}

func NewOrchestrator(db core.DbClient, llm core.LLMProvider, moderator core.ModerationProvider, retriever Retriever, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		db:        db,
		llm:       llm,
		moderator: moderator,
		retriever: retriever,
		logger:    logger,
	}
}

// Chat runs one turn. When emit is non-nil, text deltas are pushed through it
// as they arrive; the returned Response is identical either way, and the
// persisted messages never depend on the delivery mode.
func (o *Orchestrator) Chat(ctx context.Context, req Request, emit core.StreamHandler) (*Response, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question은 필수입니다", core.ErrValidation)
	}

	documentID := req.DocumentID
	threadTitle := ""
	threadMime := ""

	if req.ThreadID != "" {
		thread, err := o.db.GetThread(ctx, req.ThreadID, req.UserID)
		if err != nil {
			return nil, err
		}
		documentID = thread.DocumentID
		threadTitle = thread.Title

		bound, err := o.db.GetDocumentForUser(ctx, documentID, req.UserID)
		if err != nil {
			return nil, err
		}
		threadMime = bound.MimeType
	}

	mode := ResolveMode(req.Mode, threadMime, documentID != "")

	// Web and all-docs threads anchor to a lazily created virtual document.
	switch {
	case mode == ModeWeb && documentID == "":
		id, err := o.db.EnsureVirtualDocument(ctx, req.UserID, models.WebChatMimeType,
			webChatTitle, virtualStoragePath(req.UserID, "web-chat"))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrPersistence, err)
		}
		documentID = id
	case mode == ModeAllDocs && documentID == "":
		ready, err := o.db.CountReadyDocuments(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrPersistence, err)
		}
		if ready == 0 {
			return nil, fmt.Errorf("%w: %s", core.ErrValidation, noReadyDocumentsError)
		}
		id, err := o.db.EnsureVirtualDocument(ctx, req.UserID, models.AllDocsMimeType,
			allDocsTitle, virtualStoragePath(req.UserID, "all-docs"))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrPersistence, err)
		}
		documentID = id
	}

	if documentID == "" {
		return nil, fmt.Errorf("%w: documentId가 필요합니다", core.ErrValidation)
	}

	document, err := o.db.GetDocumentForUser(ctx, documentID, req.UserID)
	if err != nil {
		return nil, err
	}
	if !models.IsVirtualMimeType(document.MimeType) && document.Status != models.StatusReady {
		return nil, fmt.Errorf("%w: %s", core.ErrValidation, documentNotReadyError)
	}

	// Moderation runs before any generation. A classifier outage is a
	// retryable service failure, not a refusal.
	blocked, err := o.moderator.Classify(ctx, question)
	if err != nil {
		return nil, err
	}

	titleCandidate := truncateRunes(spaceRun.ReplaceAllString(question, " "), titleCandidateLen)

	threadID := req.ThreadID
	if threadID == "" {
		title := titleCandidate
		if blocked || title == "" {
			title = defaultThreadTitle(mode, document.Title)
		}
		thread := &models.Thread{
			ID:         uuid.NewString(),
			DocumentID: document.ID,
			UserID:     req.UserID,
			Title:      title,
		}
		if err := o.db.CreateThread(ctx, thread); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrPersistence, err)
		}
		threadID = thread.ID
		threadTitle = thread.Title
	}

	historyLimit := docHistoryLimit
	if mode == ModeWeb {
		historyLimit = webHistoryLimit
	}
	past, err := o.db.RecentHistory(ctx, threadID, req.UserID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrPersistence, err)
	}
	history := toChatHistory(past)

	if err := o.insertMessage(ctx, threadID, req.UserID, "user", question, nil); err != nil {
		return nil, err
	}

	shouldUpdateTitle := isPlaceholderTitle(threadTitle, document.Title)
	if !blocked && shouldUpdateTitle && titleCandidate != "" {
		if err := o.db.UpdateThreadTitle(ctx, threadID, req.UserID, titleCandidate); err != nil {
			o.logger.Warn("thread title update failed", "thread_id", threadID, "error", err)
		}
	}

	if blocked {
		if err := o.insertMessage(ctx, threadID, req.UserID, "assistant", moderationBlockMessage, []models.Source{}); err != nil {
			return nil, err
		}
		return &Response{ThreadID: threadID, Answer: moderationBlockMessage, Sources: []models.Source{}}, nil
	}

	var (
		answer  string
		sources []models.Source
	)
	switch mode {
	case ModeWeb:
		answer, sources, err = o.answerWeb(ctx, history, question, emit)
	default:
		retrievalDocID := document.ID
		if mode == ModeAllDocs {
			retrievalDocID = ""
		}
		answer, sources, err = o.answerGrounded(ctx, history, question, retrievalDocID, req.UserID, emit)
	}
	if err != nil {
		return nil, err
	}

	// Persistence survives a client disconnect mid-stream: the answer was
	// generated, so it must land in the thread.
	persistCtx := context.WithoutCancel(ctx)
	if err := o.insertMessage(persistCtx, threadID, req.UserID, "assistant", answer, sources); err != nil {
		return nil, err
	}

	if shouldUpdateTitle {
		if title, err := o.llm.GenerateTitle(persistCtx, question); err != nil {
			o.logger.Warn("title generation failed", "thread_id", threadID, "error", err)
		} else if title != "" {
			if err := o.db.UpdateThreadTitle(persistCtx, threadID, req.UserID, title); err != nil {
				o.logger.Warn("thread title update failed", "thread_id", threadID, "error", err)
			}
		}
	}

	if sources == nil {
		sources = []models.Source{}
	}
	return &Response{ThreadID: threadID, Answer: answer, Sources: sources}, nil
}

func (o *Orchestrator) answerWeb(ctx context.Context, history []core.ChatMessage, question string, emit core.StreamHandler) (string, []models.Source, error) {
	var (
		answer string
		urls   []string
		err    error
	)
	if emit != nil {
		answer, urls, err = o.llm.WebSearchCompleteStream(ctx, webInstructions, history, question, emit)
		if err != nil && answer != "" {
			// The stream broke after deltas already reached the client; the
			// persisted message must match what was shown.
			o.logger.Warn("web stream interrupted, persisting partial answer", "error", err)
			err = nil
		}
	} else {
		answer, urls, err = o.llm.WebSearchComplete(ctx, webInstructions, history, question)
	}
	if err != nil {
		return "", nil, err
	}
	if answer == "" {
		answer = webEmptyAnswer
	}
	return answer, NormalizeWebSources(urls), nil
}

func (o *Orchestrator) answerGrounded(ctx context.Context, history []core.ChatMessage, question, documentID, userID string, emit core.StreamHandler) (string, []models.Source, error) {
	lastUser := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			lastUser = history[i].Content
			break
		}
	}

	res, err := o.retriever.Retrieve(ctx, question, lastUser, documentID, userID)
	if err != nil {
		return "", nil, err
	}
	if !res.Relevant {
		// Greeting or weak matches: answer with the canned reply, no
		// generation, no deltas.
		return res.FallbackAnswer, []models.Source{}, nil
	}

	system, user := BuildPrompt(question, res.Candidates)

	var answer string
	if emit != nil {
		answer, err = o.llm.CompleteStream(ctx, system, history, user, emit)
		if err != nil && answer != "" {
			// The stream broke after deltas already reached the client; the
			// persisted message must match what was shown.
			o.logger.Warn("stream interrupted, persisting partial answer", "error", err)
			err = nil
		}
	} else {
		answer, err = o.llm.Complete(ctx, system, history, user)
	}
	if err != nil {
		return "", nil, err
	}
	if answer == "" {
		answer = notInDocumentAnswer
	}
	return answer, chunkSources(res.Candidates), nil
}

// chunkSources cites the retrieved chunks. FAQ candidates feed the prompt
// only; they never surface as citations.
func chunkSources(candidates []retrieval.Candidate) []models.Source {
	var out []models.Source
	for _, c := range candidates {
		if c.FromFAQ {
			continue
		}
		title := c.DocTitle
		if title == "" {
			title = "문서"
		}
		out = append(out, models.Source{
			Type:       "chunk",
			ID:         c.ID,
			Order:      len(out) + 1,
			Similarity: c.Similarity,
			Snippet:    truncateRunes(c.Content, sourceSnippetLen),
			DocTitle:   title,
		})
	}
	return out
}

func (o *Orchestrator) insertMessage(ctx context.Context, threadID, userID, role, content string, sources []models.Source) error {
	if sources == nil {
		sources = []models.Source{}
	}
	msg := &models.Message{
		ID:       uuid.NewString(),
		ThreadID: threadID,
		UserID:   userID,
		Role:     role,
		Content:  content,
		Sources:  sources,
	}
	if err := o.db.InsertMessage(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", core.ErrPersistence, err)
	}
	return nil
}

func defaultThreadTitle(mode Mode, docTitle string) string {
	if mode == ModeWeb {
		return newWebChatTitle
	}
	return truncateRunes(docTitle, docTitleInThread) + " 대화"
}

// isPlaceholderTitle reports whether the thread still carries a default
// title worth replacing with a real one.
func isPlaceholderTitle(title, docTitle string) bool {
	t := strings.TrimSpace(title)
	return t == "" ||
		t == newChatTitle ||
		t == newWebChatTitle ||
		t == truncateRunes(docTitle, docTitleInThread)+" 대화"
}

func toChatHistory(msgs []models.Message) []core.ChatMessage {
	out := make([]core.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, core.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func virtualStoragePath(userID, kind string) string {
	return userID + "/__virtual__/" + kind
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
