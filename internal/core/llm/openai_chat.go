package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"docchat/internal/core"
)

const (
	chatTemperature = 0.2

	// webSearchToolRounds bounds the tool-call loop so a chatty model cannot
	// spin forever.
	webSearchToolRounds = 3
	webSearchHits       = 5

	titlePrompt = "다음 한국어 질문을 12자 이내의 짧은 제목으로 요약하세요. " +
		"마침표/따옴표/이모지는 넣지 말고, 핵심 키워드만 남기세요."

	ocrSystemPrompt = "이미지에서 텍스트만 추출하세요. 요약/변환 없이 원문 그대로, 줄바꿈은 유지해 주세요."
	ocrUserPrompt   = "이 이미지에서 글자를 그대로 추출해 주세요."
)

// OpenAIChat implements core.LLMProvider and core.VisionTranscriber over the
// OpenAI chat completions API, including the web_search tool loop.
type OpenAIChat struct {
	client     *openai.Client
	model      string
	titleModel string
	searcher   core.WebSearcher
}

func NewOpenAIChat(apiKey, model, titleModel string, searcher core.WebSearcher) (*OpenAIChat, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	return &OpenAIChat{
		client:     openai.NewClient(apiKey),
		model:      model,
		titleModel: titleModel,
		searcher:   searcher,
	}, nil
}

// Complete runs a single non-streaming chat call.
func (c *OpenAIChat) Complete(ctx context.Context, systemPrompt string, history []core.ChatMessage, userPrompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    buildMessages(systemPrompt, history, userPrompt),
		Temperature: chatTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteStream streams the same call, pushing deltas through fn and
// returning the accumulated text. fn returning an error stops further pushes
// but the already-generated text is still returned so it can be persisted.
func (c *OpenAIChat) CompleteStream(ctx context.Context, systemPrompt string, history []core.ChatMessage, userPrompt string, fn core.StreamHandler) (string, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    buildMessages(systemPrompt, history, userPrompt),
		Temperature: chatTemperature,
		Stream:      true,
	})
	if err != nil {
		return "", fmt.Errorf("chat stream: %w", err)
	}
	defer stream.Close()

	return drainStream(stream, fn)
}

// WebSearchComplete answers with the web_search tool enabled. The tool loop
// is resolved first; visited URLs are collected from the tool-call trace.
func (c *OpenAIChat) WebSearchComplete(ctx context.Context, instructions string, history []core.ChatMessage, question string) (string, []string, error) {
	messages, urls, err := c.resolveWebSearch(ctx, instructions, history, question)
	if err != nil {
		return "", nil, err
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: chatTemperature,
	})
	if err != nil {
		return "", nil, fmt.Errorf("web search completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil, errors.New("web search completion returned no choices")
	}
	return resp.Choices[0].Message.Content, urls, nil
}

// WebSearchCompleteStream resolves the tool loop, then streams the final
// answer.
func (c *OpenAIChat) WebSearchCompleteStream(ctx context.Context, instructions string, history []core.ChatMessage, question string, fn core.StreamHandler) (string, []string, error) {
	messages, urls, err := c.resolveWebSearch(ctx, instructions, history, question)
	if err != nil {
		return "", nil, err
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: chatTemperature,
		Stream:      true,
	})
	if err != nil {
		return "", nil, fmt.Errorf("web search stream: %w", err)
	}
	defer stream.Close()

	answer, err := drainStream(stream, fn)
	return answer, urls, err
}

// resolveWebSearch runs chat rounds with the web_search tool until the model
// stops requesting it, executing searches and appending tool results. The
// returned message list ends ready for a final answer call.
func (c *OpenAIChat) resolveWebSearch(ctx context.Context, instructions string, history []core.ChatMessage, question string) ([]openai.ChatCompletionMessage, []string, error) {
	messages := buildMessages(instructions, history, question)
	tools := []openai.Tool{webSearchTool()}
	var urls []string

	for round := 0; round < webSearchToolRounds; round++ {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Tools:       tools,
			Temperature: chatTemperature,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("web search round %d: %w", round+1, err)
		}
		if len(resp.Choices) == 0 {
			return nil, nil, errors.New("web search round returned no choices")
		}

		choice := resp.Choices[0]
		if choice.FinishReason != openai.FinishReasonToolCalls || len(choice.Message.ToolCalls) == 0 {
			// Model is done searching; drop its draft answer and let the
			// caller run the final (possibly streaming) completion.
			return messages, urls, nil
		}

		messages = append(messages, choice.Message)
		for _, call := range choice.Message.ToolCalls {
			if call.Type != openai.ToolTypeFunction || call.Function.Name != "web_search" {
				continue
			}
			result, hitURLs := c.runSearch(ctx, call.Function.Arguments)
			urls = append(urls, hitURLs...)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			})
		}
	}
	return messages, urls, nil
}

// runSearch executes one tool call. Search failures are reported back to the
// model as text so it can answer without results instead of aborting the
// chat.
func (c *OpenAIChat) runSearch(ctx context.Context, rawArgs string) (string, []string) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil || strings.TrimSpace(args.Query) == "" {
		return "검색어를 해석할 수 없습니다.", nil
	}

	results, err := c.searcher.Search(ctx, args.Query, webSearchHits)
	if err != nil {
		return fmt.Sprintf("검색 실패: %v", err), nil
	}
	if len(results) == 0 {
		return "검색 결과가 없습니다.", nil
	}

	payload, _ := json.Marshal(results)
	urls := make([]string, 0, len(results))
	for _, r := range results {
		urls = append(urls, r.URL)
	}
	return string(payload), urls
}

// GenerateTitle summarizes a question into a short Korean thread title.
func (c *OpenAIChat) GenerateTitle(ctx context.Context, question string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.titleModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: titlePrompt},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
		MaxTokens:   30,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("title generation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}

	title := strings.TrimSpace(resp.Choices[0].Message.Content)
	title = strings.NewReplacer(`"`, "", "'", "", "`", "").Replace(title)
	if runes := []rune(title); len(runes) > 24 {
		title = string(runes[:24])
	}
	return title, nil
}

// TranscribeImage sends a first-page render to the vision model and asks for
// a verbatim transcription.
func (c *OpenAIChat) TranscribeImage(ctx context.Context, png []byte) (string, error) {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: ocrSystemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: ocrUserPrompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
				},
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("vision ocr: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func buildMessages(systemPrompt string, history []core.ChatMessage, userPrompt string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})
	return messages
}

func drainStream(stream *openai.ChatCompletionStream, fn core.StreamHandler) (string, error) {
	var full strings.Builder
	pushing := fn != nil
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return full.String(), nil
		}
		if err != nil {
			return full.String(), fmt.Errorf("stream recv: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if pushing {
			if err := fn(delta); err != nil {
				// Client went away: keep draining so the full answer can be
				// persisted, just stop pushing.
				pushing = false
			}
		}
	}
}

func webSearchTool() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        "web_search",
			Description: "최신 정보가 필요할 때 웹을 검색한다. 검색어는 한국어 또는 영어.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"query": {
						Type:        jsonschema.String,
						Description: "검색어",
					},
				},
				Required: []string{"query"},
			},
		},
	}
}

var _ core.LLMProvider = (*OpenAIChat)(nil)
var _ core.VisionTranscriber = (*OpenAIChat)(nil)
