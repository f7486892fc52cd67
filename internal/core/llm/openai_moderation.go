package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"docchat/internal/core"
)

// moderationAPI is the slice of the OpenAI client the moderator needs; tests
// inject a fake here.
type moderationAPI interface {
	Moderations(ctx context.Context, request openai.ModerationRequest) (openai.ModerationResponse, error)
}

// OpenAIModerator classifies user input against the moderation endpoint.
type OpenAIModerator struct {
	api   moderationAPI
	model string
}

func NewOpenAIModerator(apiKey, model string) (*OpenAIModerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", core.ErrModerationService)
	}
	return &OpenAIModerator{
		api:   openai.NewClient(apiKey),
		model: model,
	}, nil
}

// Classify reports whether the text is flagged. A provider failure is an
// error, not a silent pass; the caller decides whether to fail open or
// closed.
func (m *OpenAIModerator) Classify(ctx context.Context, text string) (bool, error) {
	resp, err := m.api.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: m.model,
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", core.ErrModerationService, err)
	}
	for _, result := range resp.Results {
		if result.Flagged {
			return true, nil
		}
	}
	return false, nil
}

var _ core.ModerationProvider = (*OpenAIModerator)(nil)
