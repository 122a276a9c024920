package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
)

const maxInputChars = 24000

// Summarizer produces short item summaries through the OpenAI chat API.
// Calls go through a shared rate limiter so concurrent stage workers stay
// inside the provider's limits.
type Summarizer struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

func NewSummarizer(apiKey, model string, requestsPerSecond float64) *Summarizer {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &Summarizer{
		client:  openai.NewClient(apiKey),
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (s *Summarizer) Summarize(ctx context.Context, content, style string, maxSentences int) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", domain.WrapError(domain.ErrPermanentSummarization, "summarize", errors.New("empty input"))
	}
	if len(content) > maxInputChars {
		content = content[:maxInputChars]
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", domain.WrapError(domain.ErrTransientSummarization, "rate limit wait", err)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: buildSystemPrompt(style, maxSentences),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: content,
			},
		},
	})
	if err != nil {
		return "", classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.WrapError(domain.ErrTransientSummarization, "summarize", errors.New("no completion choices"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildSystemPrompt(style string, maxSentences int) string {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	prompt := fmt.Sprintf(
		"Summarize the following content in at most %d sentences. Lead with the single most important point. Do not use markdown.",
		maxSentences,
	)
	if style != "" {
		prompt += " Tone: " + style + "."
	}
	return prompt
}

// classifyError maps API failures onto the pipeline's transient/permanent
// taxonomy: rate limits, server errors, and network failures retry; client
// errors do not.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests,
			apiErr.HTTPStatusCode == http.StatusRequestTimeout,
			apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return domain.WrapError(domain.ErrTransientSummarization, "summarization api", err)
		default:
			return domain.WrapError(domain.ErrPermanentSummarization, "summarization api", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.WrapError(domain.ErrTransientSummarization, "summarization timeout", err)
	}
	// Anything else is a transport failure worth retrying.
	return domain.WrapError(domain.ErrTransientSummarization, "summarization call", err)
}
