package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/studyowl/backend/internal/storage/models"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// openaiProvider serves both OpenAI and DeepSeek. DeepSeek speaks the OpenAI
// wire protocol, so the only difference is the base URL and default model.
type openaiProvider struct {
	client      *openai.Client
	name        string
	model       string
	maxTokens   int
	temperature float32
}

func newOpenAIProvider(cfg *models.AIConfig) *openaiProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)

	if cfg.Provider == models.ProviderDeepSeek {
		clientCfg.BaseURL = deepseekBaseURL
	}
	if cfg.APIURL != "" {
		clientCfg.BaseURL = cfg.APIURL
	}

	return &openaiProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		name:        string(cfg.Provider),
		model:       cfg.ModelName,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
	}
}

func (p *openaiProvider) Name() string {
	return p.name
}

func (p *openaiProvider) chat(ctx context.Context, op, system, user string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return "", classifyOpenAIError(op, err)
	}

	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindMalformedResponse, Op: op, Msg: "response has no choices"}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *openaiProvider) GenerateQuestion(ctx context.Context, contextSnippet string) (string, error) {
	question, err := p.chat(ctx, "generate", generationSystemPrompt, generationUserPrompt(contextSnippet))
	if err != nil {
		return "", err
	}
	if question == "" {
		return "", &Error{Kind: KindMalformedResponse, Op: "generate", Msg: "empty question"}
	}
	return question, nil
}

func (p *openaiProvider) EvaluateAnswer(ctx context.Context, question, answer, contextSnippet string) (*Evaluation, error) {
	raw, err := p.chat(ctx, "evaluate", evaluationSystemPrompt, evaluationUserPrompt(question, answer, contextSnippet))
	if err != nil {
		return nil, err
	}
	return parseEvaluation(raw)
}

func (p *openaiProvider) TestConnection(ctx context.Context) error {
	_, err := p.chat(ctx, "test", "You are a connectivity check.", "Reply with OK.")
	if err != nil {
		var aiErr *Error
		if errors.As(err, &aiErr) && aiErr.Kind == KindMalformedResponse {
			// Reachability is what matters here, not response shape.
			return nil
		}
		return err
	}
	return nil
}

// classifyOpenAIError maps transport and API errors to the gateway taxonomy
// without leaking response bodies or credentials.
func classifyOpenAIError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &Error{Kind: KindUnauthorized, Op: op, Msg: "provider rejected the credentials", Err: err}
		case http.StatusTooManyRequests:
			return &Error{Kind: KindRateLimited, Op: op, Msg: "provider rate limit hit", Err: err}
		}
		return &Error{Kind: KindUnreachable, Op: op, Msg: "provider returned an error", Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Msg: "provider call timed out", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTimeout, Op: op, Msg: "provider call canceled", Err: err}
	}
	return &Error{Kind: KindUnreachable, Op: op, Msg: "provider is unreachable", Err: err}
}
