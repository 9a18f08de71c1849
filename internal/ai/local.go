package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/studyowl/backend/internal/storage/models"
)

// localProvider talks to any OpenAI-compatible endpoint over plain HTTP,
// typically an Ollama or LM Studio instance on the operator's machine. No
// API key is required.
type localProvider struct {
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

func newLocalProvider(cfg *models.AIConfig) *localProvider {
	return &localProvider{
		baseURL:     strings.TrimSuffix(cfg.APIURL, "/"),
		model:       cfg.ModelName,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{},
	}
}

func (p *localProvider) Name() string {
	return string(models.ProviderLocal)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *localProvider) chat(ctx context.Context, op, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &Error{Kind: KindTimeout, Op: op, Msg: "local endpoint timed out", Err: err}
		}
		return "", &Error{Kind: KindUnreachable, Op: op, Msg: "local endpoint is unreachable", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &Error{Kind: KindUnauthorized, Op: op, Msg: "local endpoint rejected the request"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &Error{Kind: KindRateLimited, Op: op, Msg: "local endpoint rate limit hit"}
	case resp.StatusCode != http.StatusOK:
		return "", &Error{Kind: KindUnreachable, Op: op,
			Msg: fmt.Sprintf("local endpoint returned status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &Error{Kind: KindUnreachable, Op: op, Msg: "failed reading response", Err: err}
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &Error{Kind: KindMalformedResponse, Op: op, Msg: "response is not valid JSON"}
	}
	if len(parsed.Choices) == 0 {
		return "", &Error{Kind: KindMalformedResponse, Op: op, Msg: "response has no choices"}
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func (p *localProvider) GenerateQuestion(ctx context.Context, contextSnippet string) (string, error) {
	question, err := p.chat(ctx, "generate", generationSystemPrompt, generationUserPrompt(contextSnippet))
	if err != nil {
		return "", err
	}
	if question == "" {
		return "", &Error{Kind: KindMalformedResponse, Op: "generate", Msg: "empty question"}
	}
	return question, nil
}

func (p *localProvider) EvaluateAnswer(ctx context.Context, question, answer, contextSnippet string) (*Evaluation, error) {
	raw, err := p.chat(ctx, "evaluate", evaluationSystemPrompt, evaluationUserPrompt(question, answer, contextSnippet))
	if err != nil {
		return nil, err
	}
	return parseEvaluation(raw)
}

func (p *localProvider) TestConnection(ctx context.Context) error {
	_, err := p.chat(ctx, "test", "You are a connectivity check.", "Reply with OK.")
	if err != nil {
		var aiErr *Error
		if errors.As(err, &aiErr) && aiErr.Kind == KindMalformedResponse {
			return nil
		}
		return err
	}
	return nil
}
