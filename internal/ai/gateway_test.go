package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyowl/backend/internal/storage/models"
)

func chatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func respondWith(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func localConfig(url string) *models.AIConfig {
	return &models.AIConfig{
		Provider:    models.ProviderLocal,
		APIURL:      url,
		ModelName:   "test-model",
		MaxTokens:   500,
		Temperature: 0.7,
	}
}

func newTestGateway(t *testing.T, cfg *models.AIConfig) *Gateway {
	t.Helper()
	g := NewGateway(5 * time.Second)
	require.NoError(t, g.Configure(cfg))
	return g
}

func TestGatewayNotConfigured(t *testing.T) {
	g := NewGateway(time.Second)

	_, err := g.GenerateQuestion(context.Background(), "some material")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGenerateQuestion(t *testing.T) {
	srv := chatServer(t, respondWith("What role do mitochondria play in the cell?"))
	g := newTestGateway(t, localConfig(srv.URL))

	question, err := g.GenerateQuestion(context.Background(), "Mitochondria produce ATP.")
	require.NoError(t, err)
	assert.Equal(t, "What role do mitochondria play in the cell?", question)
}

func TestGenerateQuestionEmptyResponse(t *testing.T) {
	srv := chatServer(t, respondWith("  "))
	g := newTestGateway(t, localConfig(srv.URL))

	_, err := g.GenerateQuestion(context.Background(), "material")
	var aiErr *Error
	require.ErrorAs(t, err, &aiErr)
	assert.Equal(t, KindMalformedResponse, aiErr.Kind)
}

func TestEvaluateAnswer(t *testing.T) {
	srv := chatServer(t, respondWith(`{"score": 88, "feedback": "Solid.", "suggestions": ["mention ATP"]}`))
	g := newTestGateway(t, localConfig(srv.URL))

	eval, err := g.EvaluateAnswer(context.Background(), "What do mitochondria do?", "They make energy.", "")
	require.NoError(t, err)
	assert.Equal(t, 88, eval.Score)
	assert.Equal(t, "Solid.", eval.Feedback)
}

func TestEvaluateAnswerSendsContextSnippet(t *testing.T) {
	snippet := "The mitochondria is the powerhouse of the cell."

	var body struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		respondWith(`{"score": 90, "feedback": "ok", "suggestions": []}`)(w, r)
	})
	g := newTestGateway(t, localConfig(srv.URL))

	_, err := g.EvaluateAnswer(context.Background(), "What do mitochondria do?", "They make energy.", snippet)
	require.NoError(t, err)

	require.Len(t, body.Messages, 2)
	user := body.Messages[1].Content
	assert.Contains(t, user, "Reference material")
	assert.Contains(t, user, snippet)
}

func TestEvaluateAnswerMalformedIsNotDefaulted(t *testing.T) {
	srv := chatServer(t, respondWith("I would give this answer a 70 out of 100."))
	g := newTestGateway(t, localConfig(srv.URL))

	eval, err := g.EvaluateAnswer(context.Background(), "q", "a", "")
	assert.Nil(t, eval)
	var aiErr *Error
	require.ErrorAs(t, err, &aiErr)
	assert.Equal(t, KindMalformedResponse, aiErr.Kind)
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   Kind
	}{
		{"unauthorized", http.StatusUnauthorized, KindUnauthorized},
		{"forbidden", http.StatusForbidden, KindUnauthorized},
		{"rate limited", http.StatusTooManyRequests, KindRateLimited},
		{"server error", http.StatusInternalServerError, KindUnreachable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			})
			g := newTestGateway(t, localConfig(srv.URL))

			_, err := g.GenerateQuestion(context.Background(), "material")
			var aiErr *Error
			require.ErrorAs(t, err, &aiErr)
			assert.Equal(t, tc.want, aiErr.Kind)
		})
	}
}

func TestTimeoutClassification(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		// The server only notices a client disconnect (and cancels
		// r.Context()) once the request body has been consumed; without
		// this drain, srv.Close in cleanup deadlocks on this handler.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})
	g := NewGateway(50 * time.Millisecond)
	require.NoError(t, g.Configure(localConfig(srv.URL)))

	_, err := g.GenerateQuestion(context.Background(), "material")
	var aiErr *Error
	require.ErrorAs(t, err, &aiErr)
	assert.Equal(t, KindTimeout, aiErr.Kind)
}

func TestUnreachableEndpoint(t *testing.T) {
	g := newTestGateway(t, localConfig("http://127.0.0.1:1"))

	_, err := g.GenerateQuestion(context.Background(), "material")
	var aiErr *Error
	require.ErrorAs(t, err, &aiErr)
	assert.Equal(t, KindUnreachable, aiErr.Kind)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	g := newTestGateway(t, localConfig(srv.URL))

	for i := 0; i < 5; i++ {
		_, err := g.GenerateQuestion(context.Background(), "material")
		require.Error(t, err)
	}

	// Breaker is now open; calls are rejected without reaching the server,
	// surfacing as unreachable.
	_, err := g.GenerateQuestion(context.Background(), "material")
	var aiErr *Error
	require.ErrorAs(t, err, &aiErr)
	assert.Equal(t, KindUnreachable, aiErr.Kind)
}

func TestMalformedResponsesDoNotTripBreaker(t *testing.T) {
	srv := chatServer(t, respondWith("not json at all"))
	g := newTestGateway(t, localConfig(srv.URL))

	for i := 0; i < 10; i++ {
		_, err := g.EvaluateAnswer(context.Background(), "q", "a", "")
		var aiErr *Error
		require.ErrorAs(t, err, &aiErr)
		assert.Equal(t, KindMalformedResponse, aiErr.Kind)
	}
}

func TestConfigureResetsBreaker(t *testing.T) {
	failing := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	g := newTestGateway(t, localConfig(failing.URL))

	for i := 0; i < 5; i++ {
		g.GenerateQuestion(context.Background(), "material")
	}

	healthy := chatServer(t, respondWith("A question?"))
	require.NoError(t, g.Configure(localConfig(healthy.URL)))

	question, err := g.GenerateQuestion(context.Background(), "material")
	require.NoError(t, err)
	assert.Equal(t, "A question?", question)
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name    string
		cfg     models.AIConfig
		wantErr bool
	}{
		{"deepseek ok", models.AIConfig{Provider: models.ProviderDeepSeek, APIKey: "k", ModelName: "deepseek-chat", MaxTokens: 1000, Temperature: 0.7}, false},
		{"deepseek missing key", models.AIConfig{Provider: models.ProviderDeepSeek, ModelName: "deepseek-chat", MaxTokens: 1000, Temperature: 0.7}, true},
		{"openai missing key", models.AIConfig{Provider: models.ProviderOpenAI, ModelName: "gpt-3.5-turbo", MaxTokens: 1000, Temperature: 0.7}, true},
		{"local ok", models.AIConfig{Provider: models.ProviderLocal, APIURL: "http://localhost:11434/v1", ModelName: "llama3", MaxTokens: 1000, Temperature: 0.7}, false},
		{"local missing url", models.AIConfig{Provider: models.ProviderLocal, APIKey: "k", ModelName: "llama3", MaxTokens: 1000, Temperature: 0.7}, true},
		{"missing model", models.AIConfig{Provider: models.ProviderDeepSeek, APIKey: "k", MaxTokens: 1000, Temperature: 0.7}, true},
		{"unknown provider", models.AIConfig{Provider: "claude", APIKey: "k", ModelName: "m", MaxTokens: 1000, Temperature: 0.7}, true},
		{"tokens too low", models.AIConfig{Provider: models.ProviderDeepSeek, APIKey: "k", ModelName: "deepseek-chat", MaxTokens: 50, Temperature: 0.7}, true},
		{"tokens too high", models.AIConfig{Provider: models.ProviderDeepSeek, APIKey: "k", ModelName: "deepseek-chat", MaxTokens: 5000, Temperature: 0.7}, true},
		{"temperature too high", models.AIConfig{Provider: models.ProviderDeepSeek, APIKey: "k", ModelName: "deepseek-chat", MaxTokens: 1000, Temperature: 2.5}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConfig(&tc.cfg)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestErrorMessagesOmitCredentials(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	cfg := localConfig(srv.URL)
	g := newTestGateway(t, cfg)

	_, err := g.GenerateQuestion(context.Background(), "material")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "sk-")
	var aiErr *Error
	require.True(t, errors.As(err, &aiErr))
	assert.NotContains(t, aiErr.Msg, srv.URL)
}
