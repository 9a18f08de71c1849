package ai

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/studyowl/backend/internal/metrics"
	"github.com/studyowl/backend/internal/storage/models"
	"github.com/studyowl/backend/pkg/circuitbreaker"
	"github.com/studyowl/backend/pkg/logger"
)

// ErrNotConfigured reports that no AI provider has been configured yet.
var ErrNotConfigured = errors.New("ai provider not configured")

const DefaultTimeout = 30 * time.Second

// Gateway fronts the active provider with a per-call timeout and a circuit
// breaker. It never retries; callers own the retry decision. The provider
// can be swapped at runtime when the operator saves a new config.
type Gateway struct {
	mu       sync.RWMutex
	provider Provider

	timeout time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

func NewGateway(timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gateway{
		timeout: timeout,
		breaker: circuitbreaker.New("ai-provider", circuitbreaker.Config{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			OpenTimeout:      30 * time.Second,
			Logger:           logger.GetLogger(),
		}),
	}
}

// Configure builds and installs a provider from the given config. The
// breaker resets so a freshly configured provider gets a clean slate.
func (g *Gateway) Configure(cfg *models.AIConfig) error {
	provider, err := NewProvider(cfg)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.provider = provider
	g.mu.Unlock()

	g.breaker.Reset()
	logger.Info("AI provider configured", zap.String("provider", provider.Name()))
	return nil
}

func (g *Gateway) current() (Provider, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.provider == nil {
		return nil, ErrNotConfigured
	}
	return g.provider, nil
}

func (g *Gateway) call(ctx context.Context, op string, fn func(ctx context.Context, p Provider) error) error {
	provider, err := g.current()
	if err != nil {
		return err
	}

	if err := g.breaker.Allow(); err != nil {
		metrics.AICallErrors.WithLabelValues(provider.Name(), op, string(KindUnreachable)).Inc()
		return &Error{Kind: KindUnreachable, Op: op, Msg: "provider temporarily disabled after repeated failures", Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	err = fn(callCtx, provider)
	metrics.AICallDuration.WithLabelValues(provider.Name(), op).Observe(time.Since(start).Seconds())

	if err != nil {
		kind := KindOf(err)
		// A malformed response means the provider is up and talking; it
		// should not push the breaker toward open.
		g.breaker.Record(kind == KindMalformedResponse)
		metrics.AICallErrors.WithLabelValues(provider.Name(), op, string(kind)).Inc()
		logger.Warn("AI call failed",
			zap.String("provider", provider.Name()),
			zap.String("operation", op),
			zap.String("kind", string(kind)),
		)
		return err
	}

	g.breaker.Record(true)
	return nil
}

func (g *Gateway) GenerateQuestion(ctx context.Context, contextSnippet string) (string, error) {
	var question string
	err := g.call(ctx, "generate", func(ctx context.Context, p Provider) error {
		var err error
		question, err = p.GenerateQuestion(ctx, contextSnippet)
		return err
	})
	if err != nil {
		return "", err
	}
	return question, nil
}

func (g *Gateway) EvaluateAnswer(ctx context.Context, question, answer, contextSnippet string) (*Evaluation, error) {
	var eval *Evaluation
	err := g.call(ctx, "evaluate", func(ctx context.Context, p Provider) error {
		var err error
		eval, err = p.EvaluateAnswer(ctx, question, answer, contextSnippet)
		return err
	})
	if err != nil {
		return nil, err
	}
	return eval, nil
}

// TestConnection tries a candidate config without installing it and without
// touching the breaker. Used by the config handler's test endpoint.
func (g *Gateway) TestConnection(ctx context.Context, cfg *models.AIConfig) error {
	provider, err := NewProvider(cfg)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return provider.TestConnection(callCtx)
}
