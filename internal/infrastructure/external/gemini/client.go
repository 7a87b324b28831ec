// Package gemini implements the report narrator on top of Google's Gemini API.
// Calls go through a retrier and a circuit breaker; a tripped breaker fails
// fast so analytics queries degrade without waiting on the remote service.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/smartattd/smartattd/internal/domain/shared"
	"github.com/smartattd/smartattd/pkg/circuitbreaker"
	"github.com/smartattd/smartattd/pkg/logger"
	"github.com/smartattd/smartattd/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Gemini narrator.
type ClientConfig struct {
	// APIKey authenticates against the Generative Language API
	APIKey string

	// Model is the model name, e.g. "gemini-1.5-flash"
	Model string

	// Temperature controls sampling; lower is more factual
	Temperature float32

	// Timeout bounds a single generation call
	Timeout time.Duration

	// MaxRetries is the number of attempts per Generate call
	MaxRetries int

	// Circuit breaker settings
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration

	// Logger for structured logging
	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(apiKey string) ClientConfig {
	return ClientConfig{
		APIKey:                  apiKey,
		Model:                   "gemini-1.5-flash",
		Temperature:             0.4,
		Timeout:                 20 * time.Second,
		MaxRetries:              2,
		CircuitBreakerThreshold: 3,
		CircuitBreakerTimeout:   60 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// contentGenerator is the part of *genai.GenerativeModel the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client generates report narratives with Gemini.
type Client struct {
	config  ClientConfig
	genai   *genai.Client
	model   contentGenerator
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}

	gc, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	model := gc.GenerativeModel(config.Model)
	temperature := config.Temperature
	model.Temperature = &temperature

	c := newClient(config, model)
	c.genai = gc
	return c, nil
}

func newClient(config ClientConfig, model contentGenerator) *Client {
	d := DefaultClientConfig(config.APIKey)
	if config.Timeout <= 0 {
		config.Timeout = d.Timeout
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = d.MaxRetries
	}
	if config.CircuitBreakerThreshold < 1 {
		config.CircuitBreakerThreshold = d.CircuitBreakerThreshold
	}
	if config.CircuitBreakerTimeout <= 0 {
		config.CircuitBreakerTimeout = d.CircuitBreakerTimeout
	}

	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("gemini"))

	return &Client{
		config: config,
		model:  model,
		retrier: retry.NarratorRetrier(config.MaxRetries).With(
			retry.WithRetryIf(isRetryable),
			retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
				log.Debug("retrying narrative generation",
					logger.Int("attempt", attempt),
					logger.Err(err),
					logger.Duration("delay", delay),
				)
			}),
		),
		breaker: circuitbreaker.NarratorBreaker(
			config.CircuitBreakerThreshold,
			config.CircuitBreakerTimeout,
			func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()),
				)
			},
		),
		log: log,
	}
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c.genai == nil {
		return nil
	}
	return c.genai.Close()
}

// BreakerState exposes the circuit breaker state for diagnostics.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

// Ping reports the narrator as unavailable while the circuit breaker is open.
// It does not call the API, so it costs no quota.
func (c *Client) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.BreakerState() == circuitbreaker.StateOpen {
		return shared.ErrNarratorUnavailable
	}
	return nil
}

// Generate produces narrative text for the prompt.
// Errors are DomainErrors of kind ErrCollaboratorUnavailable or ErrTimeout.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var text string

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
			defer cancel()

			resp, err := c.model.GenerateContent(callCtx, genai.Text(prompt))
			if err != nil {
				if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
					return shared.ErrNarratorTimeout
				}
				return err
			}

			out, err := ExtractText(resp)
			if err != nil {
				return err
			}
			text = out
			return nil
		})
	})
	if err != nil {
		return "", classify(err)
	}

	return text, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// ExtractText joins the text parts of the first candidate.
// Returns ErrNarratorEmpty when the response carries no text.
func ExtractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", shared.ErrNarratorEmpty
	}

	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return "", shared.ErrNarratorEmpty
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", shared.ErrNarratorEmpty
	}
	return text, nil
}

// isRetryable - empty responses and caller cancellation are not retried.
func isRetryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, shared.ErrNarratorEmpty):
		return false
	default:
		return true
	}
}

// classify maps a failed call to a narrator DomainError.
func classify(err error) error {
	switch {
	case errors.Is(err, shared.ErrNarratorTimeout), errors.Is(err, shared.ErrNarratorEmpty):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return shared.ErrNarratorTimeout
	case circuitbreaker.IsRejected(err):
		return shared.WrapError("narrator", "Generate", shared.ErrCollaboratorUnavailable,
			"narrator circuit open", err)
	default:
		return shared.WrapError("narrator", "Generate", shared.ErrCollaboratorUnavailable,
			"narrator unavailable", err)
	}
}
