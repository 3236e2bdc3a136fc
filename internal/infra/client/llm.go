package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/boddenberg/finledger-go/internal/infra/observability"
	"github.com/boddenberg/finledger-go/internal/infra/resilience"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// LLMConfig points the client at an OpenAI-compatible API.
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
}

// LLMClient produces savings suggestions through a chat completions API.
type LLMClient struct {
	httpClient *http.Client
	cfg        LLMConfig
	cb         *gobreaker.CircuitBreaker
	retry      resilience.Config
	bulkhead   *resilience.Bulkhead
	metrics    *observability.Metrics
}

// NewLLMClient creates a new LLMClient.
func NewLLMClient(httpClient *http.Client, cfg LLMConfig, cb *gobreaker.CircuitBreaker, retry resilience.Config, metrics *observability.Metrics) *LLMClient {
	return &LLMClient{
		httpClient: httpClient,
		cfg:        cfg,
		cb:         cb,
		retry:      retry,
		bulkhead:   resilience.NewBulkhead(retry.MaxConcurrency),
		metrics:    metrics,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage domain.TokenUsage `json:"usage"`
}

// Generate asks the model for suggestions. An empty answer is returned as
// is; substituting a fallback is the caller's decision.
func (c *LLMClient) Generate(ctx context.Context, req *domain.SuggestionRequest) (*domain.Suggestion, error) {
	ctx, span := tracer.Start(ctx, "LLMClient.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.cfg.Model),
		attribute.String("llm.language", req.Language),
	)

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, &domain.ErrExternalService{Service: "llm", Err: err}
	}
	defer c.bulkhead.Release()

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    buildMessages(req),
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	span.SetAttributes(attribute.String("llm.request_id", requestID))

	resp, err := resilience.Execute(c.cb, "llm", func() (*chatResponse, error) {
		var out *chatResponse
		err := resilience.RetryWithBackoff(ctx, c.retry, func() error {
			r, err := c.complete(ctx, requestID, body)
			if err != nil {
				return err
			}
			out = r
			return nil
		})
		return out, err
	})
	if err != nil {
		c.metrics.IncrExternalError("llm")
		span.RecordError(err)
		var open *domain.ErrCircuitOpen
		if errors.As(err, &open) {
			return nil, err
		}
		return nil, &domain.ErrExternalService{Service: "llm", Err: err}
	}

	c.metrics.RecordTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	span.SetAttributes(attribute.Int("llm.total_tokens", resp.Usage.TotalTokens))

	answer := ""
	if len(resp.Choices) > 0 {
		answer = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	return &domain.Suggestion{
		Answer:     answer,
		Balance:    req.Balance,
		Language:   req.Language,
		TokensUsed: resp.Usage,
	}, nil
}

func (c *LLMClient) complete(ctx context.Context, requestID string, body []byte) (*chatResponse, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		err := fmt.Errorf("llm API returned status %d", resp.StatusCode)
		// 4xx other than rate limiting will not get better on retry
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode llm response: %w", err)
	}
	return &out, nil
}
