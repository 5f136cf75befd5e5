package orchestrate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/boddenberg/court-assistant-go/internal/domain"
	"github.com/boddenberg/court-assistant-go/internal/infra/observability"
	"github.com/boddenberg/court-assistant-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("orchestrate")

const (
	maxErrorBody    = 400
	maxRawBody      = 4000
	maxResponseBody = 4 << 20
)

// Config holds the call policy of a Client.
type Config struct {
	ServiceURL       string
	APIKey           string
	EndpointTemplate string

	// Timeout bounds each HTTP attempt.
	Timeout time.Duration
	// Retry.MaxRetries extra tries per endpoint; Retry.Backoff is the
	// exponential base in seconds.
	Retry resilience.Config

	// RefreshAuthPerEndpoint re-reads auth headers before every endpoint
	// candidate, so a token invalidated by a 401/403 is re-exchanged before
	// the next candidate. When false the headers resolved at the start of
	// the call are reused for all candidates.
	RefreshAuthPerEndpoint bool

	Metadata *domain.AgentMetadata
}

// Client calls remote agents and normalizes their replies.
type Client struct {
	httpClient *http.Client
	cfg        Config
	resolver   Resolver
	auth       HeaderSource
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewClient creates a Client. cb may be nil to disable circuit breaking.
func NewClient(httpClient *http.Client, cfg Config, auth HeaderSource, cb *gobreaker.CircuitBreaker, metrics *observability.Metrics, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		resolver:   NewResolver(cfg.ServiceURL, cfg.EndpointTemplate),
		auth:       auth,
		cb:         cb,
		bulkhead:   resilience.NewBulkhead(cfg.Retry.MaxConcurrency),
		metrics:    metrics,
		logger:     logger,
	}
}

// NewCircuitBreaker returns a breaker that only counts remote failures.
// Missing configuration and caller cancellation never trip it.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return resilience.NewCircuitBreaker(name, func(err error) bool {
		if err == nil {
			return true
		}
		var cfgErr *domain.ErrConfig
		var authCfgErr *domain.ErrAuthConfig
		return errors.As(err, &cfgErr) ||
			errors.As(err, &authCfgErr) ||
			errors.Is(err, context.Canceled)
	})
}

// Resolver exposes the endpoint resolver, for diagnostics.
func (c *Client) Resolver() Resolver {
	return c.resolver
}

// Call sends messages as user turns to agent and returns the normalized reply.
func (c *Client) Call(ctx context.Context, agent string, messages []string) (string, error) {
	res, err := c.CallDetailed(ctx, agent, messages)
	if err != nil {
		return "", err
	}
	return res.Reply, nil
}

// CallDetailed is Call plus the endpoint that answered, the attempt count,
// every URL tried and a truncated copy of the raw response.
func (c *Client) CallDetailed(ctx context.Context, agent string, messages []string) (*domain.CallResult, error) {
	if err := c.validate(agent); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "Client.Call")
	defer span.End()
	span.SetAttributes(
		attribute.String("agent.id", agent),
		attribute.Int("messages.count", len(messages)),
	)

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.bulkhead.Release()

	start := time.Now()
	res, err := c.execute(ctx, agent, messages)
	if err != nil {
		c.metrics.RecordCall(agent, "error", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "agent call failed")
		c.logger.Warn("agent call failed",
			zap.String("agent", agent),
			zap.Duration("elapsed", time.Since(start)),
			observability.TraceID(ctx),
			zap.Error(err),
		)
		return nil, err
	}

	c.metrics.RecordCall(agent, "success", time.Since(start))
	span.SetAttributes(
		attribute.String("agent.endpoint", res.Endpoint),
		attribute.Int("agent.attempts", res.Attempts),
	)
	return res, nil
}

func (c *Client) execute(ctx context.Context, agent string, messages []string) (*domain.CallResult, error) {
	if c.cb == nil {
		return c.probe(ctx, agent, messages)
	}

	out, err := c.cb.Execute(func() (any, error) {
		return c.probe(ctx, agent, messages)
	})
	if err != nil {
		if resilience.IsCircuitOpen(err) {
			return nil, &domain.ErrCircuitOpen{Service: "orchestrate"}
		}
		return nil, err
	}
	return out.(*domain.CallResult), nil
}

func (c *Client) validate(agent string) error {
	var missing []string
	if c.cfg.ServiceURL == "" {
		missing = append(missing, "SERVICE_INSTANCE_URL")
	}
	if c.cfg.APIKey == "" {
		missing = append(missing, "API_KEY")
	}
	if agent == "" {
		missing = append(missing, "agent identifier")
	}
	if len(missing) > 0 {
		return &domain.ErrConfig{Missing: missing}
	}
	return nil
}

// probe walks the endpoint candidates, retrying each one with backoff.
func (c *Client) probe(ctx context.Context, agent string, messages []string) (*domain.CallResult, error) {
	body, err := json.Marshal(c.buildRequest(messages))
	if err != nil {
		return nil, fmt.Errorf("marshal agent request: %w", err)
	}

	var fixed http.Header
	if !c.cfg.RefreshAuthPerEndpoint {
		if fixed, err = c.headers(ctx); err != nil {
			return nil, err
		}
	}

	var (
		lastErr  error
		tried    []string
		attempts int
	)
	for endpoint := range c.resolver.Candidates(agent) {
		tried = append(tried, endpoint)

		headers := fixed
		if headers == nil {
			if headers, err = c.headers(ctx); err != nil {
				return nil, err
			}
		}

		var result *domain.CallResult
		err := resilience.RetryWithBackoff(ctx, c.cfg.Retry, func(attempt int) error {
			attempts++
			res, err := c.attempt(ctx, endpoint, headers, body, attempt)
			if err != nil {
				var ae *domain.ErrEndpointAttempt
				if errors.As(err, &ae) && ae.IsAuthRejected() {
					// the credential is bad, not the route: drop it and give up on this endpoint
					c.auth.Invalidate()
					return resilience.Permanent(err)
				}
				return err
			}
			result = res
			return nil
		})
		if err == nil && result == nil {
			err = fmt.Errorf("no attempt made on %s (max retries %d)", endpoint, c.cfg.Retry.MaxRetries)
		}
		if err == nil {
			result.Attempts = attempts
			result.Tried = tried
			return result, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("agent call aborted after %d attempts: %w", attempts, ctxErr)
		}
	}

	return nil, &domain.ErrAllEndpointsExhausted{
		Agent:   agent,
		LastErr: lastErr,
		Tried:   tried,
	}
}

func (c *Client) buildRequest(messages []string) *domain.AgentRequest {
	req := &domain.AgentRequest{
		Messages: make([]domain.AgentMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, domain.AgentMessage{Role: string(domain.RoleUser), Content: m})
	}
	if md := c.cfg.Metadata; md != nil && (md.UserID != "" || md.Purpose != "") {
		req.Metadata = md
	}
	return req
}

func (c *Client) headers(ctx context.Context) (http.Header, error) {
	h := http.Header{}
	if err := c.auth.Apply(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// attempt performs one POST against one endpoint.
func (c *Client) attempt(ctx context.Context, endpoint string, headers http.Header, body []byte, n int) (*domain.CallResult, error) {
	ctx, span := tracer.Start(ctx, "Client.attempt")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.url", endpoint),
		attribute.Int("attempt", n),
	)

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.ErrEndpointAttempt{URL: endpoint, Err: err}
	}
	req.Header = headers.Clone()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.IncrAttempt("network_error")
		c.logger.Debug("agent attempt failed", zap.String("url", endpoint), zap.Int("attempt", n), zap.Error(err))
		return nil, &domain.ErrEndpointAttempt{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	switch {
	case resp.StatusCode == http.StatusOK:
		if readErr != nil {
			c.metrics.IncrAttempt("network_error")
			return nil, &domain.ErrEndpointAttempt{URL: endpoint, Err: fmt.Errorf("read response: %w", readErr)}
		}
		if !gjson.ValidBytes(raw) {
			c.metrics.IncrAttempt("http_error")
			return nil, &domain.ErrEndpointAttempt{
				URL:        endpoint,
				StatusCode: resp.StatusCode,
				Body:       "invalid JSON: " + truncate(string(raw), maxErrorBody),
			}
		}
		c.metrics.IncrAttempt("ok")

		reply, shape := normalize(raw)
		if shape == "" {
			c.metrics.IncrEmptyReply()
		}
		c.logger.Debug("agent replied",
			zap.String("url", endpoint),
			zap.Int("attempt", n),
			zap.String("shape", shape),
		)
		return &domain.CallResult{
			Reply:    reply,
			Endpoint: endpoint,
			Raw:      truncate(string(raw), maxRawBody),
		}, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.metrics.IncrAttempt("auth_rejected")
		c.logger.Warn("agent endpoint rejected credentials", zap.String("url", endpoint), zap.Int("status", resp.StatusCode))
		return nil, &domain.ErrEndpointAttempt{
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       fmt.Sprintf("authorization rejected for URL: %s", endpoint),
		}

	default:
		c.metrics.IncrAttempt("http_error")
		c.logger.Debug("agent attempt failed", zap.String("url", endpoint), zap.Int("attempt", n), zap.Int("status", resp.StatusCode))
		return nil, &domain.ErrEndpointAttempt{
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(raw), maxErrorBody),
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
