package orchestrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/court-assistant-go/internal/domain"
	"github.com/boddenberg/court-assistant-go/internal/infra/cache"
	"github.com/boddenberg/court-assistant-go/internal/infra/observability"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	// AuthSchemeBearer exchanges the API key for a short-lived bearer token.
	AuthSchemeBearer = "bearer"
	// AuthSchemeAPIKey sends the API key as-is in the x-api-key header.
	AuthSchemeAPIKey = "x-api-key"

	apiKeyGrantType = "urn:ibm:params:oauth:grant-type:apikey"

	// expirySafetyMargin is subtracted from the provider TTL;
	// minTokenLifetime is the floor applied afterwards.
	expirySafetyMargin = 60 * time.Second
	minTokenLifetime   = 60 * time.Second
)

// HeaderSource sets authentication headers on outbound agent requests.
type HeaderSource interface {
	Apply(ctx context.Context, h http.Header) error
	// Invalidate drops any cached credential after the remote side rejected it.
	Invalidate()
}

// NewHeaderSource picks the implementation for scheme.
func NewHeaderSource(scheme string, auth *Authenticator, apiKey string) (HeaderSource, error) {
	switch strings.ToLower(scheme) {
	case AuthSchemeBearer, "":
		return auth, nil
	case AuthSchemeAPIKey:
		return APIKeyHeader{Key: apiKey}, nil
	}
	return nil, &domain.ErrConfig{Missing: []string{fmt.Sprintf("AUTH_SCHEME (unsupported %q)", scheme)}}
}

// ============================================================
// x-api-key
// ============================================================

// APIKeyHeader sends a static API key. There is nothing to invalidate.
type APIKeyHeader struct {
	Key string
}

func (a APIKeyHeader) Apply(_ context.Context, h http.Header) error {
	if a.Key == "" {
		return &domain.ErrAuthConfig{}
	}
	h.Set("x-api-key", a.Key)
	return nil
}

func (APIKeyHeader) Invalidate() {}

// ============================================================
// Bearer token exchange
// ============================================================

// Authenticator exchanges an API key for a bearer token at an identity
// endpoint and caches it until shortly before it expires.
//
// Check-and-refresh runs under a mutex, so concurrent callers sharing an
// Authenticator cause at most one exchange.
type Authenticator struct {
	httpClient *http.Client
	iamURL     string
	apiKey     string
	now        func() time.Time
	tokens     *cache.InMemory[string]
	metrics    *observability.Metrics
	logger     *zap.Logger

	mu sync.Mutex
}

// AuthOption configures an Authenticator.
type AuthOption func(*Authenticator)

// WithClock injects the time source used for expiry decisions.
func WithClock(now func() time.Time) AuthOption {
	return func(a *Authenticator) { a.now = now }
}

// NewAuthenticator creates an Authenticator for the given identity endpoint.
func NewAuthenticator(httpClient *http.Client, iamURL, apiKey string, metrics *observability.Metrics, logger *zap.Logger, opts ...AuthOption) *Authenticator {
	a := &Authenticator{
		httpClient: httpClient,
		iamURL:     iamURL,
		apiKey:     apiKey,
		now:        time.Now,
		metrics:    metrics,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.tokens = cache.New[string](0, cache.WithClock(a.now), cache.WithoutCleanup())
	return a
}

// Apply sets "Authorization: Bearer <token>".
func (a *Authenticator) Apply(ctx context.Context, h http.Header) error {
	token, err := a.Token(ctx)
	if err != nil {
		return err
	}
	h.Set("Authorization", "Bearer "+token)
	return nil
}

// Token returns the cached token, exchanging the API key for a new one
// when nothing valid is cached.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if token, ok := a.tokens.Get(a.iamURL); ok {
		a.metrics.IncrTokenCacheHit()
		return token, nil
	}
	a.metrics.IncrTokenCacheMiss()

	if a.apiKey == "" {
		return "", &domain.ErrAuthConfig{}
	}

	token, lifetime, err := a.exchange(ctx)
	if err != nil {
		a.metrics.IncrTokenExchange("error")
		a.logger.Warn("token exchange failed", zap.String("iam_url", a.iamURL), zap.Error(err))
		return "", err
	}
	a.metrics.IncrTokenExchange("ok")

	if lifetime <= 0 {
		// already expired per its exp claim: serve it once, keep nothing
		a.logger.Warn("identity provider issued an expired token", zap.String("iam_url", a.iamURL))
		return token, nil
	}
	a.tokens.SetWithTTL(a.iamURL, token, lifetime)
	a.logger.Debug("bearer token refreshed", zap.Duration("lifetime", lifetime))
	return token, nil
}

// Invalidate drops the cached token so the next Token call re-exchanges.
func (a *Authenticator) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens.Delete(a.iamURL)
}

// Expiry reports when the cached token stops being served.
func (a *Authenticator) Expiry() (time.Time, bool) {
	return a.tokens.ExpiresAt(a.iamURL)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (a *Authenticator) exchange(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("grant_type", apiKeyGrantType)
	form.Set("apikey", a.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.iamURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, &domain.ErrAuthExchange{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", 0, &domain.ErrAuthExchange{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, &domain.ErrAuthExchange{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, &domain.ErrAuthExchange{
			StatusCode: resp.StatusCode,
			Err:        errors.New(truncate(string(body), maxErrorBody)),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, &domain.ErrAuthExchange{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return "", 0, &domain.ErrAuthExchange{StatusCode: resp.StatusCode, Err: errors.New("response has no access_token")}
	}

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl <= 0 {
		var ok bool
		if ttl, ok = a.jwtLifetime(tr.AccessToken); ok && ttl <= 0 {
			return tr.AccessToken, 0, nil
		}
	}
	return tr.AccessToken, tokenLifetime(ttl), nil
}

// jwtLifetime reads the exp claim of an access token without verifying it.
// ok is false for tokens that are not JWTs or carry no exp.
func (a *Authenticator) jwtLifetime(token string) (time.Duration, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, false
	}
	return exp.Sub(a.now()), true
}

// tokenLifetime applies max(60s, ttl-60s).
func tokenLifetime(ttl time.Duration) time.Duration {
	return max(minTokenLifetime, ttl-expirySafetyMargin)
}
