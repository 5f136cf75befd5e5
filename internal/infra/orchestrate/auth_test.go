package orchestrate_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/court-assistant-go/internal/domain"
	"github.com/boddenberg/court-assistant-go/internal/infra/observability"
	"github.com/boddenberg/court-assistant-go/internal/infra/orchestrate"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// iamServer issues "token-1", "token-2", ... and counts exchanges.
type iamServer struct {
	*httptest.Server
	exchanges atomic.Int32
	expiresIn int
	status    int
	omitToken bool
}

func newIAMServer(t *testing.T, expiresIn int) *iamServer {
	t.Helper()
	s := &iamServer{expiresIn: expiresIn, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if got := r.PostForm.Get("apikey"); got != "secret-key" {
			t.Errorf("expected apikey 'secret-key', got '%s'", got)
		}
		if got := r.PostForm.Get("grant_type"); got != "urn:ibm:params:oauth:grant-type:apikey" {
			t.Errorf("unexpected grant_type '%s'", got)
		}
		n := s.exchanges.Add(1)
		if s.status != http.StatusOK {
			w.WriteHeader(s.status)
			fmt.Fprint(w, `{"errorMessage":"bad key"}`)
			return
		}
		resp := map[string]any{"expires_in": s.expiresIn}
		if !s.omitToken {
			resp["access_token"] = fmt.Sprintf("token-%d", n)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(s.Close)
	return s
}

func newTestAuthenticator(iamURL, apiKey string, clock *fakeClock) *orchestrate.Authenticator {
	return orchestrate.NewAuthenticator(
		&http.Client{Timeout: 5 * time.Second},
		iamURL,
		apiKey,
		observability.NewMetrics(),
		zap.NewNop(),
		orchestrate.WithClock(clock.Now),
	)
}

func TestAuthenticator_ReusesTokenWithinExpiry(t *testing.T) {
	iam := newIAMServer(t, 3600)
	clock := newFakeClock()
	auth := newTestAuthenticator(iam.URL, "secret-key", clock)

	first, err := auth.Token(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	clock.Advance(30 * time.Minute)
	second, err := auth.Token(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if first != second {
		t.Errorf("expected identical token, got %s and %s", first, second)
	}
	if n := iam.exchanges.Load(); n != 1 {
		t.Errorf("expected 1 exchange, got %d", n)
	}
}

func TestAuthenticator_RefreshesAfterExpiry(t *testing.T) {
	iam := newIAMServer(t, 3600)
	clock := newFakeClock()
	auth := newTestAuthenticator(iam.URL, "secret-key", clock)

	if _, err := auth.Token(context.Background()); err != nil {
		t.Fatal(err)
	}

	exp, ok := auth.Expiry()
	if !ok {
		t.Fatal("expected a cached expiry")
	}
	if want := clock.Now().Add(59 * time.Minute); !exp.Equal(want) {
		t.Errorf("expected expiry %s (ttl minus 60s), got %s", want, exp)
	}

	clock.Advance(59 * time.Minute)
	token, err := auth.Token(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if token != "token-2" {
		t.Errorf("expected a fresh token, got %s", token)
	}
	if n := iam.exchanges.Load(); n != 2 {
		t.Errorf("expected exactly 2 exchanges, got %d", n)
	}
}

func TestAuthenticator_ShortTTLUsesFloor(t *testing.T) {
	iam := newIAMServer(t, 30)
	clock := newFakeClock()
	auth := newTestAuthenticator(iam.URL, "secret-key", clock)

	if _, err := auth.Token(context.Background()); err != nil {
		t.Fatal(err)
	}
	exp, _ := auth.Expiry()
	if want := clock.Now().Add(60 * time.Second); !exp.Equal(want) {
		t.Errorf("expected 60s floor, got expiry %s", exp)
	}
}

func TestAuthenticator_InvalidateForcesOneExchange(t *testing.T) {
	iam := newIAMServer(t, 3600)
	clock := newFakeClock()
	auth := newTestAuthenticator(iam.URL, "secret-key", clock)

	if _, err := auth.Token(context.Background()); err != nil {
		t.Fatal(err)
	}
	auth.Invalidate()

	for i := 0; i < 3; i++ {
		if _, err := auth.Token(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if n := iam.exchanges.Load(); n != 2 {
		t.Errorf("expected 2 exchanges, got %d", n)
	}
}

func TestAuthenticator_ConcurrentCallersShareOneExchange(t *testing.T) {
	iam := newIAMServer(t, 3600)
	auth := newTestAuthenticator(iam.URL, "secret-key", newFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := auth.Token(context.Background()); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := iam.exchanges.Load(); n != 1 {
		t.Errorf("expected 1 exchange, got %d", n)
	}
}

func TestAuthenticator_MissingAPIKey(t *testing.T) {
	iam := newIAMServer(t, 3600)
	auth := newTestAuthenticator(iam.URL, "", newFakeClock())

	_, err := auth.Token(context.Background())
	var cfgErr *domain.ErrAuthConfig
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ErrAuthConfig, got %v", err)
	}
	if n := iam.exchanges.Load(); n != 0 {
		t.Errorf("expected no exchange, got %d", n)
	}
}

func TestAuthenticator_ExchangeFailures(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		iam := newIAMServer(t, 3600)
		iam.status = http.StatusBadRequest
		auth := newTestAuthenticator(iam.URL, "secret-key", newFakeClock())

		_, err := auth.Token(context.Background())
		var exErr *domain.ErrAuthExchange
		if !errors.As(err, &exErr) {
			t.Fatalf("expected ErrAuthExchange, got %v", err)
		}
		if exErr.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", exErr.StatusCode)
		}
	})

	t.Run("missing token field", func(t *testing.T) {
		iam := newIAMServer(t, 3600)
		iam.omitToken = true
		auth := newTestAuthenticator(iam.URL, "secret-key", newFakeClock())

		_, err := auth.Token(context.Background())
		var exErr *domain.ErrAuthExchange
		if !errors.As(err, &exErr) {
			t.Fatalf("expected ErrAuthExchange, got %v", err)
		}
	})
}

func TestAuthenticator_ExpiryFromJWTWhenTTLMissing(t *testing.T) {
	clock := newFakeClock()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(20 * time.Minute)),
	}).SignedString([]byte("irrelevant"))
	if err != nil {
		t.Fatal(err)
	}

	iam := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"access_token": signed})
	}))
	defer iam.Close()

	auth := newTestAuthenticator(iam.URL, "secret-key", clock)
	if _, err := auth.Token(context.Background()); err != nil {
		t.Fatal(err)
	}

	exp, ok := auth.Expiry()
	if !ok {
		t.Fatal("expected a cached expiry")
	}
	if want := clock.Now().Add(19 * time.Minute); !exp.Equal(want) {
		t.Errorf("expected expiry %s derived from exp claim, got %s", want, exp)
	}
}

func TestAuthenticator_ExpiredJWTIsNotCached(t *testing.T) {
	clock := newFakeClock()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(-5 * time.Minute)),
	}).SignedString([]byte("irrelevant"))
	if err != nil {
		t.Fatal(err)
	}

	var exchanges atomic.Int32
	iam := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"access_token": signed})
	}))
	defer iam.Close()

	auth := newTestAuthenticator(iam.URL, "secret-key", clock)
	for i := 0; i < 2; i++ {
		token, err := auth.Token(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if token != signed {
			t.Errorf("expected the issued token to be served, got %q", token)
		}
	}

	if _, ok := auth.Expiry(); ok {
		t.Error("expected no cached expiry for an already expired token")
	}
	if n := exchanges.Load(); n != 2 {
		t.Errorf("expected 2 exchanges, got %d", n)
	}
}

func TestAPIKeyHeader(t *testing.T) {
	h := http.Header{}
	if err := (orchestrate.APIKeyHeader{Key: "k"}).Apply(context.Background(), h); err != nil {
		t.Fatal(err)
	}
	if h.Get("x-api-key") != "k" {
		t.Errorf("expected x-api-key header, got %v", h)
	}
	if h.Get("Authorization") != "" {
		t.Error("expected no Authorization header")
	}

	err := (orchestrate.APIKeyHeader{}).Apply(context.Background(), http.Header{})
	var cfgErr *domain.ErrAuthConfig
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ErrAuthConfig, got %v", err)
	}
}
