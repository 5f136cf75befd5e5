package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/court-assistant-go/internal/config"
	"github.com/boddenberg/court-assistant-go/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	if !cfg.DemoMode {
		t.Error("expected demo mode by default")
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.Timeout)
	}
	if cfg.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", cfg.RetryCount)
	}
	if cfg.RetryBackoff != 1.5 {
		t.Errorf("expected backoff 1.5, got %f", cfg.RetryBackoff)
	}
	if cfg.AuthScheme != "bearer" {
		t.Errorf("expected bearer scheme, got %s", cfg.AuthScheme)
	}
	if got := cfg.Agents[domain.TopicTheft]; got != "SedziaAI.1" {
		t.Errorf("expected SedziaAI.1 for theft, got %s", got)
	}
	if cfg.HistoryWindow != 5 {
		t.Errorf("expected history window 5, got %d", cfg.HistoryWindow)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SERVICE_INSTANCE_URL", "https://orchestrate.example.com/instances/abc/")
	t.Setenv("TIMEOUT_SECONDS", "2.5")
	t.Setenv("RETRY_COUNT", "2")
	t.Setenv("RETRY_BACKOFF", "2")
	t.Setenv("AUTH_SCHEME", "X-API-KEY")
	t.Setenv("DEMO_MODE", "false")
	t.Setenv("AGENT_GROZBA", "threat-agent")

	cfg := config.Load()

	if cfg.ServiceURL != "https://orchestrate.example.com/instances/abc" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.ServiceURL)
	}
	if cfg.Timeout != 2500*time.Millisecond {
		t.Errorf("expected 2.5s, got %s", cfg.Timeout)
	}
	if cfg.RetryCount != 2 || cfg.RetryBackoff != 2 {
		t.Errorf("unexpected retry policy: %d / %f", cfg.RetryCount, cfg.RetryBackoff)
	}
	if cfg.AuthScheme != "x-api-key" {
		t.Errorf("expected lower-cased scheme, got %s", cfg.AuthScheme)
	}
	if cfg.DemoMode {
		t.Error("expected live mode")
	}
	if cfg.Agents[domain.TopicThreat] != "threat-agent" {
		t.Errorf("expected agent override, got %s", cfg.Agents[domain.TopicThreat])
	}
}

func TestLoad_NegativeRetryCountClampsToZero(t *testing.T) {
	t.Setenv("RETRY_COUNT", "-1")

	cfg := config.Load()

	if cfg.RetryCount != 0 {
		t.Errorf("expected retry count clamped to 0, got %d", cfg.RetryCount)
	}
}

func TestValidate(t *testing.T) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("demo mode should always validate, got %v", err)
	}

	cfg.DemoMode = false
	err := cfg.Validate()
	var cfgErr *domain.ErrConfig
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
	if len(cfgErr.Missing) != 2 {
		t.Errorf("expected 2 missing keys, got %v", cfgErr.Missing)
	}

	cfg.ServiceURL = "https://example.com"
	cfg.APIKey = "key"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nexport DOTENV_A=\"quoted\"\nDOTENV_B=plain # trailing\nDOTENV_C=keep\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOTENV_C", "from-env")
	t.Setenv("DOTENV_A", "")
	t.Setenv("DOTENV_B", "")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if v := os.Getenv("DOTENV_A"); v != "quoted" {
		t.Errorf("expected 'quoted', got '%s'", v)
	}
	if v := os.Getenv("DOTENV_B"); v != "plain" {
		t.Errorf("expected 'plain', got '%s'", v)
	}
	if v := os.Getenv("DOTENV_C"); v != "from-env" {
		t.Errorf("expected env to win, got '%s'", v)
	}
}
