package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/court-assistant-go/internal/domain"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port       int
	LogLevel   string
	DebugToken string // guards /v1/debug when set

	// Orchestrate service
	ServiceURL       string
	APIKey           string
	AuthScheme       string // "bearer" or "x-api-key"
	IAMURL           string
	EndpointTemplate string // optional, e.g. "{base}/api/agents/{agent}/chat"
	DemoMode         bool

	// Outbound call policy
	Timeout                time.Duration
	RetryCount             int
	RetryBackoff           float64
	AuthRefreshPerEndpoint bool
	MaxConcurrency         int

	// Request metadata sent with every agent call
	RequestUserID  string
	RequestPurpose string

	// Chat
	HistoryWindow int
	JudgeName     string
	Agents        map[domain.Topic]string

	// Observability
	OTLPEndpoint string
	OTelEnabled  bool
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:       getEnvInt("PORT", 8080),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		DebugToken: getEnv("DEBUG_TOKEN", ""),

		ServiceURL:       strings.TrimRight(getEnv("SERVICE_INSTANCE_URL", ""), "/"),
		APIKey:           getEnv("API_KEY", ""),
		AuthScheme:       strings.ToLower(getEnv("AUTH_SCHEME", "bearer")),
		IAMURL:           getEnv("IAM_URL", "https://iam.cloud.ibm.com/identity/token"),
		EndpointTemplate: strings.TrimSpace(getEnv("ENDPOINT_TEMPLATE", "")),
		// no secrets means demo by default
		DemoMode: getEnvBool("DEMO_MODE", true),

		Timeout:                getEnvSeconds("TIMEOUT_SECONDS", 30*time.Second),
		RetryCount:             max(0, getEnvInt("RETRY_COUNT", 1)),
		RetryBackoff:           getEnvFloat("RETRY_BACKOFF", 1.5),
		AuthRefreshPerEndpoint: getEnvBool("AUTH_REFRESH_PER_ENDPOINT", true),
		MaxConcurrency:         getEnvInt("MAX_CONCURRENCY", 10),

		RequestUserID:  getEnv("REQUEST_USER_ID", "s_jan_kowalski_demo"),
		RequestPurpose: getEnv("REQUEST_PURPOSE", "demo_court_assistant"),

		HistoryWindow: getEnvInt("HISTORY_WINDOW", 5),
		JudgeName:     getEnv("JUDGE_NAME", "Judge: Jan Kowalski"),
		Agents: map[domain.Topic]string{
			domain.TopicTheft:         getEnv("AGENT_KRADZIEZ", "SedziaAI.1"),
			domain.TopicHomeIntrusion: getEnv("AGENT_MIR_DOMOWY", "SedziaAI.2"),
			domain.TopicThreat:        getEnv("AGENT_GROZBA", "SedziaAI.3"),
			domain.TopicBodilyHarm:    getEnv("AGENT_USZKODZENIE", "SedziaAI.4"),
		},

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
	}
}

// Validate reports the settings live mode cannot run without.
// Demo mode never needs them.
func (c *Config) Validate() error {
	if c.DemoMode {
		return nil
	}
	var missing []string
	if c.ServiceURL == "" {
		missing = append(missing, "SERVICE_INSTANCE_URL")
	}
	if c.APIKey == "" {
		missing = append(missing, "API_KEY")
	}
	switch c.AuthScheme {
	case "bearer", "x-api-key":
	default:
		missing = append(missing, "AUTH_SCHEME (bearer|x-api-key)")
	}
	if len(missing) > 0 {
		return &domain.ErrConfig{Missing: missing}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true")
	}
	return fallback
}

// getEnvSeconds accepts either a bare number of seconds ("30", "2.5")
// or a Go duration ("45s").
func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return fallback
}
