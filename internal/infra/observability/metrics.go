package observability

import (
	"time"

	"github.com/boddenberg/court-assistant-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the assistant.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	callDuration   *prometheus.HistogramVec
	callsTotal     *prometheus.CounterVec
	attemptsTotal  *prometheus.CounterVec
	tokenExchanges *prometheus.CounterVec
	tokenCache     *prometheus.CounterVec
	emptyReplies   prometheus.Counter
	chatMessages   *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		callDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assistant_agent_call_duration_seconds",
				Help:    "Duration of agent calls including retries and endpoint probing.",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"agent"},
		),
		callsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_agent_calls_total",
				Help: "Total agent calls by outcome.",
			},
			[]string{"outcome"},
		),
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_agent_attempts_total",
				Help: "Total HTTP attempts against agent endpoints by result class.",
			},
			[]string{"result"},
		),
		tokenExchanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_token_exchanges_total",
				Help: "Total credential exchanges with the identity provider.",
			},
			[]string{"status"},
		),
		tokenCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_token_cache_total",
				Help: "Bearer token cache lookups.",
			},
			[]string{"result"},
		),
		emptyReplies: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "assistant_agent_empty_replies_total",
				Help: "Successful calls whose body matched no known reply shape.",
			},
		),
		chatMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_chat_messages_total",
				Help: "Chat messages appended, by role.",
			},
			[]string{"role"},
		),
	}
}

// RecordCall records one finished agent call.
func (m *Metrics) RecordCall(agent, outcome string, d time.Duration) {
	m.callDuration.WithLabelValues(agent).Observe(d.Seconds())
	m.callsTotal.WithLabelValues(outcome).Inc()
}

// IncrAttempt counts one HTTP attempt. result is "ok", "auth_rejected",
// "http_error" or "network_error".
func (m *Metrics) IncrAttempt(result string) {
	m.attemptsTotal.WithLabelValues(result).Inc()
}

// IncrTokenExchange counts a credential exchange ("ok" or "error").
func (m *Metrics) IncrTokenExchange(status string) {
	m.tokenExchanges.WithLabelValues(status).Inc()
}

// IncrTokenCacheHit counts a cached token served without an exchange.
func (m *Metrics) IncrTokenCacheHit() {
	m.tokenCache.WithLabelValues("hit").Inc()
}

// IncrTokenCacheMiss counts a lookup that had to exchange.
func (m *Metrics) IncrTokenCacheMiss() {
	m.tokenCache.WithLabelValues("miss").Inc()
}

// IncrEmptyReply counts a reply that normalized to the no-content placeholder.
func (m *Metrics) IncrEmptyReply() {
	m.emptyReplies.Inc()
}

// IncrChatMessage counts a message appended to a case history.
func (m *Metrics) IncrChatMessage(role domain.Role) {
	m.chatMessages.WithLabelValues(string(role)).Inc()
}

// GetAgentSnapshot returns a snapshot of agent-call metrics suitable for the
// GET /v1/metrics/agent endpoint.
func (m *Metrics) GetAgentSnapshot() *domain.AgentMetrics {
	// Prometheus counters expose cumulative values.
	success := getCounterValue(m.callsTotal, "success")
	failed := getCounterValue(m.callsTotal, "error")
	attempts := getCounterValue(m.attemptsTotal, "ok") +
		getCounterValue(m.attemptsTotal, "auth_rejected") +
		getCounterValue(m.attemptsTotal, "http_error") +
		getCounterValue(m.attemptsTotal, "network_error")
	exchanges := getCounterValue(m.tokenExchanges, "ok") + getCounterValue(m.tokenExchanges, "error")
	hits := getCounterValue(m.tokenCache, "hit")
	misses := getCounterValue(m.tokenCache, "miss")

	total := success + failed
	errorRate := float64(0)
	if total > 0 {
		errorRate = failed / total
	}
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	var empty float64
	pb := &dto.Metric{}
	if err := m.emptyReplies.Write(pb); err == nil && pb.Counter != nil {
		empty = pb.Counter.GetValue()
	}

	return &domain.AgentMetrics{
		TotalCalls:     int64(total),
		FailedCalls:    int64(failed),
		ErrorRate:      errorRate,
		Attempts:       int64(attempts),
		AuthRejections: int64(getCounterValue(m.attemptsTotal, "auth_rejected")),
		TokenExchanges: int64(exchanges),
		TokenCacheHits: int64(hits),
		TokenHitRate:   hitRate,
		EmptyReplies:   int64(empty),
		Period:         "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
