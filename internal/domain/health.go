package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded
	Mode     string          `json:"mode"`
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	LastChecked string `json:"lastChecked,omitempty"`
}

// AgentMetrics is returned by GET /v1/metrics/agent.
type AgentMetrics struct {
	TotalCalls     int64   `json:"totalCalls"`
	FailedCalls    int64   `json:"failedCalls"`
	ErrorRate      float64 `json:"errorRate"`
	Attempts       int64   `json:"attempts"`
	AuthRejections int64   `json:"authRejections"`
	TokenExchanges int64   `json:"tokenExchanges"`
	TokenCacheHits int64   `json:"tokenCacheHits"`
	TokenHitRate   float64 `json:"tokenHitRate"`
	EmptyReplies   int64   `json:"emptyReplies"`
	Period         string  `json:"period"`
}

// ProbeResult is one agent's outcome in POST /v1/diagnostics/probe.
type ProbeResult struct {
	Topic  Topic        `json:"topic"`
	Agent  string       `json:"agent"`
	Status StatusRecord `json:"status"`
}
