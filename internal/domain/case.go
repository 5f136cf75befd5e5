// Package domain defines the core entities of the court assistant:
// cases, their chat history and the status records shown next to them.
// These types are independent of the remote agent service.
package domain

import "time"

// ============================================================
// Cases
// ============================================================

// Topic is the legal subject of a case. Each topic is routed to its own agent.
type Topic string

const (
	TopicTheft         Topic = "theft"
	TopicHomeIntrusion Topic = "home_intrusion"
	TopicBodilyHarm    Topic = "bodily_harm"
	TopicThreat        Topic = "threat"
)

// Case is a conversational context bucket with its own history and agent.
type Case struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Topic Topic  `json:"topic"`
	Title string `json:"title"`
}

// Cases is the fixed case catalogue, in display order.
var Cases = []Case{
	{ID: "221", Label: "case No.221", Topic: TopicTheft, Title: "Theft"},
	{ID: "325", Label: "case No.325", Topic: TopicHomeIntrusion, Title: "Disturbing domestic peace"},
	{ID: "523", Label: "case No.523", Topic: TopicBodilyHarm, Title: "Bodily harm"},
	{ID: "128", Label: "case No.128", Topic: TopicThreat, Title: "Criminal threat"},
}

// FindCase looks a case up by ID.
func FindCase(id string) (Case, bool) {
	for _, c := range Cases {
		if c.ID == id {
			return c, true
		}
	}
	return Case{}, false
}

// AgentDisplayName is the human label of the agent serving a topic.
func AgentDisplayName(t Topic) string {
	switch t {
	case TopicTheft:
		return "Agent (Theft)"
	case TopicHomeIntrusion:
		return "Agent (Domestic peace)"
	case TopicBodilyHarm:
		return "Agent (Bodily harm)"
	case TopicThreat:
		return "Agent (Threat)"
	}
	return "AI Agent"
}

// ============================================================
// Status
// ============================================================

// StatusRecord is the cached outcome of a smoketest call.
type StatusRecord struct {
	OK      bool      `json:"ok"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
	Agent   string    `json:"agent,omitempty"`
}

// AgentDetails is the side panel next to a case conversation.
type AgentDetails struct {
	Name     string   `json:"name"`
	AgentID  string   `json:"agentId"`
	Mode     string   `json:"mode"` // demo, live
	Status   string   `json:"status"`
	Features []string `json:"features"`
}

// Diagnostics exposes the outbound configuration for troubleshooting.
type Diagnostics struct {
	BaseURL          string `json:"baseUrl"`
	AuthScheme       string `json:"authScheme"`
	EndpointTemplate string `json:"endpointTemplate"`
	DemoMode         bool   `json:"demoMode"`
	// Candidates are the URLs the canary agent would be probed at, in order.
	Candidates []string `json:"candidates,omitempty"`
}
