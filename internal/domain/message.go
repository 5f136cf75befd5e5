package domain

import "time"

// Role of a chat message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a case conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	IsError   bool      `json:"isError,omitempty"`
}

// SendMessageRequest is the body of POST /v1/cases/{caseId}/messages.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// CaseView is everything a front end needs to draw one case screen.
type CaseView struct {
	Case      Case          `json:"case"`
	Judge     string        `json:"judge"`
	Mode      string        `json:"mode"`
	Messages  []Message     `json:"messages"`
	Agent     AgentDetails  `json:"agent"`
	APIStatus *StatusRecord `json:"apiStatus,omitempty"`
}

// CaseList is returned by GET /v1/cases.
type CaseList struct {
	Cases  []Case `json:"cases"`
	Active string `json:"active"`
}

// ============================================================
// Agent call: outbound wire format
// ============================================================

// AgentMessage is one element of the outbound messages array.
type AgentMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AgentMetadata is sent alongside messages when configured.
type AgentMetadata struct {
	UserID  string `json:"user_id,omitempty"`
	Purpose string `json:"purpose,omitempty"`
}

// AgentRequest is the JSON body POSTed to an agent endpoint.
type AgentRequest struct {
	Messages []AgentMessage `json:"messages"`
	Metadata *AgentMetadata `json:"metadata,omitempty"`
}

// CallResult describes a successful agent call in detail.
type CallResult struct {
	Reply    string   `json:"reply"`
	Endpoint string   `json:"endpoint"`
	Attempts int      `json:"attempts"`
	Tried    []string `json:"tried"`
	Raw      string   `json:"raw,omitempty"`
}

// DebugCallRequest is the body of POST /v1/debug/call.
type DebugCallRequest struct {
	Agent    string   `json:"agent"`
	Messages []string `json:"messages"`
}
