package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/court-assistant-go/internal/domain"
	"github.com/boddenberg/court-assistant-go/internal/infra/observability"
	"github.com/boddenberg/court-assistant-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/chat")

const (
	ModeDemo = "demo"
	ModeLive = "live"

	errorReplyPrefix = "❌ Agent connection error: "
	errorReplyHint   = "(Check SERVICE_INSTANCE_URL/API_KEY/AUTH_SCHEME and ENDPOINT_TEMPLATE)"
)

var agentFeatures = []string{"query analysis", "summaries", "question lists"}

// ChatConfig holds the chat behaviour settings.
type ChatConfig struct {
	DemoMode      bool
	HistoryWindow int
	JudgeName     string
	Agents        map[domain.Topic]string
}

// ChatService manages case conversations and forwards user turns to the
// agent serving the case topic.
type ChatService struct {
	store   port.SessionStore
	agent   port.AgentCaller
	status  port.StatusSource
	cfg     ChatConfig
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewChatService creates the chat service with all dependencies injected.
// agent may be nil in demo mode.
func NewChatService(
	store port.SessionStore,
	agent port.AgentCaller,
	status port.StatusSource,
	cfg ChatConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ChatService {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 5
	}
	return &ChatService{
		store:   store,
		agent:   agent,
		status:  status,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// Mode reports "demo" or "live".
func (s *ChatService) Mode() string {
	if s.cfg.DemoMode {
		return ModeDemo
	}
	return ModeLive
}

// Cases returns the catalogue and the active case.
func (s *ChatService) Cases() *domain.CaseList {
	return &domain.CaseList{
		Cases:  domain.Cases,
		Active: s.store.Active(),
	}
}

// SetActive selects the case shown by default.
func (s *ChatService) SetActive(caseID string) error {
	if _, err := lookupCase(caseID); err != nil {
		return err
	}
	s.store.SetActive(caseID)
	return nil
}

// History returns the conversation of a case, oldest first.
func (s *ChatService) History(caseID string) ([]domain.Message, error) {
	if _, err := lookupCase(caseID); err != nil {
		return nil, err
	}
	return s.store.History(caseID), nil
}

// Reset clears the conversation of a case.
func (s *ChatService) Reset(caseID string) error {
	if _, err := lookupCase(caseID); err != nil {
		return err
	}
	s.store.Reset(caseID)
	s.logger.Info("case history reset", zap.String("case_id", caseID))
	return nil
}

// View assembles the full case screen.
func (s *ChatService) View(caseID string) (*domain.CaseView, error) {
	c, err := lookupCase(caseID)
	if err != nil {
		return nil, err
	}
	return &domain.CaseView{
		Case:      c,
		Judge:     s.cfg.JudgeName,
		Mode:      s.Mode(),
		Messages:  s.store.History(caseID),
		Agent:     s.details(c),
		APIStatus: s.currentStatus(),
	}, nil
}

// AgentDetails describes the agent serving a case.
func (s *ChatService) AgentDetails(caseID string) (*domain.AgentDetails, error) {
	c, err := lookupCase(caseID)
	if err != nil {
		return nil, err
	}
	d := s.details(c)
	return &d, nil
}

func (s *ChatService) details(c domain.Case) domain.AgentDetails {
	d := domain.AgentDetails{
		Name:     domain.AgentDisplayName(c.Topic),
		AgentID:  s.cfg.Agents[c.Topic],
		Mode:     s.Mode(),
		Features: agentFeatures,
	}
	switch st := s.currentStatus(); {
	case s.cfg.DemoMode:
		d.Status = "mock (no API)"
	case st != nil && st.OK:
		d.Status = "API OK"
	default:
		d.Status = "API problem"
	}
	return d
}

func (s *ChatService) currentStatus() *domain.StatusRecord {
	if s.status == nil {
		return nil
	}
	return s.status.Status()
}

// Send records a user turn and the assistant reply to it.
//
// Agent failures never surface as errors: they become an assistant message
// flagged IsError so the conversation shows what went wrong.
func (s *ChatService) Send(ctx context.Context, caseID, text string) (*domain.Message, error) {
	c, err := lookupCase(caseID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, &domain.ErrValidation{Field: "text", Message: "must not be empty"}
	}

	ctx, span := tracer.Start(ctx, "ChatService.Send")
	defer span.End()
	span.SetAttributes(
		attribute.String("case.id", caseID),
		attribute.String("mode", s.Mode()),
	)

	turns := s.outboundContext(caseID, text)
	s.append(caseID, domain.RoleUser, text, false)

	reply, err := s.reply(ctx, c, turns)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "agent reply failed")
		s.logger.Warn("agent reply failed",
			zap.String("case_id", caseID),
			zap.String("agent", s.cfg.Agents[c.Topic]),
			observability.TraceID(ctx),
			zap.Error(err),
		)
		msg := s.append(caseID, domain.RoleAssistant, errorReply(err), true)
		return &msg, nil
	}

	msg := s.append(caseID, domain.RoleAssistant, reply, false)
	return &msg, nil
}

// outboundContext is the previous user turns of the case plus the new one,
// cut to the last HistoryWindow entries.
func (s *ChatService) outboundContext(caseID, text string) []string {
	var turns []string
	for _, m := range s.store.History(caseID) {
		if m.Role == domain.RoleUser {
			turns = append(turns, m.Text)
		}
	}
	turns = append(turns, text)
	if len(turns) > s.cfg.HistoryWindow {
		turns = turns[len(turns)-s.cfg.HistoryWindow:]
	}
	return turns
}

func (s *ChatService) reply(ctx context.Context, c domain.Case, turns []string) (string, error) {
	if s.cfg.DemoMode {
		return DemoReply(c.Topic, turns[len(turns)-1]), nil
	}
	agent := s.cfg.Agents[c.Topic]
	if agent == "" {
		return "", fmt.Errorf("no agent mapped for topic %s", c.Topic)
	}
	if s.agent == nil {
		return "", &domain.ErrConfig{Missing: []string{"SERVICE_INSTANCE_URL", "API_KEY"}}
	}
	return s.agent.Call(ctx, agent, turns)
}

// QuickAction appends the canned acknowledgement for a one-click action.
func (s *ChatService) QuickAction(caseID string, action QuickAction) (*domain.Message, error) {
	if _, err := lookupCase(caseID); err != nil {
		return nil, err
	}
	text, ok := quickActionReplies[action]
	if !ok {
		return nil, &domain.ErrValidation{Field: "action", Message: fmt.Sprintf("unknown quick action %q", action)}
	}
	msg := s.append(caseID, domain.RoleAssistant, text, false)
	return &msg, nil
}

func (s *ChatService) append(caseID string, role domain.Role, text string, isError bool) domain.Message {
	s.metrics.IncrChatMessage(role)
	return s.store.Append(caseID, role, text, isError)
}

func errorReply(err error) string {
	return errorReplyPrefix + err.Error() + "\n" + errorReplyHint
}

func lookupCase(caseID string) (domain.Case, error) {
	c, ok := domain.FindCase(caseID)
	if !ok {
		return domain.Case{}, &domain.ErrNotFound{Resource: "case", ID: caseID}
	}
	return c, nil
}
