package service

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/court-assistant-go/internal/domain"
	"github.com/boddenberg/court-assistant-go/internal/port"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	statusDemoSkipped = "demo mode, API test skipped"
	statusConnected   = "connected to Watson Orchestrate"
	smoketestPing     = "ping"
)

// SmoketestConfig holds what the connectivity check needs to know.
type SmoketestConfig struct {
	DemoMode bool
	Agents   map[domain.Topic]string
	// ProbeLimit caps concurrent calls in ProbeAll.
	ProbeLimit  int
	Diagnostics domain.Diagnostics
}

// Smoketest runs a lightweight connectivity check against the agent
// service and keeps the last outcome for the status banner.
type Smoketest struct {
	agent  port.AgentCaller
	cfg    SmoketestConfig
	now    func() time.Time
	logger *zap.Logger

	mu     sync.RWMutex
	status *domain.StatusRecord
}

// NewSmoketest creates the checker. agent may be nil in demo mode.
func NewSmoketest(agent port.AgentCaller, cfg SmoketestConfig, logger *zap.Logger) *Smoketest {
	if cfg.ProbeLimit < 1 {
		cfg.ProbeLimit = 1
	}
	return &Smoketest{
		agent:  agent,
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
	}
}

// Run pings the theft agent, which serves as the canary, and stores the outcome.
func (s *Smoketest) Run(ctx context.Context) *domain.StatusRecord {
	rec := s.check(ctx, s.cfg.Agents[domain.TopicTheft])

	s.mu.Lock()
	s.status = &rec
	s.mu.Unlock()

	if rec.OK || s.cfg.DemoMode {
		s.logger.Info("api smoketest", zap.Bool("ok", rec.OK), zap.String("message", rec.Message))
	} else {
		s.logger.Warn("api smoketest failed", zap.String("agent", rec.Agent), zap.String("message", rec.Message))
	}
	return s.Status()
}

// Status returns a copy of the last record, nil before the first Run.
func (s *Smoketest) Status() *domain.StatusRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status == nil {
		return nil
	}
	rec := *s.status
	return &rec
}

// ProbeAll pings every configured agent concurrently. Results follow the
// case catalogue order; individual failures are reported, not returned.
func (s *Smoketest) ProbeAll(ctx context.Context) []domain.ProbeResult {
	results := make([]domain.ProbeResult, len(domain.Cases))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ProbeLimit)

	for i, c := range domain.Cases {
		agent := s.cfg.Agents[c.Topic]
		results[i] = domain.ProbeResult{Topic: c.Topic, Agent: agent}
		g.Go(func() error {
			results[i].Status = s.check(gCtx, agent)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Diagnostics returns the outbound configuration as configured.
func (s *Smoketest) Diagnostics() domain.Diagnostics {
	d := s.cfg.Diagnostics
	if d.BaseURL == "" {
		d.BaseURL = "(none)"
	}
	if d.EndpointTemplate == "" {
		d.EndpointTemplate = "(auto)"
	}
	d.DemoMode = s.cfg.DemoMode
	return d
}

func (s *Smoketest) check(ctx context.Context, agent string) domain.StatusRecord {
	rec := domain.StatusRecord{When: s.now().UTC(), Agent: agent}
	if s.cfg.DemoMode {
		rec.Message = statusDemoSkipped
		return rec
	}
	if s.agent == nil {
		rec.Message = "error: agent client not configured"
		return rec
	}

	if _, err := s.agent.Call(ctx, agent, []string{smoketestPing}); err != nil {
		rec.Message = "error: " + err.Error()
		return rec
	}
	rec.OK = true
	rec.Message = statusConnected
	return rec
}
