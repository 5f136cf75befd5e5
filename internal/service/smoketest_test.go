package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/boddenberg/court-assistant-go/internal/domain"
	"github.com/boddenberg/court-assistant-go/internal/service"

	"go.uber.org/zap"
)

func newSmoketest(agent *mockAgentClient, demo bool) *service.Smoketest {
	return service.NewSmoketest(agent, service.SmoketestConfig{
		DemoMode:   demo,
		Agents:     testAgents,
		ProbeLimit: 2,
		Diagnostics: domain.Diagnostics{
			BaseURL:    "https://orchestrate.example.com",
			AuthScheme: "bearer",
		},
	}, zap.NewNop())
}

func TestSmoketest_PingsCanary(t *testing.T) {
	agent := &mockAgentClient{reply: "pong"}
	st := newSmoketest(agent, false)

	if st.Status() != nil {
		t.Fatal("expected no status before the first run")
	}

	rec := st.Run(context.Background())
	if !rec.OK || rec.When.IsZero() {
		t.Errorf("expected OK record, got %+v", rec)
	}

	calls := agent.Calls()
	if len(calls) != 1 || calls[0].agent != "SedziaAI.1" {
		t.Fatalf("expected one call to the theft agent, got %+v", calls)
	}
	if len(calls[0].messages) != 1 || calls[0].messages[0] != "ping" {
		t.Errorf("expected [ping], got %v", calls[0].messages)
	}
	if got := st.Status(); got == nil || !got.OK {
		t.Errorf("expected stored status, got %+v", got)
	}
}

func TestSmoketest_FailureIsRecorded(t *testing.T) {
	agent := &mockAgentClient{err: errors.New("dial tcp: connection refused")}
	st := newSmoketest(agent, false)

	rec := st.Run(context.Background())
	if rec.OK {
		t.Fatal("expected failed record")
	}
	if !strings.Contains(rec.Message, "connection refused") {
		t.Errorf("expected cause in message, got %q", rec.Message)
	}
}

func TestSmoketest_DemoSkipsCall(t *testing.T) {
	agent := &mockAgentClient{}
	st := newSmoketest(agent, true)

	rec := st.Run(context.Background())
	if rec.OK {
		t.Error("demo record must not be OK")
	}
	if !strings.Contains(rec.Message, "demo") {
		t.Errorf("unexpected message %q", rec.Message)
	}
	if len(agent.Calls()) != 0 {
		t.Error("demo mode must not call the agent")
	}
}

func TestSmoketest_ProbeAll(t *testing.T) {
	agent := &mockAgentClient{reply: "pong"}
	st := newSmoketest(agent, false)

	results := st.ProbeAll(context.Background())
	if len(results) != len(domain.Cases) {
		t.Fatalf("expected %d results, got %d", len(domain.Cases), len(results))
	}
	for i, r := range results {
		if r.Topic != domain.Cases[i].Topic {
			t.Errorf("result %d: expected catalogue order, got %s", i, r.Topic)
		}
		if r.Agent != testAgents[r.Topic] || !r.Status.OK {
			t.Errorf("unexpected result: %+v", r)
		}
	}
	if n := len(agent.Calls()); n != 4 {
		t.Errorf("expected 4 calls, got %d", n)
	}
}

func TestSmoketest_Diagnostics(t *testing.T) {
	d := newSmoketest(&mockAgentClient{}, false).Diagnostics()
	if d.BaseURL != "https://orchestrate.example.com" || d.AuthScheme != "bearer" {
		t.Errorf("unexpected diagnostics: %+v", d)
	}
	if d.EndpointTemplate != "(auto)" {
		t.Errorf("expected (auto), got %q", d.EndpointTemplate)
	}
}
