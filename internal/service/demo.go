package service

import (
	"fmt"

	"github.com/boddenberg/court-assistant-go/internal/domain"
)

// demoPrimers open every stub reply with the key elements of the offence.
var demoPrimers = map[domain.Topic]string{
	domain.TopicTheft:         "Theft: intent, appropriation and the value of the property are decisive.",
	domain.TopicHomeIntrusion: "Domestic peace: unlawful entry, or refusal to leave despite a demand to do so.",
	domain.TopicBodilyHarm:    "Bodily harm: extent of the injuries and how long organ function was impaired.",
	domain.TopicThreat:        "Threat: whether it could realistically be carried out and the victim's justified fear.",
}

// DemoReply is the canned answer used when no remote agent is configured.
// It is deterministic: the same topic and text always give the same reply.
func DemoReply(topic domain.Topic, userText string) string {
	base, ok := demoPrimers[topic]
	if !ok {
		base = "Case context noted."
	}
	return fmt.Sprintf("%s\n\n(DEMO) Received: “%s”. Shall I prepare a draft justification, hearing questions or a case summary?", base, userText)
}

// QuickAction identifies a one-click request from the case screen.
type QuickAction string

const (
	ActionDraftJustification QuickAction = "draft-justification"
	ActionHearingQuestions   QuickAction = "hearing-questions"
	ActionCaseSummary        QuickAction = "case-summary"
)

var quickActionReplies = map[QuickAction]string{
	ActionDraftJustification: "DEMO/LIVE: draft justification, generation requested.",
	ActionHearingQuestions:   "DEMO/LIVE: hearing questions, generation requested.",
	ActionCaseSummary:        "DEMO/LIVE: case summary, generation requested.",
}
