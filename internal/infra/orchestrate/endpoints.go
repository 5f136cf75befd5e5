// Package orchestrate is the outbound client for remote conversational agents.
//
// A call resolves candidate endpoint URLs, authenticates, retries each
// candidate with exponential backoff and normalizes whatever JSON the
// agent answers with into a single reply string.
package orchestrate

import (
	"iter"
	"strings"
)

// defaultTemplates are the conventional route shapes, most likely first.
var defaultTemplates = []string{
	"{base}/api/agents/{agent}/chat",
	"{base}/v1/agents/{agent}:chat",
	"{base}/api/v1/agents/{agent}/chat",
	"{base}/orchestrate/api/v1/agents/{agent}/chat",
}

// Resolver turns an agent identifier into the endpoint URLs to try.
type Resolver struct {
	Base     string
	Template string // optional; when set it is the only candidate
}

// NewResolver trims the trailing slash off base.
func NewResolver(base, template string) Resolver {
	return Resolver{
		Base:     strings.TrimRight(base, "/"),
		Template: strings.TrimSpace(template),
	}
}

// Candidates lazily yields endpoint URLs for agent in priority order.
func (r Resolver) Candidates(agent string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if r.Template != "" {
			yield(r.expand(r.Template, agent))
			return
		}
		for _, t := range defaultTemplates {
			if !yield(r.expand(t, agent)) {
				return
			}
		}
	}
}

// All materializes Candidates, for diagnostics.
func (r Resolver) All(agent string) []string {
	var out []string
	for u := range r.Candidates(agent) {
		out = append(out, u)
	}
	return out
}

func (r Resolver) expand(template, agent string) string {
	return strings.NewReplacer(
		"{base}", strings.TrimRight(r.Base, "/"),
		"{agent}", agent,
	).Replace(template)
}
