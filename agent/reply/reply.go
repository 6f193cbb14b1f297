// Package reply holds the user-facing text helpers shared by the runtime and
// the router: identifier extraction, the internal-jargon sanitizer, and the
// per-route fallback replies shown when the model produces nothing usable.
package reply

import (
	"regexp"
	"strings"

	statex "github.com/techflowhq/support-agent/agent/state"
)

var (
	custIDPattern = regexp.MustCompile(`(?i)\bcust_\w+\b`)
	emailPattern  = regexp.MustCompile(`\b[\w.\-+]+@[\w.\-]+\.[a-zA-Z]{2,}\b`)
)

// ExtractIdentifier pulls a single customer id or email out of free text.
// Returns "" when the text carries neither.
func ExtractIdentifier(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if m := custIDPattern.FindString(s); m != "" {
		return m
	}
	return emailPattern.FindString(s)
}

// Sanitize is the last-line defense against internal routing phrases leaking
// into a user-visible reply. It never substitutes for prompt correctness; it
// only keeps an accident off the screen.
func Sanitize(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "route") && (strings.Contains(lower, "has been set") || strings.Contains(lower, "set to ")) {
		return "Is there anything else I can help you with?"
	}
	for _, leak := range []string{"set to end", "set to retention", "set to cancel", "set to billing", "set to tech"} {
		if strings.Contains(lower, leak) {
			return "Is there anything else I can help you with?"
		}
	}
	return finishIfChopped(trimmed)
}

// finishIfChopped appends an ellipsis when a long reply ends mid-sentence so
// the user never sees a cut-off word.
func finishIfChopped(text string) string {
	if len(text) < 200 {
		return text
	}
	last := text[len(text)-1]
	switch last {
	case '.', '?', '!', '"', '\'':
		return text
	}
	return text + "…"
}

// Fallback returns the customer-facing text used when the model reply is
// empty, degenerate, or failed after retry. Never contains internal jargon.
func Fallback(r statex.Route) string {
	switch r {
	case statex.RouteBilling:
		return "I'm checking your billing details now—I'll have an answer for you in just a moment."
	case statex.RouteRetention:
		return "I'm pulling together some options that might work better for you—give me a moment."
	case statex.RouteCancel:
		return "I've got your request. One moment while I take care of that."
	case statex.RouteTech:
		return "I'm looking up the best steps for you—one moment."
	case statex.RouteEnd:
		return "Thanks for reaching out. We're all set here; reach out anytime if something else comes up."
	default:
		return "I'm on it—one moment and I'll get back to you."
	}
}

// Escalation is the safe terminal reply used when a turn hits a routing
// contract violation and must resolve to something user-visible.
func Escalation() string {
	return "I'm sorry—something went wrong on my end while handling that. I've flagged it for our support team; please reach out to support if it's urgent."
}
