package state

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Route is the routing signal an agent emits to hand the turn to the next
// agent or to terminate it.
type Route string

const (
	RouteUnset     Route = ""
	RouteRetention Route = "retention"
	RouteCancel    Route = "cancel"
	RouteTech      Route = "tech"
	RouteBilling   Route = "billing"
	RouteEnd       Route = "end"
)

// ParseRoute normalizes a raw route value. Values outside the enumerated set
// are a validation failure for the caller to surface.
func ParseRoute(raw string) (Route, error) {
	switch Route(strings.ToLower(strings.TrimSpace(raw))) {
	case RouteRetention:
		return RouteRetention, nil
	case RouteCancel:
		return RouteCancel, nil
	case RouteTech:
		return RouteTech, nil
	case RouteBilling:
		return RouteBilling, nil
	case RouteEnd:
		return RouteEnd, nil
	default:
		return RouteUnset, fmt.Errorf("unknown route %q: use retention, cancel, tech, billing, or end", raw)
	}
}

// CustomerProfile is the directory record for one customer. Once loaded into a
// conversation it persists for the rest of the session unless a later lookup
// overwrites it.
type CustomerProfile struct {
	CustomerID    string  `json:"customer_id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Tier          string  `json:"tier"`
	PlanType      string  `json:"plan_type"`
	Device        string  `json:"device"`
	MonthlyCharge float64 `json:"monthly_charge"`
	TenureMonths  int     `json:"tenure_months"`
}

// Conversation is the single mutable record threaded through every turn.
// Messages are append-only for the whole session; NextRoute is reset at the
// start of each turn and consumed by the router after each agent completes.
type Conversation struct {
	SessionID    string
	Messages     []*schema.Message
	CustomerData *CustomerProfile
	NextRoute    Route
}

func NewConversation(sessionID string) *Conversation {
	return &Conversation{SessionID: strings.TrimSpace(sessionID)}
}

// Append adds entries to the message history. History is never truncated or
// reordered; this is the only way messages enter the conversation.
func (c *Conversation) Append(msgs ...*schema.Message) {
	for _, m := range msgs {
		if m == nil {
			continue
		}
		c.Messages = append(c.Messages, m)
	}
}

func (c *Conversation) AppendUser(text string) {
	c.Append(schema.UserMessage(text))
}

func (c *Conversation) AppendAssistant(text string) {
	c.Append(schema.AssistantMessage(text, nil))
}

// SetRoute records the routing signal. Last write wins within an agent
// invocation; the router inspects it only after the whole agent loop returns.
func (c *Conversation) SetRoute(r Route) {
	c.NextRoute = r
}

// ResetRoute clears the signal so a stale value from a previous turn can
// never be observed by the router.
func (c *Conversation) ResetRoute() {
	c.NextRoute = RouteUnset
}

// SetCustomerData overwrites the loaded profile. Only a successful lookup
// calls this; nothing clears the profile automatically.
func (c *Conversation) SetCustomerData(p *CustomerProfile) {
	if p != nil {
		c.CustomerData = p
	}
}

// LastAssistantReply returns the most recent assistant-authored text entry,
// which is the terminal output of a turn.
func (c *Conversation) LastAssistantReply() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		m := c.Messages[i]
		if m.Role == schema.Assistant && strings.TrimSpace(m.Content) != "" {
			return m.Content
		}
	}
	return ""
}

// LastUserMessage returns the most recent user-authored entry.
func (c *Conversation) LastUserMessage() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		m := c.Messages[i]
		if m.Role == schema.User && strings.TrimSpace(m.Content) != "" {
			return m.Content
		}
	}
	return ""
}
