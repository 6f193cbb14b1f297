package contract

import "time"

type AgentType string

const (
	AgentTypeGreeter   AgentType = "greeter"
	AgentTypeRetention AgentType = "retention_specialist"
	AgentTypeProcessor AgentType = "processor"
)

// Offer is a single retention option from the rule table. Immutable once loaded.
type Offer struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Eligibility string `json:"eligibility,omitempty"`
}

// LookupResult is the structured outcome of a customer directory lookup.
// Found=false is a normal result, not an error.
type LookupResult struct {
	Found      bool    `json:"found"`
	CustomerID string  `json:"customer_id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Email      string  `json:"email,omitempty"`
	Tier       string  `json:"tier,omitempty"`
	PlanType   string  `json:"plan_type,omitempty"`
	Device     string  `json:"device,omitempty"`
	Monthly    float64 `json:"monthly_charge,omitempty"`
	Tenure     int     `json:"tenure_months,omitempty"`
	Message    string  `json:"message,omitempty"`
}

type OfferResult struct {
	Offers  []Offer `json:"offers"`
	Tier    string  `json:"customer_tier,omitempty"`
	Reason  string  `json:"reason,omitempty"`
	Message string  `json:"message,omitempty"`
}

type StatusResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Snippet is one ranked policy-document fragment returned by the retriever.
type Snippet struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// StatusEntry is one append-only record of a terminal customer action.
type StatusEntry struct {
	CustomerID string    `json:"customer_id"`
	Action     string    `json:"action"`
	At         time.Time `json:"at"`
}

type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}
