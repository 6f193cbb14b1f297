package contract

import (
	"context"

	statex "github.com/techflowhq/support-agent/agent/state"
)

// Directory resolves a customer identity (email or customer id) to a profile.
// The mapping is populated once at startup and read-only afterwards.
type Directory interface {
	Lookup(identity string) (*statex.CustomerProfile, bool)
}

// RuleTable maps (tier, reason) to an ordered offer list. Unknown inputs yield
// an empty list with an explanatory note, never a fault.
type RuleTable interface {
	Offers(tier, reason string) OfferResult
}

// Retriever answers a text query with a small ranked set of policy snippets.
// An empty result is valid.
type Retriever interface {
	Search(ctx context.Context, query string) ([]Snippet, error)
}

// StatusSink is the append-only target for terminal customer actions. Writers
// are serialized; a failed append is reported to the caller, never raised.
type StatusSink interface {
	Append(ctx context.Context, entry StatusEntry) error
}

// Agent is one conversational role. Run executes the model-and-tools loop
// against the conversation and must leave any routing decision in
// Conversation.NextRoute before returning.
type Agent interface {
	Type() AgentType
	Run(ctx context.Context, convo *statex.Conversation) error
}

// Registry exposes the three role agents to the router.
type Registry interface {
	Greeter() Agent
	Retention() Agent
	Processor() Agent
}
