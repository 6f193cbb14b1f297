// Package router owns turn handling: it appends the customer message to the
// session, runs the greeter, hands off to at most one specialist based on the
// emitted route, and returns the final reply. Routes are consumed here and
// never leak to the caller beyond the turn result.
package router

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/techflowhq/support-agent/agent/contract"
	statex "github.com/techflowhq/support-agent/agent/state"
)

type Router struct {
	agents contractx.Registry

	graphRunner compose.Runnable[turnInput, turnOutput]
}

func New(agents contractx.Registry) (*Router, error) {
	if agents == nil {
		return nil, errors.New("agent registry is required")
	}
	if agents.Greeter() == nil || agents.Retention() == nil || agents.Processor() == nil {
		return nil, errors.New("agent registry must provide greeter, retention, and processor")
	}

	r := &Router{agents: agents}

	graphRunner, err := r.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	r.graphRunner = graphRunner

	return r, nil
}

// TurnResult is what one customer message produced: the text to show and the
// route the turn ended on. Ended reports whether the session is closed.
type TurnResult struct {
	Reply string
	Route statex.Route
}

func (t TurnResult) Ended() bool {
	return t.Route == statex.RouteEnd
}

// HandleTurn processes one customer message against the session state. The
// conversation is mutated in place; callers persist it between turns.
func (r *Router) HandleTurn(ctx context.Context, convo *statex.Conversation, text string) (TurnResult, error) {
	start := time.Now()
	out, err := r.graphRunner.Invoke(ctx, turnInput{Convo: convo, Text: text})
	if err != nil {
		return TurnResult{}, err
	}
	log.Info().
		Str("session", convo.SessionID).
		Str("route", string(out.Route)).
		Dur("turn_time", time.Since(start)).
		Msg("turn handled")
	return TurnResult{Reply: out.Reply, Route: out.Route}, nil
}
