package router

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/techflowhq/support-agent/agent/contract"
	replyx "github.com/techflowhq/support-agent/agent/reply"
	statex "github.com/techflowhq/support-agent/agent/state"
)

type turnInput struct {
	Convo *statex.Conversation
	Text  string
}

type turnOutput struct {
	Reply string
	Route statex.Route
}

type turnState struct {
	convo *statex.Conversation
	// last is the role that produced the final reply; finalize uses it to
	// decide whether the end-of-turn route needs forcing.
	last contractx.AgentType
}

// compileTurnGraph wires the per-turn state machine: greeter always runs
// first, its emitted route picks at most one specialist, and every path
// funnels into finalize. Illegal or missing routes divert to escalate, which
// ends the session apologetically instead of failing the turn.
func (r *Router) compileTurnGraph(ctx context.Context) (compose.Runnable[turnInput, turnOutput], error) {
	graph := compose.NewGraph[turnInput, turnOutput]()

	if err := graph.AddLambdaNode("begin_turn",
		compose.InvokableLambda(func(ctx context.Context, in turnInput) (*turnState, error) {
			return beginTurn(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node begin_turn: %w", err)
	}

	if err := graph.AddLambdaNode("greeter",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			return r.runAgent(ctx, in, r.agents.Greeter())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node greeter: %w", err)
	}

	if err := graph.AddLambdaNode("retention",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			return r.runAgent(ctx, in, r.agents.Retention())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node retention: %w", err)
	}

	if err := graph.AddLambdaNode("processor",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			return r.runAgent(ctx, in, r.agents.Processor())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node processor: %w", err)
	}

	if err := graph.AddLambdaNode("escalate",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (turnOutput, error) {
			return escalateTurn(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node escalate: %w", err)
	}

	if err := graph.AddLambdaNode("finalize",
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (turnOutput, error) {
			return finalizeTurn(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize: %w", err)
	}

	greeterBranch := compose.NewGraphBranch(
		func(ctx context.Context, in *turnState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
			}
			switch in.convo.NextRoute {
			case statex.RouteRetention:
				return "retention", nil
			case statex.RouteCancel:
				return "processor", nil
			case statex.RouteTech, statex.RouteBilling, statex.RouteEnd:
				return "finalize", nil
			default:
				log.Error().
					Str("session", in.convo.SessionID).
					Str("route", string(in.convo.NextRoute)).
					Msg("greeter emitted no usable route")
				return "escalate", nil
			}
		},
		map[string]bool{
			"retention": true,
			"processor": true,
			"finalize":  true,
			"escalate":  true,
		},
	)
	if err := graph.AddBranch("greeter", greeterBranch); err != nil {
		return nil, fmt.Errorf("add greeter branch: %w", err)
	}

	retentionBranch := compose.NewGraphBranch(
		func(ctx context.Context, in *turnState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
			}
			switch in.convo.NextRoute {
			case statex.RouteCancel:
				return "processor", nil
			case statex.RouteEnd:
				return "finalize", nil
			default:
				log.Error().
					Err(contractx.ErrIllegalRoute).
					Str("session", in.convo.SessionID).
					Str("agent", string(contractx.AgentTypeRetention)).
					Str("route", string(in.convo.NextRoute)).
					Msg("retention may only exit to cancel or end")
				return "escalate", nil
			}
		},
		map[string]bool{
			"processor": true,
			"finalize":  true,
			"escalate":  true,
		},
	)
	if err := graph.AddBranch("retention", retentionBranch); err != nil {
		return nil, fmt.Errorf("add retention branch: %w", err)
	}

	edges := [][2]string{
		{compose.START, "begin_turn"},
		{"begin_turn", "greeter"},
		{"processor", "finalize"},
		{"finalize", compose.END},
		{"escalate", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("router.handle_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile router graph: %w", err)
	}
	return runner, nil
}

func beginTurn(in turnInput) (*turnState, error) {
	if in.Convo == nil {
		return nil, fmt.Errorf("%w: conversation is nil", contractx.ErrValidation)
	}
	text := in.Text
	if text == "" {
		return nil, fmt.Errorf("%w: empty customer message", contractx.ErrValidation)
	}
	in.Convo.ResetRoute()
	in.Convo.AppendUser(text)
	return &turnState{convo: in.Convo}, nil
}

func (r *Router) runAgent(ctx context.Context, in *turnState, agent contractx.Agent) (*turnState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
	}
	start := time.Now()
	if err := agent.Run(ctx, in.convo); err != nil {
		return nil, fmt.Errorf("run %s: %w", agent.Type(), err)
	}
	log.Debug().
		Str("session", in.convo.SessionID).
		Str("agent", string(agent.Type())).
		Str("route", string(in.convo.NextRoute)).
		Dur("agent_time", time.Since(start)).
		Msg("agent completed")
	in.last = agent.Type()
	return in, nil
}

// escalateTurn is the terminal path for routing contract violations. The
// customer gets an apology and a handoff promise; the session is closed so a
// broken routing loop cannot repeat.
func escalateTurn(in *turnState) (turnOutput, error) {
	if in == nil {
		return turnOutput{}, fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
	}
	in.convo.SetRoute(statex.RouteEnd)
	in.convo.AppendAssistant(replyx.Escalation())
	return turnOutput{Reply: replyx.Escalation(), Route: statex.RouteEnd}, nil
}

func finalizeTurn(in *turnState) (turnOutput, error) {
	if in == nil {
		return turnOutput{}, fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
	}
	convo := in.convo

	if in.last == contractx.AgentTypeProcessor && convo.NextRoute != statex.RouteEnd {
		log.Warn().
			Str("session", convo.SessionID).
			Str("route", string(convo.NextRoute)).
			Msg("processor finished without ending the session, forcing end")
		convo.SetRoute(statex.RouteEnd)
	}

	reply := replyx.Sanitize(convo.LastAssistantReply())
	if reply == "" {
		reply = replyx.Fallback(convo.NextRoute)
		convo.AppendAssistant(reply)
	}
	return turnOutput{Reply: reply, Route: convo.NextRoute}, nil
}
