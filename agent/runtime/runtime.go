// Package runtime implements the execution loop shared by every agent role:
// invoke the model with the role's prompt and tool schema, execute any tool
// calls, feed results back, and stop on a plain text reply. All model and
// tool failures are absorbed here and converted to conversational fallback
// text; nothing below this boundary reaches the router as a fault.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/techflowhq/support-agent/agent/contract"
	replyx "github.com/techflowhq/support-agent/agent/reply"
	statex "github.com/techflowhq/support-agent/agent/state"
	toolx "github.com/techflowhq/support-agent/agent/tool"
)

const (
	defaultMaxToolCycles = 8
	defaultRetryBackoff  = time.Second
)

// Agent runs one conversational role. The loop is synchronous and
// single-threaded; suspension happens only inside the model call and tool
// execution.
type Agent struct {
	agentType    contractx.AgentType
	systemPrompt string
	tools        []*schema.ToolInfo
	executor     toolx.Executor
	model        einomodel.ToolCallingChatModel

	maxCycles    int
	retryBackoff time.Duration
	sleep        func(time.Duration)
}

type Option func(*Agent)

// WithMaxToolCycles bounds the model-and-tools loop. The loop has no cap in
// principle, but a runaway model must not spin forever.
func WithMaxToolCycles(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxCycles = n
		}
	}
}

func WithRetryBackoff(d time.Duration) Option {
	return func(a *Agent) {
		if d >= 0 {
			a.retryBackoff = d
		}
	}
}

func withSleep(fn func(time.Duration)) Option {
	return func(a *Agent) {
		a.sleep = fn
	}
}

// New builds an agent for one role. The model is bound to the role's allowed
// tool schema here; the executor re-checks every invocation anyway, so a tool
// outside the set is rejected even if the model hallucinates one.
func New(
	agentType contractx.AgentType,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	tools []*schema.ToolInfo,
	executor toolx.Executor,
	opts ...Option,
) (*Agent, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: agent=%s", contractx.ErrPromptMissing, agentType)
	}
	if executor == nil {
		return nil, fmt.Errorf("%w: tool executor is required", contractx.ErrValidation)
	}

	bound := chatModel
	if len(tools) > 0 {
		var err error
		bound, err = chatModel.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("%w: bind tools for agent=%s: %v", contractx.ErrModelInvoke, agentType, err)
		}
	}

	a := &Agent{
		agentType:    agentType,
		systemPrompt: systemPrompt,
		tools:        tools,
		executor:     executor,
		model:        bound,
		maxCycles:    defaultMaxToolCycles,
		retryBackoff: defaultRetryBackoff,
		sleep:        time.Sleep,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Agent) Type() contractx.AgentType {
	return a.agentType
}

// Run executes the model-and-tools cycle until the model emits a plain reply
// or the cycle bound is hit. Routing signals land in convo.NextRoute as a
// side effect of the set_route tool; the caller inspects them only after Run
// returns.
func (a *Agent) Run(ctx context.Context, convo *statex.Conversation) error {
	if convo == nil {
		return fmt.Errorf("%w: conversation is nil", contractx.ErrValidation)
	}

	a.prefetchProfile(ctx, convo)

	for cycle := 0; cycle < a.maxCycles; cycle++ {
		resp, err := a.generate(ctx, a.buildMessages(convo))
		if err != nil {
			log.Warn().Err(err).Str("agent", string(a.agentType)).Msg("model failed after retry, using fallback reply")
			convo.AppendAssistant(a.fallback(convo))
			return nil
		}

		if len(resp.ToolCalls) == 0 {
			text := replyx.Sanitize(resp.Content)
			if text == "" {
				log.Debug().Str("agent", string(a.agentType)).Msg("empty model reply, using fallback")
				text = a.fallback(convo)
			}
			convo.AppendAssistant(text)
			return nil
		}

		convo.Append(resp)
		for _, call := range resp.ToolCalls {
			convo.Append(a.executeToolCall(ctx, convo, call))
		}
	}

	log.Warn().Str("agent", string(a.agentType)).Int("cycles", a.maxCycles).Msg("tool cycle bound exceeded, forcing fallback reply")
	convo.AppendAssistant(a.fallback(convo))
	return nil
}

// generate invokes the model with a single retry after a fixed short backoff.
// A second failure is returned to Run, which absorbs it into a fallback.
func (a *Agent) generate(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
	start := time.Now()
	resp, err := a.model.Generate(ctx, msgs)
	if err == nil {
		log.Debug().Str("agent", string(a.agentType)).Dur("api_time", time.Since(start)).Msg("model response")
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}

	a.sleep(a.retryBackoff)
	retryStart := time.Now()
	resp, retryErr := a.model.Generate(ctx, msgs)
	if retryErr != nil {
		return nil, fmt.Errorf("%w: %v (retry: %v)", contractx.ErrModelInvoke, err, retryErr)
	}
	log.Debug().Str("agent", string(a.agentType)).Dur("api_time", time.Since(retryStart)).Msg("model response after retry")
	return resp, nil
}

// buildMessages assembles the model request: role prompt, loaded profile
// context when present, then the full session history. The prompt and profile
// context are per-call prefixes, never appended to the history itself.
func (a *Agent) buildMessages(convo *statex.Conversation) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(convo.Messages)+2)
	msgs = append(msgs, schema.SystemMessage(a.systemPrompt))
	if ctxMsg := profileContext(convo.CustomerData); ctxMsg != nil {
		msgs = append(msgs, ctxMsg)
	}
	msgs = append(msgs, convo.Messages...)
	return msgs
}

func profileContext(p *statex.CustomerProfile) *schema.Message {
	if p == nil {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	return schema.SystemMessage("Customer profile: " + string(raw))
}

// prefetchProfile scans the user messages for an email or customer id and
// loads the profile once, so every downstream agent sees the same customer
// data without the model having to ask for it again. Only roles allowed the
// lookup tool prefetch.
func (a *Agent) prefetchProfile(ctx context.Context, convo *statex.Conversation) {
	if convo.CustomerData != nil || !a.hasTool(toolx.ToolGetCustomerData) {
		return
	}
	for _, m := range convo.Messages {
		if m.Role != schema.User {
			continue
		}
		identifier := replyx.ExtractIdentifier(m.Content)
		if identifier == "" {
			continue
		}
		res, err := a.executor(ctx, convo, toolx.ToolGetCustomerData, map[string]any{"email": identifier})
		if err != nil || res.Error != "" {
			continue
		}
		if convo.CustomerData != nil {
			log.Debug().Str("agent", string(a.agentType)).Str("customer", convo.CustomerData.CustomerID).Msg("profile prefetched")
			return
		}
	}
}

func (a *Agent) hasTool(name string) bool {
	for _, t := range a.tools {
		if t != nil && t.Name == name {
			return true
		}
	}
	return false
}

// executeToolCall resolves one model-emitted invocation and returns the tool
// message carrying its structured result. Malformed arguments and executor
// rejections come back as tool errors the model can react to on the next
// cycle; side effects never happen for a rejected call.
func (a *Agent) executeToolCall(ctx context.Context, convo *statex.Conversation, call schema.ToolCall) *schema.Message {
	name := strings.TrimSpace(call.Function.Name)
	log.Info().Str("agent", string(a.agentType)).Str("tool", name).Str("args", truncate(call.Function.Arguments, 120)).Msg("tool call")

	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return toolMessage(call.ID, contractx.ToolResult{
				Tool:  name,
				Error: fmt.Sprintf("invalid tool arguments: %v", err),
			})
		}
	}

	res, err := a.executor(ctx, convo, name, args)
	if err != nil {
		res = contractx.ToolResult{Tool: name, Error: err.Error()}
	}
	if res.Error != "" {
		log.Info().Str("tool", name).Str("error", res.Error).Msg("tool result")
	} else {
		log.Info().Str("tool", name).Msg("tool result")
	}
	return toolMessage(call.ID, res)
}

func toolMessage(callID string, res contractx.ToolResult) *schema.Message {
	payload := map[string]any{}
	if res.Error != "" {
		payload["error"] = res.Error
	} else {
		payload["result"] = res.Result
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte(`{"error":"unencodable tool result"}`)
	}
	return &schema.Message{
		Role:       schema.Tool,
		Content:    string(raw),
		ToolCallID: callID,
	}
}

// fallback picks the reply shown when the model yields nothing usable. The
// emitted route wins when set; otherwise each role has a sensible default.
func (a *Agent) fallback(convo *statex.Conversation) string {
	route := convo.NextRoute
	if route == statex.RouteUnset {
		switch a.agentType {
		case contractx.AgentTypeRetention:
			route = statex.RouteRetention
		case contractx.AgentTypeProcessor:
			route = statex.RouteCancel
		}
	}
	return replyx.Fallback(route)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ contractx.Agent = (*Agent)(nil)
