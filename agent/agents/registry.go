// Package agents assembles the three conversational roles into the registry
// the router consumes. Each role gets its own model binding, prompt, and
// tool allowlist; everything else is the shared runtime loop.
package agents

import (
	"context"
	"fmt"

	contractx "github.com/techflowhq/support-agent/agent/contract"
	llmx "github.com/techflowhq/support-agent/agent/llm"
	promptx "github.com/techflowhq/support-agent/agent/prompt"
	"github.com/techflowhq/support-agent/agent/runtime"
	toolx "github.com/techflowhq/support-agent/agent/tool"
)

type registry struct {
	greeter   contractx.Agent
	retention contractx.Agent
	processor contractx.Agent
}

func (r *registry) Greeter() contractx.Agent   { return r.greeter }
func (r *registry) Retention() contractx.Agent { return r.retention }
func (r *registry) Processor() contractx.Agent { return r.processor }

// NewRegistry builds the greeter, retention, and processor agents against
// one OpenRouter account. Per-role model overrides come from the llm config.
func NewRegistry(ctx context.Context, llmConf llmx.Config, deps toolx.Deps, opts ...runtime.Option) (contractx.Registry, error) {
	if err := llmConf.Validate(); err != nil {
		return nil, err
	}
	if err := deps.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()

	greeter, err := buildAgent(ctx, contractx.AgentTypeGreeter, llmConf, prompts.Greeter, deps, opts)
	if err != nil {
		return nil, err
	}
	retention, err := buildAgent(ctx, contractx.AgentTypeRetention, llmConf, prompts.Retention, deps, opts)
	if err != nil {
		return nil, err
	}
	processor, err := buildAgent(ctx, contractx.AgentTypeProcessor, llmConf, prompts.Processor, deps, opts)
	if err != nil {
		return nil, err
	}

	return &registry{
		greeter:   greeter,
		retention: retention,
		processor: processor,
	}, nil
}

func buildAgent(
	ctx context.Context,
	agentType contractx.AgentType,
	llmConf llmx.Config,
	systemPrompt string,
	deps toolx.Deps,
	opts []runtime.Option,
) (contractx.Agent, error) {
	chatModel, err := llmConf.OpenRouterFor(agentType).New(ctx)
	if err != nil {
		return nil, fmt.Errorf("build %s model: %w", agentType, err)
	}

	infos, exec := toolx.BuildForAgent(agentType, deps)
	agent, err := runtime.New(agentType, chatModel, systemPrompt, infos, exec, opts...)
	if err != nil {
		return nil, fmt.Errorf("build %s agent: %w", agentType, err)
	}
	return agent, nil
}
