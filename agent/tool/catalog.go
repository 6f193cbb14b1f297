package tool

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/techflowhq/support-agent/agent/contract"
	statex "github.com/techflowhq/support-agent/agent/state"
)

// Tool names are the model-facing API; changing them breaks prompt text.
const (
	ToolGetCustomerData      = "get_customer_data"
	ToolCalculateRetention   = "calculate_retention_offer"
	ToolUpdateCustomerStatus = "update_customer_status"
	ToolPolicySearch         = "policy_search"
	ToolSetRoute             = "set_route"
)

// Deps are the read-only data handles plus the status sink the handlers
// operate on. Constructed once at startup and shared by every conversation.
type Deps struct {
	Directory contractx.Directory
	Rules     contractx.RuleTable
	Retriever contractx.Retriever
	Status    contractx.StatusSink
}

func (d Deps) Validate() error {
	if d.Directory == nil {
		return fmt.Errorf("%w: customer directory is required", contractx.ErrValidation)
	}
	if d.Rules == nil {
		return fmt.Errorf("%w: retention rule table is required", contractx.ErrValidation)
	}
	if d.Retriever == nil {
		return fmt.Errorf("%w: policy retriever is required", contractx.ErrValidation)
	}
	if d.Status == nil {
		return fmt.Errorf("%w: status sink is required", contractx.ErrValidation)
	}
	return nil
}

// Executor runs one named tool against a conversation. Invalid arguments and
// role violations come back as structured tool errors for the model to
// self-correct on; an error return is reserved for broken wiring.
type Executor func(ctx context.Context, convo *statex.Conversation, name string, args map[string]any) (contractx.ToolResult, error)

type handlerFunc func(ctx context.Context, deps Deps, convo *statex.Conversation, args map[string]any) contractx.ToolResult

type toolSpec struct {
	info    *schema.ToolInfo
	roles   map[contractx.AgentType]bool
	handler handlerFunc
}

// catalog is the closed set of operations a model may select by name.
// Role membership here is enforcement, not advice: an invocation from a role
// outside the set is rejected before the handler can run.
var catalog = map[string]toolSpec{
	ToolGetCustomerData: {
		info: &schema.ToolInfo{
			Name: ToolGetCustomerData,
			Desc: "Look up a customer profile by email (e.g. sarah.chen@email.com) or customer id (e.g. CUST_001). Returns found=false when no record matches.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"email": {Type: schema.String, Desc: "Customer email or customer id", Required: true},
			}),
		},
		roles: map[contractx.AgentType]bool{
			contractx.AgentTypeGreeter:   true,
			contractx.AgentTypeRetention: true,
		},
		handler: executeGetCustomerData,
	},
	ToolCalculateRetention: {
		info: &schema.ToolInfo{
			Name: ToolCalculateRetention,
			Desc: "Calculate retention offers for a customer. customer_tier is premium, regular, or new; reason describes why they want to cancel (financial_hardship, overheating, battery_issues, service_value).",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"customer_tier": {Type: schema.String, Desc: "premium, regular, or new", Required: true},
				"reason":        {Type: schema.String, Desc: "Cancellation reason", Required: true},
			}),
		},
		roles: map[contractx.AgentType]bool{
			contractx.AgentTypeRetention: true,
		},
		handler: executeCalculateRetention,
	},
	ToolUpdateCustomerStatus: {
		info: &schema.ToolInfo{
			Name: ToolUpdateCustomerStatus,
			Desc: "Record a confirmed status change for a customer. action is cancellation, pause, or downgrade.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"customer_id": {Type: schema.String, Desc: "Customer id, e.g. CUST_001", Required: true},
				"action":      {Type: schema.String, Desc: "cancellation, pause, or downgrade", Required: true},
			}),
		},
		roles: map[contractx.AgentType]bool{
			contractx.AgentTypeRetention: true,
			contractx.AgentTypeProcessor: true,
		},
		handler: executeUpdateCustomerStatus,
	},
	ToolPolicySearch: {
		info: &schema.ToolInfo{
			Name: ToolPolicySearch,
			Desc: "Search company policy documents (return policy, Care+ benefits, troubleshooting, billing). Use for accurate answers about refunds, coverage, or charges.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {Type: schema.String, Desc: "Search query", Required: true},
			}),
		},
		roles: map[contractx.AgentType]bool{
			contractx.AgentTypeGreeter:   true,
			contractx.AgentTypeRetention: true,
		},
		handler: executePolicySearch,
	},
	ToolSetRoute: {
		info: &schema.ToolInfo{
			Name: ToolSetRoute,
			Desc: "Set the next step in the conversation. Call with exactly one of: retention, cancel, tech, billing, end.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"route": {Type: schema.String, Desc: "retention, cancel, tech, billing, or end", Required: true},
			}),
		},
		roles: map[contractx.AgentType]bool{
			contractx.AgentTypeGreeter:   true,
			contractx.AgentTypeRetention: true,
			contractx.AgentTypeProcessor: true,
		},
		handler: executeSetRoute,
	},
}

// InfosForAgent returns the tool schema an agent role is allowed to expose to
// the model, in a stable order.
func InfosForAgent(agentType contractx.AgentType) []*schema.ToolInfo {
	ordered := []string{
		ToolGetCustomerData,
		ToolCalculateRetention,
		ToolPolicySearch,
		ToolUpdateCustomerStatus,
		ToolSetRoute,
	}
	var infos []*schema.ToolInfo
	for _, name := range ordered {
		spec := catalog[name]
		if spec.roles[agentType] {
			infos = append(infos, spec.info)
		}
	}
	return infos
}

// NewExecutor binds the catalog to one agent role. Unregistered names and
// role-mismatched invocations are rejected before execution, so their side
// effects can never occur.
func NewExecutor(agentType contractx.AgentType, deps Deps) Executor {
	return func(ctx context.Context, convo *statex.Conversation, name string, args map[string]any) (contractx.ToolResult, error) {
		spec, ok := catalog[name]
		if !ok {
			return contractx.ToolResult{
				Tool:  name,
				Error: fmt.Sprintf("unknown tool %q", name),
			}, nil
		}
		if !spec.roles[agentType] {
			return contractx.ToolResult{
				Tool:  name,
				Error: fmt.Sprintf("tool=%s is unavailable for agent=%s", name, agentType),
			}, nil
		}
		return spec.handler(ctx, deps, convo, args), nil
	}
}

// BuildForAgent pairs the role's tool schema with its executor.
func BuildForAgent(agentType contractx.AgentType, deps Deps) ([]*schema.ToolInfo, Executor) {
	return InfosForAgent(agentType), NewExecutor(agentType, deps)
}

func stringArg(args map[string]any, key string) (string, bool) {
	raw, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}
