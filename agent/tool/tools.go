package tool

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/techflowhq/support-agent/agent/contract"
	replyx "github.com/techflowhq/support-agent/agent/reply"
	statex "github.com/techflowhq/support-agent/agent/state"
)

const maxSearchResultChars = 3000

func executeGetCustomerData(_ context.Context, deps Deps, convo *statex.Conversation, args map[string]any) contractx.ToolResult {
	raw, ok := stringArg(args, "email")
	if !ok || strings.TrimSpace(raw) == "" {
		return contractx.ToolResult{
			Tool:   ToolGetCustomerData,
			Result: contractx.LookupResult{Found: false, Message: "No email or customer_id provided."},
		}
	}

	// Models sometimes pass the whole user message; pull the identifier out.
	lookup := strings.TrimSpace(raw)
	if extracted := replyx.ExtractIdentifier(lookup); extracted != "" {
		lookup = extracted
	}
	if !strings.Contains(lookup, "@") && !strings.HasPrefix(strings.ToLower(lookup), "cust_") {
		return contractx.ToolResult{
			Tool: ToolGetCustomerData,
			Result: contractx.LookupResult{
				Found:   false,
				Message: "Invalid input: pass only an email (e.g. name@email.com) or customer_id (e.g. CUST_001). If the customer has not given one yet, ask them for it.",
			},
		}
	}

	profile, found := deps.Directory.Lookup(lookup)
	if !found {
		return contractx.ToolResult{
			Tool: ToolGetCustomerData,
			Result: contractx.LookupResult{
				Found:   false,
				Message: fmt.Sprintf("No customer found for %s. Ask the customer to double-check the email or customer id.", lookup),
			},
		}
	}

	if convo != nil {
		convo.SetCustomerData(profile)
	}
	return contractx.ToolResult{
		Tool: ToolGetCustomerData,
		Result: contractx.LookupResult{
			Found:      true,
			CustomerID: profile.CustomerID,
			Name:       profile.Name,
			Email:      profile.Email,
			Tier:       profile.Tier,
			PlanType:   profile.PlanType,
			Device:     profile.Device,
			Monthly:    profile.MonthlyCharge,
			Tenure:     profile.TenureMonths,
		},
	}
}

func executeCalculateRetention(_ context.Context, deps Deps, _ *statex.Conversation, args map[string]any) contractx.ToolResult {
	tier, tierOK := stringArg(args, "customer_tier")
	reason, reasonOK := stringArg(args, "reason")
	if !tierOK || !reasonOK {
		return contractx.ToolResult{
			Tool:  ToolCalculateRetention,
			Error: "customer_tier and reason are required",
		}
	}
	return contractx.ToolResult{
		Tool:   ToolCalculateRetention,
		Result: deps.Rules.Offers(tier, reason),
	}
}

func executeUpdateCustomerStatus(ctx context.Context, deps Deps, _ *statex.Conversation, args map[string]any) contractx.ToolResult {
	customerID, _ := stringArg(args, "customer_id")
	action, _ := stringArg(args, "action")
	customerID = strings.TrimSpace(customerID)
	action = strings.ToLower(strings.TrimSpace(action))
	if customerID == "" || action == "" {
		return contractx.ToolResult{
			Tool:   ToolUpdateCustomerStatus,
			Result: contractx.StatusResult{Success: false, Message: "customer_id and action are required."},
		}
	}

	err := deps.Status.Append(ctx, contractx.StatusEntry{CustomerID: customerID, Action: action})
	if err != nil {
		// A failed write stays a tool-level failure; the agent tells the
		// customer to contact support instead of claiming success.
		return contractx.ToolResult{
			Tool: ToolUpdateCustomerStatus,
			Result: contractx.StatusResult{
				Success: false,
				Message: fmt.Sprintf("Failed to record %s for %s: %v. Tell the customer the change may not be confirmed and to contact support.", action, customerID, err),
			},
		}
	}
	return contractx.ToolResult{
		Tool: ToolUpdateCustomerStatus,
		Result: contractx.StatusResult{
			Success: true,
			Message: fmt.Sprintf("Logged %s for %s.", action, customerID),
		},
	}
}

func executePolicySearch(ctx context.Context, deps Deps, _ *statex.Conversation, args map[string]any) contractx.ToolResult {
	query, ok := stringArg(args, "query")
	if !ok || strings.TrimSpace(query) == "" {
		return contractx.ToolResult{
			Tool:   ToolPolicySearch,
			Result: "No query provided.",
		}
	}

	snippets, err := deps.Retriever.Search(ctx, query)
	if err != nil {
		return contractx.ToolResult{
			Tool:   ToolPolicySearch,
			Result: "Policy search temporarily unavailable.",
		}
	}
	if len(snippets) == 0 {
		return contractx.ToolResult{
			Tool:   ToolPolicySearch,
			Result: "I don't have specific information on that in my policy docs. Suggest the customer contact support for details.",
		}
	}

	parts := make([]string, 0, len(snippets))
	for _, s := range snippets {
		parts = append(parts, s.Content)
	}
	joined := strings.Join(parts, "\n\n")
	if len(joined) > maxSearchResultChars {
		joined = joined[:maxSearchResultChars]
	}
	return contractx.ToolResult{
		Tool:   ToolPolicySearch,
		Result: joined,
	}
}

func executeSetRoute(_ context.Context, _ Deps, convo *statex.Conversation, args map[string]any) contractx.ToolResult {
	raw, ok := stringArg(args, "route")
	if !ok {
		return contractx.ToolResult{
			Tool:  ToolSetRoute,
			Error: "route is required",
		}
	}
	route, err := statex.ParseRoute(raw)
	if err != nil {
		return contractx.ToolResult{
			Tool:  ToolSetRoute,
			Error: err.Error(),
		}
	}
	if convo == nil {
		return contractx.ToolResult{
			Tool:  ToolSetRoute,
			Error: "no conversation to route",
		}
	}
	convo.SetRoute(route)
	return contractx.ToolResult{
		Tool:   ToolSetRoute,
		Result: fmt.Sprintf("Route set to: %s", route),
	}
}
