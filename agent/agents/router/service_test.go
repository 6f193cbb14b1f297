package router

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/techflowhq/support-agent/agent/contract"
	replyx "github.com/techflowhq/support-agent/agent/reply"
	statex "github.com/techflowhq/support-agent/agent/state"
)

type scriptedAgent struct {
	agentType contractx.AgentType
	runs      int
	behavior  func(convo *statex.Conversation)
	err       error
}

func (s *scriptedAgent) Type() contractx.AgentType { return s.agentType }

func (s *scriptedAgent) Run(ctx context.Context, convo *statex.Conversation) error {
	s.runs++
	if s.err != nil {
		return s.err
	}
	if s.behavior != nil {
		s.behavior(convo)
	}
	return nil
}

type fakeRegistry struct {
	greeter   *scriptedAgent
	retention *scriptedAgent
	processor *scriptedAgent
}

func (f *fakeRegistry) Greeter() contractx.Agent {
	if f.greeter == nil {
		return nil
	}
	return f.greeter
}

func (f *fakeRegistry) Retention() contractx.Agent {
	if f.retention == nil {
		return nil
	}
	return f.retention
}

func (f *fakeRegistry) Processor() contractx.Agent {
	if f.processor == nil {
		return nil
	}
	return f.processor
}

func speakAndRoute(text string, route statex.Route) func(*statex.Conversation) {
	return func(convo *statex.Conversation) {
		convo.AppendAssistant(text)
		convo.SetRoute(route)
	}
}

func newTestRouter(t *testing.T, reg *fakeRegistry) *Router {
	t.Helper()
	if reg.greeter == nil {
		reg.greeter = &scriptedAgent{agentType: contractx.AgentTypeGreeter}
	}
	if reg.retention == nil {
		reg.retention = &scriptedAgent{agentType: contractx.AgentTypeRetention}
	}
	if reg.processor == nil {
		reg.processor = &scriptedAgent{agentType: contractx.AgentTypeProcessor}
	}
	r, err := New(reg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestHandleTurnRetentionPath(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{
		greeter:   &scriptedAgent{agentType: contractx.AgentTypeGreeter, behavior: speakAndRoute("I understand, let me see what we can do.", statex.RouteRetention)},
		retention: &scriptedAgent{agentType: contractx.AgentTypeRetention, behavior: speakAndRoute("I can offer a 3-month payment pause.", statex.RouteEnd)},
	}
	r := newTestRouter(t, reg)

	convo := statex.NewConversation("s1")
	result, err := r.HandleTurn(context.Background(), convo, "can't afford care+ anymore, need to cancel")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Reply != "I can offer a 3-month payment pause." {
		t.Fatalf("reply = %q", result.Reply)
	}
	if reg.greeter.runs != 1 || reg.retention.runs != 1 || reg.processor.runs != 0 {
		t.Fatalf("runs greeter=%d retention=%d processor=%d", reg.greeter.runs, reg.retention.runs, reg.processor.runs)
	}
	if !result.Ended() {
		t.Fatal("expected session to end")
	}
}

func TestHandleTurnCancelGoesStraightToProcessor(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{
		greeter:   &scriptedAgent{agentType: contractx.AgentTypeGreeter, behavior: speakAndRoute("Understood.", statex.RouteCancel)},
		processor: &scriptedAgent{agentType: contractx.AgentTypeProcessor, behavior: speakAndRoute("Your plan has been canceled.", statex.RouteEnd)},
	}
	r := newTestRouter(t, reg)

	result, err := r.HandleTurn(context.Background(), statex.NewConversation("s1"), "just cancel it")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Reply != "Your plan has been canceled." {
		t.Fatalf("reply = %q", result.Reply)
	}
	if reg.retention.runs != 0 {
		t.Fatal("retention must not run on a direct cancel")
	}
	if reg.processor.runs != 1 {
		t.Fatalf("processor runs = %d", reg.processor.runs)
	}
}

func TestHandleTurnRetentionHandsOffToProcessor(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{
		greeter:   &scriptedAgent{agentType: contractx.AgentTypeGreeter, behavior: speakAndRoute("Let me check your options.", statex.RouteRetention)},
		retention: &scriptedAgent{agentType: contractx.AgentTypeRetention, behavior: speakAndRoute("I understand, canceling now.", statex.RouteCancel)},
		processor: &scriptedAgent{agentType: contractx.AgentTypeProcessor, behavior: speakAndRoute("Done, your plan is canceled.", statex.RouteEnd)},
	}
	r := newTestRouter(t, reg)

	result, err := r.HandleTurn(context.Background(), statex.NewConversation("s1"), "no, just cancel")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if reg.greeter.runs != 1 || reg.retention.runs != 1 || reg.processor.runs != 1 {
		t.Fatalf("runs greeter=%d retention=%d processor=%d", reg.greeter.runs, reg.retention.runs, reg.processor.runs)
	}
	if result.Reply != "Done, your plan is canceled." {
		t.Fatalf("reply = %q", result.Reply)
	}
}

func TestHandleTurnTechTerminatesAfterGreeter(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{
		greeter: &scriptedAgent{agentType: contractx.AgentTypeGreeter, behavior: speakAndRoute("Try a different cable first.", statex.RouteTech)},
	}
	r := newTestRouter(t, reg)

	result, err := r.HandleTurn(context.Background(), statex.NewConversation("s1"), "phone won't charge")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Route != statex.RouteTech {
		t.Fatalf("route = %q, want tech", result.Route)
	}
	if result.Ended() {
		t.Fatal("tech route must not close the session")
	}
	if reg.retention.runs != 0 || reg.processor.runs != 0 {
		t.Fatal("no specialist may run on a tech route")
	}
}

func TestHandleTurnBillingTerminatesAfterGreeter(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{
		greeter: &scriptedAgent{agentType: contractx.AgentTypeGreeter, behavior: speakAndRoute("I've flagged this for our billing team.", statex.RouteBilling)},
	}
	r := newTestRouter(t, reg)

	result, err := r.HandleTurn(context.Background(), statex.NewConversation("s1"), "charged $15.99 but plan is $12.99")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Route != statex.RouteBilling {
		t.Fatalf("route = %q, want billing", result.Route)
	}
	if reg.processor.runs != 0 {
		t.Fatal("billing must never reach the processor")
	}
}

func TestHandleTurnGreeterWithoutRouteEscalates(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{
		greeter: &scriptedAgent{agentType: contractx.AgentTypeGreeter, behavior: func(convo *statex.Conversation) {
			convo.AppendAssistant("Hello!")
		}},
	}
	r := newTestRouter(t, reg)

	result, err := r.HandleTurn(context.Background(), statex.NewConversation("s1"), "hello")
	if err != nil {
		t.Fatalf("escalation must not surface as an error: %v", err)
	}
	if result.Reply != replyx.Escalation() {
		t.Fatalf("reply = %q, want escalation text", result.Reply)
	}
	if !result.Ended() {
		t.Fatal("escalation must close the session")
	}
}

func TestHandleTurnRetentionIllegalRouteEscalates(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{
		greeter:   &scriptedAgent{agentType: contractx.AgentTypeGreeter, behavior: speakAndRoute("One moment.", statex.RouteRetention)},
		retention: &scriptedAgent{agentType: contractx.AgentTypeRetention, behavior: speakAndRoute("Rerouting you to billing.", statex.RouteBilling)},
	}
	r := newTestRouter(t, reg)

	result, err := r.HandleTurn(context.Background(), statex.NewConversation("s1"), "can't afford it")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Reply != replyx.Escalation() {
		t.Fatalf("reply = %q, want escalation text", result.Reply)
	}
	if reg.processor.runs != 0 {
		t.Fatal("processor must not run after an illegal retention route")
	}
}

func TestHandleTurnProcessorMissingEndIsForced(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{
		greeter:   &scriptedAgent{agentType: contractx.AgentTypeGreeter, behavior: speakAndRoute("On it.", statex.RouteCancel)},
		processor: &scriptedAgent{agentType: contractx.AgentTypeProcessor, behavior: func(convo *statex.Conversation) {
			convo.AppendAssistant("Canceled your plan.")
			// forgets set_route("end")
		}},
	}
	r := newTestRouter(t, reg)

	result, err := r.HandleTurn(context.Background(), statex.NewConversation("s1"), "cancel it")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if !result.Ended() {
		t.Fatalf("route = %q, processor turn must end the session", result.Route)
	}
	if result.Reply != "Canceled your plan." {
		t.Fatalf("reply = %q", result.Reply)
	}
}

func TestHandleTurnEmptyMessageRejected(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeRegistry{})
	_, err := r.HandleTurn(context.Background(), statex.NewConversation("s1"), "")
	if err == nil {
		t.Fatal("expected error for empty message")
	}
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestHandleTurnResetsStaleRoute(t *testing.T) {
	t.Parallel()

	var seen statex.Route = "sentinel"
	reg := &fakeRegistry{
		greeter: &scriptedAgent{agentType: contractx.AgentTypeGreeter, behavior: func(convo *statex.Conversation) {
			seen = convo.NextRoute
			convo.AppendAssistant("hi")
			convo.SetRoute(statex.RouteEnd)
		}},
	}
	r := newTestRouter(t, reg)

	convo := statex.NewConversation("s1")
	convo.SetRoute(statex.RouteCancel) // stale signal from a previous turn
	if _, err := r.HandleTurn(context.Background(), convo, "hello again"); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if seen != statex.RouteUnset {
		t.Fatalf("greeter observed stale route %q", seen)
	}
}

func TestHandleTurnAgentErrorPropagates(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{
		greeter: &scriptedAgent{agentType: contractx.AgentTypeGreeter, err: errors.New("wiring broken")},
	}
	r := newTestRouter(t, reg)

	_, err := r.HandleTurn(context.Background(), statex.NewConversation("s1"), "hello")
	if err == nil {
		t.Fatal("expected wiring error to propagate")
	}
}

func TestNewRejectsIncompleteRegistry(t *testing.T) {
	t.Parallel()

	_, err := New(&fakeRegistry{greeter: &scriptedAgent{agentType: contractx.AgentTypeGreeter}})
	if err == nil {
		t.Fatal("expected error for missing specialists")
	}
}

func TestHandleTurnCustomerDataSurvivesTurns(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{
		greeter: &scriptedAgent{agentType: contractx.AgentTypeGreeter, behavior: func(convo *statex.Conversation) {
			if convo.CustomerData == nil {
				convo.SetCustomerData(&statex.CustomerProfile{CustomerID: "CUST_001"})
			}
			convo.AppendAssistant("hi")
			convo.SetRoute(statex.RouteEnd)
		}},
	}
	r := newTestRouter(t, reg)

	convo := statex.NewConversation("s1")
	if _, err := r.HandleTurn(context.Background(), convo, "I'm CUST_001"); err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}
	if _, err := r.HandleTurn(context.Background(), convo, "still me"); err != nil {
		t.Fatalf("turn 2 error = %v", err)
	}
	if convo.CustomerData == nil || convo.CustomerData.CustomerID != "CUST_001" {
		t.Fatal("customer data must persist across turns")
	}
}
