package runner

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"scraper-agent/internal/application/port/output"
	"scraper-agent/internal/domain/entity"
	"scraper-agent/internal/usecase/budget"
	"scraper-agent/internal/usecase/extract"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any) {}
func (nopLogger) Warn(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
func (l nopLogger) WithField(string, any) output.LoggerPort { return l }
func (nopLogger) Close() error { return nil }

// scriptedOracle replays canned responses and records every request it
// receives. Once the script runs out it keeps repeating the last entry.
type scriptedOracle struct {
	responses []*output.ChatResponse
	requests  []output.ChatRequest
	err       error
}

func (o *scriptedOracle) Chat(_ context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	o.requests = append(o.requests, req)
	if o.err != nil {
		return nil, o.err
	}
	idx := len(o.requests) - 1
	if idx >= len(o.responses) {
		idx = len(o.responses) - 1
	}
	return o.responses[idx], nil
}

// fakeRegistry records dispatched calls and answers from a result map.
type fakeRegistry struct {
	dispatched []entity.ToolCall
	results    map[string]entity.ToolResult
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{results: map[string]entity.ToolResult{}}
}

func (r *fakeRegistry) Register(output.ToolPort) error { return nil }
func (r *fakeRegistry) Get(entity.ToolName) (output.ToolPort, bool) { return nil, false }
func (r *fakeRegistry) All() []output.ToolPort { return nil }
func (r *fakeRegistry) Definitions() []entity.ToolDefinition { return nil }

func (r *fakeRegistry) Dispatch(_ context.Context, call entity.ToolCall) entity.ToolResult {
	r.dispatched = append(r.dispatched, call)
	if res, ok := r.results[call.Name]; ok {
		return res
	}
	return entity.OKResult("ok")
}

type fakeBrowser struct {
	closed     bool
	closeDelay time.Duration
}

func (b *fakeBrowser) Ensure(context.Context) error { return nil }
func (b *fakeBrowser) Navigate(context.Context, string, time.Duration) error { return nil }
func (b *fakeBrowser) Click(context.Context, string) error { return nil }
func (b *fakeBrowser) Fill(context.Context, string, string) error { return nil }
func (b *fakeBrowser) PageHTML(context.Context) (string, error) { return "", nil }
func (b *fakeBrowser) Links(context.Context, string) ([]output.Link, error) {
	return nil, nil
}
func (b *fakeBrowser) CaptureScreenshot(context.Context, bool) (*output.Screenshot, error) {
	return nil, nil
}
func (b *fakeBrowser) CurrentURL() string { return "" }
func (b *fakeBrowser) Close() error {
	if b.closeDelay > 0 {
		time.Sleep(b.closeDelay)
	}
	b.closed = true
	return nil
}

func toolCallResponse(name, args string) *output.ChatResponse {
	return &output.ChatResponse{
		Message: entity.Message{
			Role: entity.RoleAssistant,
			ToolCalls: []entity.ToolCall{
				{ID: "call-1", Name: name, Arguments: args},
			},
		},
	}
}

func testConfig() *entity.ScrapeConfig {
	return &entity.ScrapeConfig{
		URL: "https://x.test",
		Schema: entity.Schema{
			{Name: "title", Description: "title"},
		},
	}
}

func newTestRunner(oracle output.OraclePort, registry output.ToolRegistry, recorder *extract.Recorder, cfg Config) *Runner {
	mgr := budget.NewManager(budget.NewArtifactCache(), nopLogger{}, budget.DefaultConfig())
	return New(oracle, registry, mgr, recorder, nil, nopLogger{}, cfg)
}

func TestRun_IterationLimitEnforced(t *testing.T) {
	oracle := &scriptedOracle{responses: []*output.ChatResponse{
		toolCallResponse("navigate_web", `{"url":"https://x.test"}`),
	}}
	registry := newFakeRegistry()

	r := newTestRunner(oracle, registry, extract.NewRecorder(), Config{IterationLimit: 3})

	outcome, err := r.Run(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(registry.dispatched) != 3 {
		t.Errorf("Expected exactly 3 dispatched calls, got %d", len(registry.dispatched))
	}
	if outcome.Status != entity.RunIncomplete {
		t.Errorf("Expected status incomplete, got %s", outcome.Status)
	}
	if outcome.Iterations != 3 {
		t.Errorf("Expected 3 iterations, got %d", outcome.Iterations)
	}
}

func TestRun_DoneWithoutResultIsIncomplete(t *testing.T) {
	oracle := &scriptedOracle{responses: []*output.ChatResponse{
		toolCallResponse("done", `{"message":"nothing to do"}`),
	}}
	registry := newFakeRegistry()

	r := newTestRunner(oracle, registry, extract.NewRecorder(), Config{IterationLimit: 5})

	outcome, err := r.Run(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome.Status != entity.RunIncomplete {
		t.Errorf("Done without a recorded result should be incomplete, got %s", outcome.Status)
	}
	if outcome.Iterations != 1 {
		t.Errorf("Expected 1 iteration, got %d", outcome.Iterations)
	}
}

func TestRun_DoneWithResultIsSuccess(t *testing.T) {
	oracle := &scriptedOracle{responses: []*output.ChatResponse{
		toolCallResponse("done", `{}`),
	}}
	registry := newFakeRegistry()
	recorder := extract.NewRecorder()
	recorder.Record(extract.BuildResult(nil, testConfig().Schema, "items", "run-1"))

	r := newTestRunner(oracle, registry, recorder, Config{IterationLimit: 5})

	outcome, err := r.Run(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome.Status != entity.RunSuccess {
		t.Errorf("Expected status success, got %s", outcome.Status)
	}
	if outcome.Result == nil {
		t.Error("Expected the recorded result on the outcome")
	}
}

func TestRun_ExtractionCompletionSignal(t *testing.T) {
	oracle := &scriptedOracle{responses: []*output.ChatResponse{
		toolCallResponse("analyze_and_extract_data", `{"field_selectors":{"title":".name"}}`),
	}}
	registry := newFakeRegistry()
	registry.results["analyze_and_extract_data"] = entity.OKResult(`{"ok":true,"task_completed":true,"count":1}`)
	recorder := extract.NewRecorder()
	recorder.Record(extract.BuildResult(nil, testConfig().Schema, "items", "run-1"))

	r := newTestRunner(oracle, registry, recorder, Config{IterationLimit: 5})

	outcome, err := r.Run(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome.Status != entity.RunSuccess {
		t.Errorf("Expected success after task_completed extraction, got %s", outcome.Status)
	}
	if outcome.Iterations != 1 {
		t.Errorf("Expected completion on the first iteration, got %d", outcome.Iterations)
	}
}

func TestRun_FailedExtractionDoesNotComplete(t *testing.T) {
	oracle := &scriptedOracle{responses: []*output.ChatResponse{
		toolCallResponse("analyze_and_extract_data", `{}`),
	}}
	registry := newFakeRegistry()
	registry.results["analyze_and_extract_data"] = entity.ErrorResult("field_selectors parameter is required")

	r := newTestRunner(oracle, registry, extract.NewRecorder(), Config{IterationLimit: 2})

	outcome, err := r.Run(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome.Status != entity.RunIncomplete {
		t.Errorf("A failed extraction must not complete the run, got %s", outcome.Status)
	}
	if len(registry.dispatched) != 2 {
		t.Errorf("Expected the loop to continue to the limit, got %d dispatches", len(registry.dispatched))
	}
}

func TestRun_NoToolCallEndsRun(t *testing.T) {
	oracle := &scriptedOracle{responses: []*output.ChatResponse{
		{Message: entity.Message{Role: entity.RoleAssistant, Content: "All done, I think."}},
	}}
	registry := newFakeRegistry()

	r := newTestRunner(oracle, registry, extract.NewRecorder(), Config{IterationLimit: 5})

	outcome, err := r.Run(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(registry.dispatched) != 0 {
		t.Errorf("Expected no dispatches, got %d", len(registry.dispatched))
	}
	if outcome.Status != entity.RunIncomplete {
		t.Errorf("Expected incomplete, got %s", outcome.Status)
	}
	if outcome.Iterations != 0 {
		t.Errorf("Expected 0 completed iterations, got %d", outcome.Iterations)
	}
}

func TestRun_ProtocolViolationExecutesFirstOnly(t *testing.T) {
	oracle := &scriptedOracle{responses: []*output.ChatResponse{
		{
			Message: entity.Message{
				Role: entity.RoleAssistant,
				ToolCalls: []entity.ToolCall{
					{ID: "call-1", Name: "navigate_web", Arguments: `{"url":"https://x.test"}`},
					{ID: "call-2", Name: "get_html", Arguments: `{}`},
				},
			},
		},
		toolCallResponse("done", `{}`),
	}}
	registry := newFakeRegistry()

	r := newTestRunner(oracle, registry, extract.NewRecorder(), Config{IterationLimit: 5})

	outcome, err := r.Run(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(registry.dispatched) != 2 {
		t.Fatalf("Expected 2 dispatches (first call, then done), got %d", len(registry.dispatched))
	}
	if registry.dispatched[0].Name != "navigate_web" {
		t.Errorf("Expected the first call to be executed, got %s", registry.dispatched[0].Name)
	}

	if len(outcome.Notes) != 1 || !strings.Contains(outcome.Notes[0], "protocol violation") {
		t.Errorf("Expected a protocol violation note, got %v", outcome.Notes)
	}

	// The dropped call must still get an answer in the transcript.
	if len(oracle.requests) < 2 {
		t.Fatal("Expected a second oracle request")
	}
	var droppedAnswered bool
	for _, msg := range oracle.requests[1].Messages {
		if msg.Role == entity.RoleTool && msg.ToolCallID == "call-2" {
			droppedAnswered = true
			if !strings.Contains(msg.Content, "not executed") {
				t.Errorf("Expected a refusal for the dropped call, got %q", msg.Content)
			}
		}
	}
	if !droppedAnswered {
		t.Error("Dropped tool call never got a synthesized reply")
	}
}

func TestRun_OracleErrorAborts(t *testing.T) {
	oracle := &scriptedOracle{err: fmt.Errorf("upstream 503")}
	registry := newFakeRegistry()

	r := newTestRunner(oracle, registry, extract.NewRecorder(), Config{IterationLimit: 5})

	outcome, err := r.Run(context.Background(), testConfig())
	if err == nil {
		t.Fatal("Expected an error from an oracle transport failure")
	}
	if outcome.Status != entity.RunAborted {
		t.Errorf("Expected aborted, got %s", outcome.Status)
	}
}

func TestRun_CanceledContextAborts(t *testing.T) {
	oracle := &scriptedOracle{responses: []*output.ChatResponse{
		toolCallResponse("navigate_web", `{"url":"https://x.test"}`),
	}}
	registry := newFakeRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestRunner(oracle, registry, extract.NewRecorder(), Config{IterationLimit: 5})

	outcome, err := r.Run(ctx, testConfig())
	if err == nil {
		t.Fatal("Expected an error from a canceled context")
	}
	if outcome.Status != entity.RunAborted {
		t.Errorf("Expected aborted, got %s", outcome.Status)
	}
	if len(registry.dispatched) != 0 {
		t.Errorf("Expected no dispatches after cancellation, got %d", len(registry.dispatched))
	}
}

func TestRun_ReleasesBrowserSession(t *testing.T) {
	oracle := &scriptedOracle{responses: []*output.ChatResponse{
		toolCallResponse("done", `{}`),
	}}
	registry := newFakeRegistry()
	browser := &fakeBrowser{}

	mgr := budget.NewManager(budget.NewArtifactCache(), nopLogger{}, budget.DefaultConfig())
	r := New(oracle, registry, mgr, extract.NewRecorder(), browser, nopLogger{}, Config{IterationLimit: 5})

	if _, err := r.Run(context.Background(), testConfig()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !browser.closed {
		t.Error("Expected the browser session to be released on exit")
	}
}

func TestRun_SlowReleaseIsAbandoned(t *testing.T) {
	oracle := &scriptedOracle{responses: []*output.ChatResponse{
		toolCallResponse("done", `{}`),
	}}
	registry := newFakeRegistry()
	browser := &fakeBrowser{closeDelay: 500 * time.Millisecond}

	mgr := budget.NewManager(budget.NewArtifactCache(), nopLogger{}, budget.DefaultConfig())
	r := New(oracle, registry, mgr, extract.NewRecorder(), browser, nopLogger{}, Config{
		IterationLimit: 5,
		CleanupTimeout: 20 * time.Millisecond,
	})

	start := time.Now()
	if _, err := r.Run(context.Background(), testConfig()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Errorf("Expected the slow release to be abandoned, waited %v", elapsed)
	}
}

func TestStateTransitions(t *testing.T) {
	valid := []struct {
		from, to State
	}{
		{StateStart, StateAwaitAction},
		{StateAwaitAction, StateExecuting},
		{StateExecuting, StateAwaitAction},
		{StateExecuting, StateDone},
		{StateAwaitAction, StateAborted},
	}
	for _, tt := range valid {
		if !tt.from.canTransition(tt.to) {
			t.Errorf("Expected %s -> %s to be valid", tt.from, tt.to)
		}
	}

	invalid := []struct {
		from, to State
	}{
		{StateDone, StateAwaitAction},
		{StateAborted, StateExecuting},
		{StateStart, StateExecuting},
	}
	for _, tt := range invalid {
		if tt.from.canTransition(tt.to) {
			t.Errorf("Expected %s -> %s to be rejected", tt.from, tt.to)
		}
	}
}
