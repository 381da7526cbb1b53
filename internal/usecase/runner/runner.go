package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scraper-agent/internal/application/port/output"
	"scraper-agent/internal/domain/entity"
	"scraper-agent/internal/infrastructure/prompts"
	"scraper-agent/internal/usecase/budget"
	"scraper-agent/internal/usecase/extract"
)

type Config struct {
	// RunID labels every log line and the result metadata. Generated
	// when empty.
	RunID string
	// IterationLimit caps dispatched tool calls. Enforced
	// unconditionally, whatever the oracle does.
	IterationLimit int
	Temperature    float32
	// CleanupTimeout bounds browser session release on exit. A release
	// that does not finish in time is abandoned with a warning.
	CleanupTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		IterationLimit: 50,
		Temperature:    0.1,
		CleanupTimeout: 2 * time.Second,
	}
}

// Runner owns the conversation state of one run and drives the
// turn-by-turn loop: ask the oracle for exactly one action, dispatch it,
// fold the budgeted result back, decide termination.
type Runner struct {
	oracle   output.OraclePort
	tools    output.ToolRegistry
	budget   *budget.Manager
	recorder *extract.Recorder
	browser  output.BrowserPort
	logger   output.LoggerPort
	cfg      Config

	state State
}

func New(
	oracle output.OraclePort,
	tools output.ToolRegistry,
	budgetMgr *budget.Manager,
	recorder *extract.Recorder,
	browser output.BrowserPort,
	logger output.LoggerPort,
	cfg Config,
) *Runner {
	if cfg.IterationLimit <= 0 {
		cfg.IterationLimit = DefaultConfig().IterationLimit
	}
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = DefaultConfig().CleanupTimeout
	}
	return &Runner{
		oracle:   oracle,
		tools:    tools,
		budget:   budgetMgr,
		recorder: recorder,
		browser:  browser,
		logger:   logger,
		cfg:      cfg,
		state:    StateStart,
	}
}

// Run executes one scraping run to a terminal state. A run that exhausts
// its budget or gets no completion signal ends with status incomplete,
// not an error; only oracle transport faults and canceled contexts
// return a Go error.
func (r *Runner) Run(ctx context.Context, cfg *entity.ScrapeConfig) (*entity.RunOutcome, error) {
	defer r.releaseSession()

	runID := r.cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := r.logger.WithField("run_id", runID)

	systemPrompt, err := prompts.ScraperSystemPrompt(cfg)
	if err != nil {
		return nil, fmt.Errorf("build system prompt: %w", err)
	}

	messages := []entity.Message{
		{Role: entity.RoleSystem, Content: systemPrompt},
		{Role: entity.RoleUser, Content: prompts.ScraperUserDirective(cfg)},
	}
	toolDefs := r.tools.Definitions()

	outcome := &entity.RunOutcome{Status: entity.RunIncomplete}
	r.transition(StateAwaitAction, logger)

	for iteration := 1; iteration <= r.cfg.IterationLimit; iteration++ {
		if err := ctx.Err(); err != nil {
			r.transition(StateAborted, logger)
			outcome.Status = entity.RunAborted
			return outcome, fmt.Errorf("run canceled: %w", err)
		}

		logger.Debug("Starting iteration", "iteration", iteration, "state", r.state.String())

		resp, err := r.oracle.Chat(ctx, output.ChatRequest{
			Messages:    messages,
			Tools:       toolDefs,
			Temperature: r.cfg.Temperature,
		})
		if err != nil {
			r.transition(StateAborted, logger)
			outcome.Status = entity.RunAborted
			outcome.Iterations = iteration - 1
			return outcome, fmt.Errorf("oracle request failed: %w", err)
		}

		messages = append(messages, resp.Message)

		calls := resp.Message.ToolCalls
		if len(calls) == 0 {
			// The oracle stopped acting: done without a result.
			logger.Info("Oracle finished without tool call", "iteration", iteration)
			r.transition(StateDone, logger)
			outcome.Iterations = iteration - 1
			outcome.Status = r.finalStatus()
			outcome.Result = r.recorder.Latest()
			return outcome, nil
		}

		call := calls[0]
		if len(calls) > 1 {
			note := fmt.Sprintf("protocol violation at iteration %d: oracle returned %d tool calls, executed only %q", iteration, len(calls), call.Name)
			logger.Warn("Protocol violation", "iteration", iteration, "calls", len(calls))
			outcome.Notes = append(outcome.Notes, note)

			// Dropped calls still get an answer so the transcript stays
			// consistent for the next oracle turn.
			for _, dropped := range calls[1:] {
				messages = append(messages, entity.Message{
					Role:       entity.RoleTool,
					ToolCallID: dropped.ID,
					Name:       dropped.Name,
					Content:    "Error: protocol violation: one tool call per turn; this call was not executed",
				})
			}
		}

		r.transition(StateExecuting, logger)
		result := r.tools.Dispatch(ctx, call)
		bounded := r.budget.Admit(entity.ToolName(call.Name), result)

		messages = append(messages, entity.Message{
			Role:       entity.RoleTool,
			ToolCallID: call.ID,
			Name:       call.Name,
			Content:    bounded.Payload,
		})

		if r.isCompletion(call, result) {
			logger.Info("Completion signaled", "tool", call.Name, "iteration", iteration)
			r.transition(StateDone, logger)
			outcome.Iterations = iteration
			outcome.Status = r.finalStatus()
			outcome.Result = r.recorder.Latest()
			return outcome, nil
		}

		r.transition(StateAwaitAction, logger)
	}

	logger.Warn("Iteration limit reached", "limit", r.cfg.IterationLimit)
	r.transition(StateAborted, logger)
	outcome.Iterations = r.cfg.IterationLimit
	outcome.Status = entity.RunIncomplete
	outcome.Result = r.recorder.Latest()
	return outcome, nil
}

// isCompletion recognizes the two completion signals: the explicit done
// tool, and a successful extraction that reported task_completed.
func (r *Runner) isCompletion(call entity.ToolCall, result entity.ToolResult) bool {
	switch entity.ToolName(call.Name) {
	case entity.ToolDone:
		return true
	case entity.ToolExtractData:
		if result.IsError() {
			return false
		}
		var payload struct {
			TaskCompleted bool `json:"task_completed"`
		}
		if err := json.Unmarshal([]byte(result.Payload), &payload); err != nil {
			return false
		}
		return payload.TaskCompleted
	default:
		return false
	}
}

// finalStatus maps DONE onto the outcome: success only when a result
// was actually produced and recorded.
func (r *Runner) finalStatus() entity.RunStatus {
	if r.recorder.Latest() != nil {
		return entity.RunSuccess
	}
	return entity.RunIncomplete
}

func (r *Runner) transition(to State, logger output.LoggerPort) {
	if r.state == to {
		return
	}
	if !r.state.canTransition(to) {
		logger.Error("Invalid state transition", "from", r.state.String(), "to", to.String())
	}
	logger.Debug("State transition", "from", r.state.String(), "to", to.String())
	r.state = to
}

// releaseSession closes the browser on every exit path, bounded by the
// cleanup timeout.
func (r *Runner) releaseSession() {
	if r.browser == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		if err := r.browser.Close(); err != nil {
			r.logger.Warn("Browser session close reported error", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		r.logger.Debug("Browser session released")
	case <-time.After(r.cfg.CleanupTimeout):
		r.logger.Warn("Browser session release timed out, abandoning", "timeout", r.cfg.CleanupTimeout.String())
	}
}
