package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"scraper-agent/internal/application/port/output"
	"scraper-agent/internal/domain/entity"
)

var _ output.ToolRegistry = (*ToolRegistryImpl)(nil)

// ToolRegistryImpl routes tool calls by name. Argument schemas are
// compiled once at registration; malformed schemas are a programming
// error and rejected immediately rather than at dispatch time.
type ToolRegistryImpl struct {
	tools   map[entity.ToolName]output.ToolPort
	order   []entity.ToolName
	schemas map[entity.ToolName]*jsonschema.Schema
	browser output.BrowserPort
	logger  output.LoggerPort
}

func NewToolRegistry(browser output.BrowserPort, logger output.LoggerPort) *ToolRegistryImpl {
	return &ToolRegistryImpl{
		tools:   make(map[entity.ToolName]output.ToolPort),
		schemas: make(map[entity.ToolName]*jsonschema.Schema),
		browser: browser,
		logger:  logger,
	}
}

func (r *ToolRegistryImpl) Register(tool output.ToolPort) error {
	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}

	sch, err := compileParameters(name, tool.Parameters())
	if err != nil {
		return fmt.Errorf("tool %q: invalid parameter schema: %w", name, err)
	}

	r.tools[name] = tool
	r.order = append(r.order, name)
	r.schemas[name] = sch
	return nil
}

func (r *ToolRegistryImpl) Get(name entity.ToolName) (output.ToolPort, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

func (r *ToolRegistryImpl) All() []output.ToolPort {
	result := make([]output.ToolPort, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.tools[name])
	}
	return result
}

func (r *ToolRegistryImpl) Definitions() []entity.ToolDefinition {
	result := make([]entity.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		result = append(result, entity.ToolDefinition{
			Name:        tool.Name().String(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}
	return result
}

// Dispatch executes one tool call. It never returns a Go error: unknown
// names, invalid arguments, session establishment failures, tool errors
// and panics all become error ToolResults for the oracle to adapt to.
func (r *ToolRegistryImpl) Dispatch(ctx context.Context, call entity.ToolCall) (result entity.ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Tool panicked", "name", call.Name, "panic", fmt.Sprint(rec))
			result = entity.ErrorResult(fmt.Sprintf("tool '%s' failed internally: %v", call.Name, rec))
		}
	}()

	tool, ok := r.tools[entity.ToolName(call.Name)]
	if !ok {
		r.logger.Warn("Unknown tool called", "name", call.Name)
		return entity.ErrorResult(fmt.Sprintf("unknown tool '%s'", call.Name))
	}

	if err := r.validateArguments(entity.ToolName(call.Name), call.Arguments); err != nil {
		r.logger.Warn("Tool arguments rejected", "name", call.Name, "error", err)
		return entity.ErrorResult(fmt.Sprintf("invalid arguments for '%s': %v", call.Name, err))
	}

	if tool.Kind() == entity.KindBrowser {
		if r.browser == nil {
			return entity.ErrorResult(fmt.Sprintf("tool '%s' requires a browser session", call.Name))
		}
		if err := r.browser.Ensure(ctx); err != nil {
			r.logger.Error("Browser session establishment failed", "name", call.Name, "error", err)
			return entity.ErrorResult(fmt.Sprintf("browser session unavailable: %v", err))
		}
	}

	r.logger.Info("Executing tool", "name", call.Name, "args", call.Arguments)

	out, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		r.logger.Error("Tool execution failed", "name", call.Name, "error", err)
		return entity.ErrorResult(err.Error())
	}

	r.logger.Debug("Tool completed", "name", call.Name, "resultLen", len(out))
	return entity.OKResult(out)
}

func (r *ToolRegistryImpl) validateArguments(name entity.ToolName, arguments string) error {
	sch, ok := r.schemas[name]
	if !ok || sch == nil {
		return nil
	}
	if arguments == "" {
		arguments = "{}"
	}

	var value interface{}
	if err := json.Unmarshal([]byte(arguments), &value); err != nil {
		return fmt.Errorf("not valid JSON: %w", err)
	}
	return sch.Validate(value)
}

func compileParameters(name entity.ToolName, params map[string]interface{}) (*jsonschema.Schema, error) {
	if params == nil {
		return nil, nil
	}

	// Round-trip so typed slices ([]string required lists etc.) become
	// the plain JSON values the compiler expects.
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	url := fmt.Sprintf("tool://%s/parameters.json", name)
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}
