package output

import (
	"context"

	"scraper-agent/internal/domain/entity"
)

type ToolPort interface {
	Name() entity.ToolName
	Kind() entity.ToolKind
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, arguments string) (string, error)
}

// ToolRegistry is the uniform invocation surface over heterogeneous
// tools. Dispatch never fails the caller: every fault becomes an error
// ToolResult.
type ToolRegistry interface {
	Register(tool ToolPort) error
	Get(name entity.ToolName) (ToolPort, bool)
	All() []ToolPort
	Definitions() []entity.ToolDefinition
	Dispatch(ctx context.Context, call entity.ToolCall) entity.ToolResult
}
