package output

import (
	"context"

	"scraper-agent/internal/domain/entity"
)

// OraclePort is the external reasoning component. Given the full
// conversation and the tool catalog it returns the assistant message
// carrying the next action. Model choice, retries and streaming are the
// adapter's business.
type OraclePort interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type ChatRequest struct {
	Messages    []entity.Message
	Tools       []entity.ToolDefinition
	Temperature float32
}

type ChatResponse struct {
	Message entity.Message
}
