package openrouter

import (
	"testing"

	"github.com/sashabaranov/go-openai"

	"scraper-agent/internal/domain/entity"
)

func TestConvertMessages(t *testing.T) {
	messages := []entity.Message{
		{Role: entity.RoleSystem, Content: "You are a scraper."},
		{
			Role: entity.RoleAssistant,
			ToolCalls: []entity.ToolCall{
				{ID: "call-1", Name: "navigate_web", Arguments: `{"url":"https://x.test"}`},
			},
		},
		{Role: entity.RoleTool, ToolCallID: "call-1", Name: "navigate_web", Content: "Successfully navigated"},
	}

	converted := convertMessages(messages)
	if len(converted) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(converted))
	}

	if converted[0].Role != "system" || converted[0].Content != "You are a scraper." {
		t.Errorf("Unexpected system message: %+v", converted[0])
	}

	if len(converted[1].ToolCalls) != 1 {
		t.Fatalf("Expected 1 tool call, got %d", len(converted[1].ToolCalls))
	}
	tc := converted[1].ToolCalls[0]
	if tc.ID != "call-1" || tc.Function.Name != "navigate_web" {
		t.Errorf("Unexpected tool call: %+v", tc)
	}

	if converted[2].ToolCallID != "call-1" || converted[2].Name != "navigate_web" {
		t.Errorf("Tool reply must reference its call: %+v", converted[2])
	}
}

func TestConvertTools(t *testing.T) {
	tools := []entity.ToolDefinition{
		{
			Name:        "done",
			Description: "Call this when scraping is complete",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}

	converted := convertTools(tools)
	if len(converted) != 1 {
		t.Fatalf("Expected 1 tool, got %d", len(converted))
	}
	if converted[0].Type != openai.ToolTypeFunction {
		t.Errorf("Expected a function tool, got %s", converted[0].Type)
	}
	if converted[0].Function.Name != "done" {
		t.Errorf("Unexpected function name: %s", converted[0].Function.Name)
	}
}

func TestConvertResponseMessage(t *testing.T) {
	msg := openai.ChatCompletionMessage{
		Role:    "assistant",
		Content: "Navigating now.",
		ToolCalls: []openai.ToolCall{
			{
				ID:   "call-9",
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      "get_html",
					Arguments: "{}",
				},
			},
		},
	}

	converted := convertResponseMessage(msg)
	if converted.Role != entity.RoleAssistant {
		t.Errorf("Expected assistant role, got %s", converted.Role)
	}
	if len(converted.ToolCalls) != 1 {
		t.Fatalf("Expected 1 tool call, got %d", len(converted.ToolCalls))
	}
	if converted.ToolCalls[0].Name != "get_html" || converted.ToolCalls[0].ID != "call-9" {
		t.Errorf("Unexpected tool call: %+v", converted.ToolCalls[0])
	}
}
