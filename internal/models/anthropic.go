package models

import (
	"context"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// AnthropicModel calls the Anthropic SDK directly.
type AnthropicModel struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewAnthropicModel creates an Anthropic-backed model.
func NewAnthropicModel(apiKey, modelName string) *AnthropicModel {
	return &AnthropicModel{
		client:      anthropic.NewClient(apiKey),
		model:       modelName,
		maxTokens:   4096,
		temperature: 0.0,
	}
}

func (m *AnthropicModel) Name() string { return m.model }

// Query implements Model.Query.
func (m *AnthropicModel) Query(ctx context.Context, messages []ChatMessage) (ChatMessage, Usage, error) {
	var systemParts []anthropic.MessageSystemPart
	var anthropicMsgs []anthropic.Message

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, anthropic.MessageSystemPart{
				Type: "text",
				Text: msg.Content,
			})
		case RoleUser:
			anthropicMsgs = append(anthropicMsgs, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)},
			})
		case RoleAssistant:
			anthropicMsgs = append(anthropicMsgs, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)},
			})
		}
	}

	temperature := m.temperature
	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(m.model),
		Messages:    anthropicMsgs,
		MaxTokens:   m.maxTokens,
		Temperature: &temperature,
	}
	if len(systemParts) > 0 {
		req.MultiSystem = systemParts
	}

	resp, err := m.client.CreateMessages(ctx, req)
	if err != nil {
		return ChatMessage{}, Usage{}, fmt.Errorf("anthropic completion failed: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text += *block.Text
		}
	}

	usage := Usage{
		Prompt:     resp.Usage.InputTokens,
		Completion: resp.Usage.OutputTokens,
		Total:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		Cost:       costOf(m.model, resp.Usage.InputTokens, resp.Usage.OutputTokens),
	}
	return ChatMessage{Role: RoleAssistant, Content: text}, usage, nil
}
