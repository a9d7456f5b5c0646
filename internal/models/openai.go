package models

import (
	"context"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAIModel calls the OpenAI SDK directly. A base URL override makes
// it usable against any OpenAI-compatible endpoint.
type OpenAIModel struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIModel creates an OpenAI-backed model. baseURL may be empty.
func NewOpenAIModel(apiKey, modelName, baseURL string) *OpenAIModel {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIModel{
		client:      openai.NewClientWithConfig(config),
		model:       modelName,
		temperature: 0.0,
	}
}

func (m *OpenAIModel) Name() string { return m.model }

// Query implements Model.Query.
func (m *OpenAIModel) Query(ctx context.Context, messages []ChatMessage) (ChatMessage, Usage, error) {
	openaiMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		var role string
		switch msg.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleUser:
			role = openai.ChatMessageRoleUser
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		default:
			return ChatMessage{}, Usage{}, fmt.Errorf("unsupported message role: %s", msg.Role)
		}
		openaiMsgs = append(openaiMsgs, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    openaiMsgs,
		Temperature: &m.temperature,
	})
	if err != nil {
		return ChatMessage{}, Usage{}, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ChatMessage{}, Usage{}, fmt.Errorf("openai returned no choices")
	}

	usage := Usage{
		Prompt:     resp.Usage.PromptTokens,
		Completion: resp.Usage.CompletionTokens,
		Total:      resp.Usage.TotalTokens,
		Cost:       costOf(m.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}
	return ChatMessage{Role: RoleAssistant, Content: resp.Choices[0].Message.Content}, usage, nil
}
