// Package models wraps the provider SDKs behind a single completion
// interface the agent loop talks to.
package models

import (
	"context"
	"strings"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is the provider-agnostic message passed around.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Usage holds token accounting for one completion call. Cost is the
// estimated dollar cost derived from the price table.
type Usage struct {
	Prompt     int
	Completion int
	Total      int
	Cost       float64
}

// Model produces one assistant completion per Query call.
type Model interface {
	Query(ctx context.Context, messages []ChatMessage) (ChatMessage, Usage, error)
	Name() string
}

// pricing is dollars per million tokens, keyed by model name prefix.
type pricing struct {
	prompt     float64
	completion float64
}

var priceTable = map[string]pricing{
	"claude-sonnet": {3.0, 15.0},
	"claude-haiku":  {0.8, 4.0},
	"claude-opus":   {15.0, 75.0},
	"gpt-4o-mini":   {0.15, 0.6},
	"gpt-4o":        {2.5, 10.0},
	"deepseek-chat": {0.27, 1.1},
	"llama-3.1-70b": {0.59, 0.79},
}

// costOf estimates the dollar cost of a call. The longest matching
// prefix wins so "gpt-4o-mini" is not priced as "gpt-4o". Unknown
// models cost zero, which keeps cost limits inert rather than
// spuriously tripping.
func costOf(model string, prompt, completion int) float64 {
	var best string
	for prefix := range priceTable {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return 0
	}
	p := priceTable[best]
	return float64(prompt)/1e6*p.prompt + float64(completion)/1e6*p.completion
}
