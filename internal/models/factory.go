package models

import (
	"fmt"
	"os"
)

// FromEnv creates a Model based on environment variables. LLM_PROVIDER
// selects the provider; each provider reads its own key/model/base-URL
// variables. Defaults to OpenAI when unset.
func FromEnv() (Model, error) {
	provider := os.Getenv("LLM_PROVIDER")
	if provider == "" {
		provider = "openai"
	}

	switch provider {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		modelName := getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini")
		return NewOpenAIModel(apiKey, modelName, os.Getenv("OPENAI_BASE_URL")), nil

	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		modelName := getEnvOrDefault("ANTHROPIC_MODEL", "claude-sonnet-4-20250514")
		return NewAnthropicModel(apiKey, modelName), nil

	case "deepseek":
		apiKey := os.Getenv("DEEPSEEK_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("DEEPSEEK_API_KEY not set")
		}
		modelName := getEnvOrDefault("DEEPSEEK_MODEL", "deepseek-chat")
		return NewOpenAIModel(apiKey, modelName, "https://api.deepseek.com/v1"), nil

	case "groq":
		apiKey := os.Getenv("GROQ_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY not set")
		}
		modelName := getEnvOrDefault("GROQ_MODEL", "llama-3.1-70b-versatile")
		return NewOpenAIModel(apiKey, modelName, "https://api.groq.com/openai/v1"), nil

	case "ollama":
		// Local server; the key is a placeholder.
		baseURL := getEnvOrDefault("OLLAMA_BASE_URL", "http://localhost:11434/v1")
		modelName := getEnvOrDefault("OLLAMA_MODEL", "llama3.1")
		apiKey := getEnvOrDefault("OLLAMA_API_KEY", "ollama")
		return NewOpenAIModel(apiKey, modelName, baseURL), nil

	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER: %s (supported: openai, anthropic, deepseek, groq, ollama)", provider)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}
