package factory

import (
	"fmt"

	"ai-scribe-be/pkg/llm"
	"ai-scribe-be/pkg/llm/gemini"
	"ai-scribe-be/pkg/llm/huggingface"
	"ai-scribe-be/pkg/llm/ollama"
)

// NewLLMProvider resolves a reasoning-engine backend by explicit configuration.
// Provider selection is never inferred from the model name.
func NewLLMProvider(providerType, modelName, ollamaURL, geminiKey, hfKey, hfURL string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if ollamaURL == "" {
			ollamaURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(ollamaURL, modelName), nil
	case "gemini":
		if geminiKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key")
		}
		return gemini.NewGeminiProvider(geminiKey, modelName), nil
	case "huggingface":
		if hfKey == "" {
			return nil, fmt.Errorf("huggingface provider requires an API key")
		}
		return huggingface.NewHuggingFaceProvider(hfKey, hfURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
