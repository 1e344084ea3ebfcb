// Package llm talks to the story-generation language models: Gemini, OpenAI,
// OpenRouter, or any OpenAI-compatible endpoint, selected by model name
// prefix.
package llm

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/awender/fableforge/util"
)

const (
	OPENROUTER_API_URL             = "https://openrouter.ai/api/v1"
	OPENROUTER_MODEL_PREFIX        = "openrouter/" // OpenRouter model prefix
	OPENAI_MODEL_PREFIX            = "gpt-"        // OpenAI model prefix
	GEMINI_MODEL_PREFIX            = "gemini-"     // Gemini model prefix
	OPENAI_COMPATIBLE_MODEL_PREFIX = "openai/"     // Customary OpenAI API compatible model prefix
)

// error returned by online llm service provider
type ApiError struct {
	Message   string
	Body      string
	Status    int   // http status code
	Err       error // wrapped error
	Retryable bool  // business logic defined retryable
}

func (a *ApiError) Error() string {
	return fmt.Sprintf("status=%d: %s", a.Status, a.Message)
}

func (a *ApiError) Temporary() bool {
	return a.Retryable || a.Status == http.StatusTooManyRequests ||
		a.Status == http.StatusInternalServerError ||
		a.Status == http.StatusBadGateway ||
		a.Status == http.StatusServiceUnavailable ||
		a.Status == http.StatusGatewayTimeout ||
		(a.Err != nil && util.IsTemporaryError(a.Err))
}

func (a *ApiError) Unwrap() error {
	return a.Err
}

// ChatJsonResponse asks the model for a response conforming to the JSON
// schema of T. Dispatches on the model name prefix.
func ChatJsonResponse[T any](apiKey string, model string, prompt string) (*T, error) {
	if strings.HasPrefix(model, GEMINI_MODEL_PREFIX) {
		return GeminiJsonResponse[T](apiKey, model, prompt)
	} else if strings.HasPrefix(model, OPENAI_MODEL_PREFIX) {
		return OpenAIJsonResponse[T](OPENAI_API_URL, apiKey, model, prompt)
	} else if openrouterModel, ok := strings.CutPrefix(model, OPENROUTER_MODEL_PREFIX); ok {
		if !strings.ContainsRune(openrouterModel, '/') {
			openrouterModel = OPENROUTER_MODEL_PREFIX + openrouterModel
		}
		return OpenAIJsonResponse[T](OPENROUTER_API_URL, apiKey, openrouterModel, prompt)
	} else if strings.HasPrefix(model, OPENAI_COMPATIBLE_MODEL_PREFIX) { // "openai/model-name/http://localhost:8080/v1"
		parts := strings.SplitN(model, "/", 3)
		if len(parts) == 3 {
			return OpenAIJsonResponse[T](parts[2], apiKey, parts[1], prompt)
		}
		return nil, fmt.Errorf("invalid openai model %s", model)
	}
	return nil, fmt.Errorf("unsupported model %s", model)
}

// Chat is a plain one-shot text-in, text-out call.
func Chat(apiKey string, model string, prompt string) (string, error) {
	if strings.HasPrefix(model, GEMINI_MODEL_PREFIX) {
		return GeminiChat(apiKey, model, prompt)
	} else if strings.HasPrefix(model, OPENAI_MODEL_PREFIX) {
		return OpenAIChat(OPENAI_API_URL, apiKey, model, prompt)
	} else if openrouterModel, ok := strings.CutPrefix(model, OPENROUTER_MODEL_PREFIX); ok {
		if !strings.ContainsRune(openrouterModel, '/') {
			openrouterModel = OPENROUTER_MODEL_PREFIX + openrouterModel
		}
		return OpenAIChat(OPENROUTER_API_URL, apiKey, openrouterModel, prompt)
	} else if strings.HasPrefix(model, OPENAI_COMPATIBLE_MODEL_PREFIX) {
		parts := strings.SplitN(model, "/", 3)
		if len(parts) == 3 {
			return OpenAIChat(parts[2], apiKey, parts[1], prompt)
		}
		return "", fmt.Errorf("invalid openai model %s", model)
	}
	return "", fmt.Errorf("unsupported model %s", model)
}
