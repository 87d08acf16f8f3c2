package providers

import (
	"context"
	"net/http"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type ChatRequest struct {
	Model    string
	Messages []Message

	// Temperature nil and MaxTokens zero mean the parameter is omitted
	// from the wire payload entirely.
	Temperature *float64
	MaxTokens   int

	// JSONOnly asks the API to constrain the reply to a JSON object.
	JSONOnly bool
}

type Completion struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

type Provider interface {
	Complete(ctx context.Context, req ChatRequest) (Completion, error)
}

type Kind string

const (
	KindAzureOpenAI  Kind = "azure_openai"
	KindOpenAICompat Kind = "openai_compat"
)

// Settings is the validated configuration a client is built from. One
// client is bound to exactly one model or deployment; switching models
// means building a new client.
type Settings struct {
	Kind       Kind
	Endpoint   string
	APIKey     string
	Model      string
	APIVersion string
	HTTPClient *http.Client
}
