package judge

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"chatlab/internal/chat"
	"chatlab/internal/pricing"
	"chatlab/internal/providers"
)

type scriptedProvider struct {
	reply string
	last  providers.ChatRequest
}

func (p *scriptedProvider) Complete(_ context.Context, req providers.ChatRequest) (providers.Completion, error) {
	p.last = req
	return providers.Completion{Text: p.reply, Model: req.Model, PromptTokens: 20, CompletionTokens: 10}, nil
}

func newOrchestrator(t *testing.T, p providers.Provider) *chat.Orchestrator {
	t.Helper()
	o, err := chat.New(chat.Config{
		Settings: providers.Settings{Kind: providers.KindOpenAICompat, APIKey: "key", Model: "gpt-4o"},
		Pricing: pricing.Price{
			Input:  decimal.RequireFromString("0.001"),
			Output: decimal.RequireFromString("0.002"),
		},
		Logger:  zerolog.Nop(),
		Factory: func(providers.Settings) (providers.Provider, error) { return p, nil },
	})
	if err != nil {
		t.Fatalf("create orchestrator: %v", err)
	}
	return o
}

func TestEvaluate(t *testing.T) {
	p := &scriptedProvider{reply: `{"score": 85, "reasoning": "ok"}`}
	j := New(newOrchestrator(t, p))

	ev, err := j.Evaluate(context.Background(), "what is 2+2?", "4")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if ev.Score != 85 || ev.Reasoning != "ok" {
		t.Fatalf("unexpected evaluation %+v", ev)
	}
	if !p.last.JSONOnly {
		t.Fatalf("judge must use the structured request mode")
	}
	if p.last.Messages[0].Role != providers.RoleSystem {
		t.Fatalf("expected a system rubric message, got %+v", p.last.Messages[0])
	}
}

func TestEvaluateBadReply(t *testing.T) {
	p := &scriptedProvider{reply: "I refuse to answer in JSON"}
	j := New(newOrchestrator(t, p))

	if _, err := j.Evaluate(context.Background(), "q", "a"); err == nil {
		t.Fatalf("expected a decode error")
	}
}
