package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"chatlab/internal/providers"
)

type fakeProvider struct {
	reply    string
	model    string
	err      error
	requests []providers.ChatRequest
}

func (f *fakeProvider) Complete(_ context.Context, req providers.ChatRequest) (providers.Completion, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return providers.Completion{}, f.err
	}
	model := f.model
	if model == "" {
		model = req.Model
	}
	return providers.Completion{
		Text:             f.reply,
		Model:            model,
		PromptTokens:     10,
		CompletionTokens: 5,
	}, nil
}

type countingFactory struct {
	builds   int
	provider *fakeProvider
}

func (c *countingFactory) build(s providers.Settings) (providers.Provider, error) {
	c.builds++
	return c.provider, nil
}

func newTestOrchestrator(t *testing.T, model string) (*Orchestrator, *fakeProvider, *countingFactory) {
	t.Helper()
	fake := &fakeProvider{reply: "pong"}
	factory := &countingFactory{provider: fake}
	o, err := New(Config{
		Settings: providers.Settings{
			Kind:   providers.KindOpenAICompat,
			APIKey: "test-key",
			Model:  model,
		},
		Temperature: 0.7,
		MaxTokens:   256,
		Pricing:     testPrice("0.001", "0.002"),
		Logger:      zerolog.Nop(),
		Factory:     factory.build,
	})
	if err != nil {
		t.Fatalf("create orchestrator: %v", err)
	}
	return o, fake, factory
}

func TestSendMessageAlternatingHistory(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, "gpt-4o")

	const n = 3
	for i := 0; i < n; i++ {
		reply, err := o.SendMessage(context.Background(), fmt.Sprintf("msg %d", i))
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		if reply != "pong" {
			t.Fatalf("unexpected reply %q", reply)
		}
	}

	h := o.History()
	if len(h) != 2*n {
		t.Fatalf("expected %d history entries, got %d", 2*n, len(h))
	}
	for i, m := range h {
		want := providers.RoleUser
		if i%2 == 1 {
			want = providers.RoleAssistant
		}
		if m.Role != want {
			t.Fatalf("entry %d: expected role %s, got %s", i, want, m.Role)
		}
	}
}

func TestSendMessageIncludesSystemAndHistory(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t, "gpt-4o")
	o.SetSystemPrompt("be brief")

	if _, err := o.SendMessage(context.Background(), "first"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := o.SendMessage(context.Background(), "second"); err != nil {
		t.Fatalf("send: %v", err)
	}

	req := fake.requests[1]
	if len(req.Messages) != 4 {
		t.Fatalf("expected system + 3 turns, got %d messages", len(req.Messages))
	}
	if req.Messages[0].Role != providers.RoleSystem || req.Messages[0].Content != "be brief" {
		t.Fatalf("unexpected system message %+v", req.Messages[0])
	}
	if req.Messages[3].Content != "second" {
		t.Fatalf("current user message not last: %+v", req.Messages)
	}
}

func TestSendMessageFailureKeepsUserTurn(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t, "gpt-4o")
	fake.err = errors.New("rate limited")

	_, err := o.SendMessage(context.Background(), "doomed")
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}

	h := o.History()
	if len(h) != 1 || h[0].Role != providers.RoleUser {
		t.Fatalf("expected the dangling user turn to survive, got %+v", h)
	}
	if o.Stats().Requests != 0 {
		t.Fatalf("failed request must not count as usage")
	}
}

func TestSendSingleMessageStateless(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t, "gpt-4o")

	reply, err := o.SendSingleMessage(context.Background(), "ping", "override prompt")
	if err != nil {
		t.Fatalf("send single: %v", err)
	}
	if reply != "pong" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if len(o.History()) != 0 {
		t.Fatalf("stateless mode must not touch history")
	}

	req := fake.requests[0]
	if len(req.Messages) != 2 {
		t.Fatalf("expected two-message request, got %d", len(req.Messages))
	}
	if req.Messages[0].Content != "override prompt" {
		t.Fatalf("system override not applied: %+v", req.Messages[0])
	}
}

func TestSwitchModelSameNameNoRebuild(t *testing.T) {
	o, _, factory := newTestOrchestrator(t, "gpt-4o")
	before := factory.builds

	if err := o.SwitchModel("gpt-4o"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if err := o.SwitchModel(""); err != nil {
		t.Fatalf("switch empty: %v", err)
	}
	if factory.builds != before {
		t.Fatalf("same-name switch must not rebuild the client, builds %d -> %d", before, factory.builds)
	}
}

func TestSwitchModelRebinds(t *testing.T) {
	o, _, factory := newTestOrchestrator(t, "gpt-4o")
	o.SetSystemPrompt("keep me")
	if _, err := o.SendMessage(context.Background(), "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	before := factory.builds

	if err := o.SwitchModel("gpt-4-turbo"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if factory.builds != before+1 {
		t.Fatalf("expected one rebuild, builds %d -> %d", before, factory.builds)
	}
	if o.Model() != "gpt-4-turbo" {
		t.Fatalf("model not updated: %q", o.Model())
	}
	if len(o.History()) != 2 || o.Stats().Requests != 1 {
		t.Fatalf("switch must not clear history or usage")
	}
	if o.SystemPrompt() != "keep me" {
		t.Fatalf("switch must not reset system prompt")
	}
}

func TestSendRawOmitsSamplingForReasoningModels(t *testing.T) {
	for _, model := range []string{"o1-preview", "GPT-5-2025-08-07", "o1"} {
		o, fake, _ := newTestOrchestrator(t, model)
		if _, err := o.SendRaw(context.Background(), "sys", "msg", ""); err != nil {
			t.Fatalf("%s: %v", model, err)
		}
		req := fake.requests[0]
		if req.Temperature != nil {
			t.Fatalf("%s: temperature must be omitted, got %v", model, *req.Temperature)
		}
		if req.MaxTokens != 0 {
			t.Fatalf("%s: max tokens must be omitted, got %d", model, req.MaxTokens)
		}
	}
}

func TestSendRawIncludesSamplingDefaults(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t, "gpt-4o")
	if _, err := o.SendRaw(context.Background(), "sys", "msg", ""); err != nil {
		t.Fatalf("send raw: %v", err)
	}
	req := fake.requests[0]
	if req.Temperature == nil || *req.Temperature != 0.7 {
		t.Fatalf("expected configured temperature, got %v", req.Temperature)
	}
	if req.MaxTokens != 256 {
		t.Fatalf("expected configured max tokens, got %d", req.MaxTokens)
	}
}

func TestSendRawTransientOverride(t *testing.T) {
	o, fake, factory := newTestOrchestrator(t, "gpt-4o")
	before := factory.builds

	if _, err := o.SendRaw(context.Background(), "sys", "msg", "gpt-4-turbo"); err != nil {
		t.Fatalf("send raw: %v", err)
	}
	if factory.builds != before+1 {
		t.Fatalf("expected a transient client build, builds %d -> %d", before, factory.builds)
	}
	if o.Model() != "gpt-4o" {
		t.Fatalf("override must not mutate the active binding, model %q", o.Model())
	}
	if fake.requests[0].Model != "gpt-4-turbo" {
		t.Fatalf("override model not used for the call: %q", fake.requests[0].Model)
	}

	// Same model in a different case reuses the active handle.
	if _, err := o.SendRaw(context.Background(), "sys", "msg", "GPT-4O"); err != nil {
		t.Fatalf("send raw: %v", err)
	}
	if factory.builds != before+1 {
		t.Fatalf("case-insensitive same model must not build a transient client")
	}
}

func TestSendStructuredDecodes(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t, "gpt-4o")
	fake.reply = `{"Score": 85, "REASONING": "ok"}`

	type verdict struct {
		Score     int    `json:"score"`
		Reasoning string `json:"reasoning"`
	}
	v, err := SendStructured[verdict](context.Background(), o, "grade this", "")
	if err != nil {
		t.Fatalf("send structured: %v", err)
	}
	if v.Score != 85 || v.Reasoning != "ok" {
		t.Fatalf("unexpected decode result %+v", v)
	}
	if !fake.requests[0].JSONOnly {
		t.Fatalf("structured mode must request JSON output")
	}
	if len(o.History()) != 0 {
		t.Fatalf("structured mode must not touch history")
	}
}

func TestSendStructuredBadReply(t *testing.T) {
	o, fake, _ := newTestOrchestrator(t, "gpt-4o")
	fake.reply = "not json"

	type verdict struct {
		Score int `json:"score"`
	}
	_, err := SendStructured[verdict](context.Background(), o, "grade this", "")
	if !errors.Is(err, ErrBadStructuredReply) {
		t.Fatalf("expected ErrBadStructuredReply, got %v", err)
	}
}

func TestResetClearsHistoryAndUsage(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, "gpt-4o")
	for i := 0; i < 4; i++ {
		if _, err := o.SendMessage(context.Background(), "hi"); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	o.Reset()

	if len(o.History()) != 0 {
		t.Fatalf("history not cleared")
	}
	st := o.Stats()
	if st.Requests != 0 || st.PromptTokens != 0 || !st.Cost.IsZero() || st.AvgLatency != 0 {
		t.Fatalf("usage not zeroed: %+v", st)
	}
}

func TestSendMessageConcurrentCallsSerialize(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, "gpt-4o")

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			if _, err := o.SendMessage(context.Background(), fmt.Sprintf("msg %d", i)); err != nil {
				t.Errorf("send %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	h := o.History()
	if len(h) != 2*n {
		t.Fatalf("expected %d history entries, got %d", 2*n, len(h))
	}
	for i, m := range h {
		want := providers.RoleUser
		if i%2 == 1 {
			want = providers.RoleAssistant
		}
		if m.Role != want {
			t.Fatalf("entry %d: interleaved turn, expected role %s, got %s", i, want, m.Role)
		}
	}
	if got := o.Stats().Requests; got != n {
		t.Fatalf("expected %d recorded requests, got %d", n, got)
	}
}

func TestUsageRecordedOnSuccess(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, "gpt-4o")
	if _, err := o.SendMessage(context.Background(), "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}

	st := o.Stats()
	if st.Requests != 1 || st.PromptTokens != 10 || st.CompletionTokens != 5 {
		t.Fatalf("unexpected usage snapshot %+v", st)
	}
	if st.LastModel != "gpt-4o" {
		t.Fatalf("unexpected last model %q", st.LastModel)
	}
}
