// Package chat owns one conversation against a hosted completion API:
// its message history, its session usage counters and the bound provider
// client.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatlab/internal/metrics"
	"chatlab/internal/pricing"
	"chatlab/internal/providers"
	"chatlab/internal/providers/registry"
	"chatlab/internal/usagelog"
)

var (
	// ErrRequestFailed wraps any transport, auth or rate-limit error from
	// the remote API. It is logged once here and never retried.
	ErrRequestFailed = errors.New("completion request failed")

	// ErrBadStructuredReply means a JSON-mode reply did not decode into
	// the requested shape.
	ErrBadStructuredReply = errors.New("structured reply did not match requested shape")
)

// reasoningMarkers name the model families that reject temperature and
// max-token parameters. Matching is an ordered, case-insensitive
// substring scan, same policy as the pricing table.
var reasoningMarkers = []string{"o1", "gpt-5"}

func omitsSampling(model string) bool {
	name := strings.ToLower(model)
	for _, marker := range reasoningMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// Factory builds a provider client from settings. Injectable so tests can
// count or stub construction.
type Factory func(providers.Settings) (providers.Provider, error)

// Orchestrator coordinates one conversation: it owns the active client,
// the conversation log and the usage counters, and exposes the four
// request modes. A single mutex serializes every send operation end to
// end, so concurrent callers cannot interleave histories or lose usage
// updates.
type Orchestrator struct {
	mu sync.Mutex

	settings providers.Settings
	client   providers.Provider
	factory  Factory

	temperature float64
	maxTokens   int

	conv    *Conversation
	usage   *Usage
	journal *usagelog.Store
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

type Config struct {
	Settings    providers.Settings
	Temperature float64
	MaxTokens   int
	Pricing     pricing.Price
	Journal     *usagelog.Store
	Logger      zerolog.Logger
	Factory     Factory
}

func New(cfg Config) (*Orchestrator, error) {
	factory := cfg.Factory
	if factory == nil {
		factory = registry.Build
	}
	client, err := factory(cfg.Settings)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		settings:    cfg.Settings,
		client:      client,
		factory:     factory,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		conv:        NewConversation(),
		usage:       NewUsage(cfg.Pricing, cfg.Logger),
		journal:     cfg.Journal,
		logger:      cfg.Logger,
		metrics:     metrics.Global(),
	}, nil
}

// SwitchModel rebinds the active client to a new model or deployment.
// Empty or unchanged names are a no-op. History and usage are untouched.
func (o *Orchestrator) SwitchModel(name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if name == "" || name == o.settings.Model {
		return nil
	}
	s := o.settings
	s.Model = name
	client, err := o.factory(s)
	if err != nil {
		return err
	}
	o.settings = s
	o.client = client
	o.logger.Info().Str("model", name).Msg("switched model")
	return nil
}

func (o *Orchestrator) Model() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.settings.Model
}

func (o *Orchestrator) SystemPrompt() string        { return o.conv.SystemPrompt() }
func (o *Orchestrator) SetSystemPrompt(text string) { o.conv.SetSystemPrompt(text) }
func (o *Orchestrator) History() []Message          { return o.conv.History() }
func (o *Orchestrator) Stats() Snapshot             { return o.usage.Snapshot() }

// Reset starts a new conversation: it drops all history and zeroes the
// session counters as one logical action.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conv.Clear()
	o.usage.Reset()
	o.logger.Info().Msg("conversation reset")
}

// SendMessage is the stateful mode: the user message joins the history,
// the full conversation is sent, and the reply is appended on success.
// On failure the user message is kept; the history then carries a turn
// with no assistant reply and callers must tolerate that.
//
// Clients carry no sampling defaults of their own, so every send mode
// attaches the configured temperature and max-tokens explicitly — and
// omits them for reasoning-family models, which reject them.
func (o *Orchestrator) SendMessage(ctx context.Context, userText string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.conv.Append(providers.RoleUser, userText)
	comp, err := o.complete(ctx, o.client, providers.ChatRequest{
		Model:       o.settings.Model,
		Messages:    o.conv.requestMessages(),
		Temperature: o.samplingTemperature(o.settings.Model),
		MaxTokens:   o.samplingMaxTokens(o.settings.Model),
	})
	if err != nil {
		return "", err
	}
	o.conv.Append(providers.RoleAssistant, comp.Text)
	return comp.Text, nil
}

// SendSingleMessage is the stateless mode: a two-message request built
// from the system prompt (or the given override) and the user text.
// History is never touched.
func (o *Orchestrator) SendSingleMessage(ctx context.Context, userText, systemOverride string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	system := systemOverride
	if system == "" {
		system = o.conv.SystemPrompt()
	}
	comp, err := o.complete(ctx, o.client, providers.ChatRequest{
		Model: o.settings.Model,
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: system},
			{Role: providers.RoleUser, Content: userText},
		},
		Temperature: o.samplingTemperature(o.settings.Model),
		MaxTokens:   o.samplingMaxTokens(o.settings.Model),
	})
	if err != nil {
		return "", err
	}
	return comp.Text, nil
}

// SendRaw is the fully stateless dual-prompt mode used by background
// callers. A non-empty model override that differs from the bound model
// gets a transient client for this one call; the active binding is never
// mutated.
func (o *Orchestrator) SendRaw(ctx context.Context, systemPrompt, userText, modelOverride string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	target := o.settings.Model
	client := o.client
	if modelOverride != "" {
		target = modelOverride
		if !strings.EqualFold(modelOverride, o.settings.Model) {
			s := o.settings
			s.Model = modelOverride
			transient, err := o.factory(s)
			if err != nil {
				return "", err
			}
			client = transient
		}
	}

	comp, err := o.complete(ctx, client, providers.ChatRequest{
		Model: target,
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: systemPrompt},
			{Role: providers.RoleUser, Content: userText},
		},
		Temperature: o.samplingTemperature(target),
		MaxTokens:   o.samplingMaxTokens(target),
	})
	if err != nil {
		return "", err
	}
	return comp.Text, nil
}

// SendStructured is the stateless JSON mode: the reply is requested as a
// JSON object and decoded into T. Field names match case-insensitively
// and unknown fields are ignored. On a decode failure the raw reply is
// withheld; the contract is a typed value or an error.
func SendStructured[T any](ctx context.Context, o *Orchestrator, userText, systemOverride string) (T, error) {
	var zero T

	o.mu.Lock()
	defer o.mu.Unlock()

	system := systemOverride
	if system == "" {
		system = o.conv.SystemPrompt()
	}
	comp, err := o.complete(ctx, o.client, providers.ChatRequest{
		Model: o.settings.Model,
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: system},
			{Role: providers.RoleUser, Content: userText},
		},
		Temperature: o.samplingTemperature(o.settings.Model),
		MaxTokens:   o.samplingMaxTokens(o.settings.Model),
		JSONOnly:    true,
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal([]byte(comp.Text), &out); err != nil {
		o.logger.Error().Err(err).Str("model", comp.Model).Msg("structured reply decode failed")
		return zero, fmt.Errorf("%w: %w", ErrBadStructuredReply, err)
	}
	return out, nil
}

func (o *Orchestrator) samplingTemperature(model string) *float64 {
	if omitsSampling(model) {
		return nil
	}
	t := o.temperature
	return &t
}

func (o *Orchestrator) samplingMaxTokens(model string) int {
	if omitsSampling(model) {
		return 0
	}
	return o.maxTokens
}

// complete performs the single remote call of an operation, records usage
// on success and classifies the failure otherwise. Errors are logged here
// exactly once and returned to the caller undecorated beyond the wrap.
func (o *Orchestrator) complete(ctx context.Context, client providers.Provider, req providers.ChatRequest) (providers.Completion, error) {
	start := time.Now()
	comp, err := client.Complete(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		o.metrics.RequestFailures.Inc()
		o.logger.Error().Err(err).Str("model", req.Model).Msg("completion request failed")
		return providers.Completion{}, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	cost := o.usage.Record(comp.PromptTokens, comp.CompletionTokens, comp.Model, elapsed)
	if o.journal != nil {
		entry := usagelog.Entry{
			Model:            comp.Model,
			PromptTokens:     comp.PromptTokens,
			CompletionTokens: comp.CompletionTokens,
			CostUSD:          cost,
			Duration:         elapsed,
		}
		if err := o.journal.Insert(ctx, entry); err != nil {
			o.logger.Warn().Err(err).Msg("usage journal insert failed")
		}
	}
	return comp, nil
}
