// Package server exposes the conversation core over a small JSON HTTP
// API. It holds no logic of its own: every handler delegates to the
// orchestrator or one of its helper callers.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"chatlab/internal/chat"
	"chatlab/internal/judge"
	"chatlab/internal/promptgen"
	"chatlab/internal/providers/registry"
)

type Deps struct {
	Orchestrator *chat.Orchestrator
	Generator    *promptgen.Generator
	Judge        *judge.Judge
	Logger       zerolog.Logger
	HealthPath   string
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(recoverer(deps.Logger))
	r.Use(requestLog(deps.Logger))

	health := deps.HealthPath
	if health == "" {
		health = "/healthz"
	}
	r.Get(health, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s := &handlers{deps: deps}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat", s.chat)
		r.Post("/chat/single", s.chatSingle)
		r.Post("/chat/raw", s.chatRaw)
		r.Post("/evaluate", s.evaluate)
		r.Post("/prompts/generate", s.generatePrompt)
		r.Get("/history", s.history)
		r.Get("/stats", s.stats)
		r.Post("/reset", s.reset)
		r.Post("/model", s.switchModel)
		r.Get("/system-prompt", s.getSystemPrompt)
		r.Put("/system-prompt", s.setSystemPrompt)
	})

	return r
}

type handlers struct {
	deps Deps
}

func (s *handlers) orch() *chat.Orchestrator { return s.deps.Orchestrator }

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return false
	}
	return true
}

func (s *handlers) writeSendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrBadStructuredReply):
		writeError(w, http.StatusBadGateway, "bad_reply", err.Error())
	case errors.Is(err, registry.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, "invalid_config", err.Error())
	default:
		writeError(w, http.StatusBadGateway, "provider_error", err.Error())
	}
}

func (s *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "message is required")
		return
	}
	reply, err := s.orch().SendMessage(r.Context(), req.Message)
	if err != nil {
		s.writeSendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *handlers) chatSingle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message      string `json:"message"`
		SystemPrompt string `json:"system_prompt"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "message is required")
		return
	}
	reply, err := s.orch().SendSingleMessage(r.Context(), req.Message, req.SystemPrompt)
	if err != nil {
		s.writeSendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *handlers) chatRaw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SystemPrompt string `json:"system_prompt"`
		Message      string `json:"message"`
		Model        string `json:"model"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "message is required")
		return
	}
	reply, err := s.orch().SendRaw(r.Context(), req.SystemPrompt, req.Message, req.Model)
	if err != nil {
		s.writeSendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *handlers) evaluate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Question == "" || req.Answer == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "question and answer are required")
		return
	}
	ev, err := s.deps.Judge.Evaluate(r.Context(), req.Question, req.Answer)
	if err != nil {
		s.writeSendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *handlers) generatePrompt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Task string `json:"task"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Task == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "task is required")
		return
	}
	prompt, err := s.deps.Generator.Generate(r.Context(), req.Task)
	if err != nil {
		s.writeSendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"prompt": prompt})
}

func (s *handlers) history(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"messages": s.orch().History()})
}

func (s *handlers) stats(w http.ResponseWriter, _ *http.Request) {
	st := s.orch().Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"prompt_tokens":     st.PromptTokens,
		"completion_tokens": st.CompletionTokens,
		"cost_usd":          st.Cost.String(),
		"requests":          st.Requests,
		"avg_latency_ms":    st.AvgLatency.Milliseconds(),
		"last_model":        st.LastModel,
	})
}

func (s *handlers) reset(w http.ResponseWriter, _ *http.Request) {
	s.orch().Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *handlers) switchModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string `json:"model"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.orch().SwitchModel(req.Model); err != nil {
		s.writeSendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"model": s.orch().Model()})
}

func (s *handlers) getSystemPrompt(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"system_prompt": s.orch().SystemPrompt()})
}

func (s *handlers) setSystemPrompt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SystemPrompt string `json:"system_prompt"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.orch().SetSystemPrompt(req.SystemPrompt)
	w.WriteHeader(http.StatusNoContent)
}
