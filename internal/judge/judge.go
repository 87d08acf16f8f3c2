// Package judge scores an answer against a question with a structured
// (JSON-mode) request.
package judge

import (
	"context"
	"fmt"

	"chatlab/internal/chat"
)

const judgeSystemPrompt = `You are an impartial evaluator. Score how well the answer addresses the
question on a 0-100 scale, where 0 is unrelated or wrong and 100 is
complete and correct.

Reply with a JSON object of exactly this shape:
{"score": <integer 0-100>, "reasoning": "<one or two sentences>"}`

type Evaluation struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

type Judge struct {
	orch *chat.Orchestrator
}

func New(orch *chat.Orchestrator) *Judge {
	return &Judge{orch: orch}
}

func (j *Judge) Evaluate(ctx context.Context, question, answer string) (Evaluation, error) {
	user := fmt.Sprintf("Question:\n%s\n\nAnswer:\n%s", question, answer)
	return chat.SendStructured[Evaluation](ctx, j.orch, user, judgeSystemPrompt)
}
