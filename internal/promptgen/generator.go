// Package promptgen turns a short task description into a full system
// prompt, using the raw stateless request mode so the active conversation
// is never touched.
package promptgen

import (
	"context"
	"strings"

	"chatlab/internal/chat"
)

const generatorSystemPrompt = `You are a prompt engineer. Given a task description, write a complete
system prompt for a large language model that will perform that task.

Requirements:
- State the role and objective in the first sentence.
- List concrete behavioural rules, including what to refuse.
- Specify the expected output format.
- Do not include placeholders the user must fill in.

Reply with the system prompt text only, no preamble and no commentary.`

type Generator struct {
	orch *chat.Orchestrator

	// Model optionally routes generation to a different model than the
	// active one; the orchestrator uses a transient client for it.
	Model string
}

func New(orch *chat.Orchestrator) *Generator {
	return &Generator{orch: orch}
}

func (g *Generator) Generate(ctx context.Context, task string) (string, error) {
	out, err := g.orch.SendRaw(ctx, generatorSystemPrompt, task, g.Model)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
