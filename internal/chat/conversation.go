package chat

import (
	"sync"
	"time"

	"chatlab/internal/providers"
)

const DefaultSystemPrompt = "You are a helpful assistant."

// Message is one role-tagged conversation entry. Entries are immutable
// once appended; the only other mutation the store supports is a full
// clear.
type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Conversation is the append-only message log plus the active system
// prompt. It imposes no windowing or trimming; history grows until
// cleared.
type Conversation struct {
	mu           sync.RWMutex
	systemPrompt string
	messages     []Message
}

func NewConversation() *Conversation {
	return &Conversation{systemPrompt: DefaultSystemPrompt}
}

func (c *Conversation) Append(role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, Message{Role: role, Content: content, At: time.Now().UTC()})
}

func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}

// History returns a copy of the message log in conversation order.
func (c *Conversation) History() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

func (c *Conversation) SystemPrompt() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.systemPrompt
}

func (c *Conversation) SetSystemPrompt(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.systemPrompt = text
}

// requestMessages assembles the wire message list: the system prompt
// followed by every stored user or assistant message in order. Any other
// role is skipped on purpose.
func (c *Conversation) requestMessages() []providers.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msgs := make([]providers.Message, 0, len(c.messages)+1)
	msgs = append(msgs, providers.Message{Role: providers.RoleSystem, Content: c.systemPrompt})
	for _, m := range c.messages {
		if m.Role != providers.RoleUser && m.Role != providers.RoleAssistant {
			continue
		}
		msgs = append(msgs, providers.Message{Role: m.Role, Content: m.Content})
	}
	return msgs
}
