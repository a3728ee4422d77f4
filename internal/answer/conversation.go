package answer

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hurttlocker/canvass/internal/llm"
)

// DefaultHistoryLimit is the number of turns a Conversation keeps.
const DefaultHistoryLimit = 10

// Turn is one answered question.
type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	At       time.Time `json:"at"`
}

// Conversation is caller-owned history for follow-up questions. It keeps the
// most recent turns only and is safe for concurrent use.
type Conversation struct {
	mu    sync.Mutex
	id    string
	limit int
	turns []Turn
}

// NewConversation creates an empty conversation keeping at most limit turns.
// limit <= 0 means DefaultHistoryLimit.
func NewConversation(limit int) *Conversation {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Conversation{id: uuid.NewString(), limit: limit}
}

// ID identifies the conversation.
func (c *Conversation) ID() string { return c.id }

// Append records a turn, dropping the oldest beyond the limit.
func (c *Conversation) Append(t Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, t)
	if over := len(c.turns) - c.limit; over > 0 {
		c.turns = append([]Turn(nil), c.turns[over:]...)
	}
}

// Turns returns a copy of the kept turns, oldest first.
func (c *Conversation) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Turn(nil), c.turns...)
}

// Len returns the number of kept turns.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// History renders the kept turns as alternating user and assistant messages.
func (c *Conversation) History() []llm.Message {
	turns := c.Turns()
	out := make([]llm.Message, 0, 2*len(turns))
	for _, t := range turns {
		out = append(out,
			llm.Message{Role: llm.RoleUser, Text: t.Question},
			llm.Message{Role: llm.RoleAssistant, Text: t.Answer},
		)
	}
	return out
}
