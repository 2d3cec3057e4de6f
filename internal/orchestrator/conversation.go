package orchestrator

import (
	"sync"

	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/models"
)

// Conversation is an append-only transcript. Insertion order is display order.
type Conversation struct {
	mu       sync.RWMutex
	messages []models.ChatMessage
}

func NewConversation() *Conversation {
	return &Conversation{messages: make([]models.ChatMessage, 0, 16)}
}

func (c *Conversation) Append(msg models.ChatMessage) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []models.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	copied := make([]models.ChatMessage, len(c.messages))
	copy(copied, c.messages)
	return copied
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

func (c *Conversation) Reset() {
	c.mu.Lock()
	c.messages = make([]models.ChatMessage, 0, 16)
	c.mu.Unlock()
}
