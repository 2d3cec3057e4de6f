package orchestrator

import "github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/models"

// State is the per-send progress of a Session.
type State string

const (
	StateIdle             State = "idle"
	StateCapturing        State = "capturing"
	StateAwaitingBaseline State = "awaiting_baseline"
	StateAwaitingBoth     State = "awaiting_both"
	StateEnriching        State = "enriching"
	StateError            State = "error"
)

// Observer receives progress notifications. Calls happen on the sending
// goroutine and must not block for long.
type Observer interface {
	StateChanged(State)
	MessageAppended(models.ChatMessage)
}
