package models

import "github.com/google/uuid"

// SessionResponse is returned when a conversation session is created.
type SessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresIn int       `json:"expires_in"`
}

type SendMessageRequest struct {
	Message string `json:"message"`
}

type FrameRequest struct {
	Image string `json:"image"`
}

// ConversationResponse carries the transcript plus the last error banner, if any.
type ConversationResponse struct {
	SessionID uuid.UUID     `json:"session_id"`
	Messages  []ChatMessage `json:"messages"`
	Error     *string       `json:"error"`
}

// WSMessage is the envelope used on the session WebSocket in both directions.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// StatusUpdate reports orchestrator progress for a session.
type StatusUpdate struct {
	SessionID uuid.UUID `json:"session_id"`
	State     string    `json:"state"`
}

// SendMessageResponse carries the appended model turn and the full transcript.
type SendMessageResponse struct {
	Reply    ChatMessage   `json:"reply"`
	Messages []ChatMessage `json:"messages"`
}
