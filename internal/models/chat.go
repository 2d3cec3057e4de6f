package models

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatMessage represents a single turn in a conversation.
type ChatMessage struct {
	Role    Role   `json:"role"` // "user" or "model"
	Content string `json:"content"`
}

// ChatRequest is the payload sent to the stateless chat endpoint.
type ChatRequest struct {
	Message string  `json:"message"`
	Emotion Emotion `json:"emotion,omitempty"`
}

// ChatResponse is the reply from the AI chat.
type ChatResponse struct {
	Reply string `json:"reply"`
}

type AnalyzeRequest struct {
	Image    string `json:"image"` // base64, optionally a data URL
	MIMEType string `json:"mime_type,omitempty"`
}

type AnalyzeResponse struct {
	Emotion *Emotion `json:"emotion"`
}

type SummarizeRequest struct {
	Messages []ChatMessage `json:"messages"`
}

type SummarizeResponse struct {
	Summary string `json:"summary"`
}

type TranscribeResponse struct {
	Text string `json:"text"`
}
