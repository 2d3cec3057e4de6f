package models

// ErrorResponse is the JSON error envelope used by every handler.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Status    int    `json:"status,omitempty"`
	Details   string `json:"details,omitempty"`
}
