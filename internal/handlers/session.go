package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/middleware"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/models"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/orchestrator"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/session"
)

type sessionStore interface {
	Create() *orchestrator.Session
	Get(id uuid.UUID) (*orchestrator.Session, error)
	MarkCameraReady(id uuid.UUID) error
	PushFrame(id uuid.UUID, frame []byte) error
}

type tokenIssuer interface {
	GenerateSessionToken(sessionID uuid.UUID) (string, error)
}

// SessionHandler drives server-side conversation sessions over REST.
type SessionHandler struct {
	sessions sessionStore
	tokens   tokenIssuer
	tokenTTL time.Duration
}

func NewSessionHandler(sessions sessionStore, tokens tokenIssuer, tokenTTL time.Duration) *SessionHandler {
	return &SessionHandler{sessions: sessions, tokens: tokens, tokenTTL: tokenTTL}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()

	token, err := h.tokens.GenerateSessionToken(s.ID)
	if err != nil {
		log.Printf("session %s: token generation failed: %v", s.ID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create session", r))
		return
	}

	writeJSON(w, http.StatusCreated, models.SessionResponse{
		SessionID: s.ID,
		Token:     token,
		ExpiresIn: int(h.tokenTTL.Seconds()),
	})
}

func (h *SessionHandler) Messages(w http.ResponseWriter, r *http.Request) {
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, conversationResp(s))
}

// Send runs one orchestrated turn and answers with the appended reply.
func (h *SessionHandler) Send(w http.ResponseWriter, r *http.Request) {
	s, ok := h.load(w, r)
	if !ok {
		return
	}

	var req models.SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	reply, err := s.SendMessage(r.Context(), req.Message)
	if err != nil {
		writeSendError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.SendMessageResponse{
		Reply:    reply,
		Messages: s.Conversation().Messages(),
	})
}

// CameraReady marks the session's capture source as available.
func (h *SessionHandler) CameraReady(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetSessionID(r.Context())
	if err := h.sessions.MarkCameraReady(id); err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) PushFrame(w http.ResponseWriter, r *http.Request) {
	var req models.FrameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	frame, err := DecodeImage(req.Image)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Image must be base64 encoded", r))
		return
	}

	id := middleware.GetSessionID(r.Context())
	if err := h.sessions.PushFrame(id, frame); err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := s.Reset(); err != nil {
		writeJSON(w, http.StatusConflict, errorResp("BUSY", "A message is still being processed", r))
		return
	}
	writeJSON(w, http.StatusOK, conversationResp(s))
}

func (h *SessionHandler) load(w http.ResponseWriter, r *http.Request) (*orchestrator.Session, bool) {
	s, err := h.sessions.Get(middleware.GetSessionID(r.Context()))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
		} else {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load session", r))
		}
		return nil, false
	}
	return s, true
}

func writeSendError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
	case errors.Is(err, orchestrator.ErrBusy):
		writeJSON(w, http.StatusConflict, errorResp("BUSY", "A message is already being processed", r))
	case errors.Is(err, orchestrator.ErrCaptureUnavailable):
		writeJSON(w, http.StatusConflict, errorResp("CAMERA_UNAVAILABLE", "Camera is not available", r))
	case errors.Is(err, orchestrator.ErrUpstreamReply):
		writeJSON(w, http.StatusBadGateway, errorResp("AI_ERROR", "Failed to get a response. Please try again.", r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Internal error", r))
	}
}

func conversationResp(s *orchestrator.Session) models.ConversationResponse {
	resp := models.ConversationResponse{
		SessionID: s.ID,
		Messages:  s.Conversation().Messages(),
	}
	if msg := s.LastError(); msg != "" {
		resp.Error = &msg
	}
	return resp
}
