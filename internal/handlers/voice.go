package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/models"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/services"
)

const maxTTSChars = 5000

type voiceService interface {
	ListVoices(ctx context.Context) (json.RawMessage, error)
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, string, error)
}

type VoiceHandler struct {
	voices voiceService
}

func NewVoiceHandler(voices voiceService) *VoiceHandler {
	return &VoiceHandler{voices: voices}
}

func (h *VoiceHandler) Voices(w http.ResponseWriter, r *http.Request) {
	doc, err := h.voices.ListVoices(r.Context())
	if err != nil {
		h.writeVoiceError(w, r, err, "Voices fetch failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

// Speak renders text as MP3 audio.
func (h *VoiceHandler) Speak(w http.ResponseWriter, r *http.Request) {
	var req models.TTSRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Text is required", r))
		return
	}
	if len([]rune(req.Text)) > maxTTSChars {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Text exceeds 5000 characters", r))
		return
	}

	audio, contentType, err := h.voices.Synthesize(r.Context(), req.Text, req.VoiceID)
	if err != nil {
		h.writeVoiceError(w, r, err, "Speech synthesis failed")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}

func (h *VoiceHandler) writeVoiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if errors.Is(err, services.ErrNotConfigured) {
		writeJSON(w, http.StatusServiceUnavailable, errorResp("NOT_CONFIGURED", "ELEVENLABS_API_KEY not configured on server", r))
		return
	}

	log.Printf("elevenlabs: %s: %v", message, err)
	resp := errorResp("UPSTREAM_ERROR", message, r)
	var upstream *services.UpstreamError
	if errors.As(err, &upstream) {
		resp.Status = upstream.Status
		resp.Details = upstream.Body
	}
	writeJSON(w, http.StatusBadGateway, resp)
}
