package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/models"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/services"
)

const maxAudioUpload = 25 << 20

type assistant interface {
	GetReply(ctx context.Context, message string, emotion models.Emotion) (string, error)
	AnalyzeImage(ctx context.Context, image []byte) (models.Emotion, error)
	Summarize(ctx context.Context, messages []models.ChatMessage) (string, error)
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// ChatHandler exposes the stateless Gemini endpoints.
type ChatHandler struct {
	ai assistant
}

func NewChatHandler(ai assistant) *ChatHandler {
	return &ChatHandler{ai: ai}
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}

	emotion := models.ParseEmotion(string(req.Emotion))
	reply, err := h.ai.GetReply(r.Context(), req.Message, emotion)
	if err != nil {
		h.writeAIError(w, r, "chat", err, "Failed to get a response")
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Reply: reply})
}

func (h *ChatHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	img, err := DecodeImage(req.Image)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Image must be base64 encoded", r))
		return
	}

	emotion, err := h.ai.AnalyzeImage(r.Context(), img)
	if err != nil {
		h.writeAIError(w, r, "analyze", err, "Failed to analyze image")
		return
	}

	resp := models.AnalyzeResponse{}
	if emotion != models.EmotionNone {
		resp.Emotion = &emotion
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ChatHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req models.SummarizeRequest
	if err := decodeJSON(w, r, &req); err != nil || len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Provide `messages` array in the body", r))
		return
	}

	summary, err := h.ai.Summarize(r.Context(), req.Messages)
	if err != nil {
		h.writeAIError(w, r, "summarize", err, "Failed to generate summary")
		return
	}

	writeJSON(w, http.StatusOK, models.SummarizeResponse{Summary: summary})
}

// Transcribe accepts a multipart upload with an "audio" part.
func (h *ChatHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > maxAudioUpload {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "Audio exceeds 25MB limit", r))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUpload)

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No audio provided", r))
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil || len(audio) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Audio upload is empty", r))
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(audio)
	}

	text, err := h.ai.Transcribe(r.Context(), audio, mimeType)
	if err != nil {
		h.writeAIError(w, r, "transcribe", err, "Failed to transcribe audio")
		return
	}

	writeJSON(w, http.StatusOK, models.TranscribeResponse{Text: text})
}

func (h *ChatHandler) writeAIError(w http.ResponseWriter, r *http.Request, op string, err error, message string) {
	if errors.Is(err, services.ErrNotConfigured) {
		writeJSON(w, http.StatusServiceUnavailable, errorResp("NOT_CONFIGURED", "Gemini API key not configured on server", r))
		return
	}
	log.Printf("%s failed: %v", op, err)
	writeJSON(w, http.StatusBadGateway, errorResp("AI_ERROR", message, r))
}
