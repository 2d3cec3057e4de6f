package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/models"
)

// summaryHistoryLimit caps how many trailing turns go into a session note.
const summaryHistoryLimit = 30

type GeminiService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	rateChan chan struct{} // Token bucket
}

func NewGeminiService(apiKey, modelName string, concurrentReqs int) (*GeminiService, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if concurrentReqs < 1 {
		concurrentReqs = 1
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.7)
	model.SetTopP(0.95)

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:   client,
		model:    model,
		rateChan: rateChan,
	}, nil
}

func (s *GeminiService) Close() {
	if s == nil {
		return
	}
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

func (s *GeminiService) generate(ctx context.Context, parts ...genai.Part) (string, error) {
	if s == nil {
		return "", ErrNotConfigured
	}
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	resp, err := s.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop && cand.FinishReason != genai.FinishReasonUnspecified {
			log.Printf("WARNING: Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// GetReply answers a user message, optionally tuned to their detected emotion.
func (s *GeminiService) GetReply(ctx context.Context, message string, emotion models.Emotion) (string, error) {
	return s.generate(ctx, genai.Text(buildReplyPrompt(message, emotion)))
}

// AnalyzeImage labels the dominant facial expression in a still frame.
// Answers outside the known label set yield models.EmotionNone.
func (s *GeminiService) AnalyzeImage(ctx context.Context, image []byte) (models.Emotion, error) {
	if len(image) == 0 {
		return models.EmotionNone, fmt.Errorf("image payload is empty")
	}

	mimeType := http.DetectContentType(image)
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}

	text, err := s.generate(ctx,
		genai.Blob{MIMEType: mimeType, Data: image},
		genai.Text(buildExpressionPrompt()),
	)
	if err != nil {
		return models.EmotionNone, err
	}

	emotion := models.ParseEmotion(text)
	if emotion == models.EmotionNone {
		log.Printf("Gemini returned unrecognised expression label %q", text)
	}
	return emotion, nil
}

// Summarize condenses a conversation into a short session note.
func (s *GeminiService) Summarize(ctx context.Context, messages []models.ChatMessage) (string, error) {
	return s.generate(ctx, genai.Text(buildSummaryPrompt(messages)))
}

// Transcribe turns a short voice recording into text.
func (s *GeminiService) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("audio payload is empty")
	}
	if mimeType == "" {
		mimeType = "audio/wav"
	}

	prompt := "Transcribe this audio to text. Return only the transcribed text without any additional formatting or commentary."
	return s.generate(ctx,
		genai.Blob{MIMEType: mimeType, Data: audio},
		genai.Text(prompt),
	)
}

// Helper functions

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

func buildReplyPrompt(message string, emotion models.Emotion) string {
	var b strings.Builder

	b.WriteString("You are Tessa, a caring, empathetic and knowledgeable AI therapist. A user is talking to you")
	if emotion != models.EmotionNone {
		b.WriteString(fmt.Sprintf(", and their current emotional state appears to be %q", string(emotion)))
	}
	b.WriteString(".\n")
	b.WriteString("Please provide a supportive, helpful, and concise response to their message. Keep your tone gentle and encouraging.\n")
	b.WriteString(fmt.Sprintf("User's message: %q", message))

	return b.String()
}

func buildExpressionPrompt() string {
	labels := make([]string, len(models.Emotions))
	for i, e := range models.Emotions {
		labels[i] = fmt.Sprintf("%q", string(e))
	}
	return "Analyze the facial expression in this image. Respond with ONLY one of the following words based on the dominant emotion: " +
		strings.Join(labels, ", ") + "."
}

func buildSummaryPrompt(messages []models.ChatMessage) string {
	if len(messages) > summaryHistoryLimit {
		messages = messages[len(messages)-summaryHistoryLimit:]
	}

	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		speaker := "Assistant"
		if m.Role == models.RoleUser {
			speaker = "User"
		}
		lines = append(lines, speaker+": "+m.Content)
	}

	var b strings.Builder
	b.WriteString("Summarize the following conversation in one or two concise sentences that could serve as a session note. ")
	b.WriteString("Keep it empathetic and avoid revealing personal details.\n\n")
	b.WriteString("Conversation:\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\nSummary:")
	return b.String()
}
