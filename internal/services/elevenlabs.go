package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultElevenLabsURL = "https://api.elevenlabs.io/v1"

// ElevenLabsService proxies voice listing and speech synthesis so the API key
// never reaches the browser.
type ElevenLabsService struct {
	apiKey  string
	voiceID string
	modelID string
	baseURL string
	http    *http.Client
}

func NewElevenLabsService(apiKey, voiceID, modelID string) *ElevenLabsService {
	return &ElevenLabsService{
		apiKey:  apiKey,
		voiceID: voiceID,
		modelID: modelID,
		baseURL: defaultElevenLabsURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the service at a different API root.
func (s *ElevenLabsService) WithBaseURL(base string) *ElevenLabsService {
	s.baseURL = strings.TrimRight(base, "/")
	return s
}

func (s *ElevenLabsService) Configured() bool {
	return s != nil && s.apiKey != ""
}

// ListVoices returns the upstream voices document untouched.
func (s *ElevenLabsService) ListVoices(ctx context.Context) (json.RawMessage, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/voices", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Accept", "application/json")

	body, _, err := s.do(req)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("elevenlabs returned malformed voices document")
	}
	return json.RawMessage(body), nil
}

// Synthesize renders text as speech. An empty voiceID uses the configured default.
func (s *ElevenLabsService) Synthesize(ctx context.Context, text, voiceID string) ([]byte, string, error) {
	if !s.Configured() {
		return nil, "", ErrNotConfigured
	}
	if voiceID == "" {
		voiceID = s.voiceID
	}

	payload, err := json.Marshal(map[string]string{
		"text":     text,
		"model_id": s.modelID,
	})
	if err != nil {
		return nil, "", err
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=mp3_44100_128", s.baseURL, url.PathEscape(voiceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	audio, contentType, err := s.do(req)
	if err != nil {
		return nil, "", err
	}
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return audio, contentType, nil
}

func (s *ElevenLabsService) do(req *http.Request) ([]byte, string, error) {
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read elevenlabs response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &UpstreamError{Provider: "elevenlabs", Status: resp.StatusCode, Body: string(body)}
	}
	return body, resp.Header.Get("Content-Type"), nil
}
