package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestElevenLabs_NotConfigured(t *testing.T) {
	s := NewElevenLabsService("", "voice", "model")

	if _, err := s.ListVoices(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, _, err := s.Synthesize(context.Background(), "hi", ""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestElevenLabs_ListVoicesPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voices" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "secret" {
			t.Errorf("expected api key header")
		}
		w.Write([]byte(`{"voices":[{"voice_id":"abc","name":"Rachel"}]}`))
	}))
	defer srv.Close()

	s := NewElevenLabsService("secret", "voice", "model").WithBaseURL(srv.URL)
	raw, err := s.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices returned error: %v", err)
	}

	var doc struct {
		Voices []struct {
			VoiceID string `json:"voice_id"`
		} `json:"voices"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal voices: %v", err)
	}
	if len(doc.Voices) != 1 || doc.Voices[0].VoiceID != "abc" {
		t.Fatalf("unexpected voices %+v", doc)
	}
}

func TestElevenLabs_UpstreamErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid key"}`))
	}))
	defer srv.Close()

	s := NewElevenLabsService("bad", "voice", "model").WithBaseURL(srv.URL)
	_, err := s.ListVoices(context.Background())

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Status != http.StatusUnauthorized || upstream.Body != `{"detail":"invalid key"}` {
		t.Fatalf("unexpected upstream error %+v", upstream)
	}
}

func TestElevenLabs_SynthesizeUsesDefaultVoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech/default-voice" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]string
		json.Unmarshal(body, &req)
		if req["text"] != "hello" || req["model_id"] != "eleven_multilingual_v2" {
			t.Errorf("unexpected body %s", body)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	s := NewElevenLabsService("secret", "default-voice", "eleven_multilingual_v2").WithBaseURL(srv.URL)
	audio, contentType, err := s.Synthesize(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if string(audio) != "ID3audio" || contentType != "audio/mpeg" {
		t.Fatalf("unexpected audio %q (%s)", audio, contentType)
	}
}
