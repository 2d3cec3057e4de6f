package handlers

import (
	"net/http"
	"time"
)

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Index lists the public endpoints.
func Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"endpoints": map[string]string{
			"health":     "/api/health",
			"location":   "/api/location?ip=<optional-ip>",
			"weather":    "/api/weather (defaults to request IP location), or /api/weather?city=<city> or ?lat=<lat>&lon=<lon>",
			"summarize":  "/api/summarize (POST)",
			"voices":     "/api/voices",
			"tts":        "/api/tts (POST)",
			"chat":       "/api/chat (POST)",
			"analyze":    "/api/analyze (POST)",
			"transcribe": "/api/transcribe (POST, multipart audio)",
			"session":    "/api/session (POST), then /api/session/messages, /api/session/frames, /api/session/reset, /api/session/ws",
		},
		"notes": "Location uses ip-api.com, weather uses Open-Meteo (no API key). Provide city or lat+lon for /api/weather. Chat, analysis, summaries and transcription use Gemini if configured. Voices and speech use ElevenLabs if configured.",
	})
}
