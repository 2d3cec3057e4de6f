package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/handlers"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/middleware"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/websocket"
)

func New(
	sessionAuth *middleware.SessionAuth,
	limiter *middleware.RateLimiter,
	locationHandler *handlers.LocationHandler,
	chatHandler *handlers.ChatHandler,
	voiceHandler *handlers.VoiceHandler,
	sessionHandler *handlers.SessionHandler,
	frontend http.Handler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Peer)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	r.Route("/api", func(r chi.Router) {
		r.Get("/", handlers.Index)
		r.Get("/health", handlers.Health)

		// ──── Lookups (cached) ────
		r.Get("/location", locationHandler.Location)
		r.Get("/weather", locationHandler.Weather)

		// ──── Voice ────
		r.Get("/voices", voiceHandler.Voices)

		// ──── Upstream-costly routes ────
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)
			r.Use(chimiddleware.Timeout(90 * time.Second))
			r.Post("/chat", chatHandler.Chat)
			r.Post("/analyze", chatHandler.Analyze)
			r.Post("/summarize", chatHandler.Summarize)
			r.Post("/transcribe", chatHandler.Transcribe)
			r.Post("/tts", voiceHandler.Speak)
		})

		// ──── Conversation Sessions ────
		r.Route("/session", func(r chi.Router) {
			r.With(limiter.Middleware).Post("/", sessionHandler.Create)
			r.Get("/ws", wsHub.HandleWebSocket) // Token in query string

			r.Group(func(r chi.Router) {
				r.Use(sessionAuth.Middleware)
				r.Get("/messages", sessionHandler.Messages)
				r.With(limiter.Middleware).Post("/messages", sessionHandler.Send)
				r.Post("/camera", sessionHandler.CameraReady)
				r.Post("/frames", sessionHandler.PushFrame)
				r.Post("/reset", sessionHandler.Reset)
			})
		})
	})

	// Frontend + JSON 404s for anything unmatched
	r.NotFound(frontend.ServeHTTP)

	return r
}
