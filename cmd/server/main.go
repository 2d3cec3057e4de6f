package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/cache"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/config"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/database"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/handlers"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/middleware"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/orchestrator"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/router"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/services"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/session"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/websocket"
)

func main() {
	log.Println("🚀 Starting Tessa Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize Redis (optional) ────
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer client.Close()
		redisClient = client
		log.Println("✓ Redis connected")
	}

	// ──── Step 3: Initialize Cache ────
	var store cache.Store
	switch cfg.CacheBackend {
	case "redis":
		if redisClient == nil {
			log.Fatal("✗ CACHE_BACKEND=redis requires REDIS_URL")
		}
		store = cache.NewRedisStore(redisClient, "")
	default:
		store = cache.NewMemoryStore()
	}
	lookupCache := cache.New(store)
	log.Printf("✓ Cache initialized (%s)", cfg.CacheBackend)

	// ──── Step 4: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs)
	switch {
	case errors.Is(err, services.ErrNotConfigured):
		log.Println("✗ GEMINI_API_KEY not set; AI routes will answer 503")
	case err != nil:
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	default:
		defer geminiService.Close()
		log.Printf("✓ Gemini client initialized (%s)", cfg.GeminiModel)
	}

	// ──── Initialize Services ────
	locationService := services.NewLocationService(lookupCache, services.LocationTTLs{
		Geo:     cfg.GeoCacheTTL,
		IP:      cfg.IPCacheTTL,
		Weather: cfg.WeatherCacheTTL,
	})
	elevenLabs := services.NewElevenLabsService(cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID, cfg.ElevenLabsModelID)
	if !elevenLabs.Configured() {
		log.Println("✗ ELEVENLABS_API_KEY not set; voice routes will answer 503")
	}
	sessionAuth := middleware.NewSessionAuth(cfg.SessionSecret, cfg.SessionIdleTTL)

	// ──── Step 5: Start WebSocket Hub + Session Manager ────
	wsHub := websocket.NewHub(redisClient, sessionAuth, handlers.DecodeImage)

	sessionManager := session.NewManager(
		geminiService,
		geminiService,
		orchestrator.Config{
			CaptureAttempts:   cfg.CaptureAttempts,
			CaptureRetryDelay: cfg.CaptureRetryDelay,
		},
		cfg.FrameTTL,
		cfg.SessionIdleTTL,
		session.WithObserverFactory(wsHub.ObserverFor),
	)
	wsHub.SetSessions(sessionManager)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if err := sessionManager.Start(ctx, cfg.SessionSweepSchedule); err != nil {
		log.Fatalf("✗ Session manager failed to start: %v", err)
	}
	log.Printf("✓ Session manager started (sweep %s)", cfg.SessionSweepSchedule)

	// ──── Initialize Handlers ────
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMin, time.Minute)
	locationHandler := handlers.NewLocationHandler(locationService)
	chatHandler := handlers.NewChatHandler(geminiService)
	voiceHandler := handlers.NewVoiceHandler(elevenLabs)
	sessionHandler := handlers.NewSessionHandler(sessionManager, sessionAuth, cfg.SessionIdleTTL)
	frontend := handlers.NewFrontend(cfg.StaticDir, cfg.IndexFile)

	// ──── Step 6: Start HTTP Server ────
	r := router.New(
		sessionAuth,
		limiter,
		locationHandler,
		chatHandler,
		voiceHandler,
		sessionHandler,
		frontend,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		sessionManager.Stop()
		limiter.Stop()
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("✓ Tessa Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/session/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
