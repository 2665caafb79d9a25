package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/suara/adapters/stt"
	"github.com/satriahrh/suara/adapters/tts"
	"github.com/satriahrh/suara/internal/api"
	"github.com/satriahrh/suara/internal/auth"
	"github.com/satriahrh/suara/internal/config"
	"github.com/satriahrh/suara/internal/websocket"
	"github.com/satriahrh/suara/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize adapters
	capabilities, err := buildCapabilities(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize speech providers", zap.Error(err))
	}

	var issuer *auth.TokenIssuer
	if cfg.AuthSecret != "" {
		issuer, err = auth.NewTokenIssuer(cfg.AuthSecret, cfg.TokenTTL)
		if err != nil {
			logger.Fatal("Failed to initialize session tokens", zap.Error(err))
		}
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Every websocket client gets its own controller over these capabilities
	hub := websocket.NewHub(capabilities, logger)
	go hub.Run(ctx)

	api.InitRoutes(e, api.RouteConfig{
		Hub:          hub,
		Voices:       capabilities.Voices,
		Issuer:       issuer,
		AuthRequired: cfg.AuthRequired,
	}, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("sttProvider", cfg.STTProvider),
		zap.String("ttsProvider", cfg.TTSProvider),
		zap.Bool("authRequired", cfg.AuthRequired))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// buildCapabilities picks the recognizer, synthesizer and voice provider.
// A "none" provider leaves the capability nil, which the controller reports
// as unavailable.
func buildCapabilities(cfg *config.Config, logger *zap.Logger) (usecase.ControllerConfig, error) {
	capabilities := usecase.ControllerConfig{
		VoiceRefreshInterval: cfg.VoiceRefreshInterval,
		Audio:                cfg.Audio,
	}

	switch cfg.STTProvider {
	case config.ProviderGoogle:
		capabilities.Recognizer = stt.NewGoogleSpeechToText(logger)
	case config.ProviderMock:
		capabilities.Recognizer = stt.NewMockSpeechToText(logger)
	}

	switch cfg.TTSProvider {
	case config.ProviderElevenLabs:
		elevenLabs, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
		if err != nil {
			return capabilities, err
		}
		capabilities.Synthesizer = elevenLabs
		capabilities.Voices = elevenLabs
	case config.ProviderMock:
		capabilities.Synthesizer = tts.NewMockTextToSpeech(logger)
		capabilities.Voices = tts.NewMockVoiceProvider(logger, nil, cfg.MockVoiceLoadDelay)
	}

	return capabilities, nil
}
