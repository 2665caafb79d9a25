package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/suara/domain/repositories"
	"github.com/satriahrh/suara/internal/auth"
	"github.com/satriahrh/suara/internal/websocket"
)

// RouteConfig holds the collaborators of the HTTP routes
type RouteConfig struct {
	Hub    *websocket.Hub
	Voices repositories.VoiceProvider
	// Issuer is nil when no auth secret is configured.
	Issuer *auth.TokenIssuer
	// AuthRequired rejects websocket connections without a valid session token.
	AuthRequired bool
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, config RouteConfig, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "suara-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.GET("/voices", func(c echo.Context) error {
		return listVoices(c, config.Voices, logger)
	})

	v1.POST("/session", func(c echo.Context) error {
		return createSession(c, config.Issuer, logger)
	})

	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(c, config, logger)
	})
}

func listVoices(c echo.Context, voices repositories.VoiceProvider, logger *zap.Logger) error {
	if voices == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "synthesis_unavailable",
			Message: "No voice provider is configured",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	list, err := voices.ListVoices(ctx)
	if err != nil {
		logger.Error("Failed to list voices", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "voices_unavailable",
			Message: "Failed to list voices",
		})
	}

	resp := VoicesResponse{Voices: make([]VoiceResponse, 0, len(list))}
	for _, v := range list {
		resp.Voices = append(resp.Voices, VoiceResponse{
			ID:       v.ID,
			Name:     v.Name,
			Language: v.Language,
			Label:    v.Label(),
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func createSession(c echo.Context, issuer *auth.TokenIssuer, logger *zap.Logger) error {
	if issuer == nil {
		return c.JSON(http.StatusNotImplemented, ErrorResponse{
			Error:   "auth_disabled",
			Message: "Session tokens are not enabled on this server",
		})
	}

	sessionID := uuid.NewString()
	token, expiresAt, err := issuer.GenerateSessionToken(sessionID)
	if err != nil {
		logger.Error("Failed to generate session token",
			zap.String("sessionID", sessionID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate session token",
		})
	}

	logger.Info("Session created", zap.String("sessionID", sessionID))

	return c.JSON(http.StatusOK, SessionResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		SessionID: sessionID,
	})
}

// websocketWithAuth handles WebSocket connections. Browsers cannot set headers
// on the upgrade request, so the token may also come as the token query parameter.
func websocketWithAuth(c echo.Context, config RouteConfig, logger *zap.Logger) error {
	token := bearerToken(c)

	if token == "" {
		if config.AuthRequired {
			logger.Warn("WebSocket connection rejected: missing token")
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "missing_token",
				Message: "Session token is required",
			})
		}
		return websocket.HandleWebSocket(config.Hub, c, logger)
	}

	if config.Issuer == nil {
		logger.Warn("WebSocket connection rejected: token given but auth is disabled")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "auth_disabled",
			Message: "Session tokens are not enabled on this server",
		})
	}

	claims, err := config.Issuer.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired session token",
		})
	}

	logger.Info("WebSocket connection authenticated", zap.String("sessionID", claims.SessionID))

	return websocket.HandleWebSocketWithAuth(config.Hub, c, claims.SessionID, logger)
}

func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok && token != "" {
		return token
	}
	return c.QueryParam("token")
}
