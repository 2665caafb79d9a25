package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/suara/adapters/tts"
	"github.com/satriahrh/suara/domain/entities"
	"github.com/satriahrh/suara/internal/auth"
	"github.com/satriahrh/suara/internal/websocket"
	"github.com/satriahrh/suara/usecase"
)

func setupTestEcho(t *testing.T, authRequired bool) (*echo.Echo, *auth.TokenIssuer) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	voices := tts.NewMockVoiceProvider(logger, []entities.Voice{
		{ID: "a", Name: "Rachel", Language: "en-US"},
		{ID: "b", Name: "Plain"},
	}, 0)

	hub := websocket.NewHub(usecase.ControllerConfig{
		Synthesizer: tts.NewMockTextToSpeech(logger),
		Voices:      voices,
	}, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})

	issuer, err := auth.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("Failed to create issuer: %v", err)
	}

	e := echo.New()
	InitRoutes(e, RouteConfig{
		Hub:          hub,
		Voices:       voices,
		Issuer:       issuer,
		AuthRequired: authRequired,
	}, logger)
	return e, issuer
}

func TestHealth(t *testing.T) {
	e, _ := setupTestEcho(t, false)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("Unexpected body %s", rec.Body.String())
	}
}

func TestListVoices(t *testing.T) {
	e, _ := setupTestEcho(t, false)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/voices", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var resp VoicesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Voices) != 2 {
		t.Fatalf("Expected 2 voices, got %d", len(resp.Voices))
	}
	if resp.Voices[0].Label != "Rachel (en-US)" || resp.Voices[1].Label != "Plain" {
		t.Errorf("Unexpected labels %+v", resp.Voices)
	}
}

func TestListVoices_NoProvider(t *testing.T) {
	e := echo.New()
	InitRoutes(e, RouteConfig{}, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/voices", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", rec.Code)
	}
}

func TestCreateSession(t *testing.T) {
	e, issuer := setupTestEcho(t, true)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/session", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var resp SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	claims, err := issuer.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("Issued token does not validate: %v", err)
	}
	if claims.SessionID != resp.SessionID {
		t.Errorf("Expected session %s in token, got %s", resp.SessionID, claims.SessionID)
	}
}

func TestCreateSession_AuthDisabled(t *testing.T) {
	e := echo.New()
	InitRoutes(e, RouteConfig{}, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/session", nil))

	if rec.Code != http.StatusNotImplemented {
		t.Errorf("Expected status 501, got %d", rec.Code)
	}
}

func TestWebSocket_Auth(t *testing.T) {
	e, issuer := setupTestEcho(t, true)
	server := httptest.NewServer(e)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	_, resp, err := gws.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Expected connection without token to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %v", resp)
	}

	_, resp, err = gws.DefaultDialer.Dial(url+"?token=bogus", nil)
	if err == nil {
		t.Fatal("Expected connection with an invalid token to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 with invalid token, got %v", resp)
	}

	token, _, err := issuer.GenerateSessionToken("session-1")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := gws.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Expected authenticated connection to succeed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first map[string]interface{}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("Failed to read first event: %v", err)
	}
	if first["type"] != "capture_state" {
		t.Errorf("Expected capture_state first, got %v", first["type"])
	}
}

func TestWebSocket_Anonymous(t *testing.T) {
	e, _ := setupTestEcho(t, false)
	server := httptest.NewServer(e)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Expected anonymous connection to succeed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first map[string]interface{}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("Failed to read first event: %v", err)
	}
	if first["type"] != "capture_state" {
		t.Errorf("Expected capture_state first, got %v", first["type"])
	}
}
