package api

import "time"

// SessionResponse represents the response payload for session creation
type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	SessionID string    `json:"session_id"`
}

// VoiceResponse is one entry of the voice listing
type VoiceResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	Label    string `json:"label"`
}

// VoicesResponse represents the response payload for the voice listing
type VoicesResponse struct {
	Voices []VoiceResponse `json:"voices"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
