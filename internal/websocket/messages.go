package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/suara/domain/entities"
	"github.com/satriahrh/suara/usecase"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Client to server message types
const (
	MessageTypeListeningStart MessageType = "listening_start"
	MessageTypeListeningEnd   MessageType = "listening_end"
	MessageTypeSelectVoice    MessageType = "select_voice"
	MessageTypePing           MessageType = "ping"
)

// Server to client message types
const (
	MessageTypeCaptureState  MessageType = "capture_state"
	MessageTypeTranscript    MessageType = "transcript"
	MessageTypeMessage       MessageType = "message"
	MessageTypeVoices        MessageType = "voices"
	MessageTypeSpeakingStart MessageType = "speaking_start"
	MessageTypeSpeakingEnd   MessageType = "speaking_end"
	MessageTypePong          MessageType = "pong"
	MessageTypeError         MessageType = "error"
)

// Error codes sent with MessageTypeError
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeUnsupported    = "unsupported_message"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
	MessageID string      `json:"message_id,omitempty"`
}

// ListeningStartMessage asks the server to start capturing. Empty fields use
// the server defaults.
type ListeningStartMessage struct {
	BaseMessage
	SampleRate int    `json:"sample_rate,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
	Language   string `json:"language,omitempty"`
}

// ListeningEndMessage stops capturing and echoes the transcript
type ListeningEndMessage struct {
	BaseMessage
}

// SelectVoiceMessage selects the playback voice by name
type SelectVoiceMessage struct {
	BaseMessage
	Name string `json:"name"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage reports a malformed protocol frame
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// CaptureStateMessage reports the capture state after every transition
type CaptureStateMessage struct {
	BaseMessage
	State entities.CaptureState `json:"state"`
}

// TranscriptMessage carries the live transcript shown while listening
type TranscriptMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// ChatMessage carries one appended conversation log entry
type ChatMessage struct {
	BaseMessage
	Message entities.Message `json:"message"`
}

// VoiceInfo is a voice as presented to the client
type VoiceInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	Label    string `json:"label"`
}

// VoicesMessage carries the voice catalog and the current selection
type VoicesMessage struct {
	BaseMessage
	Voices   []VoiceInfo `json:"voices"`
	Selected *VoiceInfo  `json:"selected"`
}

// SpeakingStartMessage precedes the binary audio frames of an utterance
type SpeakingStartMessage struct {
	BaseMessage
	UtteranceID string    `json:"utterance_id"`
	Text        string    `json:"text"`
	Voice       VoiceInfo `json:"voice"`
}

// SpeakingEndMessage follows the last audio frame of an utterance
type SpeakingEndMessage struct {
	BaseMessage
	UtteranceID string `json:"utterance_id"`
	Error       string `json:"error,omitempty"`
}

var supportedEncodings = map[string]bool{
	"WAV": true, "LINEAR16": true, "FLAC": true, "MULAW": true, "AMR": true,
	"AMR_WB": true, "OGG_OPUS": true, "SPEEX_WITH_HEADER_BYTE": true, "WEBM_OPUS": true,
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses and validates an incoming text frame
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	// First parse as base message to get type
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeListeningStart:
		var msg ListeningStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening start message: %w", err)
		}
		if err := v.validateListeningStart(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeListeningEnd:
		return &ListeningEndMessage{BaseMessage: base}, nil

	case MessageTypeSelectVoice:
		var msg SelectVoiceMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid select voice message: %w", err)
		}
		// An empty or unknown name clears the selection
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case "":
		return nil, fmt.Errorf("message missing type field")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func (v *MessageValidator) validateListeningStart(msg *ListeningStartMessage) error {
	if msg.SampleRate != 0 && (msg.SampleRate < 8000 || msg.SampleRate > 48000) {
		return fmt.Errorf("sample_rate must be between 8000 and 48000")
	}
	if msg.Encoding != "" && !supportedEncodings[msg.Encoding] {
		return fmt.Errorf("unsupported encoding: %s", msg.Encoding)
	}
	return nil
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{
		Type:      t,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong),
		Data:        data,
	}
}

func CreateCaptureStateMessage(state entities.CaptureState) *CaptureStateMessage {
	return &CaptureStateMessage{
		BaseMessage: newBase(MessageTypeCaptureState),
		State:       state,
	}
}

func CreateTranscriptMessage(text string) *TranscriptMessage {
	return &TranscriptMessage{
		BaseMessage: newBase(MessageTypeTranscript),
		Text:        text,
	}
}

func CreateChatMessage(msg entities.Message) *ChatMessage {
	return &ChatMessage{
		BaseMessage: newBase(MessageTypeMessage),
		Message:     msg,
	}
}

func CreateVoicesMessage(voices []entities.Voice, selected *entities.Voice) *VoicesMessage {
	msg := &VoicesMessage{
		BaseMessage: newBase(MessageTypeVoices),
		Voices:      make([]VoiceInfo, 0, len(voices)),
	}
	for _, v := range voices {
		msg.Voices = append(msg.Voices, newVoiceInfo(v))
	}
	if selected != nil {
		info := newVoiceInfo(*selected)
		msg.Selected = &info
	}
	return msg
}

func CreateSpeakingStartMessage(u usecase.Utterance) *SpeakingStartMessage {
	return &SpeakingStartMessage{
		BaseMessage: newBase(MessageTypeSpeakingStart),
		UtteranceID: u.ID,
		Text:        u.Text,
		Voice:       newVoiceInfo(u.Voice),
	}
}

func CreateSpeakingEndMessage(u usecase.Utterance, err error) *SpeakingEndMessage {
	msg := &SpeakingEndMessage{
		BaseMessage: newBase(MessageTypeSpeakingEnd),
		UtteranceID: u.ID,
	}
	if err != nil {
		msg.Error = err.Error()
	}
	return msg
}

func newVoiceInfo(v entities.Voice) VoiceInfo {
	return VoiceInfo{
		ID:       v.ID,
		Name:     v.Name,
		Language: v.Language,
		Label:    v.Label(),
	}
}
