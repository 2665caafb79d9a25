package websocket

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/satriahrh/suara/domain/entities"
	"github.com/satriahrh/suara/usecase"
)

func TestMessageValidator_ValidateListeningStart(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{
			name:    "defaults only",
			message: `{"type": "listening_start"}`,
			wantErr: false,
		},
		{
			name: "full audio config",
			message: `{
				"type": "listening_start",
				"sample_rate": 16000,
				"encoding": "LINEAR16",
				"language": "en-US"
			}`,
			wantErr: false,
		},
		{
			name:    "invalid sample rate",
			message: `{"type": "listening_start", "sample_rate": 100000}`,
			wantErr: true,
		},
		{
			name:    "invalid encoding",
			message: `{"type": "listening_start", "encoding": "mp3"}`,
			wantErr: true,
		},
		{
			name:    "wrong field type",
			message: `{"type": "listening_start", "sample_rate": "fast"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageValidator_ParsesListeningStart(t *testing.T) {
	validator := NewMessageValidator()

	msg, err := validator.ValidateMessage([]byte(`{"type":"listening_start","sample_rate":48000,"encoding":"WEBM_OPUS","language":"id-ID"}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}

	start, ok := msg.(*ListeningStartMessage)
	if !ok {
		t.Fatalf("Expected *ListeningStartMessage, got %T", msg)
	}
	if start.SampleRate != 48000 || start.Encoding != "WEBM_OPUS" || start.Language != "id-ID" {
		t.Errorf("Unexpected audio config %+v", start)
	}
}

func TestMessageValidator_ValidateOthers(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name      string
		message   string
		wantType  interface{}
		voiceName string
		wantErr   bool
	}{
		{name: "listening end", message: `{"type":"listening_end"}`, wantType: &ListeningEndMessage{}},
		{name: "select voice", message: `{"type":"select_voice","name":"Rachel"}`, wantType: &SelectVoiceMessage{}, voiceName: "Rachel"},
		{name: "select voice with empty name", message: `{"type":"select_voice","name":""}`, wantType: &SelectVoiceMessage{}},
		{name: "select voice with numeric name", message: `{"type":"select_voice","name":5}`, wantErr: true},
		{name: "ping", message: `{"type":"ping","data":"x"}`, wantType: &PingMessage{}},
		{name: "missing type", message: `{"data":"x"}`, wantErr: true},
		{name: "unsupported type", message: `{"type":"audio_chunk"}`, wantErr: true},
		{name: "invalid json", message: `{"type":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			switch tt.wantType.(type) {
			case *ListeningEndMessage:
				_, ok := msg.(*ListeningEndMessage)
				if !ok {
					t.Errorf("Expected *ListeningEndMessage, got %T", msg)
				}
			case *SelectVoiceMessage:
				m, ok := msg.(*SelectVoiceMessage)
				if !ok || m.Name != tt.voiceName {
					t.Errorf("Expected select voice for '%s', got %#v", tt.voiceName, msg)
				}
			case *PingMessage:
				m, ok := msg.(*PingMessage)
				if !ok || m.Data != "x" {
					t.Errorf("Expected ping with data, got %#v", msg)
				}
			}
		})
	}
}

func TestCreateVoicesMessage(t *testing.T) {
	voices := []entities.Voice{
		{ID: "a", Name: "Rachel", Language: "en-US"},
		{ID: "b", Name: "Plain"},
	}

	msg := CreateVoicesMessage(voices, &voices[0])
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal voices message: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal voices message: %v", err)
	}
	if decoded["type"] != string(MessageTypeVoices) {
		t.Errorf("Expected type voices, got %v", decoded["type"])
	}
	if msg.Voices[0].Label != "Rachel (en-US)" {
		t.Errorf("Expected language in label, got '%s'", msg.Voices[0].Label)
	}
	if msg.Voices[1].Label != "Plain" {
		t.Errorf("Expected bare name label, got '%s'", msg.Voices[1].Label)
	}
	if msg.Selected == nil || msg.Selected.ID != "a" {
		t.Errorf("Expected selected voice a, got %+v", msg.Selected)
	}

	empty := CreateVoicesMessage(nil, nil)
	data, _ = json.Marshal(empty)
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal empty voices message: %v", err)
	}
	if voices, ok := decoded["voices"].([]interface{}); !ok || len(voices) != 0 {
		t.Errorf("Expected empty voices array, got %v", decoded["voices"])
	}
	if decoded["selected"] != nil {
		t.Errorf("Expected null selection, got %v", decoded["selected"])
	}
}

func TestCreateSpeakingMessages(t *testing.T) {
	u := usecase.Utterance{ID: "utt-1", Text: "hello", Voice: entities.Voice{ID: "a", Name: "Rachel"}}

	start := CreateSpeakingStartMessage(u)
	if start.Type != MessageTypeSpeakingStart || start.UtteranceID != "utt-1" || start.Voice.Name != "Rachel" {
		t.Errorf("Unexpected speaking start %+v", start)
	}

	end := CreateSpeakingEndMessage(u, nil)
	if end.Error != "" {
		t.Errorf("Expected no error, got '%s'", end.Error)
	}
	end = CreateSpeakingEndMessage(u, errors.New("stream broke"))
	if end.Error != "stream broke" {
		t.Errorf("Expected error text, got '%s'", end.Error)
	}
}

func TestCreateErrorMessage(t *testing.T) {
	errMsg := CreateErrorMessage(ErrorCodeInvalidMessage, "invalid message", "bad json")

	if errMsg.Type != MessageTypeError {
		t.Errorf("Expected message type %s, got %s", MessageTypeError, errMsg.Type)
	}
	if errMsg.Code != ErrorCodeInvalidMessage {
		t.Errorf("Expected error code %s, got %s", ErrorCodeInvalidMessage, errMsg.Code)
	}
	if errMsg.Timestamp == "" {
		t.Error("Expected timestamp to be set")
	}
}
