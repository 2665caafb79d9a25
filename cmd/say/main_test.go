package main

import (
	"testing"

	"github.com/satriahrh/suara/domain/entities"
)

func TestPCMSampleRate(t *testing.T) {
	tests := []struct {
		format string
		rate   int
		ok     bool
	}{
		{format: "pcm_24000", rate: 24000, ok: true},
		{format: "pcm_16000", rate: 16000, ok: true},
		{format: "mp3_44100_128", ok: false},
		{format: "pcm_", ok: false},
	}

	for _, tt := range tests {
		rate, ok := pcmSampleRate(tt.format)
		if rate != tt.rate || ok != tt.ok {
			t.Errorf("pcmSampleRate(%q) = %d, %v, want %d, %v", tt.format, rate, ok, tt.rate, tt.ok)
		}
	}
}

func TestPickVoice(t *testing.T) {
	voices := []entities.Voice{{ID: "a", Name: "Rachel"}, {ID: "b", Name: "Gadis"}}

	if v, err := pickVoice(voices, ""); err != nil || v.ID != "a" {
		t.Errorf("Expected the first voice by default, got %+v, %v", v, err)
	}
	if v, err := pickVoice(voices, "Gadis"); err != nil || v.ID != "b" {
		t.Errorf("Expected Gadis, got %+v, %v", v, err)
	}
	if _, err := pickVoice(voices, "Nobody"); err == nil {
		t.Error("Expected an error for an unknown voice")
	}
	if _, err := pickVoice(nil, ""); err == nil {
		t.Error("Expected an error for an empty catalog")
	}
}
