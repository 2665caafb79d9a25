package stt_test

import (
	"github.com/satriahrh/suara/adapters/stt"
	"github.com/satriahrh/suara/domain/repositories"
)

var _ repositories.SpeechToText = &stt.GoogleSpeechToText{}
var _ repositories.SpeechToTextStreaming = &stt.GoogleSpeechToTextStream{}
