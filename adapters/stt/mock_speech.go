package stt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/suara/domain/repositories"
)

const defaultMockPhrase = "Halo, apa kabar? Saya ingin bercerita tentang hari ini."

// MockSpeechToText is a placeholder implementation for speech recognition.
// Every audio chunk reveals one more word of Phrase as an interim result.
type MockSpeechToText struct {
	logger *zap.Logger
	Phrase string
	// MaxChunks ends the stream from the provider side after this many
	// chunks, mimicking a silence timeout. Zero disables it.
	MaxChunks int
}

// MockSpeechToTextStream is a mock implementation of streaming speech recognition
type MockSpeechToTextStream struct {
	logger    *zap.Logger
	words     []string
	maxChunks int

	mu      sync.Mutex
	chunks  int
	ended   bool
	results chan repositories.RecognitionResult
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{
		logger: logger,
		Phrase: defaultMockPhrase,
	}
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

// InitTranscribeStreaming creates a new mock streaming session
func (s *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	s.logger.Info("Initializing mock streaming transcription",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	return &MockSpeechToTextStream{
		logger:    s.logger,
		words:     strings.Fields(s.Phrase),
		maxChunks: s.MaxChunks,
		results:   make(chan repositories.RecognitionResult, 64),
	}, nil
}

// Stream implements mock streaming audio processing
func (m *MockSpeechToTextStream) Stream(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ended {
		return fmt.Errorf("recognition stream already ended")
	}
	if len(data) == 0 {
		return nil
	}

	m.chunks++
	n := m.chunks
	if n > len(m.words) {
		n = len(m.words)
	}
	final := n == len(m.words)

	m.logger.Debug("Processing mock audio chunk",
		zap.Int("size", len(data)),
		zap.Int("chunk", m.chunks))

	result := repositories.RecognitionResult{
		Transcript: strings.Join(m.words[:n], " "),
		Confidence: 0.9,
		IsFinal:    final,
	}
	select {
	case m.results <- result:
	default:
		m.logger.Warn("Dropping mock recognition result, buffer full")
	}

	if m.maxChunks > 0 && m.chunks >= m.maxChunks {
		m.logger.Info("Mock recognition reached its chunk limit, ending stream")
		m.endLocked()
	}
	return nil
}

func (m *MockSpeechToTextStream) Results() <-chan repositories.RecognitionResult {
	return m.results
}

func (m *MockSpeechToTextStream) Err() error {
	return nil
}

// End closes the mock stream
func (m *MockSpeechToTextStream) End() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endLocked()
	return nil
}

func (m *MockSpeechToTextStream) endLocked() {
	if m.ended {
		return
	}
	m.ended = true
	close(m.results)
	m.logger.Info("Ending mock transcription stream", zap.Int("chunks", m.chunks))
}
