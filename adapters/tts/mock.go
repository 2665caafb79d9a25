package tts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/suara/domain/entities"
	"github.com/satriahrh/suara/domain/repositories"
)

// DefaultMockVoices is the catalog served by MockVoiceProvider when none is given
var DefaultMockVoices = []entities.Voice{
	{ID: "mock-rachel", Name: "Rachel", Language: "en-US"},
	{ID: "mock-charlotte", Name: "Charlotte", Language: "en-GB"},
	{ID: "mock-gadis", Name: "Gadis", Language: "id-ID"},
}

// MockTextToSpeech is a placeholder implementation for text-to-speech.
// It emits a synthetic byte pattern sized after the text.
type MockTextToSpeech struct {
	logger     *zap.Logger
	chunkSize  int
	chunkDelay time.Duration
}

var _ repositories.TextToSpeech = (*MockTextToSpeech)(nil)

// NewMockTextToSpeech creates a new mock text-to-speech service
func NewMockTextToSpeech(logger *zap.Logger) *MockTextToSpeech {
	return &MockTextToSpeech{
		logger:     logger,
		chunkSize:  1024,
		chunkDelay: 20 * time.Millisecond,
	}
}

func (t *MockTextToSpeech) ConvertTextToSpeech(ctx context.Context, text string, voice entities.Voice) (<-chan repositories.AudioChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	t.logger.Info("Processing mock text-to-speech",
		zap.String("text", text),
		zap.String("voice", voice.Name))

	// Simulate audio size
	audio := make([]byte, len(text)*100)
	for i := range audio {
		audio[i] = byte(i % 256)
	}

	audioChan := make(chan repositories.AudioChunk, 4)
	go func() {
		defer close(audioChan)
		for start := 0; start < len(audio); start += t.chunkSize {
			end := start + t.chunkSize
			if end > len(audio) {
				end = len(audio)
			}
			select {
			case audioChan <- repositories.AudioChunk{Data: audio[start:end]}:
			case <-ctx.Done():
				return
			}
			if t.chunkDelay > 0 {
				select {
				case <-time.After(t.chunkDelay):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return audioChan, nil
}

// MockVoiceProvider serves a fixed catalog. With a load delay it starts
// empty and fires a change notification once the catalog is "loaded".
type MockVoiceProvider struct {
	logger *zap.Logger
	voices []entities.Voice

	mu          sync.RWMutex
	loaded      bool
	subscribers map[chan struct{}]struct{}
}

var (
	_ repositories.VoiceProvider       = (*MockVoiceProvider)(nil)
	_ repositories.VoiceChangeNotifier = (*MockVoiceProvider)(nil)
)

// NewMockVoiceProvider creates a mock voice catalog. A zero loadDelay makes
// the voices available immediately.
func NewMockVoiceProvider(logger *zap.Logger, voices []entities.Voice, loadDelay time.Duration) *MockVoiceProvider {
	if voices == nil {
		voices = DefaultMockVoices
	}
	p := &MockVoiceProvider{
		logger:      logger,
		voices:      voices,
		loaded:      loadDelay <= 0,
		subscribers: make(map[chan struct{}]struct{}),
	}
	if !p.loaded {
		time.AfterFunc(loadDelay, p.load)
	}
	return p
}

func (p *MockVoiceProvider) load() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = true

	p.logger.Info("Mock voice catalog loaded", zap.Int("count", len(p.voices)))
	for ch := range p.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (p *MockVoiceProvider) ListVoices(ctx context.Context) ([]entities.Voice, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.loaded {
		return []entities.Voice{}, nil
	}
	voices := make([]entities.Voice, len(p.voices))
	copy(voices, p.voices)
	return voices, nil
}

func (p *MockVoiceProvider) SubscribeVoiceChanges() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	p.mu.Unlock()

	return ch, func() {
		p.mu.Lock()
		delete(p.subscribers, ch)
		p.mu.Unlock()
	}
}
