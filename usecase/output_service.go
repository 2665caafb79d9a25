package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/suara/domain/entities"
	"github.com/satriahrh/suara/domain/repositories"
)

// Utterance is one piece of text submitted for synthesis
type Utterance struct {
	ID    string         `json:"utterance_id"`
	Text  string         `json:"text"`
	Voice entities.Voice `json:"voice"`
}

// PlaybackSink receives the audio of the current utterance. UtteranceStarted
// and UtteranceFinished are called with the output service lock held.
// UtteranceAudio runs on the playback goroutine and may block until ctx is
// done, which happens as soon as the utterance is replaced or cancelled.
type PlaybackSink interface {
	UtteranceStarted(u Utterance)
	UtteranceAudio(ctx context.Context, u Utterance, chunk []byte)
	UtteranceFinished(u Utterance, err error)
}

// VoiceOutputService speaks text through the synthesizer, one utterance at a time
type VoiceOutputService struct {
	synthesizer repositories.TextToSpeech
	sink        PlaybackSink
	logger      *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	// current is written under mu and read by playback without it.
	current atomic.Value

	// audioMu is held while a chunk is handed to the sink.
	audioMu sync.Mutex
	wg      sync.WaitGroup
}

// NewVoiceOutputService creates an output service. A nil synthesizer makes
// every Speak fail with ErrSynthesisUnavailable; a nil sink discards audio.
func NewVoiceOutputService(synthesizer repositories.TextToSpeech, sink PlaybackSink, logger *zap.Logger) *VoiceOutputService {
	s := &VoiceOutputService{
		synthesizer: synthesizer,
		sink:        sink,
		logger:      logger,
	}
	s.current.Store("")
	return s
}

// Speak cancels the utterance in flight, if any, and starts speaking text
// with voice. Completion and failure are only reported to the sink and the log.
func (s *VoiceOutputService) Speak(ctx context.Context, text string, voice *entities.Voice) (Utterance, error) {
	if s.synthesizer == nil || voice == nil {
		s.logger.Error("Speech synthesis not supported or no voice selected",
			zap.Bool("synthesizerAvailable", s.synthesizer != nil),
			zap.Bool("voiceSelected", voice != nil))
		if s.synthesizer == nil {
			return Utterance{}, ErrSynthesisUnavailable
		}
		return Utterance{}, ErrNoVoiceSelected
	}

	u := Utterance{
		ID:    uuid.NewString(),
		Text:  text,
		Voice: *voice,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	// Wait out a chunk of the previous utterance still in the sink
	s.audioMu.Lock()
	s.audioMu.Unlock()

	uttCtx, cancel := context.WithCancel(ctx)

	chunks, err := s.synthesizer.ConvertTextToSpeech(uttCtx, text, u.Voice)
	if err != nil {
		cancel()
		s.logger.Error("Speech synthesis error",
			zap.String("utteranceID", u.ID),
			zap.Error(err))
		return Utterance{}, fmt.Errorf("failed to start speech synthesis: %w", err)
	}

	s.current.Store(u.ID)
	s.cancel = cancel
	if s.sink != nil {
		s.sink.UtteranceStarted(u)
	}

	s.wg.Add(1)
	go s.play(uttCtx, u, chunks)

	return u, nil
}

// Cancel stops the utterance in flight without reporting its completion
func (s *VoiceOutputService) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.audioMu.Lock()
	s.audioMu.Unlock()
}

// Speaking reports whether an utterance is in flight
func (s *VoiceOutputService) Speaking() bool {
	return s.currentID() != ""
}

// Wait blocks until every playback goroutine has returned
func (s *VoiceOutputService) Wait() {
	s.wg.Wait()
}

func (s *VoiceOutputService) currentID() string {
	return s.current.Load().(string)
}

func (s *VoiceOutputService) cancelLocked() {
	if s.cancel != nil {
		s.logger.Debug("Cancelling utterance in flight", zap.String("utteranceID", s.currentID()))
		s.cancel()
	}
	s.current.Store("")
	s.cancel = nil
}

func (s *VoiceOutputService) play(ctx context.Context, u Utterance, chunks <-chan repositories.AudioChunk) {
	defer s.wg.Done()

	var streamErr error
	totalBytes := 0

	for chunk := range chunks {
		if chunk.Err != nil {
			streamErr = chunk.Err
			continue
		}
		totalBytes += len(chunk.Data)

		s.audioMu.Lock()
		if s.currentID() == u.ID && s.sink != nil {
			s.sink.UtteranceAudio(ctx, u, chunk.Data)
		}
		s.audioMu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentID() != u.ID {
		s.logger.Debug("Utterance cancelled", zap.String("utteranceID", u.ID))
		return
	}
	if streamErr == nil && ctx.Err() != nil {
		streamErr = ctx.Err()
	}
	s.cancel()
	s.current.Store("")
	s.cancel = nil

	if streamErr != nil {
		if !errors.Is(streamErr, context.Canceled) {
			s.logger.Error("Speech synthesis error",
				zap.String("utteranceID", u.ID),
				zap.Error(streamErr))
		}
	} else {
		s.logger.Info("Speech finished",
			zap.String("utteranceID", u.ID),
			zap.Int("totalBytes", totalBytes))
	}

	if s.sink != nil {
		s.sink.UtteranceFinished(u, streamErr)
	}
}
