package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/suara/domain/repositories"
)

// RecognitionEvent is emitted for every result of a capture stream, and once
// more with Ended set when the stream is over.
type RecognitionEvent struct {
	Generation uint64
	Result     repositories.RecognitionResult
	Ended      bool
	Err        error
}

// VoiceCaptureSession wraps one continuous recognition stream at a time.
// It is not safe for concurrent use; the controller loop owns it.
type VoiceCaptureSession struct {
	recognizer repositories.SpeechToText
	logger     *zap.Logger

	stream     repositories.SpeechToTextStreaming
	generation uint64
}

// NewVoiceCaptureSession creates a capture session. A nil recognizer makes
// every Start fail with ErrRecognitionUnavailable.
func NewVoiceCaptureSession(recognizer repositories.SpeechToText, logger *zap.Logger) *VoiceCaptureSession {
	return &VoiceCaptureSession{
		recognizer: recognizer,
		logger:     logger,
	}
}

// Start opens a new recognition stream and forwards its results to emit from
// a separate goroutine. Any previous stream is ended first.
func (s *VoiceCaptureSession) Start(ctx context.Context, config repositories.AudioConfig, emit func(RecognitionEvent)) error {
	if s.recognizer == nil {
		return ErrRecognitionUnavailable
	}

	if s.stream != nil {
		s.Stop()
	}

	stream, err := s.recognizer.InitTranscribeStreaming(ctx, config)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRecognitionUnavailable, err)
	}

	s.generation++
	s.stream = stream
	generation := s.generation

	go func() {
		for result := range stream.Results() {
			emit(RecognitionEvent{Generation: generation, Result: result})
		}
		emit(RecognitionEvent{Generation: generation, Ended: true, Err: stream.Err()})
	}()

	s.logger.Info("Capture session started",
		zap.Uint64("generation", generation),
		zap.String("language", config.Language),
		zap.Int("sampleRate", config.SampleRate))

	return nil
}

// Feed forwards captured audio to the live stream
func (s *VoiceCaptureSession) Feed(data []byte) error {
	if s.stream == nil {
		return fmt.Errorf("no active recognition stream")
	}
	return s.stream.Stream(data)
}

// Stop ends the live stream. Events still in flight from it are reported as
// stale by IsCurrent.
func (s *VoiceCaptureSession) Stop() error {
	if s.stream == nil {
		return nil
	}
	stream := s.stream
	s.stream = nil

	s.logger.Info("Capture session stopped", zap.Uint64("generation", s.generation))
	if err := stream.End(); err != nil {
		return fmt.Errorf("failed to end recognition stream: %w", err)
	}
	return nil
}

// Ended releases the stream handle after the provider closed the stream
func (s *VoiceCaptureSession) Ended(generation uint64) {
	if s.IsCurrent(generation) {
		s.stream = nil
	}
}

// IsCurrent reports whether events of the given generation belong to the live stream
func (s *VoiceCaptureSession) IsCurrent(generation uint64) bool {
	return s.stream != nil && generation == s.generation
}

// Active reports whether a recognition stream is live
func (s *VoiceCaptureSession) Active() bool {
	return s.stream != nil
}
