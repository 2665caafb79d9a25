package usecase

import "errors"

var (
	// ErrRecognitionUnavailable is returned when no speech recognizer is
	// configured or it cannot open a stream.
	ErrRecognitionUnavailable = errors.New("speech recognition not supported")

	// ErrSynthesisUnavailable is returned when no speech synthesizer is configured.
	ErrSynthesisUnavailable = errors.New("speech synthesis not supported")

	// ErrNoVoiceSelected is returned when speaking without a selected voice.
	ErrNoVoiceSelected = errors.New("no voice selected")

	// ErrAlreadyListening is returned when capture is started twice.
	ErrAlreadyListening = errors.New("capture already listening")

	// ErrControllerStopped is returned for commands sent after the
	// controller loop has exited.
	ErrControllerStopped = errors.New("controller stopped")
)
