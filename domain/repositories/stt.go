package repositories

import "context"

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// InitTranscribeStreaming opens a continuous recognition stream that
	// reports interim and final results until it is ended or the provider
	// closes it.
	InitTranscribeStreaming(ctx context.Context, config AudioConfig) (SpeechToTextStreaming, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// RecognitionResult is the top alternative of the most recent recognition result
type RecognitionResult struct {
	Transcript string  `json:"transcript"`
	Confidence float32 `json:"confidence"`
	IsFinal    bool    `json:"is_final"`
}

type SpeechToTextStreaming interface {
	// Stream sends captured audio to the recognizer.
	Stream(data []byte) error
	// Results delivers recognition results in order. The channel is closed
	// at end-of-stream, whether requested through End or decided by the provider.
	Results() <-chan RecognitionResult
	// Err reports why the stream ended. Only meaningful once Results is closed.
	Err() error
	// End stops recognition and releases the stream.
	End() error
}
