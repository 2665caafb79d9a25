package repositories

import (
	"context"

	"github.com/satriahrh/suara/domain/entities"
)

// AudioChunk carries a piece of synthesized audio. A chunk with a non-nil Err
// is the last one sent before the channel closes.
type AudioChunk struct {
	Data []byte
	Err  error
}

type TextToSpeech interface {
	ConvertTextToSpeech(ctx context.Context, text string, voice entities.Voice) (<-chan AudioChunk, error)
}
