package repositories

import (
	"context"

	"github.com/satriahrh/suara/domain/entities"
)

// VoiceProvider enumerates the synthesis voices a provider offers
type VoiceProvider interface {
	ListVoices(ctx context.Context) ([]entities.Voice, error)
}

// VoiceChangeNotifier is implemented by providers that load their catalog
// asynchronously and can signal when it changed. The returned func
// unsubscribes.
type VoiceChangeNotifier interface {
	SubscribeVoiceChanges() (<-chan struct{}, func())
}
