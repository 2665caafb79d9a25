package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/suara/domain/entities"
	"github.com/satriahrh/suara/domain/repositories"
)

// VoiceWatcher re-queries the voice provider whenever its catalog may have
// changed: once at start, on provider notifications, and on a polling interval.
type VoiceWatcher struct {
	provider repositories.VoiceProvider
	interval time.Duration
	logger   *zap.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// NewVoiceWatcher creates a voice watcher. A zero interval disables polling.
func NewVoiceWatcher(provider repositories.VoiceProvider, interval time.Duration, logger *zap.Logger) *VoiceWatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &VoiceWatcher{
		provider: provider,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins watching in the background, passing every loaded catalog to
// onVoices. It must be called at most once, and before Stop.
func (w *VoiceWatcher) Start(onVoices func([]entities.Voice)) {
	w.started = true
	go func() {
		defer close(w.done)
		w.watchLoop(onVoices)
	}()
}

// Stop cancels a refresh in flight and waits for the watch loop to return
func (w *VoiceWatcher) Stop() {
	w.stopOnce.Do(w.cancel)
	if w.started {
		<-w.done
	}
}

func (w *VoiceWatcher) watchLoop(onVoices func([]entities.Voice)) {
	var changes <-chan struct{}
	if notifier, ok := w.provider.(repositories.VoiceChangeNotifier); ok {
		ch, unsubscribe := notifier.SubscribeVoiceChanges()
		defer unsubscribe()
		changes = ch
	}

	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	w.refresh(onVoices)

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-changes:
			w.logger.Debug("Voice catalog changed")
			w.refresh(onVoices)
		case <-tick:
			w.refresh(onVoices)
		}
	}
}

func (w *VoiceWatcher) refresh(onVoices func([]entities.Voice)) {
	ctx, cancel := context.WithTimeout(w.ctx, 10*time.Second)
	defer cancel()

	voices, err := w.provider.ListVoices(ctx)
	if err != nil {
		if w.ctx.Err() == nil {
			w.logger.Error("Failed to list voices", zap.Error(err))
		}
		return
	}
	if w.ctx.Err() != nil {
		return
	}

	w.logger.Debug("Voice catalog loaded", zap.Int("count", len(voices)))
	onVoices(voices)
}
