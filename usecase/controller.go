package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/suara/domain/entities"
	"github.com/satriahrh/suara/domain/repositories"
)

// Observer is notified after every state mutation of the controller. All
// callbacks run on the controller loop and must not call back into it
// synchronously.
type Observer interface {
	CaptureStateChanged(state entities.CaptureState)
	TranscriptChanged(text string)
	MessageAppended(msg entities.Message)
	VoicesChanged(voices []entities.Voice, selected *entities.Voice)
}

// ControllerConfig holds the collaborators of a Controller
type ControllerConfig struct {
	Recognizer  repositories.SpeechToText
	Synthesizer repositories.TextToSpeech
	Voices      repositories.VoiceProvider
	// VoiceRefreshInterval polls the voice provider; zero relies on the
	// initial load and provider notifications only.
	VoiceRefreshInterval time.Duration
	// Audio is used for fields a StartCapture call leaves empty.
	Audio    repositories.AudioConfig
	Observer Observer
	Sink     PlaybackSink
}

// Controller composes capture, output, voice catalog and conversation log
// into the listen / echo state machine. Every mutation happens on the
// goroutine running Run.
type Controller struct {
	capture  *VoiceCaptureSession
	output   *VoiceOutputService
	catalog  *VoiceCatalog
	log      *ConversationLog
	watcher  *VoiceWatcher
	observer Observer
	audio    repositories.AudioConfig
	logger   *zap.Logger

	events chan func()
	// stopping is closed when the loop stops taking events, done once
	// everything Run started has returned.
	stopping chan struct{}
	done     chan struct{}
	runCtx   context.Context

	mu         sync.RWMutex
	state      entities.CaptureState
	transcript string
}

// NewController creates a controller. Run must be started before any command is issued.
func NewController(config ControllerConfig, logger *zap.Logger) *Controller {
	observer := config.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	c := &Controller{
		capture:  NewVoiceCaptureSession(config.Recognizer, logger),
		output:   NewVoiceOutputService(config.Synthesizer, config.Sink, logger),
		catalog:  NewVoiceCatalog(),
		observer: observer,
		audio:    config.Audio,
		logger:   logger,
		events:   make(chan func(), 64),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
		state:    entities.CaptureStateIdle,
	}
	c.log = NewConversationLog(observer.MessageAppended)
	if config.Voices != nil {
		c.watcher = NewVoiceWatcher(config.Voices, config.VoiceRefreshInterval, logger)
	}
	return c
}

// Run processes events until ctx is done, then releases the live
// recognition stream and utterance and waits for the voice watcher and
// playback to return.
func (c *Controller) Run(ctx context.Context) {
	c.runCtx = ctx
	defer close(c.done)

	if c.watcher != nil {
		c.watcher.Start(func(voices []entities.Voice) {
			c.post(func() { c.voicesLoaded(voices) })
		})
		defer c.watcher.Stop()
	}

	for {
		select {
		case fn := <-c.events:
			fn()
		case <-ctx.Done():
			close(c.stopping)
			if err := c.capture.Stop(); err != nil {
				c.logger.Warn("Failed to stop capture on shutdown", zap.Error(err))
			}
			c.output.Cancel()
			c.output.Wait()
			c.logger.Debug("Controller stopped")
			return
		}
	}
}

// Done is closed once Run has returned
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// StartCapture moves Idle to Listening. Empty fields of config fall back to
// the controller defaults.
func (c *Controller) StartCapture(config repositories.AudioConfig) error {
	return c.do(func() error { return c.startCapture(config) })
}

// StopCapture moves Listening to Idle and echoes the buffered transcript
func (c *Controller) StopCapture() error {
	return c.do(func() error { return c.stopCapture() })
}

// FeedAudio forwards captured audio to the live recognition stream
func (c *Controller) FeedAudio(data []byte) {
	c.post(func() {
		if !c.capture.Active() {
			c.logger.Debug("Dropping audio, not listening", zap.Int("size", len(data)))
			return
		}
		if err := c.capture.Feed(data); err != nil {
			c.logger.Error("Failed to stream audio data", zap.Error(err))
		}
	})
}

// SelectVoice selects the voice with the given name, or none when the
// catalog has no such voice.
func (c *Controller) SelectVoice(name string) (*entities.Voice, error) {
	var selected *entities.Voice
	err := c.do(func() error {
		selected = c.catalog.Select(name)
		if selected == nil {
			c.logger.Warn("Voice not found, selection cleared", zap.String("voice", name))
		}
		c.observer.VoicesChanged(c.catalog.ListVoices(), selected)
		return nil
	})
	return selected, err
}

func (c *Controller) State() entities.CaptureState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) Transcript() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transcript
}

func (c *Controller) Messages() []entities.Message {
	return c.log.Messages()
}

func (c *Controller) Voices() []entities.Voice {
	return c.catalog.ListVoices()
}

func (c *Controller) SelectedVoice() *entities.Voice {
	return c.catalog.Selected()
}

func (c *Controller) startCapture(config repositories.AudioConfig) error {
	if c.State() == entities.CaptureStateListening {
		c.logger.Warn("Capture already listening")
		return ErrAlreadyListening
	}

	config = c.withDefaults(config)
	err := c.capture.Start(c.runCtx, config, func(ev RecognitionEvent) {
		c.post(func() { c.recognitionEvent(ev) })
	})
	if err != nil {
		c.logger.Error("Speech recognition not supported", zap.Error(err))
		return err
	}

	c.setState(entities.CaptureStateListening)
	return nil
}

func (c *Controller) stopCapture() error {
	if c.State() != entities.CaptureStateListening {
		return nil
	}

	if err := c.capture.Stop(); err != nil {
		c.logger.Warn("Failed to stop recognition", zap.Error(err))
	}
	c.setState(entities.CaptureStateIdle)

	text := c.Transcript()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if _, err := c.log.Append(text, entities.SenderUser); err != nil {
		c.logger.Error("Failed to log user message", zap.Error(err))
		return nil
	}
	c.setTranscript("")

	if _, err := c.output.Speak(c.runCtx, text, c.catalog.Selected()); err != nil {
		c.logger.Error("Failed to speak transcript", zap.Error(err))
		return nil
	}
	if _, err := c.log.Append(text, entities.SenderBot); err != nil {
		c.logger.Error("Failed to log bot message", zap.Error(err))
	}
	return nil
}

func (c *Controller) recognitionEvent(ev RecognitionEvent) {
	if !c.capture.IsCurrent(ev.Generation) {
		return
	}

	if ev.Ended {
		c.capture.Ended(ev.Generation)
		if ev.Err != nil {
			c.logger.Error("Recognition stream failed", zap.Error(ev.Err))
		}
		c.logger.Info("Recognition ended by provider")
		c.setState(entities.CaptureStateIdle)
		return
	}

	c.setTranscript(ev.Result.Transcript)
}

func (c *Controller) voicesLoaded(voices []entities.Voice) {
	c.catalog.Replace(voices)
	c.observer.VoicesChanged(c.catalog.ListVoices(), c.catalog.Selected())
}

func (c *Controller) setState(state entities.CaptureState) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()

	if changed {
		c.observer.CaptureStateChanged(state)
	}
}

func (c *Controller) setTranscript(text string) {
	c.mu.Lock()
	changed := c.transcript != text
	c.transcript = text
	c.mu.Unlock()

	if changed {
		c.observer.TranscriptChanged(text)
	}
}

func (c *Controller) withDefaults(config repositories.AudioConfig) repositories.AudioConfig {
	if config.SampleRate == 0 {
		config.SampleRate = c.audio.SampleRate
	}
	if config.Encoding == "" {
		config.Encoding = c.audio.Encoding
	}
	if config.Language == "" {
		config.Language = c.audio.Language
	}
	return config
}

// post enqueues fn on the loop. It reports false once the loop has exited.
func (c *Controller) post(fn func()) bool {
	select {
	case c.events <- fn:
		return true
	case <-c.stopping:
		return false
	}
}

// do runs fn on the loop and waits for its result
func (c *Controller) do(fn func() error) error {
	reply := make(chan error, 1)
	if !c.post(func() { reply <- fn() }) {
		return ErrControllerStopped
	}
	select {
	case err := <-reply:
		return err
	case <-c.stopping:
		return ErrControllerStopped
	}
}

type nopObserver struct{}

func (nopObserver) CaptureStateChanged(entities.CaptureState)       {}
func (nopObserver) TranscriptChanged(string)                        {}
func (nopObserver) MessageAppended(entities.Message)                {}
func (nopObserver) VoicesChanged([]entities.Voice, *entities.Voice) {}
