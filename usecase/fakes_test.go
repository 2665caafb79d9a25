package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/satriahrh/suara/domain/entities"
	"github.com/satriahrh/suara/domain/repositories"
)

func eventually(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

// fakeStream is a recognition stream driven by the test
type fakeStream struct {
	mu      sync.Mutex
	audio   [][]byte
	closed  bool
	ended   bool
	err     error
	results chan repositories.RecognitionResult
}

func newFakeStream() *fakeStream {
	return &fakeStream{results: make(chan repositories.RecognitionResult, 16)}
}

func (s *fakeStream) Stream(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("stream closed")
	}
	s.audio = append(s.audio, data)
	return nil
}

func (s *fakeStream) Results() <-chan repositories.RecognitionResult {
	return s.results
}

func (s *fakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeStream) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
	s.closeLocked()
	return nil
}

// emit delivers a result as the provider would; it is a no-op once closed.
func (s *fakeStream) emit(text string, final bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.results <- repositories.RecognitionResult{Transcript: text, IsFinal: final}
}

// finish ends the stream from the provider side
func (s *fakeStream) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.closeLocked()
}

func (s *fakeStream) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.results)
	}
}

func (s *fakeStream) audioCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audio)
}

func (s *fakeStream) wasEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

type fakeRecognizer struct {
	mu      sync.Mutex
	err     error
	streams []*fakeStream
	configs []repositories.AudioConfig
}

func (r *fakeRecognizer) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	stream := newFakeStream()
	r.streams = append(r.streams, stream)
	r.configs = append(r.configs, config)
	return stream, nil
}

func (r *fakeRecognizer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

func (r *fakeRecognizer) stream(i int) *fakeStream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streams[i]
}

type synthCall struct {
	text    string
	voice   entities.Voice
	release chan struct{}
}

// fakeSynthesizer holds every utterance until the test releases it or its
// context is cancelled.
type fakeSynthesizer struct {
	mu    sync.Mutex
	err   error
	calls []*synthCall
}

func (s *fakeSynthesizer) ConvertTextToSpeech(ctx context.Context, text string, voice entities.Voice) (<-chan repositories.AudioChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}

	call := &synthCall{text: text, voice: voice, release: make(chan struct{})}
	s.calls = append(s.calls, call)

	out := make(chan repositories.AudioChunk, 2)
	go func() {
		defer close(out)
		select {
		case <-ctx.Done():
			out <- repositories.AudioChunk{Err: ctx.Err()}
		case <-call.release:
			out <- repositories.AudioChunk{Data: []byte(text)}
		}
	}()
	return out, nil
}

func (s *fakeSynthesizer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *fakeSynthesizer) call(i int) *synthCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[i]
}

// fakeVoiceProvider serves whatever voices the test sets and signals changes
type fakeVoiceProvider struct {
	mu      sync.Mutex
	voices  []entities.Voice
	changes chan struct{}
}

func newFakeVoiceProvider(voices ...entities.Voice) *fakeVoiceProvider {
	return &fakeVoiceProvider{voices: voices, changes: make(chan struct{}, 1)}
}

func (p *fakeVoiceProvider) ListVoices(ctx context.Context) ([]entities.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	voices := make([]entities.Voice, len(p.voices))
	copy(voices, p.voices)
	return voices, nil
}

func (p *fakeVoiceProvider) SubscribeVoiceChanges() (<-chan struct{}, func()) {
	return p.changes, func() {}
}

func (p *fakeVoiceProvider) set(voices ...entities.Voice) {
	p.mu.Lock()
	p.voices = voices
	p.mu.Unlock()
	p.changes <- struct{}{}
}

type recordingObserver struct {
	mu          sync.Mutex
	states      []entities.CaptureState
	transcripts []string
	messages    []entities.Message
	voiceEvents int
	selected    *entities.Voice
}

func (o *recordingObserver) CaptureStateChanged(state entities.CaptureState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, state)
}

func (o *recordingObserver) TranscriptChanged(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transcripts = append(o.transcripts, text)
}

func (o *recordingObserver) MessageAppended(msg entities.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
}

func (o *recordingObserver) VoicesChanged(voices []entities.Voice, selected *entities.Voice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.voiceEvents++
	o.selected = selected
}

func (o *recordingObserver) stateHistory() []entities.CaptureState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]entities.CaptureState(nil), o.states...)
}

func (o *recordingObserver) messageCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.messages)
}

type recordingSink struct {
	mu       sync.Mutex
	started  []Utterance
	audio    map[string]int
	finished []Utterance
	errs     []error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{audio: make(map[string]int)}
}

func (s *recordingSink) UtteranceStarted(u Utterance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, u)
}

func (s *recordingSink) UtteranceAudio(ctx context.Context, u Utterance, chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio[u.ID] += len(chunk)
}

func (s *recordingSink) UtteranceFinished(u Utterance, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, u)
	s.errs = append(s.errs, err)
}

func (s *recordingSink) finishedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.finished)
}

// stallingSink is a playback target that stops reading audio, holding every
// chunk until its utterance is cancelled.
type stallingSink struct {
	*recordingSink
	stalled chan string
}

func newStallingSink() *stallingSink {
	return &stallingSink{recordingSink: newRecordingSink(), stalled: make(chan string, 4)}
}

func (s *stallingSink) UtteranceAudio(ctx context.Context, u Utterance, chunk []byte) {
	s.stalled <- u.ID
	<-ctx.Done()
}
