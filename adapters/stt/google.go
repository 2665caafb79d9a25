package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/satriahrh/suara/domain/repositories"
)

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates a Google Cloud Speech recognizer.
// Credentials are resolved by the client library (GOOGLE_APPLICATION_CREDENTIALS).
func NewGoogleSpeechToText(logger *zap.Logger) *GoogleSpeechToText {
	return &GoogleSpeechToText{logger: logger}
}

func (g *GoogleSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return nil, err
	}

	// The stream outlives the request that opened it, so it gets its own
	// context which End cancels.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	client, err := speech.NewClient(streamCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(config.SampleRate),
					LanguageCode:    config.Language,
				},
				InterimResults:  true,
				SingleUtterance: false,
			},
		},
	}); err != nil {
		cancel()
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	streamInstance := &GoogleSpeechToTextStream{
		client:  client,
		stream:  stream,
		cancel:  cancel,
		results: make(chan repositories.RecognitionResult, 16),
		logger:  g.logger,
	}
	go streamInstance.receiveResults()

	return streamInstance, nil
}

type GoogleSpeechToTextStream struct {
	client  *speech.Client
	stream  speechpb.Speech_StreamingRecognizeClient
	cancel  context.CancelFunc
	results chan repositories.RecognitionResult
	logger  *zap.Logger

	sendMu sync.Mutex
	closed bool

	errMu sync.Mutex
	err   error
}

func (g *GoogleSpeechToTextStream) Stream(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	g.sendMu.Lock()
	defer g.sendMu.Unlock()
	if g.closed {
		return fmt.Errorf("recognition stream already ended")
	}

	if err := g.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

func (g *GoogleSpeechToTextStream) Results() <-chan repositories.RecognitionResult {
	return g.results
}

func (g *GoogleSpeechToTextStream) Err() error {
	g.errMu.Lock()
	defer g.errMu.Unlock()
	return g.err
}

func (g *GoogleSpeechToTextStream) End() error {
	g.sendMu.Lock()
	if g.closed {
		g.sendMu.Unlock()
		return nil
	}
	g.closed = true
	err := g.stream.CloseSend()
	g.sendMu.Unlock()

	g.cancel()
	if err != nil {
		return fmt.Errorf("failed to close send stream: %w", err)
	}
	return nil
}

func (g *GoogleSpeechToTextStream) receiveResults() {
	defer g.client.Close()
	defer close(g.results)

	for {
		resp, err := g.stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			if status.Code(err) != codes.Canceled && !errors.Is(err, context.Canceled) {
				g.setErr(fmt.Errorf("failed to receive response: %w", err))
			}
			return
		}

		// The first result is the one currently being recognized; later
		// entries are less stable interim guesses.
		if len(resp.Results) == 0 || len(resp.Results[0].Alternatives) == 0 {
			continue
		}
		result := resp.Results[0]
		best := result.Alternatives[0]

		g.logger.Debug("Received recognition result",
			zap.String("transcript", best.Transcript),
			zap.Bool("isFinal", result.IsFinal))

		g.results <- repositories.RecognitionResult{
			Transcript: best.Transcript,
			Confidence: best.Confidence,
			IsFinal:    result.IsFinal,
		}
	}
}

func (g *GoogleSpeechToTextStream) setErr(err error) {
	g.errMu.Lock()
	defer g.errMu.Unlock()
	g.err = err
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
