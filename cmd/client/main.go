package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	SessionID string    `json:"session_id"`
}

type options struct {
	addr       string
	audioFile  string
	outDir     string
	voice      string
	language   string
	encoding   string
	sampleRate int
	chunkSize  int
	interval   time.Duration
	auth       bool
}

// Streams an audio file to the server as one listening turn and saves the
// echoed speech.
func main() {
	var opts options
	flag.StringVar(&opts.addr, "addr", "localhost:8080", "server address")
	flag.StringVar(&opts.audioFile, "file", "sample_audio.wav", "audio file to stream")
	flag.StringVar(&opts.outDir, "out", "audio_responses", "directory for received speech")
	flag.StringVar(&opts.voice, "voice", "", "voice name to select before speaking")
	flag.StringVar(&opts.language, "language", "", "recognition language, server default when empty")
	flag.StringVar(&opts.encoding, "encoding", "LINEAR16", "audio encoding")
	flag.IntVar(&opts.sampleRate, "sample-rate", 16000, "audio sample rate")
	flag.IntVar(&opts.chunkSize, "chunk", 1024, "bytes per audio frame")
	flag.DurationVar(&opts.interval, "interval", 100*time.Millisecond, "delay between audio frames")
	flag.BoolVar(&opts.auth, "auth", false, "request a session token first")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	headers := http.Header{}
	if opts.auth {
		session, err := createSession(opts.addr)
		if err != nil {
			logger.Fatal("Failed to create session", zap.Error(err))
		}
		logger.Info("Session created", zap.String("sessionID", session.SessionID))
		headers.Add("Authorization", "Bearer "+session.Token)
	}

	u := url.URL{Scheme: "ws", Host: opts.addr, Path: "/ws"}
	logger.Info("Connecting", zap.String("url", u.String()))

	c, _, err := websocket.DefaultDialer.Dial(u.String(), headers)
	if err != nil {
		logger.Fatal("Dial failed", zap.Error(err))
	}
	defer c.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	spoken := make(chan struct{}, 1)
	go handleIncomingMessages(c, opts.outDir, logger, done, spoken)

	if err := streamTurn(c, opts, logger); err != nil {
		logger.Error("Failed to stream audio", zap.Error(err))
	}

	select {
	case <-spoken:
		logger.Info("Echo received")
	case <-done:
		return
	case <-interrupt:
		logger.Info("Interrupted")
	case <-time.After(30 * time.Second):
		logger.Warn("Timed out waiting for the echo")
	}

	// Cleanly close the connection by sending a close message and then
	// waiting (with timeout) for the server to close the connection.
	err = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		logger.Warn("Write close failed", zap.Error(err))
		return
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func createSession(addr string) (*sessionResponse, error) {
	resp, err := http.Post("http://"+addr+"/api/v1/session", "application/json", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session request failed: %s", string(body))
	}

	var session sessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func streamTurn(c *websocket.Conn, opts options, logger *zap.Logger) error {
	audio, err := os.ReadFile(opts.audioFile)
	if err != nil {
		return fmt.Errorf("failed to read audio file: %w", err)
	}

	if opts.voice != "" {
		if err := c.WriteJSON(map[string]interface{}{"type": "select_voice", "name": opts.voice}); err != nil {
			return err
		}
	}

	start := map[string]interface{}{
		"type":        "listening_start",
		"sample_rate": opts.sampleRate,
		"encoding":    opts.encoding,
	}
	if opts.language != "" {
		start["language"] = opts.language
	}
	if err := c.WriteJSON(start); err != nil {
		return err
	}

	chunks := 0
	for offset := 0; offset < len(audio); offset += opts.chunkSize {
		end := offset + opts.chunkSize
		if end > len(audio) {
			end = len(audio)
		}
		if err := c.WriteMessage(websocket.BinaryMessage, audio[offset:end]); err != nil {
			return fmt.Errorf("failed to send audio chunk %d: %w", chunks, err)
		}
		chunks++
		time.Sleep(opts.interval)
	}
	logger.Info("Audio sent",
		zap.String("file", opts.audioFile),
		zap.Int("bytes", len(audio)),
		zap.Int("chunks", chunks))

	return c.WriteJSON(map[string]interface{}{"type": "listening_end"})
}

func handleIncomingMessages(c *websocket.Conn, outDir string, logger *zap.Logger, done chan struct{}, spoken chan struct{}) {
	defer close(done)

	recorder := &speechRecorder{dir: outDir}
	defer recorder.close()

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			logger.Info("Connection closed", zap.Error(err))
			return
		}

		if messageType == websocket.BinaryMessage {
			if err := recorder.write(message); err != nil {
				logger.Error("Failed to write audio chunk", zap.Error(err))
			}
			continue
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("Invalid server message", zap.Error(err))
			continue
		}

		switch msg["type"] {
		case "capture_state":
			logger.Info("Capture state", zap.Any("state", msg["state"]))
		case "transcript":
			logger.Info("Transcript", zap.Any("text", msg["text"]))
		case "message":
			logger.Info("Message", zap.Any("message", msg["message"]))
		case "voices":
			logger.Info("Voices", zap.Any("voices", msg["voices"]), zap.Any("selected", msg["selected"]))
		case "speaking_start":
			// A cancelled utterance gets no speaking_end; start replaces it
			path, err := recorder.start(fmt.Sprint(msg["utterance_id"]))
			if err != nil {
				logger.Error("Failed to create audio file", zap.Error(err))
			}
			logger.Info("Speaking started", zap.Any("text", msg["text"]), zap.String("file", path))
		case "speaking_end":
			chunks := recorder.close()
			logger.Info("Speaking finished",
				zap.Any("utteranceID", msg["utterance_id"]),
				zap.Int("chunks", chunks),
				zap.Any("error", msg["error"]))
			select {
			case spoken <- struct{}{}:
			default:
			}
		default:
			logger.Info("Server message", zap.ByteString("raw", message))
		}
	}
}

// speechRecorder saves the audio of one utterance at a time
type speechRecorder struct {
	dir    string
	file   *os.File
	chunks int
}

// start closes the file of the previous utterance, if still open, and
// creates one for utteranceID.
func (r *speechRecorder) start(utteranceID string) (string, error) {
	r.close()

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(r.dir, utteranceID+".pcm")
	file, err := os.Create(path)
	if err != nil {
		return path, err
	}
	r.file = file
	return path, nil
}

func (r *speechRecorder) write(chunk []byte) error {
	if r.file == nil {
		return nil
	}
	r.chunks++
	_, err := r.file.Write(chunk)
	return err
}

// close finishes the current file and reports how many chunks it received
func (r *speechRecorder) close() int {
	chunks := r.chunks
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
	r.chunks = 0
	return chunks
}
