package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/suara/domain/entities"
	"github.com/satriahrh/suara/domain/repositories"
	"github.com/satriahrh/suara/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	// Outbound frames buffered per client. Senders block once it is full.
	sendBufferSize = 512
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the configured web client origin once it is deployed separately
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active clients. Every client owns an isolated
// controller built from the shared capabilities.
type Hub struct {
	// Registered clients, keyed by session ID.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	capabilities usecase.ControllerConfig

	// Client controllers and pumps, tracked so shutdown can wait for them.
	wg sync.WaitGroup

	// Closed when the loop stops taking requests, and once every client
	// goroutine has returned.
	stopping chan struct{}
	done     chan struct{}

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub. Observer and Sink of capabilities are
// ignored; each client fills them in for itself.
func NewHub(capabilities usecase.ControllerConfig, logger *zap.Logger) *Hub {
	capabilities.Observer = nil
	capabilities.Sink = nil

	return &Hub{
		clients:      make(map[string]*Client),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		capabilities: capabilities,
		stopping:     make(chan struct{}),
		done:         make(chan struct{}),
		logger:       logger,
	}
}

// Run starts the hub's main loop. Once ctx is done it closes every client and
// waits for their goroutines before returning.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			// controller, readPump and writePump
			h.wg.Add(3)
			h.mu.Lock()
			h.clients[client.sessionID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("sessionID", client.sessionID))

		case client := <-h.unregister:
			h.mu.Lock()
			// A reconnect with the same session token may have replaced this client
			if existing, ok := h.clients[client.sessionID]; ok && existing == client {
				delete(h.clients, client.sessionID)
			}
			client.close()
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("sessionID", client.sessionID))

		case <-ctx.Done():
			close(h.stopping)
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				client.close()
			}
			h.mu.Unlock()
			h.wg.Wait()
			h.logger.Info("Hub stopped")
			return
		}
	}
}

// Register hands a client to the loop. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stopping:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopping:
	}
}

// Done is closed once Run has returned
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and its controller.
// It observes the controller and plays its utterances back to the peer.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	sessionID string

	controller *usecase.Controller
	cancel     context.CancelFunc
	validator  *MessageValidator

	logger *zap.Logger

	// done is closed when the client is shut down; send is never closed.
	done      chan struct{}
	closeOnce sync.Once
}

var (
	_ usecase.Observer     = (*Client)(nil)
	_ usecase.PlaybackSink = (*Client)(nil)
)

// HandleWebSocket handles websocket requests from an anonymous peer
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	return HandleWebSocketWithAuth(hub, c, uuid.NewString(), logger)
}

// HandleWebSocketWithAuth handles websocket requests with a pre-authenticated session ID
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, sessionID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan WriteData, sendBufferSize),
		done:      make(chan struct{}),
		sessionID: sessionID,
		validator: NewMessageValidator(),
		logger:    logger.With(zap.String("sessionID", sessionID)),
	}

	config := hub.capabilities
	config.Observer = client
	config.Sink = client
	client.controller = usecase.NewController(config, client.logger)

	ctx, cancel := context.WithCancel(context.Background())
	client.cancel = cancel

	if !hub.Register(client) {
		cancel()
		conn.Close()
		return errors.New("websocket hub stopped")
	}

	// Initial view, queued before the controller can emit anything newer
	client.sendJSON(CreateCaptureStateMessage(client.controller.State()))
	client.sendJSON(CreateVoicesMessage(client.controller.Voices(), client.controller.SelectedVoice()))

	go func() {
		defer hub.wg.Done()
		client.controller.Run(ctx)
	}()

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go func() {
		defer hub.wg.Done()
		client.writePump()
	}()
	go func() {
		defer hub.wg.Done()
		client.readPump()
	}()

	return nil
}

// readPump pumps messages from the websocket connection to the controller.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.controller.FeedAudio(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the controller to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage dispatches a control message to the controller. Capability
// failures are only logged; malformed frames are answered with an error message.
func (c *Client) processMessage(message []byte) {
	msg, err := c.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid message", zap.Error(err))
		c.sendJSON(CreateErrorMessage(ErrorCodeInvalidMessage, "invalid message", err.Error()))
		return
	}

	switch m := msg.(type) {
	case *ListeningStartMessage:
		err := c.controller.StartCapture(repositories.AudioConfig{
			SampleRate: m.SampleRate,
			Encoding:   m.Encoding,
			Language:   m.Language,
		})
		if err != nil && !errors.Is(err, usecase.ErrControllerStopped) {
			c.logger.Warn("Failed to start listening", zap.Error(err))
		}

	case *ListeningEndMessage:
		if err := c.controller.StopCapture(); err != nil && !errors.Is(err, usecase.ErrControllerStopped) {
			c.logger.Warn("Failed to stop listening", zap.Error(err))
		}

	case *SelectVoiceMessage:
		if _, err := c.controller.SelectVoice(m.Name); err != nil && !errors.Is(err, usecase.ErrControllerStopped) {
			c.logger.Warn("Failed to select voice", zap.Error(err))
		}

	case *PingMessage:
		c.sendJSON(CreatePongMessage(m.Data))

	default:
		c.sendJSON(CreateErrorMessage(ErrorCodeUnsupported, "unsupported message", ""))
	}
}

func (c *Client) CaptureStateChanged(state entities.CaptureState) {
	c.sendJSON(CreateCaptureStateMessage(state))
}

func (c *Client) TranscriptChanged(text string) {
	c.sendJSON(CreateTranscriptMessage(text))
}

func (c *Client) MessageAppended(msg entities.Message) {
	c.sendJSON(CreateChatMessage(msg))
}

func (c *Client) VoicesChanged(voices []entities.Voice, selected *entities.Voice) {
	c.sendJSON(CreateVoicesMessage(voices, selected))
}

func (c *Client) UtteranceStarted(u usecase.Utterance) {
	c.sendJSON(CreateSpeakingStartMessage(u))
}

// UtteranceAudio waits for room in the send buffer. A slow peer holds back
// synthesis; audio is only dropped once its utterance is cancelled.
func (c *Client) UtteranceAudio(ctx context.Context, u usecase.Utterance, chunk []byte) {
	select {
	case c.send <- WriteData{Type: websocket.BinaryMessage, Payload: chunk}:
	case <-ctx.Done():
		c.logger.Debug("Dropping audio of cancelled utterance",
			zap.String("utteranceID", u.ID),
			zap.Int("size", len(chunk)))
	case <-c.done:
	}
}

func (c *Client) UtteranceFinished(u usecase.Utterance, err error) {
	c.sendJSON(CreateSpeakingEndMessage(u, err))
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload})
}

// enqueue waits for room in the send buffer until the client is closed.
// Text frames are never dropped while the peer is connected.
func (c *Client) enqueue(data WriteData) {
	select {
	case c.send <- data:
	case <-c.done:
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
	})
}
