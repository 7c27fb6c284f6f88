package realtime

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/bt-bridge/voicerag/shared"
	"github.com/bytedance/sonic"
	"github.com/coder/websocket"
	"github.com/openai/openai-go/v3/realtime"
	"go.uber.org/zap"
)

// Handlers are the named callbacks fired by the receive loop. Nil fields are skipped.
// Every callback runs on the receive goroutine.
type Handlers struct {
	OnWebSocketOpen  func()
	OnWebSocketClose func()
	OnWebSocketError func(err error)

	OnReceivedError                            func(p *ServerEventParamError)
	OnReceivedResponseAudioDelta               func(p *ServerEventParamAudioDelta)
	OnReceivedInputAudioBufferSpeechStarted    func(p *ServerEventParamSpeechStarted)
	OnReceivedExtensionMiddleTierToolResponse  func(p *ServerEventParamToolResponse)
	OnReceivedTranscriptResponseDone           func(p *ServerEventParamTranscriptDone)
	OnReceivedInputAudioTranscriptionCompleted func(p *ServerEventParamInputAudioTranscriptionCompleted)
}

type ClientOption func(*Client)

func WithSessionConfig(cfg *realtime.RealtimeSessionCreateRequestParam) ClientOption {
	return func(c *Client) {
		c.cfg = cfg
	}
}

// WithInputAudioTranscription controls whether session.update asks for user
// speech to be transcribed. Disabled strips any transcription block from the config.
func WithInputAudioTranscription(enabled bool) ClientOption {
	return func(c *Client) {
		c.transcribe = enabled
	}
}

// WithProbe makes Connect check that the middle tier answers HTTP before dialing.
func WithProbe(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.probe = true
		c.probeTimeout = timeout
	}
}

type Client struct {
	logger       shared.LoggerAdapter
	endpoint     *url.URL
	cfg          *realtime.RealtimeSessionCreateRequestParam
	transcribe   bool
	probe        bool
	probeTimeout time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	h       *Handlers
	running bool
	closing bool

	ctx    context.Context
	cancel context.CancelCauseFunc
}

func NewClient(ctx context.Context, logger shared.LoggerAdapter, endpoint string, opts ...ClientOption) (*Client, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if endpoint == "" {
		return nil, shared.ErrNoEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("endpoint scheme %q: want ws or wss", u.Scheme)
	}
	ctx, cancel := context.WithCancelCause(ctx)
	c := &Client{
		logger:     logger.With(zap.String("endpoint", u.String())),
		endpoint:   u,
		transcribe: true,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) respectCtx() error {
	select {
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
	}
	return nil
}

// Done is closed once the client is closed or the connection is lost.
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Client) RegisterHandlers(h Handlers) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return shared.ErrAlreadyConnected
	}
	if c.h != nil {
		return shared.ErrEHandlerAlreadySet
	}
	c.h = &h
	return nil
}

// Connect dials the middle tier and starts the receive loop.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if err := c.connectLocked(ctx); err != nil {
		c.mu.Unlock()
		return err
	}
	conn := c.conn
	c.mu.Unlock()

	c.logger.Info("websocket connected")
	if c.h.OnWebSocketOpen != nil {
		c.h.OnWebSocketOpen()
	}
	go c.receiveLoop(conn)
	return nil
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.running {
		return shared.ErrAlreadyConnected
	}
	if c.h == nil {
		return shared.ErrNoEventHandler
	}
	if err := c.respectCtx(); err != nil {
		return fmt.Errorf("respecting client context: %w", err)
	}
	if c.probe {
		if err := Probe(ctx, c.endpoint.String(), c.probeTimeout); err != nil {
			return err
		}
	}
	conn, _, err := websocket.Dial(ctx, c.endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.endpoint, err)
	}
	// Session payloads and long transcripts exceed the 32KiB default.
	conn.SetReadLimit(1 << 22)
	c.conn = conn
	c.running = true
	return nil
}

func (c *Client) receiveLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(c.ctx)
		if err != nil {
			c.disconnect(err)
			return
		}
		event := new(ServerEvent)
		if err := event.UnmarshalJSON(data); err != nil {
			if errors.Is(err, shared.ErrUnknownEvent) {
				c.logger.Debug("ignoring event", zap.String("type", string(event.Type)))
				continue
			}
			c.logger.Error("can not unmarshal event", err, zap.ByteString("data", data))
			continue
		}
		c.logger.Trace(
			"received event",
			zap.String("type", string(event.Type)),
			zap.String("event_id", event.EventId),
		)
		c.dispatch(event)
	}
}

func (c *Client) dispatch(event *ServerEvent) {
	h := c.h
	switch p := event.Param.(type) {
	case *ServerEventParamError:
		c.logger.Warn("server error event", zap.String("message", p.Message), zap.String("code", p.Code))
		if h.OnReceivedError != nil {
			h.OnReceivedError(p)
		}
	case *ServerEventParamAudioDelta:
		if h.OnReceivedResponseAudioDelta != nil {
			h.OnReceivedResponseAudioDelta(p)
		}
	case *ServerEventParamSpeechStarted:
		if h.OnReceivedInputAudioBufferSpeechStarted != nil {
			h.OnReceivedInputAudioBufferSpeechStarted(p)
		}
	case *ServerEventParamToolResponse:
		if h.OnReceivedExtensionMiddleTierToolResponse != nil {
			h.OnReceivedExtensionMiddleTierToolResponse(p)
		}
	case *ServerEventParamTranscriptDone:
		if h.OnReceivedTranscriptResponseDone != nil {
			h.OnReceivedTranscriptResponseDone(p)
		}
	case *ServerEventParamInputAudioTranscriptionCompleted:
		if h.OnReceivedInputAudioTranscriptionCompleted != nil {
			h.OnReceivedInputAudioTranscriptionCompleted(p)
		}
	default:
		c.logger.Debug("unhandled event", zap.String("type", string(event.Type)))
	}
}

// disconnect tears the connection down after the receive loop stops. A
// normal closure or a local Close fires OnWebSocketClose only.
func (c *Client) disconnect(err error) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.conn = nil
	c.mu.Unlock()

	c.mu.Lock()
	closedLocally := c.closing || c.respectCtx() != nil
	c.mu.Unlock()
	status := websocket.CloseStatus(err)
	if !closedLocally && status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
		c.logger.Error("websocket read failed", err)
		if c.h.OnWebSocketError != nil {
			c.h.OnWebSocketError(err)
		}
	}
	c.logger.Info("websocket closed", zap.Int("status", int(status)))
	if c.h.OnWebSocketClose != nil {
		c.h.OnWebSocketClose()
	}
	c.cancel(fmt.Errorf("connection lost: %w", err))
}

func (c *Client) send(e *ClientEvent) error {
	data, err := e.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", e.Type, err)
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return shared.ErrNotConnected
	}
	if err := conn.Write(c.ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("writing %s: %w", e.Type, err)
	}
	c.logger.Trace("sent event", zap.String("type", string(e.Type)), zap.String("event_id", e.EventId))
	return nil
}

// StartSession sends session.update with the configured session.
func (c *Client) StartSession() error {
	if c.cfg == nil {
		return shared.ErrNoConfig
	}
	cfg := *c.cfg
	if !c.transcribe {
		cfg.Audio.Input.Transcription = realtime.AudioTranscriptionParam{}
	}
	raw, err := cfg.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	var session map[string]any
	if err := sonic.Unmarshal(raw, &session); err != nil {
		return fmt.Errorf("decoding session: %w", err)
	}
	return c.send(NewClientEvent(ClientEventTypeSessionUpdate, map[string]any{
		"session": session,
	}))
}

// AddUserAudio appends a PCM16 chunk to the server side input buffer.
func (c *Client) AddUserAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	return c.send(NewClientEvent(ClientEventTypeInputAudioBufferAppend, map[string]any{
		"audio": base64.StdEncoding.EncodeToString(pcm),
	}))
}

func (c *Client) InputAudioBufferClear() error {
	return c.send(NewClientEvent(ClientEventTypeInputAudioBufferClear, nil))
}

// SetSystemPrompt replaces the middle tier's system message for later responses.
func (c *Client) SetSystemPrompt(prompt string) error {
	return c.send(NewClientEvent(ClientEventTypeSystemPromptUpdate, map[string]any{
		"prompt": prompt,
	}))
}

func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.closing = true
	c.mu.Unlock()
	if c.respectCtx() != nil {
		return nil
	}
	var err error
	if conn != nil {
		if err = conn.Close(websocket.StatusNormalClosure, "client closed"); err != nil {
			c.logger.Error("closing websocket failed", err)
		}
	}
	c.cancel(errors.New("client closed"))
	return err
}
