package realtime

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bt-bridge/voicerag/shared"
	"github.com/bytedance/sonic"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsURL converts an httptest server HTTP URL to a websocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// startMiddleTier launches a test websocket server running handler per connection.
func startMiddleTier(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.CloseNow()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, sonic.Unmarshal(data, &m))
	return m
}

func writeEvent(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(raw)); err != nil {
		t.Logf("writeEvent: %v (may be expected on close)", err)
	}
}

func newTestClient(t *testing.T, endpoint string, opts ...ClientOption) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), shared.NewNopLogger(), endpoint, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(context.Background(), nil, "ws://localhost:8765/realtime")
	assert.ErrorIs(t, err, shared.ErrNoLogger)

	_, err = NewClient(context.Background(), shared.NewNopLogger(), "")
	assert.ErrorIs(t, err, shared.ErrNoEndpoint)

	_, err = NewClient(context.Background(), shared.NewNopLogger(), "http://localhost:8765/realtime")
	assert.Error(t, err)
}

func TestClient_RegisterHandlersOnce(t *testing.T) {
	c := newTestClient(t, "ws://localhost:8765/realtime")

	require.NoError(t, c.RegisterHandlers(Handlers{}))
	assert.ErrorIs(t, c.RegisterHandlers(Handlers{}), shared.ErrEHandlerAlreadySet)
}

func TestClient_ConnectRequiresHandlers(t *testing.T) {
	c := newTestClient(t, "ws://localhost:8765/realtime")

	assert.ErrorIs(t, c.Connect(context.Background()), shared.ErrNoEventHandler)
}

func TestClient_SendBeforeConnect(t *testing.T) {
	c := newTestClient(t, "ws://localhost:8765/realtime")

	assert.ErrorIs(t, c.SetSystemPrompt("x"), shared.ErrNotConnected)
	assert.ErrorIs(t, c.InputAudioBufferClear(), shared.ErrNotConnected)
}

func TestClient_StartSessionRequiresConfig(t *testing.T) {
	c := newTestClient(t, "ws://localhost:8765/realtime")

	assert.ErrorIs(t, c.StartSession(), shared.ErrNoConfig)
}

func TestClient_SendsWireMessages(t *testing.T) {
	received := make(chan map[string]any, 8)
	srv := startMiddleTier(t, func(conn *websocket.Conn) {
		for range 4 {
			received <- readEvent(t, conn)
		}
	})
	cfg := NewSessionConfig(shared.DefaultConfig().Session, shared.DefaultConfig().Audio)
	c := newTestClient(t, wsURL(srv), WithSessionConfig(cfg), WithProbe(time.Second))
	opened := make(chan struct{}, 1)
	require.NoError(t, c.RegisterHandlers(Handlers{OnWebSocketOpen: func() { opened <- struct{}{} }}))
	require.NoError(t, c.Connect(context.Background()))
	<-opened
	assert.True(t, c.Connected())

	require.NoError(t, c.StartSession())
	require.NoError(t, c.AddUserAudio([]byte{1, 2, 3}))
	require.NoError(t, c.InputAudioBufferClear())
	require.NoError(t, c.SetSystemPrompt("  be brief "))

	update := <-received
	assert.Equal(t, "session.update", update["type"])
	assert.NotEmpty(t, update["event_id"])
	session := update["session"].(map[string]any)
	input := session["audio"].(map[string]any)["input"].(map[string]any)
	assert.Contains(t, input, "transcription")

	appendMsg := <-received
	assert.Equal(t, "input_audio_buffer.append", appendMsg["type"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), appendMsg["audio"])

	assert.Equal(t, "input_audio_buffer.clear", (<-received)["type"])

	prompt := <-received
	assert.Equal(t, "system.prompt.update", prompt["type"])
	assert.Equal(t, "  be brief ", prompt["prompt"])
}

func TestClient_StartSessionWithoutTranscription(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := startMiddleTier(t, func(conn *websocket.Conn) {
		received <- readEvent(t, conn)
	})
	cfg := NewSessionConfig(shared.DefaultConfig().Session, shared.DefaultConfig().Audio)
	c := newTestClient(t, wsURL(srv), WithSessionConfig(cfg), WithInputAudioTranscription(false))
	require.NoError(t, c.RegisterHandlers(Handlers{}))
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.StartSession())

	update := <-received
	input := update["session"].(map[string]any)["audio"].(map[string]any)["input"].(map[string]any)
	assert.NotContains(t, input, "transcription")
}

func TestClient_DispatchesServerEvents(t *testing.T) {
	srv := startMiddleTier(t, func(conn *websocket.Conn) {
		writeEvent(t, conn, `{"type":"rate_limits.updated","event_id":"e0","rate_limits":[]}`)
		writeEvent(t, conn, `{"type":"input_audio_buffer.speech_started","event_id":"e1","audio_start_ms":10}`)
		writeEvent(t, conn, `{"type":"response.output_audio.delta","event_id":"e2","delta":"AAE="}`)
		writeEvent(t, conn, `{"type":"response.output_audio_transcript.done","event_id":"e3","transcript":"hi"}`)
		writeEvent(t, conn, `{"type":"conversation.item.input_audio_transcription.completed","event_id":"e4","transcript":"hello"}`)
		writeEvent(t, conn, `{"type":"extension.middle_tier_tool_response","previous_item_id":"p","tool_name":"report_grounding","tool_result":"{\"sources\":[]}"}`)
		writeEvent(t, conn, `{"type":"error","event_id":"e5","error":{"type":"server_error","message":"boom"}}`)
		// keep the socket open until the client has read everything
		_, _, _ = conn.Read(context.Background())
	})
	got := make(chan string, 16)
	c := newTestClient(t, wsURL(srv))
	require.NoError(t, c.RegisterHandlers(Handlers{
		OnReceivedInputAudioBufferSpeechStarted:    func(p *ServerEventParamSpeechStarted) { got <- "speech_started" },
		OnReceivedResponseAudioDelta:               func(p *ServerEventParamAudioDelta) { got <- "delta:" + p.Delta },
		OnReceivedTranscriptResponseDone:           func(p *ServerEventParamTranscriptDone) { got <- "assistant:" + p.Transcript },
		OnReceivedInputAudioTranscriptionCompleted: func(p *ServerEventParamInputAudioTranscriptionCompleted) { got <- "user:" + p.Transcript },
		OnReceivedExtensionMiddleTierToolResponse:  func(p *ServerEventParamToolResponse) { got <- "tool:" + p.ToolName },
		OnReceivedError:                            func(p *ServerEventParamError) { got <- "error:" + p.Message },
	}))
	require.NoError(t, c.Connect(context.Background()))

	var events []string
	timeout := time.After(3 * time.Second)
	for len(events) < 6 {
		select {
		case e := <-got:
			events = append(events, e)
		case <-timeout:
			t.Fatalf("timed out, got %v", events)
		}
	}
	assert.Equal(t, []string{
		"speech_started",
		"delta:AAE=",
		"assistant:hi",
		"user:hello",
		"tool:report_grounding",
		"error:boom",
	}, events)
}

func TestClient_ServerCloseFiresOnClose(t *testing.T) {
	srv := startMiddleTier(t, func(conn *websocket.Conn) {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	})
	closed := make(chan struct{})
	errored := make(chan error, 1)
	c := newTestClient(t, wsURL(srv))
	require.NoError(t, c.RegisterHandlers(Handlers{
		OnWebSocketClose: func() { close(closed) },
		OnWebSocketError: func(err error) { errored <- err },
	}))
	require.NoError(t, c.Connect(context.Background()))

	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatal("OnWebSocketClose not called")
	}
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("client context not cancelled")
	}
	assert.Empty(t, errored)
	assert.False(t, c.Connected())
}

func TestClient_AbnormalCloseFiresOnError(t *testing.T) {
	srv := startMiddleTier(t, func(conn *websocket.Conn) {
		_ = conn.Close(websocket.StatusInternalError, "crash")
	})
	errored := make(chan error, 1)
	closed := make(chan struct{})
	c := newTestClient(t, wsURL(srv))
	require.NoError(t, c.RegisterHandlers(Handlers{
		OnWebSocketError: func(err error) { errored <- err },
		OnWebSocketClose: func() { close(closed) },
	}))
	require.NoError(t, c.Connect(context.Background()))

	select {
	case err := <-errored:
		assert.Equal(t, websocket.StatusInternalError, websocket.CloseStatus(err))
	case <-time.After(3 * time.Second):
		t.Fatal("OnWebSocketError not called")
	}
	<-closed
}

func TestClient_LocalCloseIsQuiet(t *testing.T) {
	srv := startMiddleTier(t, func(conn *websocket.Conn) {
		_, _, _ = conn.Read(context.Background())
	})
	errored := make(chan error, 1)
	c := newTestClient(t, wsURL(srv))
	require.NoError(t, c.RegisterHandlers(Handlers{
		OnWebSocketError: func(err error) { errored <- err },
	}))
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Close())

	select {
	case <-c.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("client not done after Close")
	}
	assert.ErrorIs(t, c.SetSystemPrompt("x"), shared.ErrNotConnected)
	assert.Empty(t, errored)
}
