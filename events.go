package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bt-bridge/voicerag/shared"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

type EventType string

type ServerEventType EventType

type ClientEventType EventType

// Server event types. The middle tier relays both the beta and the GA names
// of the audio events depending on the deployment, so both are accepted.
const (
	ServerEventTypeError                                            ServerEventType = "error"
	ServerEventTypeSessionCreated                                   ServerEventType = "session.created"
	ServerEventTypeSessionUpdated                                   ServerEventType = "session.updated"
	ServerEventTypeConversationItemInputAudioTranscriptionCompleted ServerEventType = "conversation.item.input_audio_transcription.completed"
	ServerEventTypeInputAudioBufferCleared                          ServerEventType = "input_audio_buffer.cleared"
	ServerEventTypeInputAudioBufferSpeechStarted                    ServerEventType = "input_audio_buffer.speech_started"
	ServerEventTypeInputAudioBufferSpeechStopped                    ServerEventType = "input_audio_buffer.speech_stopped"
	ServerEventTypeResponseDone                                     ServerEventType = "response.done"
	ServerEventTypeResponseAudioDelta                               ServerEventType = "response.audio.delta"
	ServerEventTypeResponseOutputAudioDelta                         ServerEventType = "response.output_audio.delta"
	ServerEventTypeResponseAudioTranscriptDone                      ServerEventType = "response.audio_transcript.done"
	ServerEventTypeResponseOutputAudioTranscriptDone                ServerEventType = "response.output_audio_transcript.done"
	ServerEventTypeExtensionMiddleTierToolResponse                  ServerEventType = "extension.middle_tier_tool_response"
)

// Client event types
const (
	ClientEventTypeSessionUpdate          ClientEventType = "session.update"
	ClientEventTypeInputAudioBufferAppend ClientEventType = "input_audio_buffer.append"
	ClientEventTypeInputAudioBufferClear  ClientEventType = "input_audio_buffer.clear"
	ClientEventTypeSystemPromptUpdate     ClientEventType = "system.prompt.update"
)

type EventParam interface {
	New(map[string]any) error
	Json() map[string]any
}

// ServerEvent is a decoded message received from the middle tier.
// EventId is empty for extension events, which the middle tier synthesizes.
type ServerEvent struct {
	EventId string
	Type    ServerEventType
	Param   EventParam
}

func newServerEventParam(t ServerEventType) (EventParam, error) {
	switch t {
	case ServerEventTypeError:
		return new(ServerEventParamError), nil
	case ServerEventTypeSessionCreated, ServerEventTypeSessionUpdated:
		return new(ServerEventParamSession), nil
	case ServerEventTypeConversationItemInputAudioTranscriptionCompleted:
		return new(ServerEventParamInputAudioTranscriptionCompleted), nil
	case ServerEventTypeInputAudioBufferCleared:
		return new(ServerEventParamEmpty), nil
	case ServerEventTypeInputAudioBufferSpeechStarted:
		return new(ServerEventParamSpeechStarted), nil
	case ServerEventTypeInputAudioBufferSpeechStopped:
		return new(ServerEventParamSpeechStopped), nil
	case ServerEventTypeResponseDone:
		return new(ServerEventParamResponseDone), nil
	case ServerEventTypeResponseAudioDelta, ServerEventTypeResponseOutputAudioDelta:
		return new(ServerEventParamAudioDelta), nil
	case ServerEventTypeResponseAudioTranscriptDone, ServerEventTypeResponseOutputAudioTranscriptDone:
		return new(ServerEventParamTranscriptDone), nil
	case ServerEventTypeExtensionMiddleTierToolResponse:
		return new(ServerEventParamToolResponse), nil
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrUnknownEvent, t)
}

func (e *ServerEvent) MarshalJSON() ([]byte, error) {
	if e.Type == "" {
		return nil, errors.New("Type is empty")
	}
	if e.Param == nil {
		return nil, errors.New("Param is nil")
	}
	resp := map[string]any{}
	for k, v := range e.Param.Json() {
		resp[k] = v
	}
	if e.EventId != "" {
		resp["event_id"] = e.EventId
	}
	resp["type"] = e.Type
	return sonic.Marshal(resp)
}

// UnmarshalJSON decodes a server event. Unknown event types yield an error
// wrapping shared.ErrUnknownEvent with Type already populated.
func (e *ServerEvent) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["type"].(string); ok && v != "" {
		e.Type = ServerEventType(v)
		delete(raw, "type")
	} else {
		return errors.New("missing type")
	}
	if v, ok := raw["event_id"].(string); ok {
		e.EventId = v
		delete(raw, "event_id")
	}
	param, err := newServerEventParam(e.Type)
	if err != nil {
		return err
	}
	if err := param.New(raw); err != nil {
		return fmt.Errorf("decoding %s: %w", e.Type, err)
	}
	e.Param = param
	return nil
}

// ClientEvent is a message sent to the middle tier.
type ClientEvent struct {
	EventId string
	Type    ClientEventType
	Fields  map[string]any
}

func NewClientEvent(t ClientEventType, fields map[string]any) *ClientEvent {
	return &ClientEvent{
		EventId: uuid.NewString(),
		Type:    t,
		Fields:  fields,
	}
}

func (e *ClientEvent) MarshalJSON() ([]byte, error) {
	if e.Type == "" {
		return nil, errors.New("Type is empty")
	}
	resp := make(map[string]any, len(e.Fields)+2)
	for k, v := range e.Fields {
		resp[k] = v
	}
	if e.EventId != "" {
		resp["event_id"] = e.EventId
	}
	resp["type"] = e.Type
	return sonic.Marshal(resp)
}

// Helpers for number conversions
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

// error
type ServerEventParamError struct {
	Type    string
	Code    string
	Message string
	Param   any
}

func (p *ServerEventParamError) New(m map[string]any) error {
	errObj, ok := m["error"].(map[string]any)
	if !ok {
		return errors.New("missing error")
	}
	if v, ok := errObj["message"].(string); ok {
		p.Message = v
	} else {
		return errors.New("missing error.message")
	}
	// type and code are absent on errors raised by the middle tier itself
	p.Type, _ = errObj["type"].(string)
	p.Code, _ = errObj["code"].(string)
	p.Param = errObj["param"]
	return nil
}

func (p *ServerEventParamError) Json() map[string]any {
	return map[string]any{
		"error": map[string]any{
			"type":    p.Type,
			"code":    p.Code,
			"message": p.Message,
			"param":   p.Param,
		},
	}
}

func (p *ServerEventParamError) Error() string {
	if p.Code != "" {
		return fmt.Sprintf("%s (%s): %s", p.Type, p.Code, p.Message)
	}
	if p.Type != "" {
		return fmt.Sprintf("%s: %s", p.Type, p.Message)
	}
	return p.Message
}

// session.created / session.updated
type ServerEventParamSession struct {
	Session map[string]any
}

func (p *ServerEventParamSession) New(m map[string]any) error {
	if session, ok := m["session"].(map[string]any); ok {
		p.Session = session
	} else {
		return errors.New("missing session")
	}
	return nil
}

func (p *ServerEventParamSession) Json() map[string]any {
	return map[string]any{
		"session": p.Session,
	}
}

// input_audio_buffer.cleared
type ServerEventParamEmpty struct{}

func (p *ServerEventParamEmpty) New(map[string]any) error { return nil }

func (p *ServerEventParamEmpty) Json() map[string]any { return map[string]any{} }

// conversation.item.input_audio_transcription.completed
type ServerEventParamInputAudioTranscriptionCompleted struct {
	ItemId       string
	ContentIndex int
	Transcript   string
}

func (p *ServerEventParamInputAudioTranscriptionCompleted) New(m map[string]any) error {
	if v, ok := m["transcript"].(string); ok {
		p.Transcript = v
	} else {
		return errors.New("missing transcript")
	}
	p.ItemId, _ = m["item_id"].(string)
	p.ContentIndex, _ = asInt(m["content_index"])
	return nil
}

func (p *ServerEventParamInputAudioTranscriptionCompleted) Json() map[string]any {
	return map[string]any{
		"item_id":       p.ItemId,
		"content_index": p.ContentIndex,
		"transcript":    p.Transcript,
	}
}

// input_audio_buffer.speech_started
type ServerEventParamSpeechStarted struct {
	AudioStartMs int
	ItemId       string
}

func (p *ServerEventParamSpeechStarted) New(m map[string]any) error {
	p.AudioStartMs, _ = asInt(m["audio_start_ms"])
	p.ItemId, _ = m["item_id"].(string)
	return nil
}

func (p *ServerEventParamSpeechStarted) Json() map[string]any {
	return map[string]any{
		"audio_start_ms": p.AudioStartMs,
		"item_id":        p.ItemId,
	}
}

// input_audio_buffer.speech_stopped
type ServerEventParamSpeechStopped struct {
	AudioEndMs int
	ItemId     string
}

func (p *ServerEventParamSpeechStopped) New(m map[string]any) error {
	p.AudioEndMs, _ = asInt(m["audio_end_ms"])
	p.ItemId, _ = m["item_id"].(string)
	return nil
}

func (p *ServerEventParamSpeechStopped) Json() map[string]any {
	return map[string]any{
		"audio_end_ms": p.AudioEndMs,
		"item_id":      p.ItemId,
	}
}

// response.done
type ServerEventParamResponseDone struct {
	Response map[string]any
}

func (p *ServerEventParamResponseDone) New(m map[string]any) error {
	if v, ok := m["response"].(map[string]any); ok {
		p.Response = v
	} else {
		return errors.New("missing response")
	}
	return nil
}

func (p *ServerEventParamResponseDone) Json() map[string]any {
	return map[string]any{
		"response": p.Response,
	}
}

// response.audio.delta / response.output_audio.delta
type ServerEventParamAudioDelta struct {
	ResponseId   string
	ItemId       string
	OutputIndex  int
	ContentIndex int
	// Delta is base64 encoded PCM16.
	Delta string
}

func (p *ServerEventParamAudioDelta) New(m map[string]any) error {
	if v, ok := m["delta"].(string); ok {
		p.Delta = v
	} else {
		return errors.New("missing delta")
	}
	p.ResponseId, _ = m["response_id"].(string)
	p.ItemId, _ = m["item_id"].(string)
	p.OutputIndex, _ = asInt(m["output_index"])
	p.ContentIndex, _ = asInt(m["content_index"])
	return nil
}

func (p *ServerEventParamAudioDelta) Json() map[string]any {
	return map[string]any{
		"response_id":   p.ResponseId,
		"item_id":       p.ItemId,
		"output_index":  p.OutputIndex,
		"content_index": p.ContentIndex,
		"delta":         p.Delta,
	}
}

// response.audio_transcript.done / response.output_audio_transcript.done
type ServerEventParamTranscriptDone struct {
	ResponseId   string
	ItemId       string
	OutputIndex  int
	ContentIndex int
	Transcript   string
}

func (p *ServerEventParamTranscriptDone) New(m map[string]any) error {
	if v, ok := m["transcript"].(string); ok {
		p.Transcript = v
	} else {
		return errors.New("missing transcript")
	}
	p.ResponseId, _ = m["response_id"].(string)
	p.ItemId, _ = m["item_id"].(string)
	p.OutputIndex, _ = asInt(m["output_index"])
	p.ContentIndex, _ = asInt(m["content_index"])
	return nil
}

func (p *ServerEventParamTranscriptDone) Json() map[string]any {
	return map[string]any{
		"response_id":   p.ResponseId,
		"item_id":       p.ItemId,
		"output_index":  p.OutputIndex,
		"content_index": p.ContentIndex,
		"transcript":    p.Transcript,
	}
}

// extension.middle_tier_tool_response
type ServerEventParamToolResponse struct {
	PreviousItemId string
	ToolName       string
	// ToolResult is the tool output, itself a JSON document encoded as a string.
	ToolResult string
}

func (p *ServerEventParamToolResponse) New(m map[string]any) error {
	if v, ok := m["tool_result"].(string); ok {
		p.ToolResult = v
	} else {
		return errors.New("missing tool_result")
	}
	p.PreviousItemId, _ = m["previous_item_id"].(string)
	p.ToolName, _ = m["tool_name"].(string)
	return nil
}

func (p *ServerEventParamToolResponse) Json() map[string]any {
	return map[string]any{
		"previous_item_id": p.PreviousItemId,
		"tool_name":        p.ToolName,
		"tool_result":      p.ToolResult,
	}
}
