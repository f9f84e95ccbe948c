package voice

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	realtimePingPeriod  = 20 * time.Second
	realtimePongWait    = 60 * time.Second
	realtimeWriteWait   = 5 * time.Second
	realtimeInboundRate = 100 // frames worth of buffering before the writer applies backpressure
)

// RealtimeEvent is one item decoded from the model's event stream.
type RealtimeEvent struct {
	Type string `json:"type"`

	// AudioDelta carries base64 PCM24k for type "response.audio.delta".
	AudioDelta string `json:"delta,omitempty"`
	// Interrupted marks type "response.audio.interrupted".
	Interrupted bool `json:"interrupted,omitempty"`
	// ToolCall carries the requested function for type "response.function_call".
	ToolCall *ToolCall `json:"tool_call,omitempty"`
}

// ToolCall is one function-call the model wants executed.
type ToolCall struct {
	ID        string          `json:"call_id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// RealtimeSession is a duplex connection to the realtime voice model:
// 100ms PCM16 frames go in, PCM24k audio deltas and tool calls come out.
type RealtimeSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	events chan RealtimeEvent
	done   chan struct{}
}

// DialRealtime opens a websocket session against the realtime model
// endpoint, authenticating with a bearer key.
func DialRealtime(url, apiKey string) (*RealtimeSession, error) {
	header := http.Header{}
	if apiKey != "" {
		header.Set("Authorization", "Bearer "+apiKey)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		return nil, fmt.Errorf("voice: dial realtime model: %w", err)
	}

	rs := &RealtimeSession{
		conn:   conn,
		events: make(chan RealtimeEvent, realtimeInboundRate),
		done:   make(chan struct{}),
	}
	go rs.readPump()
	go rs.pingPump()
	return rs, nil
}

// Events returns the channel of decoded model events. Closed when the
// connection ends.
func (rs *RealtimeSession) Events() <-chan RealtimeEvent {
	return rs.events
}

func (rs *RealtimeSession) readPump() {
	defer close(rs.events)
	defer close(rs.done)

	rs.conn.SetReadDeadline(time.Now().Add(realtimePongWait))
	rs.conn.SetPongHandler(func(string) error {
		rs.conn.SetReadDeadline(time.Now().Add(realtimePongWait))
		return nil
	})

	for {
		_, data, err := rs.conn.ReadMessage()
		if err != nil {
			return
		}
		var ev RealtimeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		select {
		case rs.events <- ev:
		case <-rs.done:
			return
		}
	}
}

func (rs *RealtimeSession) pingPump() {
	ticker := time.NewTicker(realtimePingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-rs.done:
			return
		case <-ticker.C:
			rs.writeMu.Lock()
			rs.conn.SetWriteDeadline(time.Now().Add(realtimeWriteWait))
			err := rs.conn.WriteMessage(websocket.PingMessage, nil)
			rs.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (rs *RealtimeSession) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	rs.writeMu.Lock()
	defer rs.writeMu.Unlock()
	rs.conn.SetWriteDeadline(time.Now().Add(realtimeWriteWait))
	return rs.conn.WriteMessage(websocket.TextMessage, data)
}

// SendAudioFrame appends one 100ms PCM16 frame to the model's input buffer.
func (rs *RealtimeSession) SendAudioFrame(frame []byte) error {
	return rs.writeJSON(map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(frame),
	})
}

// SendStreamEnd commits the input buffer and tells the model the user
// finished speaking.
func (rs *RealtimeSession) SendStreamEnd() error {
	return rs.writeJSON(map[string]any{"type": "input_audio_buffer.commit"})
}

// SendToolResult replies to a tool call with its rendered output, which the
// model reads back as the assistant's spoken reply.
func (rs *RealtimeSession) SendToolResult(callID, output string) error {
	return rs.writeJSON(map[string]any{
		"type":    "conversation.item.create",
		"call_id": callID,
		"output":  output,
	})
}

// SendSystemMessage injects a back-channel system message, used to relay
// what the coding agent just wrote so the voice model can speak it.
func (rs *RealtimeSession) SendSystemMessage(text string) error {
	return rs.writeJSON(map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type": "message",
			"role": "system",
			"content": []map[string]any{
				{"type": "input_text", "text": text},
			},
		},
	})
}

// Close ends the session.
func (rs *RealtimeSession) Close() error {
	return rs.conn.Close()
}
