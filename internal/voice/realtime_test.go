package voice

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// fakeModelServer stands in for the realtime model endpoint: it echoes back
// one audio-delta event whenever it receives an input_audio_buffer.append,
// and records every frame that arrived.
func fakeModelServer(t *testing.T, gotAuth chan<- string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotAuth != nil {
			gotAuth <- r.Header.Get("Authorization")
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg map[string]any
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			if msg["type"] == "input_audio_buffer.append" {
				reply, _ := json.Marshal(map[string]any{
					"type":  "response.audio.delta",
					"delta": "ZmFrZQ==", // base64("fake")
				})
				if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
					return
				}
			}
		}
	}))
}

func TestDialRealtime_SendsBearerAuth(t *testing.T) {
	authCh := make(chan string, 1)
	srv := fakeModelServer(t, authCh)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	rs, err := DialRealtime(url, "secret-key")
	if err != nil {
		t.Fatalf("DialRealtime: %v", err)
	}
	defer rs.Close()

	select {
	case got := <-authCh:
		if got != "Bearer secret-key" {
			t.Fatalf("Authorization = %q, want %q", got, "Bearer secret-key")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for auth header")
	}
}

func TestRealtimeSession_RoundTripsAudioDelta(t *testing.T) {
	srv := fakeModelServer(t, nil)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	rs, err := DialRealtime(url, "")
	if err != nil {
		t.Fatalf("DialRealtime: %v", err)
	}
	defer rs.Close()

	if err := rs.SendAudioFrame([]byte("100ms of pcm")); err != nil {
		t.Fatalf("SendAudioFrame: %v", err)
	}

	select {
	case ev := <-rs.Events():
		if ev.Type != "response.audio.delta" {
			t.Fatalf("event type = %q, want response.audio.delta", ev.Type)
		}
		if ev.AudioDelta != "ZmFrZQ==" {
			t.Fatalf("audio delta = %q", ev.AudioDelta)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for model event")
	}
}

func TestRealtimeSession_EventsClosedOnServerClose(t *testing.T) {
	srv := fakeModelServer(t, nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	rs, err := DialRealtime(url, "")
	if err != nil {
		t.Fatalf("DialRealtime: %v", err)
	}
	defer rs.Close()

	srv.Close()

	select {
	case _, ok := <-rs.Events():
		if ok {
			t.Fatal("expected events channel to close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events channel to close")
	}
}
