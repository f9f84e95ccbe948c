package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/remotevibe/bridge/internal/agentapi"
	"github.com/remotevibe/bridge/internal/db"
)

type fakeAgentClients struct {
	client *agentapi.Client
}

func (f *fakeAgentClients) Client(ctx context.Context, directory string) (*agentapi.Client, error) {
	return f.client, nil
}

func newTestGDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Connect(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return gdb
}

func TestToolServer_SubmitMessage_RendersReplyUpToStepFinish(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/session":
			_ = json.NewEncoder(w).Encode(agentapi.Session{ID: "ses_1"})
		case r.Method == http.MethodPost && r.URL.Path == "/session/ses_1/message":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/event":
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			flusher := w.(http.Flusher)

			text, _ := json.Marshal(agentapi.Event{
				Type: agentapi.EventPartUpdated, Session: "ses_1",
				Part: &agentapi.Part{ID: "p1", MessageID: "m1", Type: agentapi.PartText, Text: "the tests pass"},
			})
			fmt.Fprintf(w, "data: %s\n\n", text)
			flusher.Flush()

			finish, _ := json.Marshal(agentapi.Event{
				Type: agentapi.EventPartUpdated, Session: "ses_1",
				Part: &agentapi.Part{ID: "p2", MessageID: "m1", Type: agentapi.PartStepFinish},
			})
			fmt.Fprintf(w, "data: %s\n\n", finish)
			flusher.Flush()

			<-r.Context().Done()
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	gdb := newTestGDB(t)
	ts := NewToolServer(&fakeAgentClients{client: agentapi.New(srv.URL)}, gdb, "/proj", "chan-1")

	reply, err := ts.SubmitMessage(context.Background(), "run the tests")
	require.NoError(t, err)
	require.Equal(t, "the tests pass", reply)

	bound, err := db.GetThreadSession(gdb, voiceThreadKey("chan-1"))
	require.NoError(t, err)
	require.Equal(t, "ses_1", bound)
}

func TestToolServer_ListChats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]agentapi.Session{{ID: "ses_1", Title: "fix the bug"}})
	}))
	defer srv.Close()

	ts := NewToolServer(&fakeAgentClients{client: agentapi.New(srv.URL)}, newTestGDB(t), "/proj", "chan-1")
	sessions, err := ts.ListChats(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "fix the bug", sessions[0].Title)
}

func TestToolServer_SearchFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "router", r.URL.Query().Get("query"))
		_ = json.NewEncoder(w).Encode(map[string]any{"files": []string{"internal/discord/router.go"}})
	}))
	defer srv.Close()

	ts := NewToolServer(&fakeAgentClients{client: agentapi.New(srv.URL)}, newTestGDB(t), "/proj", "chan-1")
	files, err := ts.SearchFiles(context.Background(), "router")
	require.NoError(t, err)
	require.Equal(t, []string{"internal/discord/router.go"}, files)
}

func TestToolServer_AbortChat_NoBoundSessionIsNoop(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ts := NewToolServer(&fakeAgentClients{client: agentapi.New(srv.URL)}, newTestGDB(t), "/proj", "chan-1")
	err := ts.AbortChat(context.Background())
	require.NoError(t, err)
	require.False(t, called)
}

func TestToolServer_AbortChat_AbortsBoundSession(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gdb := newTestGDB(t)
	require.NoError(t, db.UpsertThreadSession(gdb, voiceThreadKey("chan-1"), "ses_bound"))
	ts := NewToolServer(&fakeAgentClients{client: agentapi.New(srv.URL)}, gdb, "/proj", "chan-1")

	err := ts.AbortChat(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/session/ses_bound/abort", gotPath)
}

func TestToolServer_GetModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"providers": []agentapi.Provider{{ID: "anthropic", ContextSize: 200000}},
		})
	}))
	defer srv.Close()

	ts := NewToolServer(&fakeAgentClients{client: agentapi.New(srv.URL)}, newTestGDB(t), "/proj", "chan-1")
	providers, err := ts.GetModels(context.Background())
	require.NoError(t, err)
	require.Len(t, providers, 1)
	require.Equal(t, "anthropic", providers[0].ID)
}

func TestToolServer_Dispatch_UnknownToolErrors(t *testing.T) {
	ts := NewToolServer(&fakeAgentClients{}, newTestGDB(t), "/proj", "chan-1")
	_, err := ts.Dispatch(context.Background(), ToolCall{ID: "c1", Name: "doTheImpossible"})
	require.Error(t, err)
}

func TestSummarizeSessions_EmptyList(t *testing.T) {
	require.Equal(t, "There are no chats yet.", summarizeSessions(nil))
}

func TestSummarizeProviders_EmptyList(t *testing.T) {
	require.Equal(t, "No models are configured.", summarizeProviders(nil))
}
