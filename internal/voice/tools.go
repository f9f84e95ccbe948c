package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/remotevibe/bridge/internal/agentapi"
	"github.com/remotevibe/bridge/internal/bridge"
	"github.com/remotevibe/bridge/internal/db"
)

// voiceThreadKey namespaces the shared thread_sessions table for voice
// channels, which have no Discord thread of their own to key on.
func voiceThreadKey(channelID string) string {
	return "voice:" + channelID
}

// ToolServer implements the function-call surface exposed to the realtime
// model, delegating every call back to the same Agent client and session
// bookkeeping the text pipeline uses.
type ToolServer struct {
	agents    bridge.AgentClients
	gdb       *gorm.DB
	directory string
	channelID string
}

// NewToolServer returns a ToolServer bound to one voice channel's project
// directory.
func NewToolServer(agents bridge.AgentClients, gdb *gorm.DB, directory, channelID string) *ToolServer {
	return &ToolServer{agents: agents, gdb: gdb, directory: directory, channelID: channelID}
}

// Dispatch decodes and runs one tool call, returning the text the model
// should speak back (also used as the back-channel system message).
func (t *ToolServer) Dispatch(ctx context.Context, call ToolCall) (string, error) {
	switch call.Name {
	case "submitMessage":
		var args struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return "", fmt.Errorf("voice: decode submitMessage args: %w", err)
		}
		return t.SubmitMessage(ctx, args.Message)

	case "createNewChat":
		var args struct {
			Title string `json:"title"`
		}
		_ = json.Unmarshal(call.Arguments, &args)
		id, err := t.CreateNewChat(ctx, args.Title)
		if err != nil {
			return "", err
		}
		return "Started a new chat: " + id, nil

	case "listChats":
		sessions, err := t.ListChats(ctx)
		if err != nil {
			return "", err
		}
		return summarizeSessions(sessions), nil

	case "readSessionMessages":
		var args struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return "", fmt.Errorf("voice: decode readSessionMessages args: %w", err)
		}
		messages, err := t.ReadSessionMessages(ctx, args.SessionID)
		if err != nil {
			return "", err
		}
		return summarizeMessages(messages), nil

	case "searchFiles":
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return "", fmt.Errorf("voice: decode searchFiles args: %w", err)
		}
		matches, err := t.SearchFiles(ctx, args.Query)
		if err != nil {
			return "", err
		}
		return strings.Join(matches, "\n"), nil

	case "abortChat":
		if err := t.AbortChat(ctx); err != nil {
			return "", err
		}
		return "Aborted the current chat.", nil

	case "getModels":
		providers, err := t.GetModels(ctx)
		if err != nil {
			return "", err
		}
		return summarizeProviders(providers), nil

	default:
		return "", fmt.Errorf("voice: unknown tool %q", call.Name)
	}
}

// SubmitMessage runs one turn through the bound directory's Agent session
// and returns the rendered markdown of the assistant's reply, so the
// realtime model can speak it back.
func (t *ToolServer) SubmitMessage(ctx context.Context, message string) (string, error) {
	client, err := t.agents.Client(ctx, t.directory)
	if err != nil {
		return "", fmt.Errorf("voice: agent client for %s: %w", t.directory, err)
	}

	sessionID, err := t.currentSession(ctx, client, message)
	if err != nil {
		return "", err
	}

	events, errs := client.Stream(ctx)
	if err := client.Prompt(ctx, sessionID, []agentapi.InputPart{{Type: "text", Text: message}}, agentapi.PromptOptions{}); err != nil {
		return "", fmt.Errorf("voice: submit prompt: %w", err)
	}

	return waitForReply(ctx, sessionID, events, errs)
}

func (t *ToolServer) currentSession(ctx context.Context, client *agentapi.Client, message string) (string, error) {
	key := voiceThreadKey(t.channelID)
	sessionID, err := db.GetThreadSession(t.gdb, key)
	if err != nil {
		return "", fmt.Errorf("voice: get bound session: %w", err)
	}
	if sessionID != "" {
		if _, err := client.Session(ctx, sessionID); err != nil {
			sessionID = ""
		}
	}
	if sessionID == "" {
		title := message
		if len(title) > 80 {
			title = title[:80]
		}
		s, err := client.CreateSession(ctx, title, "")
		if err != nil {
			return "", fmt.Errorf("voice: create session: %w", err)
		}
		sessionID = s.ID
		if err := db.UpsertThreadSession(t.gdb, key, sessionID); err != nil {
			return "", fmt.Errorf("voice: persist voice binding: %w", err)
		}
	}
	return sessionID, nil
}

// waitForReply accumulates parts for sessionID until a step-finish event and
// renders them, mirroring the text pipeline's flush but returning the text
// instead of posting it.
func waitForReply(ctx context.Context, sessionID string, events <-chan agentapi.Event, errs <-chan error) (string, error) {
	var b strings.Builder
	for {
		select {
		case <-ctx.Done():
			return b.String(), ctx.Err()
		case err, open := <-errs:
			if open && err != nil {
				return b.String(), fmt.Errorf("voice: event stream: %w", err)
			}
		case ev, open := <-events:
			if !open {
				return b.String(), nil
			}
			if ev.Session != sessionID {
				continue
			}
			switch ev.Type {
			case agentapi.EventPartUpdated:
				if ev.Part == nil || ev.Part.Type == agentapi.PartStepStart {
					continue
				}
				if ev.Part.Type == agentapi.PartStepFinish {
					return b.String(), nil
				}
				if rendered := bridge.FormatPart(*ev.Part); rendered != "" {
					if b.Len() > 0 {
						b.WriteByte('\n')
					}
					b.WriteString(rendered)
				}
			case agentapi.EventSessionError:
				return b.String(), fmt.Errorf("voice: agent session error: %s", ev.Error)
			}
		}
	}
}

// CreateNewChat starts a fresh session for the bound directory, rebinding
// the voice channel to it.
func (t *ToolServer) CreateNewChat(ctx context.Context, title string) (string, error) {
	client, err := t.agents.Client(ctx, t.directory)
	if err != nil {
		return "", fmt.Errorf("voice: agent client for %s: %w", t.directory, err)
	}
	s, err := client.CreateSession(ctx, title, "")
	if err != nil {
		return "", fmt.Errorf("voice: create session: %w", err)
	}
	if err := db.UpsertThreadSession(t.gdb, voiceThreadKey(t.channelID), s.ID); err != nil {
		return "", fmt.Errorf("voice: persist voice binding: %w", err)
	}
	return s.ID, nil
}

// ListChats lists every session known to the bound directory's Agent.
func (t *ToolServer) ListChats(ctx context.Context) ([]agentapi.Session, error) {
	client, err := t.agents.Client(ctx, t.directory)
	if err != nil {
		return nil, fmt.Errorf("voice: agent client for %s: %w", t.directory, err)
	}
	return client.Sessions(ctx)
}

// ReadSessionMessages returns every message recorded for a session.
func (t *ToolServer) ReadSessionMessages(ctx context.Context, sessionID string) ([]agentapi.Message, error) {
	client, err := t.agents.Client(ctx, t.directory)
	if err != nil {
		return nil, fmt.Errorf("voice: agent client for %s: %w", t.directory, err)
	}
	return client.Messages(ctx, sessionID)
}

// SearchFiles searches the bound directory's project tree.
func (t *ToolServer) SearchFiles(ctx context.Context, query string) ([]string, error) {
	client, err := t.agents.Client(ctx, t.directory)
	if err != nil {
		return nil, fmt.Errorf("voice: agent client for %s: %w", t.directory, err)
	}
	return client.SearchFiles(ctx, query)
}

// AbortChat cancels whatever session is currently bound to this voice
// channel.
func (t *ToolServer) AbortChat(ctx context.Context) error {
	client, err := t.agents.Client(ctx, t.directory)
	if err != nil {
		return fmt.Errorf("voice: agent client for %s: %w", t.directory, err)
	}
	sessionID, err := db.GetThreadSession(t.gdb, voiceThreadKey(t.channelID))
	if err != nil {
		return fmt.Errorf("voice: get bound session: %w", err)
	}
	if sessionID == "" {
		return nil
	}
	return client.Abort(ctx, sessionID)
}

// GetModels lists the providers/models known to the bound directory's Agent.
func (t *ToolServer) GetModels(ctx context.Context) ([]agentapi.Provider, error) {
	client, err := t.agents.Client(ctx, t.directory)
	if err != nil {
		return nil, fmt.Errorf("voice: agent client for %s: %w", t.directory, err)
	}
	return client.Providers(ctx)
}

func summarizeSessions(sessions []agentapi.Session) string {
	if len(sessions) == 0 {
		return "There are no chats yet."
	}
	var b strings.Builder
	for _, s := range sessions {
		title := s.Title
		if title == "" {
			title = s.ID
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(title)
	}
	return b.String()
}

func summarizeMessages(messages []agentapi.Message) string {
	var b strings.Builder
	for _, m := range messages {
		for _, p := range m.Parts {
			if rendered := bridge.FormatPart(p); rendered != "" {
				if b.Len() > 0 {
					b.WriteByte('\n')
				}
				b.WriteString(rendered)
			}
		}
	}
	if b.Len() == 0 {
		return "That session has no messages yet."
	}
	return b.String()
}

func summarizeProviders(providers []agentapi.Provider) string {
	if len(providers) == 0 {
		return "No models are configured."
	}
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.ID
	}
	return strings.Join(names, ", ")
}
