package bridge

import (
	"context"
	"fmt"

	"github.com/remotevibe/bridge/internal/agentapi"
)

// Poster is the minimal Discord surface the mediator needs: post a message
// into a thread and react to one already posted there.
type Poster interface {
	Post(threadID, content string) (messageID string, err error)
	React(threadID, messageID, emoji string) error
}

// PermissionMediator tracks the single pending permission per thread and
// resolves it against the Agent's permission-reply endpoint.
type PermissionMediator struct {
	state  *State
	poster Poster
}

// NewPermissionMediator returns a mediator backed by state and poster.
func NewPermissionMediator(state *State, poster Poster) *PermissionMediator {
	return &PermissionMediator{state: state, poster: poster}
}

// Requested handles a `permission.updated` event: posts the prompt and
// records the pending entry keyed by thread id.
func (m *PermissionMediator) Requested(threadID string, ev agentapi.Permission) error {
	body := fmt.Sprintf("⚠️ **Permission Required**\n%s: %s", ev.Type, ev.Title)
	if ev.Pattern != "" {
		body += fmt.Sprintf("\n`%s`", ev.Pattern)
	}
	body += "\n\nReply `/accept`, `/accept-always`, or `/reject`."

	msgID, err := m.poster.Post(threadID, body)
	if err != nil {
		return fmt.Errorf("bridge: post permission prompt: %w", err)
	}

	m.state.SetPendingPermission(threadID, &PendingPermission{
		PermissionID:     ev.ID,
		SessionID:        ev.SessionID,
		Type:             ev.Type,
		Title:            ev.Title,
		Pattern:          ev.Pattern,
		DiscordMessageID: msgID,
		Directory:        ev.Directory,
	})
	return nil
}

// Replied handles a `permission.replied` event: clears the pending entry.
func (m *PermissionMediator) Replied(threadID string) {
	m.state.ClearPendingPermission(threadID)
}

// scope maps a resolution command to the Agent's permission-reply scope.
func scope(command string) (string, bool) {
	switch command {
	case "accept":
		return "once", true
	case "accept-always":
		return "always", true
	case "reject":
		return "reject", true
	default:
		return "", false
	}
}

// Resolve answers the pending permission for threadID with command
// ("accept" | "accept-always" | "reject"), calls the Agent, clears the
// entry, and posts a short confirmation.
func (m *PermissionMediator) Resolve(ctx context.Context, client *agentapi.Client, threadID, command string) error {
	sc, ok := scope(command)
	if !ok {
		return fmt.Errorf("bridge: unknown permission resolution %q", command)
	}

	pending, ok := m.state.PendingPermissionFor(threadID)
	if !ok {
		_, err := m.poster.Post(threadID, "No pending permission request in this thread.")
		return err
	}

	if err := client.ReplyPermission(ctx, pending.SessionID, pending.PermissionID, sc); err != nil {
		return fmt.Errorf("bridge: reply permission: %w", err)
	}
	m.state.ClearPendingPermission(threadID)

	confirmations := map[string]string{
		"once":   "✅ Permission accepted",
		"always": "✅ Permission accepted (auto-approve similar requests)",
		"reject": "🚫 Permission rejected",
	}
	_, err := m.poster.Post(threadID, confirmations[sc])
	return err
}

// Abort aborts sessionID's cancellation handle with reason "user abort" and
// calls the Agent's session-abort endpoint.
func (m *PermissionMediator) Abort(ctx context.Context, client *agentapi.Client, sessionID string) error {
	if h, ok := m.state.CancelHandleFor(sessionID); ok {
		h.Abort(AbortUserAbort)
	}
	return client.Abort(ctx, sessionID)
}

// Share calls the Agent's share endpoint and posts the returned URL.
func (m *PermissionMediator) Share(ctx context.Context, client *agentapi.Client, threadID, sessionID string) error {
	url, err := client.Share(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("bridge: share session: %w", err)
	}
	_, err = m.poster.Post(threadID, fmt.Sprintf("🔗 **Session shared:** %s", url))
	return err
}
