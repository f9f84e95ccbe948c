package bridge

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/remotevibe/bridge/internal/agentapi"
	"github.com/remotevibe/bridge/internal/db"
	"github.com/remotevibe/bridge/internal/markdown"
)

// systemPreamble identifies the bridge to the Agent and constrains the
// markdown it should emit, since Discord renders a narrower dialect.
const systemPreamble = `You are being relayed through a Discord bridge into session %s.
Use standard markdown. Do not use heading levels deeper than ### (h3).
Do not use GFM tables; prose or bullet lists render better in Discord.`

// SubmitRequest is one user turn to route into a session.
type SubmitRequest struct {
	ThreadID            string
	Prompt              string
	Images              []agentapi.InputPart
	Directory           string
	TriggeringMessageID string
}

// AgentClients resolves the Agent client bound to a project directory,
// spawning a server if none is running. Satisfied by *agent.Supervisor.
type AgentClients interface {
	Client(ctx context.Context, directory string) (*agentapi.Client, error)
}

// Orchestrator runs the per-thread submission pipeline: resolve or create a
// session, supersede any in-flight request, submit the prompt, and stream
// the Agent's response back into the thread.
type Orchestrator struct {
	agents AgentClients
	state  *State
	gdb    *gorm.DB
	poster Poster
	logger *log.Logger
}

// NewOrchestrator returns an Orchestrator wired to its collaborators. The
// part-sent cache in state is seeded from every part id already recorded in
// gdb, so a restarted process still recognizes parts posted before it died.
func NewOrchestrator(agents AgentClients, state *State, gdb *gorm.DB, poster Poster, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	o := &Orchestrator{agents: agents, state: state, gdb: gdb, poster: poster, logger: logger}
	if ids, err := db.AllPartIDs(gdb); err != nil {
		logger.Printf("bridge: seed sent-parts cache: %v", err)
	} else {
		state.SeedSentParts(ids)
	}
	return o
}

// seenPart reports whether partID has already been posted, consulting the
// in-memory cache first and falling back to the database — the
// authoritative dedupe key — on a cache miss, since the process-local cache
// can lag a row written by an earlier process.
func (o *Orchestrator) seenPart(partID string) bool {
	if o.state.SeenPart(partID) {
		return true
	}
	seen, err := db.HasPartMessage(o.gdb, partID)
	if err != nil {
		o.logger.Printf("bridge: check part message: %v", err)
		return false
	}
	if seen {
		o.state.MarkPartSeen(partID)
	}
	return seen
}

// Submit runs the full submission pipeline described in the orchestrator's
// contract: resolve/create session, supersede, subscribe, submit, process
// events, finalize.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) error {
	client, err := o.agents.Client(ctx, req.Directory)
	if err != nil {
		return fmt.Errorf("bridge: agent client for %s: %w", req.Directory, err)
	}

	sessionID, err := o.resolveSession(ctx, client, req)
	if err != nil {
		return err
	}

	handle, hadPrevious := o.state.Supersede(ctx, sessionID)
	if hadPrevious {
		select {
		case <-time.After(DebounceDelay):
		case <-handle.Context().Done():
		}
		if handle.Aborted() && handle.Reason != AbortNewRequest {
			return nil
		}
		if handle.Aborted() {
			return nil // superseded again during the debounce window
		}
	}

	events, errs := client.Stream(handle.Context())
	if handle.Aborted() {
		return nil
	}

	if err := o.submitPrompt(ctx, client, sessionID, req); err != nil {
		if handle.Aborted() {
			return nil
		}
		_, _ = o.poster.Post(req.ThreadID, fmt.Sprintf("✗ Unexpected bot Error: [%T]\n%v", err, err))
		if req.TriggeringMessageID != "" {
			_ = o.poster.React(req.ThreadID, req.TriggeringMessageID, "❌")
		}
		return err
	}

	started := timeNow()
	outcome := o.processEvents(handle, client, sessionID, req.ThreadID, req.TriggeringMessageID, events, errs)
	o.finalize(sessionID, req, outcome, timeNow().Sub(started))
	o.state.ClearCancelHandle(sessionID, handle)
	return nil
}

// timeNow is a seam so tests can avoid depending on wall-clock time; the
// production path just calls time.Now.
var timeNow = time.Now

func (o *Orchestrator) resolveSession(ctx context.Context, client *agentapi.Client, req SubmitRequest) (string, error) {
	sessionID, err := db.GetThreadSession(o.gdb, req.ThreadID)
	if err != nil {
		return "", fmt.Errorf("bridge: get thread session: %w", err)
	}

	if sessionID != "" {
		if _, err := client.Session(ctx, sessionID); err != nil {
			if err := db.DeleteThreadSession(o.gdb, req.ThreadID); err != nil {
				o.logger.Printf("bridge: drop stale thread binding: %v", err)
			}
			sessionID = ""
		}
	}

	if sessionID == "" {
		title := req.Prompt
		if len(title) > 80 {
			title = title[:80]
		}
		s, err := client.CreateSession(ctx, title, "")
		if err != nil {
			return "", fmt.Errorf("bridge: create session: %w", err)
		}
		sessionID = s.ID
		if err := db.UpsertThreadSession(o.gdb, req.ThreadID, sessionID); err != nil {
			return "", fmt.Errorf("bridge: persist thread binding: %w", err)
		}
	}
	return sessionID, nil
}

func (o *Orchestrator) submitPrompt(ctx context.Context, client *agentapi.Client, sessionID string, req SubmitRequest) error {
	if name, args, ok := parseSlashCommand(req.Prompt); ok {
		return client.Command(ctx, sessionID, name+" "+args)
	}

	parts := append([]agentapi.InputPart{
		{Type: "text", Text: fmt.Sprintf(systemPreamble, sessionID)},
		{Type: "text", Text: req.Prompt},
	}, req.Images...)
	return client.Prompt(ctx, sessionID, parts, agentapi.PromptOptions{})
}

func parseSlashCommand(prompt string) (name, args string, ok bool) {
	prompt = strings.TrimSpace(prompt)
	if !strings.HasPrefix(prompt, "/") {
		return "", "", false
	}
	fields := strings.SplitN(prompt, " ", 2)
	name = strings.TrimPrefix(fields[0], "/")
	if name == "" {
		return "", "", false
	}
	if len(fields) > 1 {
		args = fields[1]
	}
	return name, args, true
}

// outcome summarizes how event processing ended, feeding the finalize step.
type outcome struct {
	reason     AbortReason
	errorText  string
	model      string
	contextPct int
}

// processEvents filters events by session id, tracks the current assistant
// message's parts, flushes on step-finish, surfaces permissions, and stops
// on session.error or cancellation.
func (o *Orchestrator) processEvents(handle *CancelHandle, client *agentapi.Client, sessionID, threadID, triggeringMessageID string, events <-chan agentapi.Event, errs <-chan error) outcome {
	mediator := NewPermissionMediator(o.state, o.poster)

	var currentMessageID string
	working := make(map[string]agentapi.Part)
	var order []string // part ids in Agent-reported (first-seen) order for this step
	var lastTier int // last posted floor(10*used/limit), so we only post on a new crossing
	var contextLimit int
	var model, provider string

	appendWorking := func(p agentapi.Part) {
		if _, exists := working[p.ID]; !exists {
			order = append(order, p.ID)
		}
		working[p.ID] = p
	}

	// postPart renders and posts a single part outside the step-finish
	// flush, for parts that must appear as soon as they're seen (running
	// tool calls, reasoning). Deduped against the same SeenPart cache the
	// flush uses, so it is never re-emitted at flush time.
	postPart := func(p agentapi.Part) {
		if o.seenPart(p.ID) {
			return
		}
		rendered := FormatPart(p)
		if rendered == "" {
			return
		}
		content := markdown.NormalizeTables(rendered)
		for _, chunk := range markdown.Split(content, 2000) {
			msgID, err := o.poster.Post(threadID, chunk)
			if err != nil {
				o.logger.Printf("bridge: post early part: %v", err)
				continue
			}
			if err := db.RecordPartMessage(o.gdb, p.ID, msgID, threadID); err != nil {
				o.logger.Printf("bridge: record part message: %v", err)
			}
		}
		o.state.MarkPartSeen(p.ID)
	}

	flush := func() {
		if len(working) == 0 {
			return
		}
		defer func() {
			working = make(map[string]agentapi.Part)
			order = nil
		}()

		var b strings.Builder
		for _, id := range order {
			p, ok := working[id]
			if !ok {
				continue
			}
			rendered := FormatPart(p)
			if rendered == "" {
				continue
			}
			if o.seenPart(p.ID) {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(rendered)
		}
		if b.Len() == 0 {
			return
		}
		content := markdown.NormalizeTables(b.String())
		for _, chunk := range markdown.Split(content, 2000) {
			msgID, err := o.poster.Post(threadID, chunk)
			if err != nil {
				o.logger.Printf("bridge: post part flush: %v", err)
				continue
			}
			for _, id := range order {
				p, ok := working[id]
				if !ok {
					continue
				}
				if !o.seenPart(p.ID) {
					o.state.MarkPartSeen(p.ID)
					if err := db.RecordPartMessage(o.gdb, p.ID, msgID, threadID); err != nil {
						o.logger.Printf("bridge: record part message: %v", err)
					}
				}
			}
		}
	}

	for {
		select {
		case <-handle.Context().Done():
			return outcome{reason: handle.Reason, model: model, contextPct: lastTier * 10}

		case err, open := <-errs:
			if !open {
				continue
			}
			if err != nil && handle.Context().Err() == nil {
				o.logger.Printf("bridge: session %s event stream: %v", sessionID, err)
			}

		case ev, open := <-events:
			if !open {
				return outcome{reason: AbortFinished, model: model, contextPct: lastTier * 10}
			}
			if ev.Session != sessionID {
				continue
			}

			switch ev.Type {
			case agentapi.EventMessageUpdated:
				if ev.Message == nil || ev.Message.Role != "assistant" {
					continue
				}
				currentMessageID = ev.Message.ID
				model = ev.Message.Model
				provider = ev.Message.Provider
				used := ev.Message.Tokens.Total()
				if used > 0 {
					if contextLimit == 0 {
						contextLimit = o.contextLimit(handle.Context(), client, provider)
					}
					if contextLimit > 0 {
						tier := (used * 10) / contextLimit
						if tier > lastTier {
							lastTier = tier
							_, _ = o.poster.Post(threadID, fmt.Sprintf("◼︎ context usage %d%%", tier*10))
						}
					}
				}

			case agentapi.EventPartUpdated:
				if ev.Part == nil || ev.Part.MessageID != currentMessageID {
					continue
				}
				part := *ev.Part
				switch part.Type {
				case agentapi.PartStepFinish:
					flush()
				case agentapi.PartStepStart:
					// nothing to accumulate here; no typing indicator is
					// sent.
				case agentapi.PartTool:
					if part.State == "running" {
						postPart(part)
					} else {
						appendWorking(part)
					}
				case agentapi.PartReasoning:
					postPart(part)
				default:
					appendWorking(part)
				}

			case agentapi.EventSessionError:
				_, _ = o.poster.Post(threadID, fmt.Sprintf("✗ opencode session error: %s", ev.Error))
				if triggeringMessageID != "" {
					_ = o.poster.React(threadID, triggeringMessageID, "❌")
				}
				return outcome{reason: AbortError, errorText: ev.Error, model: model, contextPct: lastTier * 10}

			case agentapi.EventPermissionUpdated:
				if ev.Permission != nil {
					if err := mediator.Requested(threadID, *ev.Permission); err != nil {
						o.logger.Printf("bridge: permission prompt: %v", err)
					}
				}

			case agentapi.EventPermissionReplied:
				mediator.Replied(threadID)
			}
		}
	}
}

// contextLimit fetches the provider's context window size once per session,
// used to derive the tier crossings for the "context usage N%" notices.
func (o *Orchestrator) contextLimit(ctx context.Context, client *agentapi.Client, providerID string) int {
	providers, err := client.Providers(ctx)
	if err != nil {
		o.logger.Printf("bridge: fetch providers for context limit: %v", err)
		return 0
	}
	for _, p := range providers {
		if p.ID == providerID {
			return p.ContextSize
		}
	}
	return 0
}

func (o *Orchestrator) finalize(sessionID string, req SubmitRequest, out outcome, elapsed time.Duration) {
	switch out.reason {
	case AbortNewRequest:
		return // suppressed
	case AbortError, AbortUserAbort:
		return // terminal for this bridge, no footer
	}

	if req.TriggeringMessageID != "" {
		_ = o.poster.React(req.ThreadID, req.TriggeringMessageID, "✅")
	}

	footer := fmt.Sprintf("_Completed in %s_", elapsed.Round(time.Second))
	if out.contextPct > 0 {
		footer += fmt.Sprintf(" ⋅ %d%%", out.contextPct)
	}
	footer += fmt.Sprintf(" ⋅ %s", sessionID)
	if out.model != "" {
		footer += fmt.Sprintf(" ⋅ %s", out.model)
	}
	_, _ = o.poster.Post(req.ThreadID, footer)
}
