package bridge

import (
	"context"
	"sync"
	"time"
)

// AbortReason carries meaning about why a session's cancellation handle
// was superseded or terminated.
type AbortReason string

const (
	AbortNewRequest AbortReason = "new request" // suppress footer
	AbortFinished   AbortReason = "finished"    // emit footer
	AbortError      AbortReason = "error"       // emit error
	AbortUserAbort  AbortReason = "user abort"  // emit abort confirmation
)

// CancelHandle is the cancellation signal in flight for one session.
type CancelHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
	Reason AbortReason
}

// Context returns the handle's cancellation context.
func (h *CancelHandle) Context() context.Context { return h.ctx }

// Abort cancels the handle's context and records why.
func (h *CancelHandle) Abort(reason AbortReason) {
	h.Reason = reason
	h.cancel()
}

// Aborted reports whether the handle has already been cancelled.
func (h *CancelHandle) Aborted() bool {
	select {
	case <-h.ctx.Done():
		return true
	default:
		return false
	}
}

// PendingPermission is an Agent-initiated authorization request awaiting a
// user decision in a Discord thread. At most one per thread.
type PendingPermission struct {
	PermissionID     string
	SessionID        string
	Type             string
	Title            string
	Pattern          string
	DiscordMessageID string
	Directory        string
}

// State is the single explicitly-owned registry of process-wide mutable
// state: cancellation handles per session, pending permissions per thread,
// and the sent-parts cache seeded from the database. All writes come
// from the main event loop; the voice worker consults it only by message
// passing.
type State struct {
	mu sync.Mutex

	cancelHandles      map[string]*CancelHandle     // sessionID -> handle
	pendingPermissions map[string]*PendingPermission // threadID -> pending
	sentParts          map[string]bool               // partID -> seen, process-local cache
}

// NewState returns an empty State registry.
func NewState() *State {
	return &State{
		cancelHandles:      make(map[string]*CancelHandle),
		pendingPermissions: make(map[string]*PendingPermission),
		sentParts:          make(map[string]bool),
	}
}

// Supersede aborts any existing cancellation handle for sessionID with
// reason "new request", installs a fresh one derived from parent, and
// returns it along with whether a previous handle existed.
func (s *State) Supersede(parent context.Context, sessionID string) (*CancelHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.cancelHandles[sessionID]
	if had {
		prev.Abort(AbortNewRequest)
	}

	ctx, cancel := context.WithCancel(parent)
	fresh := &CancelHandle{ctx: ctx, cancel: cancel}
	s.cancelHandles[sessionID] = fresh
	return fresh, had
}

// CancelHandleFor returns the current handle for sessionID, if any.
func (s *State) CancelHandleFor(sessionID string) (*CancelHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.cancelHandles[sessionID]
	return h, ok
}

// ClearCancelHandle removes the handle for sessionID if it is still h
// (avoids clobbering a handle installed by a later supersession).
func (s *State) ClearCancelHandle(sessionID string, h *CancelHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.cancelHandles[sessionID]; ok && cur == h {
		delete(s.cancelHandles, sessionID)
	}
}

// SetPendingPermission records the pending permission for a thread,
// replacing any existing one (the invariant of at most one is enforced by
// the caller only ever installing on `permission.updated`).
func (s *State) SetPendingPermission(threadID string, p *PendingPermission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingPermissions[threadID] = p
}

// PendingPermissionFor returns the pending permission for a thread, if any.
func (s *State) PendingPermissionFor(threadID string) (*PendingPermission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pendingPermissions[threadID]
	return p, ok
}

// ClearPendingPermission removes the pending permission for a thread.
func (s *State) ClearPendingPermission(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pendingPermissions, threadID)
}

// SeenPart reports whether partID has already been emitted this process
// lifetime, per the process-local cache seeded from the database.
func (s *State) SeenPart(partID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sentParts[partID]
}

// MarkPartSeen records partID as emitted.
func (s *State) MarkPartSeen(partID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentParts[partID] = true
}

// SeedSentParts bulk-populates the cache, called once at startup with every
// part id already recorded in the database.
func (s *State) SeedSentParts(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.sentParts[id] = true
	}
}

// DebounceDelay is the pause after superseding a handle before submitting,
// during which a further supersession silently wins.
const DebounceDelay = 200 * time.Millisecond
