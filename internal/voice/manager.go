package voice

import (
	"context"
	"fmt"
	"log"
	"sync"

	"gorm.io/gorm"

	"github.com/remotevibe/bridge/internal/bridge"
	"github.com/remotevibe/bridge/internal/config"
)

// Manager owns the set of active voice Workers, one per guild. Join, Leave
// and ShutdownAll update it under mu, and the goroutine Join starts removes
// its worker once Run returns; Workers themselves never touch it.
type Manager struct {
	cfg    config.VoiceConfig
	agents bridge.AgentClients
	gdb    *gorm.DB
	logger *log.Logger

	mu      sync.Mutex
	workers map[string]*Worker // guildID -> worker
}

// NewManager returns an empty voice worker registry.
func NewManager(cfg config.VoiceConfig, agents bridge.AgentClients, gdb *gorm.DB, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{cfg: cfg, agents: agents, gdb: gdb, logger: logger, workers: make(map[string]*Worker)}
}

// Join opens a voice connection in channelID, dials the realtime model, and
// starts a Worker bridging the two. Directory is the project bound to the
// channel (resolved by the caller, same as the text pipeline).
func (m *Manager) Join(ctx context.Context, s voiceJoiner, guildID, channelID, directory string) error {
	m.mu.Lock()
	if _, exists := m.workers[guildID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("voice: guild %s already has an active worker", guildID)
	}
	m.mu.Unlock()

	conn, err := joinVoiceChannel(s, guildID, channelID)
	if err != nil {
		return err
	}

	rt, err := DialRealtime(m.cfg.RealtimeURL(), m.cfg.RealtimeKey())
	if err != nil {
		_ = conn.Disconnect()
		return err
	}

	worker, err := NewWorker(guildID, channelID, directory, conn, rt, m.agents, m.gdb, m.logger)
	if err != nil {
		_ = rt.Close()
		_ = conn.Disconnect()
		return err
	}

	m.mu.Lock()
	m.workers[guildID] = worker
	m.mu.Unlock()

	go func() {
		worker.Run(ctx)
		m.mu.Lock()
		if m.workers[guildID] == worker {
			delete(m.workers, guildID)
		}
		m.mu.Unlock()
	}()
	return nil
}

// Leave stops and removes the worker for a guild, if any.
func (m *Manager) Leave(guildID string) {
	m.mu.Lock()
	worker, ok := m.workers[guildID]
	if ok {
		delete(m.workers, guildID)
	}
	m.mu.Unlock()
	if ok {
		worker.Stop()
	}
}

// ShutdownAll stops every active worker in parallel, for process shutdown.
func (m *Manager) ShutdownAll() {
	m.mu.Lock()
	workers := make([]*Worker, 0, len(m.workers))
	for k, w := range m.workers {
		workers = append(workers, w)
		delete(m.workers, k)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Stop()
		}(w)
	}
	wg.Wait()
}

// Active reports whether a guild currently has a running voice worker.
func (m *Manager) Active(guildID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.workers[guildID]
	return ok
}
