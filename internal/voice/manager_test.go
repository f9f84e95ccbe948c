package voice

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/remotevibe/bridge/internal/config"
	"github.com/remotevibe/bridge/internal/db"
)

func TestManager_Active_FalseForUnknownGuild(t *testing.T) {
	gdb, err := db.Connect(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	m := NewManager(config.VoiceConfig{}, &fakeAgentClients{}, gdb, nil)
	require.False(t, m.Active("guild-1"))
}

func TestManager_Join_RejectsSecondWorkerForSameGuild(t *testing.T) {
	gdb, err := db.Connect(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	m := NewManager(config.VoiceConfig{}, &fakeAgentClients{}, gdb, nil)
	m.workers["guild-1"] = &Worker{}

	err = m.Join(nil, nil, "guild-1", "chan-1", "/proj")
	require.Error(t, err)
	require.Contains(t, err.Error(), "already has an active worker")
}

func TestManager_Leave_NoopWhenNoWorker(t *testing.T) {
	gdb, err := db.Connect(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	m := NewManager(config.VoiceConfig{}, &fakeAgentClients{}, gdb, nil)
	m.Leave("guild-with-no-worker") // must not panic
}
