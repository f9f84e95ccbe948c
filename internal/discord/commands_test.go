package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
)

func TestCommands_NamesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, c := range commands {
		require.False(t, seen[c.Name], "duplicate command name %q", c.Name)
		seen[c.Name] = true
	}
}

func TestResolutionCommands_ExcludesAbortAndShare(t *testing.T) {
	require.False(t, resolutionCommands["abort"])
	require.False(t, resolutionCommands["share"])
	require.True(t, resolutionCommands["accept"])
	require.True(t, resolutionCommands["accept-always"])
	require.True(t, resolutionCommands["reject"])
}

func TestOptionString_FindsByName(t *testing.T) {
	opts := []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "prompt", Type: discordgo.ApplicationCommandOptionString, Value: "fix the bug"},
		{Name: "files", Type: discordgo.ApplicationCommandOptionString, Value: "a.go,b.go"},
	}
	require.Equal(t, "fix the bug", optionString(opts, "prompt"))
	require.Equal(t, "a.go,b.go", optionString(opts, "files"))
}

func TestOptionString_MissingReturnsEmpty(t *testing.T) {
	require.Equal(t, "", optionString(nil, "prompt"))
}
