package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fullYAML = `
discord:
  app_id: "123456789"
  token_env: MY_DISCORD_TOKEN
  guild_id: "987654321"
  authorized_role: vibe-crew

agent:
  binary_path: /usr/local/bin/opencode
  port_range_start: 45000
  port_range_end: 45100
  health_timeout_sec: 15
  max_restarts: 3
  projects_root: /home/alice/remote-vibe

providers:
  anthropic:
    key_env: ANTHROPIC_API_KEY
    fallback_key_env: ANTHROPIC_API_KEY_FALLBACK

voice:
  realtime_url_env: REALTIME_URL
  realtime_key_env: REALTIME_KEY
  frame_millis: 60
  transcribe_primary:
    url_env: STT_PRIMARY_URL
    key_env: STT_PRIMARY_KEY
    model: whisper-1
  transcribe_fallback:
    url_env: STT_FALLBACK_URL
    key_env: STT_FALLBACK_KEY
    model: whisper-1

database:
  path: /var/lib/remotevibe/bridge.db
`

const minimalYAML = `
discord:
  app_id: "111"
  guild_id: "222"
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Discord.AppID != "123456789" {
		t.Errorf("Discord.AppID = %q, want %q", cfg.Discord.AppID, "123456789")
	}
	if cfg.Discord.TokenEnv != "MY_DISCORD_TOKEN" {
		t.Errorf("Discord.TokenEnv = %q, want %q", cfg.Discord.TokenEnv, "MY_DISCORD_TOKEN")
	}
	if cfg.Discord.AuthorizedRole != "vibe-crew" {
		t.Errorf("Discord.AuthorizedRole = %q, want %q", cfg.Discord.AuthorizedRole, "vibe-crew")
	}
	if cfg.Agent.BinaryPath != "/usr/local/bin/opencode" {
		t.Errorf("Agent.BinaryPath = %q, want %q", cfg.Agent.BinaryPath, "/usr/local/bin/opencode")
	}
	if cfg.Agent.PortRangeStart != 45000 || cfg.Agent.PortRangeEnd != 45100 {
		t.Errorf("Agent port range = [%d, %d), want [45000, 45100)", cfg.Agent.PortRangeStart, cfg.Agent.PortRangeEnd)
	}
	if cfg.Agent.HealthTimeout().Seconds() != 15 {
		t.Errorf("Agent.HealthTimeout() = %v, want 15s", cfg.Agent.HealthTimeout())
	}
	if cfg.Agent.MaxRestarts != 3 {
		t.Errorf("Agent.MaxRestarts = %d, want 3", cfg.Agent.MaxRestarts)
	}

	prov, ok := cfg.Providers["anthropic"]
	if !ok {
		t.Fatal("Providers[anthropic] missing")
	}
	if prov.KeyEnv != "ANTHROPIC_API_KEY" {
		t.Errorf("Providers[anthropic].KeyEnv = %q, want %q", prov.KeyEnv, "ANTHROPIC_API_KEY")
	}
	if prov.FallbackKeyEnv != "ANTHROPIC_API_KEY_FALLBACK" {
		t.Errorf("Providers[anthropic].FallbackKeyEnv = %q, want %q", prov.FallbackKeyEnv, "ANTHROPIC_API_KEY_FALLBACK")
	}

	if cfg.Voice.FrameMillis != 60 {
		t.Errorf("Voice.FrameMillis = %d, want 60", cfg.Voice.FrameMillis)
	}
	if cfg.Voice.TranscribePrimary.Model != "whisper-1" {
		t.Errorf("Voice.TranscribePrimary.Model = %q, want %q", cfg.Voice.TranscribePrimary.Model, "whisper-1")
	}
	if cfg.Voice.TranscribeFallback.URLEnv != "STT_FALLBACK_URL" {
		t.Errorf("Voice.TranscribeFallback.URLEnv = %q, want %q", cfg.Voice.TranscribeFallback.URLEnv, "STT_FALLBACK_URL")
	}

	if cfg.Database.Path != "/var/lib/remotevibe/bridge.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/var/lib/remotevibe/bridge.db")
	}
}

func TestParse_MinimalConfig_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Discord.TokenEnv != "REMOTEVIBE_DISCORD_TOKEN" {
		t.Errorf("Discord.TokenEnv = %q, want default %q", cfg.Discord.TokenEnv, "REMOTEVIBE_DISCORD_TOKEN")
	}
	if cfg.Discord.AuthorizedRole != "remote-vibe" {
		t.Errorf("Discord.AuthorizedRole = %q, want default %q", cfg.Discord.AuthorizedRole, "remote-vibe")
	}
	if cfg.Agent.BinaryPath != "opencode" {
		t.Errorf("Agent.BinaryPath = %q, want default %q", cfg.Agent.BinaryPath, "opencode")
	}
	if cfg.Agent.PortRangeStart != 41000 || cfg.Agent.PortRangeEnd != 42000 {
		t.Errorf("Agent port range = [%d, %d), want default [41000, 42000)", cfg.Agent.PortRangeStart, cfg.Agent.PortRangeEnd)
	}
	if cfg.Agent.HealthTimeoutSec != 30 {
		t.Errorf("Agent.HealthTimeoutSec = %d, want default 30", cfg.Agent.HealthTimeoutSec)
	}
	if cfg.Agent.MaxRestarts != 5 {
		t.Errorf("Agent.MaxRestarts = %d, want default 5", cfg.Agent.MaxRestarts)
	}
	if cfg.Voice.FrameMillis != 100 {
		t.Errorf("Voice.FrameMillis = %d, want default 100", cfg.Voice.FrameMillis)
	}
	if cfg.Voice.RealtimeKeyEnv != "REMOTEVIBE_REALTIME_KEY" {
		t.Errorf("Voice.RealtimeKeyEnv = %q, want default %q", cfg.Voice.RealtimeKeyEnv, "REMOTEVIBE_REALTIME_KEY")
	}
	if cfg.Voice.RealtimeURLEnv != "REMOTEVIBE_REALTIME_URL" {
		t.Errorf("Voice.RealtimeURLEnv = %q, want default %q", cfg.Voice.RealtimeURLEnv, "REMOTEVIBE_REALTIME_URL")
	}
}

func TestParse_ExplicitTokenEnv_NotOverridden(t *testing.T) {
	yaml := `
discord:
  app_id: "1"
  guild_id: "2"
  token_env: CUSTOM_TOKEN
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Discord.TokenEnv != "CUSTOM_TOKEN" {
		t.Errorf("Discord.TokenEnv = %q, want %q (should not be overridden)", cfg.Discord.TokenEnv, "CUSTOM_TOKEN")
	}
}

func TestParse_ExplicitMaxRestarts_NotOverridden(t *testing.T) {
	yaml := `
discord:
  app_id: "1"
  guild_id: "2"
agent:
  max_restarts: 1
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Agent.MaxRestarts != 1 {
		t.Errorf("Agent.MaxRestarts = %d, want %d (should not be overridden)", cfg.Agent.MaxRestarts, 1)
	}
}

func TestParse_MissingAppID(t *testing.T) {
	yaml := `
discord:
  guild_id: "2"
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for missing app_id")
	}
	if !strings.Contains(err.Error(), "discord.app_id is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "discord.app_id is required")
	}
}

func TestParse_MissingGuildID(t *testing.T) {
	yaml := `
discord:
  app_id: "1"
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for missing guild_id")
	}
	if !strings.Contains(err.Error(), "discord.guild_id is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "discord.guild_id is required")
	}
}

func TestParse_InvalidPortRange(t *testing.T) {
	yaml := `
discord:
  app_id: "1"
  guild_id: "2"
agent:
  port_range_start: 5000
  port_range_end: 4000
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for inverted port range")
	}
	if !strings.Contains(err.Error(), "agent.port_range_start must be < agent.port_range_end") {
		t.Errorf("error = %q, want to contain port range message", err.Error())
	}
}

func TestParse_MultipleValidationErrors(t *testing.T) {
	yaml := `
agent:
  port_range_start: 5000
  port_range_end: 4000
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "discord.app_id is required") {
		t.Errorf("error missing 'discord.app_id is required': %s", msg)
	}
	if !strings.Contains(msg, "discord.guild_id is required") {
		t.Errorf("error missing 'discord.guild_id is required': %s", msg)
	}
	if !strings.Contains(msg, "agent.port_range_start must be < agent.port_range_end") {
		t.Errorf("error missing port range message: %s", msg)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte(":::invalid"))
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "config: parse:") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse:")
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "remotevibe.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Discord.AppID != "111" {
		t.Errorf("Discord.AppID = %q, want %q", cfg.Discord.AppID, "111")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/remotevibe.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: read")
	}
}

func TestConfig_SecretAccessorsReadEnvironment(t *testing.T) {
	t.Setenv("TEST_DISCORD_TOKEN", "shh")
	t.Setenv("TEST_PROVIDER_KEY", "primary-secret")
	t.Setenv("TEST_PROVIDER_FALLBACK", "fallback-secret")
	t.Setenv("TEST_REALTIME_URL", "wss://example.invalid/realtime")
	t.Setenv("TEST_REALTIME_KEY", "realtime-secret")
	t.Setenv("TEST_STT_URL", "https://example.invalid/stt")
	t.Setenv("TEST_STT_KEY", "stt-secret")

	cfg := &Config{
		Discord: DiscordConfig{TokenEnv: "TEST_DISCORD_TOKEN"},
		Providers: map[string]ProviderConfig{
			"anthropic": {KeyEnv: "TEST_PROVIDER_KEY", FallbackKeyEnv: "TEST_PROVIDER_FALLBACK"},
		},
		Voice: VoiceConfig{
			RealtimeURLEnv: "TEST_REALTIME_URL",
			RealtimeKeyEnv: "TEST_REALTIME_KEY",
			TranscribePrimary: TranscribeProviderConfig{
				URLEnv: "TEST_STT_URL",
				KeyEnv: "TEST_STT_KEY",
			},
		},
	}

	if got := cfg.Discord.Token(); got != "shh" {
		t.Errorf("Discord.Token() = %q, want %q", got, "shh")
	}
	prov := cfg.Providers["anthropic"]
	if got := prov.Key(); got != "primary-secret" {
		t.Errorf("Providers[anthropic].Key() = %q, want %q", got, "primary-secret")
	}
	if got := prov.FallbackKey(); got != "fallback-secret" {
		t.Errorf("Providers[anthropic].FallbackKey() = %q, want %q", got, "fallback-secret")
	}
	if got := cfg.Voice.RealtimeURL(); got != "wss://example.invalid/realtime" {
		t.Errorf("Voice.RealtimeURL() = %q, want %q", got, "wss://example.invalid/realtime")
	}
	if got := cfg.Voice.RealtimeKey(); got != "realtime-secret" {
		t.Errorf("Voice.RealtimeKey() = %q, want %q", got, "realtime-secret")
	}
	if got := cfg.Voice.TranscribePrimary.URL(); got != "https://example.invalid/stt" {
		t.Errorf("Voice.TranscribePrimary.URL() = %q, want %q", got, "https://example.invalid/stt")
	}
	if got := cfg.Voice.TranscribePrimary.Key(); got != "stt-secret" {
		t.Errorf("Voice.TranscribePrimary.Key() = %q, want %q", got, "stt-secret")
	}
}
