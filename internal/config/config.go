// Package config provides YAML-based configuration loading for the bridge.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level bridge configuration, loaded from remotevibe.yaml.
type Config struct {
	Discord   DiscordConfig             `yaml:"discord"`
	Agent     AgentConfig               `yaml:"agent"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Voice     VoiceConfig               `yaml:"voice"`
	Database  DatabaseConfig            `yaml:"database"`
}

// DiscordConfig holds Discord application identity and authorization scope.
type DiscordConfig struct {
	AppID          string `yaml:"app_id"`
	TokenEnv       string `yaml:"token_env"` // env var holding the bot token
	GuildID        string `yaml:"guild_id"`
	AuthorizedRole string `yaml:"authorized_role"`
}

// AgentConfig configures the coding-agent process supervisor: how to spawn
// it, which ports it may bind, and how eagerly to restart it.
type AgentConfig struct {
	BinaryPath       string `yaml:"binary_path"`
	PortRangeStart   int    `yaml:"port_range_start"`
	PortRangeEnd     int    `yaml:"port_range_end"`
	HealthTimeoutSec int    `yaml:"health_timeout_sec"`
	MaxRestarts      int    `yaml:"max_restarts"`
	ProjectsRoot     string `yaml:"projects_root"`
}

// ProviderConfig names the environment variables holding a provider's
// primary and fallback API keys. Only the primary key is registered with
// spawned Agent processes via the Agent's auth endpoint; the fallback key
// is not registered.
type ProviderConfig struct {
	KeyEnv         string `yaml:"key_env"`
	FallbackKeyEnv string `yaml:"fallback_key_env"`
}

// VoiceConfig configures the realtime voice pipeline and the transcription
// provider fallback chain.
type VoiceConfig struct {
	RealtimeURLEnv       string `yaml:"realtime_url_env"`
	RealtimeKeyEnv       string `yaml:"realtime_key_env"`
	FrameMillis          int    `yaml:"frame_millis"`
	TranscribePrimary    TranscribeProviderConfig `yaml:"transcribe_primary"`
	TranscribeFallback   TranscribeProviderConfig `yaml:"transcribe_fallback"`
}

// TranscribeProviderConfig points at one speech-to-text HTTP endpoint.
type TranscribeProviderConfig struct {
	URLEnv string `yaml:"url_env"`
	KeyEnv string `yaml:"key_env"`
	Model  string `yaml:"model"`
}

// DatabaseConfig points at the embedded SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path"` // empty means db.DefaultPath()
}

// Load reads a .env file (best-effort, missing file is not an error), then
// a YAML config file from path, and returns a validated Config.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Discord.TokenEnv == "" {
		c.Discord.TokenEnv = "REMOTEVIBE_DISCORD_TOKEN"
	}
	if c.Discord.AuthorizedRole == "" {
		c.Discord.AuthorizedRole = "remote-vibe"
	}
	if c.Agent.BinaryPath == "" {
		c.Agent.BinaryPath = "opencode"
	}
	if c.Agent.PortRangeStart == 0 {
		c.Agent.PortRangeStart = 41000
	}
	if c.Agent.PortRangeEnd == 0 {
		c.Agent.PortRangeEnd = 42000
	}
	if c.Agent.HealthTimeoutSec == 0 {
		c.Agent.HealthTimeoutSec = 30
	}
	if c.Agent.MaxRestarts == 0 {
		c.Agent.MaxRestarts = 5
	}
	if c.Agent.ProjectsRoot == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Agent.ProjectsRoot = home + "/remote-vibe"
		}
	}
	if c.Voice.FrameMillis == 0 {
		c.Voice.FrameMillis = 100
	}
	if c.Voice.RealtimeKeyEnv == "" {
		c.Voice.RealtimeKeyEnv = "REMOTEVIBE_REALTIME_KEY"
	}
	if c.Voice.RealtimeURLEnv == "" {
		c.Voice.RealtimeURLEnv = "REMOTEVIBE_REALTIME_URL"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Discord.AppID == "" {
		errs = append(errs, "discord.app_id is required")
	}
	if c.Discord.GuildID == "" {
		errs = append(errs, "discord.guild_id is required")
	}
	if c.Agent.PortRangeStart >= c.Agent.PortRangeEnd {
		errs = append(errs, "agent.port_range_start must be < agent.port_range_end")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// HealthTimeout returns the health-check poll bound as a duration.
func (c *AgentConfig) HealthTimeout() time.Duration {
	return time.Duration(c.HealthTimeoutSec) * time.Second
}

// Token returns the Discord bot token from the environment.
func (c *DiscordConfig) Token() string {
	return os.Getenv(c.TokenEnv)
}

// Key returns the provider's primary API key from the environment.
func (p *ProviderConfig) Key() string {
	return os.Getenv(p.KeyEnv)
}

// FallbackKey returns the provider's fallback API key from the environment.
func (p *ProviderConfig) FallbackKey() string {
	return os.Getenv(p.FallbackKeyEnv)
}

// RealtimeURL returns the realtime voice model endpoint from the environment.
func (v *VoiceConfig) RealtimeURL() string {
	return os.Getenv(v.RealtimeURLEnv)
}

// RealtimeKey returns the realtime voice model API key from the environment.
func (v *VoiceConfig) RealtimeKey() string {
	return os.Getenv(v.RealtimeKeyEnv)
}

// URL returns the transcription endpoint from the environment.
func (t *TranscribeProviderConfig) URL() string {
	return os.Getenv(t.URLEnv)
}

// Key returns the transcription API key from the environment.
func (t *TranscribeProviderConfig) Key() string {
	return os.Getenv(t.KeyEnv)
}
