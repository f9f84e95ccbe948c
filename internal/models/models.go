// Package models defines the GORM row types persisted by the bridge.
package models

import "time"

// ThreadSession binds a Discord thread to an Agent session id. Written once,
// before the first Discord post attributable to that session; immutable
// thereafter except for full replacement when the Agent no longer
// recognizes the bound session id.
type ThreadSession struct {
	ThreadID  string `gorm:"primaryKey;size:32"`
	SessionID string `gorm:"size:64;not null;index"`
	CreatedAt time.Time
}

// PartMessage records that an Agent message part has already been posted to
// Discord. A part id is looked up here before every emission; the row is
// the authoritative dedupe key across reconnects and /resume.
type PartMessage struct {
	PartID    string `gorm:"primaryKey;size:64"`
	MessageID string `gorm:"size:32;not null"`
	ThreadID  string `gorm:"size:32;not null;index"`
	CreatedAt time.Time
}

// BotToken holds the Discord bot token for one app. Never logged or echoed.
type BotToken struct {
	AppID     string `gorm:"primaryKey;size:32"`
	Token     string `gorm:"not null"`
	CreatedAt time.Time
}

// ChannelDirectory records the project directory and channel kind for a
// Discord channel created by the bridge. Populated when a project's text
// and voice channels are created; consulted to avoid recreating them.
type ChannelDirectory struct {
	ChannelID   string `gorm:"primaryKey;size:32"`
	Directory   string `gorm:"not null"`
	ChannelType string `gorm:"size:8;not null"` // "text" or "voice"
	CreatedAt   time.Time
}

// BotAPIKey holds provider API keys (primary and fallback) registered with
// the Agent's auth endpoint for one app.
type BotAPIKey struct {
	AppID       string `gorm:"primaryKey;size:32"`
	PrimaryKey  string `gorm:"not null"`
	FallbackKey string
	CreatedAt   time.Time
}
