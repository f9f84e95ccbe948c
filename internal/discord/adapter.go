package discord

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/remotevibe/bridge/internal/bridge"
	"github.com/remotevibe/bridge/internal/markdown"
)

const (
	maxRetries         = 3
	defaultBaseBackoff = 2 * time.Second
	defaultMaxBackoff  = 2 * time.Minute
)

// AdapterOpts configures a new Adapter.
type AdapterOpts struct {
	BotToken string
	AppID    string
	GuildID  string
	// Session injects a mock session for tests instead of a live gateway.
	Session session
}

// Adapter owns the Discord gateway connection and implements bridge.Poster
// so the orchestrator and permission mediator can post into threads without
// depending on discordgo directly.
type Adapter struct {
	sess      session
	botToken  string
	appID     string
	guildID   string
	botUserID string

	mu        sync.Mutex
	connected bool
	closed    bool

	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// New returns an Adapter. A live gateway session is created on Connect
// unless opts.Session was injected.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	a := &Adapter{
		botToken:    opts.BotToken,
		appID:       opts.AppID,
		guildID:     opts.GuildID,
		baseBackoff: defaultBaseBackoff,
		maxBackoff:  defaultMaxBackoff,
	}
	if opts.Session != nil {
		a.sess = opts.Session
	}
	return a, nil
}

// Connect opens the gateway connection and registers the handlers the
// adapter needs for its own bookkeeping (bot user id capture).
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("discord: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if a.sess == nil {
		dg, err := discordgo.New("Bot " + a.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuilds |
			discordgo.IntentsGuildMessages |
			discordgo.IntentsMessageContent |
			discordgo.IntentsGuildVoiceStates
		a.sess = &realSession{s: dg}
	}

	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.mu.Lock()
		a.botUserID = r.User.ID
		a.mu.Unlock()
		log.Printf("discord: connected as %s (%s)", r.User.Username, r.User.ID)
	})

	if err := a.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	a.connected = true
	return nil
}

// Close shuts down the gateway connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.sess != nil {
		return a.sess.Close()
	}
	return nil
}

// BotUserID returns the bot's own user id, empty until Connect's Ready
// handler has fired.
func (a *Adapter) BotUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botUserID
}

// RegisterRouter installs r's command and message handlers on the adapter's
// gateway session. Call once, after Connect.
func (a *Adapter) RegisterRouter(r *Router, appID, guildID string) error {
	a.mu.Lock()
	sess := a.sess
	a.mu.Unlock()
	if sess == nil {
		return fmt.Errorf("discord: adapter is not connected")
	}
	return r.Register(sess, appID, guildID)
}

// DiscordSession returns the live *discordgo.Session backing this adapter,
// for callers (the voice manager) that need discordgo's own
// ChannelVoiceJoin. Returns nil when a mock session was injected for tests.
func (a *Adapter) DiscordSession() *discordgo.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	rs, ok := a.sess.(*realSession)
	if !ok {
		return nil
	}
	return rs.s
}

// Post implements bridge.Poster: sends content into a channel or thread.
func (a *Adapter) Post(channelID, content string) (string, error) {
	var msg *discordgo.Message
	err := a.retryOnRateLimit(context.Background(), func() error {
		var sendErr error
		msg, sendErr = a.sess.ChannelMessageSend(channelID, content)
		return sendErr
	})
	if err != nil {
		return "", fmt.Errorf("discord: send message: %w", err)
	}
	return msg.ID, nil
}

// React implements bridge.Poster: adds emoji to an existing message.
func (a *Adapter) React(channelID, messageID, emoji string) error {
	err := a.retryOnRateLimit(context.Background(), func() error {
		return a.sess.MessageReactionAdd(channelID, messageID, emoji)
	})
	if err != nil {
		return fmt.Errorf("discord: react: %w", err)
	}
	return nil
}

var _ bridge.Poster = (*Adapter)(nil)

// CreateThread posts a starter message in channelID naming the new thread
// name (capped at 100 chars) and opens a public thread from it.
// Returns the new thread's channel id (the thread id) and the starter
// message id.
func (a *Adapter) CreateThread(channelID, starterContent, threadName string) (threadID, starterMessageID string, err error) {
	if len(threadName) > 100 {
		threadName = threadName[:100]
	}

	var starter *discordgo.Message
	err = a.retryOnRateLimit(context.Background(), func() error {
		var sendErr error
		starter, sendErr = a.sess.ChannelMessageSend(channelID, starterContent)
		return sendErr
	})
	if err != nil {
		return "", "", fmt.Errorf("discord: post starter message: %w", err)
	}

	var thread *discordgo.Channel
	err = a.retryOnRateLimit(context.Background(), func() error {
		var startErr error
		thread, startErr = a.sess.MessageThreadStartComplex(channelID, starter.ID, &discordgo.ThreadStart{
			Name:                threadName,
			AutoArchiveDuration: 1440,
			Type:                discordgo.ChannelTypeGuildPublicThread,
		})
		return startErr
	})
	if err != nil {
		return "", "", fmt.Errorf("discord: start thread: %w", err)
	}
	return thread.ID, starter.ID, nil
}

// CreateProjectChannels creates a text and a voice channel for a project
// directory, both topic-tagged with directory/appID so the descriptor
// parser can rebind them on restart.
func (a *Adapter) CreateProjectChannels(name, directory, appID string) (textChannelID, voiceChannelID string, err error) {
	topic := markdown.EncodeTags(markdown.Descriptor{Directory: directory, AppID: appID})

	var textCh *discordgo.Channel
	err = a.retryOnRateLimit(context.Background(), func() error {
		var createErr error
		textCh, createErr = a.sess.GuildChannelCreateComplex(a.guildID, discordgo.GuildChannelCreateData{
			Name:  name,
			Type:  discordgo.ChannelTypeGuildText,
			Topic: topic,
		})
		return createErr
	})
	if err != nil {
		return "", "", fmt.Errorf("discord: create text channel: %w", err)
	}

	var voiceCh *discordgo.Channel
	err = a.retryOnRateLimit(context.Background(), func() error {
		var createErr error
		voiceCh, createErr = a.sess.GuildChannelCreateComplex(a.guildID, discordgo.GuildChannelCreateData{
			Name:  name,
			Type:  discordgo.ChannelTypeGuildVoice,
			Topic: topic,
		})
		return createErr
	})
	if err != nil {
		return "", "", fmt.Errorf("discord: create voice channel: %w", err)
	}

	return textCh.ID, voiceCh.ID, nil
}

// RenameThread updates a thread's display name, capped at 100 chars.
func (a *Adapter) RenameThread(threadID, name string) error {
	if len(name) > 100 {
		name = name[:100]
	}
	return a.retryOnRateLimit(context.Background(), func() error {
		_, err := a.sess.ChannelEdit(threadID, &discordgo.ChannelEdit{Name: name})
		return err
	})
}

// ParentChannelID returns the parent channel id of a thread, or channelID
// itself if it is not a thread.
func (a *Adapter) ParentChannelID(channelID string) (string, error) {
	ch, err := a.sess.Channel(channelID)
	if err != nil {
		return "", fmt.Errorf("discord: channel %s: %w", channelID, err)
	}
	if ch.IsThread() && ch.ParentID != "" {
		return ch.ParentID, nil
	}
	return channelID, nil
}

// ChannelTopicDescriptor reads and parses channelID's topic tag.
func (a *Adapter) ChannelTopicDescriptor(channelID string) (markdown.Descriptor, error) {
	ch, err := a.sess.Channel(channelID)
	if err != nil {
		return markdown.Descriptor{}, fmt.Errorf("discord: channel %s: %w", channelID, err)
	}
	return markdown.ExtractTags(ch.Topic), nil
}

// ResolveActor builds a bridge.Actor for authorization from a guild member.
func (a *Adapter) ResolveActor(guildID string, m *discordgo.Member, isBot bool) (bridge.Actor, error) {
	var isOwner bool
	if guild, err := a.sess.Guild(guildID); err == nil {
		isOwner = guild.OwnerID == m.User.ID
	}

	roles, err := a.sess.GuildRoles(guildID)
	if err != nil {
		return bridge.Actor{}, fmt.Errorf("discord: guild roles: %w", err)
	}
	roleNames := make([]string, 0, len(m.Roles))
	for _, rid := range m.Roles {
		for _, r := range roles {
			if r.ID == rid {
				roleNames = append(roleNames, r.Name)
			}
		}
	}

	var hasAdmin, hasManageGuild bool
	for _, rid := range m.Roles {
		for _, r := range roles {
			if r.ID != rid {
				continue
			}
			if r.Permissions&discordgo.PermissionAdministrator != 0 {
				hasAdmin = true
			}
			if r.Permissions&discordgo.PermissionManageServer != 0 {
				hasManageGuild = true
			}
		}
	}

	return bridge.Actor{
		IsBot:            isBot,
		IsGuildOwner:     isOwner,
		HasAdministrator: hasAdmin,
		HasManageGuild:   hasManageGuild,
		RoleNames:        roleNames,
	}, nil
}

// isDiscordRateLimit reports whether err is a Discord HTTP 429.
func isDiscordRateLimit(err error) bool {
	restErr, ok := err.(*discordgo.RESTError)
	return ok && restErr.Response != nil && restErr.Response.StatusCode == 429
}

// backoffFor doubles a's base backoff per attempt (attempt 0 is the first
// retry), capped at maxBackoff.
func (a *Adapter) backoffFor(attempt int) time.Duration {
	wait := a.baseBackoff << attempt
	if wait > a.maxBackoff {
		return a.maxBackoff
	}
	return wait
}

// retryOnRateLimit calls fn, retrying up to maxRetries times with doubling
// backoff whenever fn fails with a Discord 429. Any other error, or a
// cancelled ctx while waiting, aborts immediately.
func (a *Adapter) retryOnRateLimit(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isDiscordRateLimit(lastErr) || attempt == maxRetries {
			return lastErr
		}

		wait := a.backoffFor(attempt)
		log.Printf("discord: 429 on attempt %d/%d, backing off %v", attempt+1, maxRetries+1, wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return lastErr
}

// sanitizeProjectName kebab-cases name for use as a directory/channel name:
// lowercase, invalid characters stripped, capped at 100 bytes.
func sanitizeProjectName(name string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case r == ' ' || r == '_' || r == '-':
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if len(out) > 100 {
		out = out[:100]
	}
	return out
}
