package discord

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"gorm.io/gorm"

	"github.com/remotevibe/bridge/internal/agent"
	"github.com/remotevibe/bridge/internal/agentapi"
	"github.com/remotevibe/bridge/internal/bridge"
	"github.com/remotevibe/bridge/internal/config"
	"github.com/remotevibe/bridge/internal/db"
	"github.com/remotevibe/bridge/internal/markdown"
)

// Transcriber turns raw audio bytes into a plain-text transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mime, filename string, fileTree []string, language string) (string, error)
}

// Router classifies inbound Discord activity — slash commands, autocomplete
// requests, and plain messages in bound threads — and dispatches into the
// session orchestrator and permission mediator.
type Router struct {
	adapter      *Adapter
	orchestrator *bridge.Orchestrator
	mediator     *bridge.PermissionMediator
	agents       *agent.Supervisor
	gdb          *gorm.DB
	cfg          *config.Config
	transcriber  Transcriber
	httpClient   *http.Client
	logger       *log.Logger
}

// NewRouter returns a Router wired to its collaborators. transcriber may be
// nil, in which case audio attachments are logged and dropped.
func NewRouter(adapter *Adapter, orchestrator *bridge.Orchestrator, mediator *bridge.PermissionMediator, agents *agent.Supervisor, gdb *gorm.DB, cfg *config.Config, transcriber Transcriber, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}
	return &Router{
		adapter:      adapter,
		orchestrator: orchestrator,
		mediator:     mediator,
		agents:       agents,
		gdb:          gdb,
		cfg:          cfg,
		transcriber:  transcriber,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}
}

// Register overwrites the guild's application commands and installs the
// interaction/message handlers on the underlying session.
func (r *Router) Register(s session, appID, guildID string) error {
	if _, err := s.ApplicationCommandBulkOverwrite(appID, guildID, commands); err != nil {
		return fmt.Errorf("discord: register commands: %w", err)
	}
	s.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		r.onInteraction(i)
	})
	s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		r.onMessage(m)
	})
	return nil
}

func (r *Router) onInteraction(i *discordgo.InteractionCreate) {
	if !r.authorizeInteraction(i) {
		r.respondEphemeral(i, "You are not authorized to use this bridge.")
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		r.dispatchCommand(i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		r.dispatchAutocomplete(i)
	}
}

func (r *Router) dispatchCommand(i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()

	if resolutionCommands[data.Name] || data.Name == "abort" || data.Name == "share" {
		r.handleResolution(i, data.Name)
		return
	}

	switch data.Name {
	case "session":
		r.handleSession(i, data.Options)
	case "resume":
		r.handleResume(i, data.Options)
	case "add-project":
		r.handleAddProject(i, data.Options)
	case "create-new-project":
		r.handleCreateNewProject(i, data.Options)
	case "add-existing-project":
		r.handleAddExistingProject(i, data.Options)
	default:
		r.respondEphemeral(i, fmt.Sprintf("unknown command %q", data.Name))
	}
}

// authorizeInteraction rejects bots unconditionally; everyone else is
// checked against guild-owner/administrator/manage-guild/authorized-role.
func (r *Router) authorizeInteraction(i *discordgo.InteractionCreate) bool {
	if i.Member == nil || i.Member.User == nil {
		return false
	}
	actor, err := r.adapter.ResolveActor(i.GuildID, i.Member, i.Member.User.Bot)
	if err != nil {
		r.logger.Printf("discord: resolve actor: %v", err)
		return false
	}
	return bridge.Authorize(actor, r.cfg.Discord.AuthorizedRole)
}

func (r *Router) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	err := r.adapter.sess.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		r.logger.Printf("discord: interaction respond: %v", err)
	}
}

func (r *Router) ack(i *discordgo.InteractionCreate) {
	err := r.adapter.sess.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		r.logger.Printf("discord: interaction ack: %v", err)
	}
}

func (r *Router) editAck(i *discordgo.InteractionCreate, content string) {
	_, err := r.adapter.sess.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content})
	if err != nil {
		r.logger.Printf("discord: interaction edit: %v", err)
	}
}

// resolveDirectory finds the project directory bound to channelID, falling
// back to the channel's topic tag and self-healing the DB binding.
func (r *Router) resolveDirectory(channelID string) (string, error) {
	dir, err := db.DirectoryForChannel(r.gdb, channelID)
	if err != nil {
		return "", err
	}
	if dir != "" {
		return dir, nil
	}

	desc, err := r.adapter.ChannelTopicDescriptor(channelID)
	if err != nil {
		return "", err
	}
	if desc.Directory == "" {
		return "", nil
	}
	if err := db.UpsertChannelDirectory(r.gdb, channelID, desc.Directory, "text"); err != nil {
		r.logger.Printf("discord: rebind channel %s from topic: %v", channelID, err)
	}
	return desc.Directory, nil
}

func (r *Router) handleSession(i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	prompt := optionString(opts, "prompt")
	files := optionString(opts, "files")

	directory, err := r.resolveDirectory(i.ChannelID)
	if err != nil || directory == "" {
		r.respondEphemeral(i, "This channel is not bound to a project.")
		return
	}

	fullPrompt := prompt
	if files != "" {
		var mentions []string
		for _, f := range strings.Split(files, ",") {
			f = strings.TrimSpace(f)
			if f != "" {
				mentions = append(mentions, "@"+f)
			}
		}
		if len(mentions) > 0 {
			fullPrompt = prompt + " " + strings.Join(mentions, "@ ")
		}
	}

	r.ack(i)
	threadID, starterID, err := r.adapter.CreateThread(i.ChannelID, prompt, prompt)
	if err != nil {
		r.editAck(i, fmt.Sprintf("failed to open thread: %v", err))
		return
	}
	r.editAck(i, fmt.Sprintf("Started <#%s>", threadID))

	go r.submit(bridge.SubmitRequest{
		ThreadID:            threadID,
		Prompt:              fullPrompt,
		Directory:           directory,
		TriggeringMessageID: starterID,
	})
}

func (r *Router) handleResume(i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	sessionID := optionString(opts, "session-id")
	directory, err := r.resolveDirectory(i.ChannelID)
	if err != nil || directory == "" {
		r.respondEphemeral(i, "This channel is not bound to a project.")
		return
	}

	r.ack(i)

	client, err := r.agents.Client(context.Background(), directory)
	if err != nil {
		r.editAck(i, fmt.Sprintf("failed to reach agent: %v", err))
		return
	}
	sess, err := client.Session(context.Background(), sessionID)
	if err != nil {
		r.editAck(i, fmt.Sprintf("unknown session %s: %v", sessionID, err))
		return
	}

	threadName := "Resume: " + sess.Title
	threadID, _, err := r.adapter.CreateThread(i.ChannelID, fmt.Sprintf("Resuming session %s", sessionID), threadName)
	if err != nil {
		r.editAck(i, fmt.Sprintf("failed to open thread: %v", err))
		return
	}
	if err := db.UpsertThreadSession(r.gdb, threadID, sessionID); err != nil {
		r.logger.Printf("discord: persist resume binding: %v", err)
	}

	messages, err := client.Messages(context.Background(), sessionID)
	if err != nil {
		r.editAck(i, fmt.Sprintf("failed to fetch history: %v", err))
		return
	}

	var recent []struct {
		text   string
		partID string
	}
	for _, m := range messages {
		if m.Role != "assistant" {
			continue
		}
		for _, p := range m.Parts {
			rendered := bridge.FormatPart(p)
			if rendered == "" {
				continue
			}
			recent = append(recent, struct {
				text   string
				partID string
			}{rendered, p.ID})
		}
	}
	var skipped int
	if len(recent) > 30 {
		skipped = len(recent) - 30
		recent = recent[len(recent)-30:]
	}

	if skipped > 0 {
		notice := fmt.Sprintf("Skipped %d older assistant parts…", skipped)
		if _, err := r.adapter.Post(threadID, notice); err != nil {
			r.logger.Printf("discord: post resume skip notice: %v", err)
		}
	}

	var b strings.Builder
	for _, entry := range recent {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(entry.text)
	}
	if b.Len() > 0 {
		for _, chunk := range markdown.Split(markdown.NormalizeTables(b.String()), 2000) {
			msgID, err := r.adapter.Post(threadID, chunk)
			if err != nil {
				r.logger.Printf("discord: post resume history: %v", err)
				continue
			}
			for _, entry := range recent {
				if err := db.RecordPartMessage(r.gdb, entry.partID, msgID, threadID); err != nil {
					r.logger.Printf("discord: record resumed part: %v", err)
				}
			}
		}
	}

	r.editAck(i, fmt.Sprintf("Resumed in <#%s>", threadID))
}

func (r *Router) handleAddProject(i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	projectID := optionString(opts, "project-id")
	r.ack(i)

	client, err := r.agents.Client(context.Background(), r.cfg.Agent.ProjectsRoot)
	if err != nil {
		r.editAck(i, fmt.Sprintf("failed to reach agent: %v", err))
		return
	}
	projects, err := client.Projects(context.Background())
	if err != nil {
		r.editAck(i, fmt.Sprintf("failed to list projects: %v", err))
		return
	}

	var directory string
	for _, p := range projects {
		if p.ID == projectID {
			directory = p.Directory
			break
		}
	}
	if directory == "" {
		r.editAck(i, fmt.Sprintf("unknown project %s", projectID))
		return
	}

	name := sanitizeProjectName(filepath.Base(directory))
	textID, voiceID, err := r.adapter.CreateProjectChannels(name, directory, r.cfg.Discord.AppID)
	if err != nil {
		r.editAck(i, fmt.Sprintf("failed to create channels: %v", err))
		return
	}
	if err := db.UpsertChannelDirectory(r.gdb, textID, directory, "text"); err != nil {
		r.logger.Printf("discord: persist text channel binding: %v", err)
	}
	if err := db.UpsertChannelDirectory(r.gdb, voiceID, directory, "voice"); err != nil {
		r.logger.Printf("discord: persist voice channel binding: %v", err)
	}

	r.editAck(i, fmt.Sprintf("Bound <#%s> to %s", textID, directory))
}

func (r *Router) handleCreateNewProject(i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	name := sanitizeProjectName(optionString(opts, "name"))
	if name == "" {
		r.respondEphemeral(i, "invalid project name")
		return
	}

	r.ack(i)

	directory := filepath.Join(r.cfg.Agent.ProjectsRoot, name)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		r.editAck(i, fmt.Sprintf("failed to create %s: %v", directory, err))
		return
	}
	if err := exec.Command("git", "-C", directory, "init").Run(); err != nil {
		r.logger.Printf("discord: git init %s: %v", directory, err)
	}

	textID, voiceID, err := r.adapter.CreateProjectChannels(name, directory, r.cfg.Discord.AppID)
	if err != nil {
		r.editAck(i, fmt.Sprintf("failed to create channels: %v", err))
		return
	}
	if err := db.UpsertChannelDirectory(r.gdb, textID, directory, "text"); err != nil {
		r.logger.Printf("discord: persist text channel binding: %v", err)
	}
	if err := db.UpsertChannelDirectory(r.gdb, voiceID, directory, "voice"); err != nil {
		r.logger.Printf("discord: persist voice channel binding: %v", err)
	}

	threadID, starterID, err := r.adapter.CreateThread(textID, fmt.Sprintf("New project %s created at %s", name, directory), name)
	if err != nil {
		r.editAck(i, fmt.Sprintf("failed to open thread: %v", err))
		return
	}
	r.editAck(i, fmt.Sprintf("Created <#%s>", textID))

	go r.submit(bridge.SubmitRequest{
		ThreadID:            threadID,
		Prompt:              "Say hello and give a one-line summary of this empty project.",
		Directory:           directory,
		TriggeringMessageID: starterID,
	})
}

func (r *Router) handleAddExistingProject(i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	path := optionString(opts, "path")
	directory, err := normalizePath(path)
	if err != nil {
		r.respondEphemeral(i, err.Error())
		return
	}
	info, err := os.Stat(directory)
	if err != nil || !info.IsDir() {
		r.respondEphemeral(i, fmt.Sprintf("%s is not an existing directory", directory))
		return
	}

	r.ack(i)

	name := sanitizeProjectName(filepath.Base(directory))
	textID, voiceID, err := r.adapter.CreateProjectChannels(name, directory, r.cfg.Discord.AppID)
	if err != nil {
		r.editAck(i, fmt.Sprintf("failed to create channels: %v", err))
		return
	}
	if err := db.UpsertChannelDirectory(r.gdb, textID, directory, "text"); err != nil {
		r.logger.Printf("discord: persist text channel binding: %v", err)
	}
	if err := db.UpsertChannelDirectory(r.gdb, voiceID, directory, "voice"); err != nil {
		r.logger.Printf("discord: persist voice channel binding: %v", err)
	}

	threadID, starterID, err := r.adapter.CreateThread(textID, fmt.Sprintf("Connected existing project at %s", directory), name)
	if err != nil {
		r.editAck(i, fmt.Sprintf("failed to open thread: %v", err))
		return
	}
	r.editAck(i, fmt.Sprintf("Bound <#%s> to %s", textID, directory))

	go r.submit(bridge.SubmitRequest{
		ThreadID:            threadID,
		Prompt:              "What do you want to work on?",
		Directory:           directory,
		TriggeringMessageID: starterID,
	})
}

func (r *Router) handleResolution(i *discordgo.InteractionCreate, name string) {
	directory, err := r.resolveDirectory(mustParentChannel(r.adapter, i.ChannelID))
	if err != nil || directory == "" {
		r.respondEphemeral(i, "This thread is not bound to a project.")
		return
	}
	client, err := r.agents.Client(context.Background(), directory)
	if err != nil {
		r.respondEphemeral(i, fmt.Sprintf("failed to reach agent: %v", err))
		return
	}

	r.ack(i)

	switch {
	case resolutionCommands[name]:
		if err := r.mediator.Resolve(context.Background(), client, i.ChannelID, name); err != nil {
			r.editAck(i, err.Error())
			return
		}
		r.editAck(i, "done")
	case name == "abort":
		sessionID, err := db.GetThreadSession(r.gdb, i.ChannelID)
		if err != nil || sessionID == "" {
			r.editAck(i, "no session bound to this thread")
			return
		}
		if err := r.mediator.Abort(context.Background(), client, sessionID); err != nil {
			r.editAck(i, err.Error())
			return
		}
		r.editAck(i, "aborted")
	case name == "share":
		sessionID, err := db.GetThreadSession(r.gdb, i.ChannelID)
		if err != nil || sessionID == "" {
			r.editAck(i, "no session bound to this thread")
			return
		}
		if err := r.mediator.Share(context.Background(), client, i.ChannelID, sessionID); err != nil {
			r.editAck(i, err.Error())
			return
		}
		r.editAck(i, "shared")
	}
}

// mustParentChannel resolves a thread's parent channel, falling back to
// channelID itself on error since resolveDirectory will just fail closed.
func mustParentChannel(a *Adapter, channelID string) string {
	parent, err := a.ParentChannelID(channelID)
	if err != nil {
		return channelID
	}
	return parent
}

func (r *Router) submit(req bridge.SubmitRequest) {
	ctx := context.Background()
	if err := r.orchestrator.Submit(ctx, req); err != nil {
		r.logger.Printf("discord: submit %s: %v", req.ThreadID, err)
	}
}

// onMessage implements the free-text handler: a plain message in a thread
// that already has a session binding continues that conversation. Threads
// without a binding are ignored.
func (r *Router) onMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == r.adapter.BotUserID() {
		return
	}
	if strings.HasPrefix(strings.TrimSpace(m.Content), "/") {
		return // slash-style text is not a real interaction; ignored here
	}

	sessionID, err := db.GetThreadSession(r.gdb, m.ChannelID)
	if err != nil {
		r.logger.Printf("discord: lookup thread binding: %v", err)
		return
	}
	if sessionID == "" {
		return
	}

	directory, err := r.resolveDirectory(mustParentChannel(r.adapter, m.ChannelID))
	if err != nil || directory == "" {
		return
	}

	prompt := m.Content
	images := r.handleAttachments(m, directory, &prompt)

	go r.submit(bridge.SubmitRequest{
		ThreadID:            m.ChannelID,
		Prompt:              prompt,
		Images:              images,
		Directory:           directory,
		TriggeringMessageID: m.ID,
	})
}

// handleAttachments classifies each attachment by MIME, mutating prompt in
// place for audio (replaced by its transcript, quoted back to the thread)
// and text attachments (inlined), and returning file parts for image/pdf
// attachments.
func (r *Router) handleAttachments(m *discordgo.MessageCreate, directory string, prompt *string) []agentapi.InputPart {
	var images []agentapi.InputPart
	transcribedOnce := false

	for _, att := range m.Attachments {
		a := bridge.Attachment{Filename: att.Filename, MIME: att.ContentType, URL: att.URL}
		switch bridge.ClassifyAttachment(a) {
		case bridge.AttachmentFile:
			images = append(images, a.ToInputPart())

		case bridge.AttachmentText:
			inline, err := bridge.FetchInline(r.httpClient, a)
			if err != nil {
				r.logger.Printf("discord: fetch inline attachment: %v", err)
				continue
			}
			*prompt += "\n" + inline

		case bridge.AttachmentAudio:
			if transcribedOnce || r.transcriber == nil {
				continue
			}
			transcribedOnce = true
			r.transcribeAttachment(m.ChannelID, directory, a, prompt)
		}
	}
	return images
}

func (r *Router) transcribeAttachment(threadID, directory string, a bridge.Attachment, prompt *string) {
	resp, err := r.httpClient.Get(a.URL)
	if err != nil {
		r.logger.Printf("discord: download audio attachment: %v", err)
		return
	}
	defer resp.Body.Close()
	audio, err := io.ReadAll(io.LimitReader(resp.Body, 25<<20))
	if err != nil {
		r.logger.Printf("discord: read audio attachment: %v", err)
		return
	}

	var fileTree []string
	if r.agents != nil {
		if client, err := r.agents.Client(context.Background(), directory); err == nil {
			if files, err := client.SearchFiles(context.Background(), ""); err == nil {
				fileTree = files
			}
		}
	}

	text, err := r.transcriber.Transcribe(context.Background(), audio, a.MIME, a.Filename, fileTree, "")
	if err != nil {
		r.logger.Printf("discord: transcribe %s: %v", a.Filename, err)
		return
	}

	*prompt = text
	echo := fmt.Sprintf("📝 **Transcribed message:** %s", markdown.EscapeBareBackticks(text))
	if _, err := r.adapter.Post(threadID, echo); err != nil {
		r.logger.Printf("discord: post transcript: %v", err)
	}

	hasPosts, err := db.ThreadHasPosts(r.gdb, threadID)
	if err == nil && !hasPosts {
		name := text
		if len(name) > 80 {
			name = name[:80]
		}
		if err := r.adapter.RenameThread(threadID, name); err != nil {
			r.logger.Printf("discord: rename thread from transcript: %v", err)
		}
	}
}

// normalizePath expands ~ and resolves a relative path against the
// current working directory.
func normalizePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", path, err)
		}
		path = abs
	}
	return path, nil
}

// dispatchAutocomplete answers the closed set of autocompletable options.
func (r *Router) dispatchAutocomplete(i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	var focused *discordgo.ApplicationCommandInteractionDataOption
	for _, o := range data.Options {
		if o.Focused {
			focused = o
			break
		}
	}
	if focused == nil {
		return
	}

	var choices []*discordgo.ApplicationCommandOptionChoice
	switch {
	case data.Name == "resume" && focused.Name == "session-id":
		choices = r.autocompleteResumeForChannel(i.ChannelID, focused.StringValue())
	case data.Name == "session" && focused.Name == "files":
		choices = r.autocompleteSessionFiles(i.ChannelID, focused.StringValue())
	case data.Name == "add-project" && focused.Name == "project-id":
		choices = r.autocompleteAddProject()
	}

	err := r.adapter.sess.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
	if err != nil {
		r.logger.Printf("discord: autocomplete respond: %v", err)
	}
}

func (r *Router) autocompleteResumeForChannel(channelID, prefix string) []*discordgo.ApplicationCommandOptionChoice {
	directory, err := r.resolveDirectory(mustParentChannel(r.adapter, channelID))
	if err != nil || directory == "" {
		return nil
	}
	client, err := r.agents.Client(context.Background(), directory)
	if err != nil {
		return nil
	}
	sessions, err := client.Sessions(context.Background())
	if err != nil {
		return nil
	}
	sort.Slice(sessions, func(a, b int) bool { return sessions[a].UpdatedAt.After(sessions[b].UpdatedAt) })

	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, s := range sessions {
		if prefix != "" && !strings.Contains(strings.ToLower(s.Title), strings.ToLower(prefix)) {
			continue
		}
		label := fmt.Sprintf("%s (%s)", s.Title, s.UpdatedAt.Format("2006-01-02"))
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: label, Value: s.ID})
		if len(choices) == 25 {
			break
		}
	}
	return choices
}

func (r *Router) autocompleteSessionFiles(channelID, value string) []*discordgo.ApplicationCommandOptionChoice {
	directory, err := r.resolveDirectory(channelID)
	if err != nil || directory == "" {
		return nil
	}
	client, err := r.agents.Client(context.Background(), directory)
	if err != nil {
		return nil
	}

	segments := strings.Split(value, ",")
	prefix := strings.TrimSpace(segments[len(segments)-1])
	head := strings.Join(segments[:len(segments)-1], ",")

	files, err := client.SearchFiles(context.Background(), prefix)
	if err != nil {
		return nil
	}

	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, f := range files {
		display := head
		if display != "" {
			display += ","
		}
		display += filepath.Base(f)
		if len(display) > 100 {
			display = display[:100]
		}
		full := head
		if full != "" {
			full += ","
		}
		full += f
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: display, Value: full})
		if len(choices) == 25 {
			break
		}
	}
	return choices
}

func (r *Router) autocompleteAddProject() []*discordgo.ApplicationCommandOptionChoice {
	client, err := r.agents.Client(context.Background(), r.cfg.Agent.ProjectsRoot)
	if err != nil {
		return nil
	}
	projects, err := client.Projects(context.Background())
	if err != nil {
		return nil
	}
	sort.Slice(projects, func(a, b int) bool { return projects[a].CreatedAt.After(projects[b].CreatedAt) })

	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, p := range projects {
		bound, err := db.ChannelsForDirectory(r.gdb, p.Directory)
		if err == nil && len(bound) > 0 {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: p.Directory, Value: p.ID})
		if len(choices) == 25 {
			break
		}
	}
	return choices
}
