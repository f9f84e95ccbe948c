package discord

import "github.com/bwmarrin/discordgo"

// commands is the closed list of slash commands the bridge registers, per
// the command/interaction router's contract.
var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "session",
		Description: "Start a new conversation with the agent in this channel",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "prompt", Description: "What do you want the agent to do?", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "files", Description: "Comma-separated file paths to reference", Required: false, Autocomplete: true},
		},
	},
	{
		Name:        "resume",
		Description: "Resume a previous session in a new thread",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "session-id", Description: "Session to resume", Required: true, Autocomplete: true},
		},
	},
	{
		Name:        "add-project",
		Description: "Bind channels to an existing agent project not yet connected",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "project-id", Description: "Project to bind", Required: true, Autocomplete: true},
		},
	},
	{
		Name:        "create-new-project",
		Description: "Create a new project directory and bind channels to it",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Project name", Required: true},
		},
	},
	{
		Name:        "add-existing-project",
		Description: "Bind channels to an existing directory on disk",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "path", Description: "Directory path", Required: true},
		},
	},
	{Name: "accept", Description: "Accept the pending permission request in this thread"},
	{Name: "accept-always", Description: "Accept and auto-approve future matching requests"},
	{Name: "reject", Description: "Reject the pending permission request in this thread"},
	{Name: "abort", Description: "Abort the running turn in this thread"},
	{Name: "share", Description: "Share this session and post the URL"},
}

// resolutionCommands maps command names to the permission mediator's
// resolution vocabulary.
var resolutionCommands = map[string]bool{
	"accept":        true,
	"accept-always": true,
	"reject":        true,
}

func optionString(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, o := range opts {
		if o.Name == name {
			return o.StringValue()
		}
	}
	return ""
}
