package bridge

import "strings"

// AuthorizedRoleDefault is the role name checked when config doesn't
// override it.
const AuthorizedRoleDefault = "remote-vibe"

// Actor is the subset of Discord identity the authorization gate needs,
// decoupled from discordgo types so it can be constructed from either a
// message author or a voice-state actor.
type Actor struct {
	IsBot            bool
	IsGuildOwner     bool
	HasAdministrator bool
	HasManageGuild   bool
	RoleNames        []string
}

// Authorize reports whether actor may trigger bridge behavior. Bots are
// rejected unconditionally; otherwise the actor must be the guild owner,
// hold administrator or manage-guild permission, or belong to a role whose
// name case-insensitively equals authorizedRole.
func Authorize(actor Actor, authorizedRole string) bool {
	if actor.IsBot {
		return false
	}
	if actor.IsGuildOwner || actor.HasAdministrator || actor.HasManageGuild {
		return true
	}
	if authorizedRole == "" {
		authorizedRole = AuthorizedRoleDefault
	}
	for _, name := range actor.RoleNames {
		if strings.EqualFold(name, authorizedRole) {
			return true
		}
	}
	return false
}
