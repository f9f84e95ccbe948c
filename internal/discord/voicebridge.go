package discord

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	"gorm.io/gorm"

	"github.com/remotevibe/bridge/internal/db"
	"github.com/remotevibe/bridge/internal/voice"
)

// WireVoice installs a VoiceStateUpdate handler that starts a voice.Worker
// when a human joins a bound voice channel and stops it once the channel is
// empty of humans again. gdb resolves the channel's bound project directory.
func (a *Adapter) WireVoice(mgr *voice.Manager, gdb *gorm.DB, logger *log.Logger) error {
	a.mu.Lock()
	sess := a.sess
	a.mu.Unlock()
	if sess == nil {
		return fmt.Errorf("discord: adapter is not connected")
	}
	if logger == nil {
		logger = log.Default()
	}

	sess.AddHandler(func(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
		a.onVoiceStateUpdate(mgr, gdb, logger, s, v)
	})
	return nil
}

func (a *Adapter) onVoiceStateUpdate(mgr *voice.Manager, gdb *gorm.DB, logger *log.Logger, s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.UserID == a.BotUserID() {
		return
	}

	if v.ChannelID != "" {
		a.maybeJoinVoiceChannel(mgr, gdb, logger, s, v.GuildID, v.ChannelID)
	}
	if v.BeforeUpdate != nil && v.BeforeUpdate.ChannelID != "" && v.BeforeUpdate.ChannelID != v.ChannelID {
		a.maybeLeaveEmptyChannel(mgr, s, v.GuildID, v.BeforeUpdate.ChannelID)
	}
}

func (a *Adapter) maybeJoinVoiceChannel(mgr *voice.Manager, gdb *gorm.DB, logger *log.Logger, s *discordgo.Session, guildID, channelID string) {
	if mgr.Active(guildID) {
		return
	}
	directory, err := db.DirectoryForChannel(gdb, channelID)
	if err != nil {
		logger.Printf("discord: resolve voice channel directory: %v", err)
		return
	}
	if directory == "" {
		return
	}
	if err := mgr.Join(context.Background(), s, guildID, channelID, directory); err != nil {
		logger.Printf("discord: join voice channel %s: %v", channelID, err)
	}
}

func (a *Adapter) maybeLeaveEmptyChannel(mgr *voice.Manager, s *discordgo.Session, guildID, channelID string) {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return
	}
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID && vs.UserID != a.BotUserID() {
			return
		}
	}
	mgr.Leave(guildID)
}
