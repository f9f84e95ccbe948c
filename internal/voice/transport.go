package voice

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// voiceConn abstracts the piece of discordgo.VoiceConnection the pipeline
// needs, so tests can inject a fake instead of joining a real channel.
type voiceConn interface {
	OpusSend() chan<- []byte
	OpusRecv() <-chan *discordgo.Packet
	Speaking(v bool) error
	Disconnect() error
}

// realVoiceConn wraps a live discordgo.VoiceConnection.
type realVoiceConn struct {
	vc *discordgo.VoiceConnection
}

func (r *realVoiceConn) OpusSend() chan<- []byte            { return r.vc.OpusSend }
func (r *realVoiceConn) OpusRecv() <-chan *discordgo.Packet { return r.vc.OpusRecv }
func (r *realVoiceConn) Speaking(v bool) error               { return r.vc.Speaking(v) }
func (r *realVoiceConn) Disconnect() error                  { return r.vc.Disconnect() }

// voiceJoiner opens a voice connection, satisfied by *discordgo.Session.
type voiceJoiner interface {
	ChannelVoiceJoin(guildID, channelID string, mute, deaf bool) (*discordgo.VoiceConnection, error)
}

// joinVoiceChannel opens a voice connection and returns it wrapped for the
// pipeline's narrower interface.
func joinVoiceChannel(s voiceJoiner, guildID, channelID string) (voiceConn, error) {
	vc, err := s.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("voice: join channel %s: %w", channelID, err)
	}
	return &realVoiceConn{vc: vc}, nil
}
