package voice

import (
	"fmt"

	"layeh.com/gopus"
)

// discordSampleRate and discordChannels are Discord's fixed voice format.
const (
	discordSampleRate = 48000
	discordChannels   = 2
	discordFrameMS    = 20
	// discordFrameSamples is samples-per-channel in one 20ms Discord frame.
	discordFrameSamples = discordSampleRate * discordFrameMS / 1000
	maxOpusFrameBytes   = 4000
)

// OpusDecoder decodes Discord voice packets to interleaved 48kHz stereo PCM.
type OpusDecoder struct {
	dec *gopus.Decoder
}

// NewOpusDecoder returns a decoder for Discord's fixed voice format.
func NewOpusDecoder() (*OpusDecoder, error) {
	dec, err := gopus.NewDecoder(discordSampleRate, discordChannels)
	if err != nil {
		return nil, fmt.Errorf("voice: new opus decoder: %w", err)
	}
	return &OpusDecoder{dec: dec}, nil
}

// Decode turns one Opus packet into interleaved PCM16 samples.
func (d *OpusDecoder) Decode(opusData []byte) ([]int16, error) {
	pcm, err := d.dec.Decode(opusData, discordFrameSamples, false)
	if err != nil {
		return nil, fmt.Errorf("voice: opus decode: %w", err)
	}
	return pcm, nil
}

// OpusEncoder encodes interleaved 48kHz stereo PCM into 20ms Discord voice
// packets.
type OpusEncoder struct {
	enc *gopus.Encoder
}

// NewOpusEncoder returns an encoder tuned for spoken audio.
func NewOpusEncoder() (*OpusEncoder, error) {
	enc, err := gopus.NewEncoder(discordSampleRate, discordChannels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("voice: new opus encoder: %w", err)
	}
	return &OpusEncoder{enc: enc}, nil
}

// Encode compresses one 20ms stereo PCM frame (1920 interleaved samples)
// into an Opus packet.
func (e *OpusEncoder) Encode(pcm []int16) ([]byte, error) {
	data, err := e.enc.Encode(pcm, discordFrameSamples, maxOpusFrameBytes)
	if err != nil {
		return nil, fmt.Errorf("voice: opus encode: %w", err)
	}
	return data, nil
}

// PCMFramer slices arbitrary-length interleaved stereo PCM into fixed
// 20ms Discord frames, holding a partial trailing frame across calls.
type PCMFramer struct {
	buf []int16
}

// NewPCMFramer returns an empty PCMFramer.
func NewPCMFramer() *PCMFramer {
	return &PCMFramer{}
}

// Push appends interleaved stereo samples and returns every whole 20ms
// frame that became available.
func (p *PCMFramer) Push(pcm []int16) [][]int16 {
	p.buf = append(p.buf, pcm...)
	frameLen := discordFrameSamples * discordChannels

	var frames [][]int16
	for len(p.buf) >= frameLen {
		frame := make([]int16, frameLen)
		copy(frame, p.buf[:frameLen])
		frames = append(frames, frame)
		p.buf = p.buf[frameLen:]
	}
	return frames
}

// Flush drops any partial trailing frame still buffered.
func (p *PCMFramer) Flush() {
	p.buf = p.buf[:0]
}
