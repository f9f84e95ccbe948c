// Package voice runs the realtime speech pipeline: Discord Opus audio in,
// downmixed and framed for the realtime model; the model's PCM reply
// resampled and re-encoded back out to Discord.
package voice

// downmixRatio is the 48k→16k decimation factor.
const downmixRatio = 3

// Downmix48kStereoTo16kMono converts interleaved 48kHz stereo PCM to 16kHz
// mono by nearest-neighbor subsampling at a 3:1 ratio, averaging L and R
// into each surviving frame. Trailing frames that don't fill a full input
// triplet are dropped.
func Downmix48kStereoTo16kMono(pcm []int16) []int16 {
	frames := len(pcm) / 2
	outFrames := frames / downmixRatio
	out := make([]int16, outFrames)
	for i := 0; i < outFrames; i++ {
		src := i * downmixRatio * 2
		l := int32(pcm[src])
		r := int32(pcm[src+1])
		out[i] = int16((l + r) / 2)
	}
	return out
}

// upsampleRatio is the 24k→48k interpolation factor.
const upsampleRatio = 2

// Upsampler carries the trailing sample across chunk boundaries so a stream
// of realtime-model PCM chunks resamples as if it were one continuous
// signal, not one independent interpolation per chunk.
type Upsampler struct {
	haveLast bool
	last     int16
}

// NewUpsampler returns an Upsampler ready to resample the first chunk of a
// new stream.
func NewUpsampler() *Upsampler {
	return &Upsampler{}
}

// ResampleMonoToStereo linearly interpolates mono 24kHz PCM up to 48kHz and
// duplicates each output sample across both channels, returning interleaved
// stereo PCM.
func (u *Upsampler) ResampleMonoToStereo(pcm []int16) []int16 {
	if len(pcm) == 0 {
		return nil
	}

	mono := make([]int16, 0, len(pcm)*upsampleRatio)
	prev := u.last
	if !u.haveLast {
		prev = pcm[0]
	}
	for _, s := range pcm {
		mono = append(mono, prev, avgInt16(prev, s))
		prev = s
	}
	u.last = prev
	u.haveLast = true

	out := make([]int16, len(mono)*2)
	for i, s := range mono {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

func avgInt16(a, b int16) int16 {
	return int16((int32(a) + int32(b)) / 2)
}
