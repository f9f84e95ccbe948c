package voice

import "encoding/binary"

// frameMillis is the realtime model's input frame duration.
const frameMillis = 100

// downmixedSampleRate is the mono rate fed to the framer, after Downmix48kStereoTo16kMono.
const downmixedSampleRate = 16000

// FrameSamples is the sample count of one complete input frame.
const FrameSamples = downmixedSampleRate * frameMillis / 1000

// FrameBytes is the byte length of one complete input frame (16-bit samples).
const FrameBytes = FrameSamples * 2

// Framer buffers little-endian PCM16 bytes until whole frames are
// available. A partial trailing frame is held until more bytes arrive, or
// dropped on Flush.
type Framer struct {
	buf []byte
}

// NewFramer returns an empty Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Push appends samples and returns every whole frame that became available,
// most recent last.
func (f *Framer) Push(samples []int16) [][]byte {
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}
	f.buf = append(f.buf, raw...)

	var frames [][]byte
	for len(f.buf) >= FrameBytes {
		frame := make([]byte, FrameBytes)
		copy(frame, f.buf[:FrameBytes])
		frames = append(frames, frame)
		f.buf = f.buf[FrameBytes:]
	}
	return frames
}

// Flush drops any partial trailing frame still buffered.
func (f *Framer) Flush() {
	f.buf = f.buf[:0]
}
