package voice

import "testing"

func TestDownmix48kStereoTo16kMono_AveragesAndDecimates(t *testing.T) {
	// Three stereo frames in: only the first survives (nearest-neighbor
	// 3:1), averaged L/R.
	pcm := []int16{
		100, 200, // frame 0 -> kept, avg 150
		999, 999, // frame 1 -> dropped
		999, 999, // frame 2 -> dropped
		300, 400, // frame 3 -> kept, avg 350
		999, 999,
		999, 999,
	}
	out := Downmix48kStereoTo16kMono(pcm)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if out[0] != 150 {
		t.Errorf("out[0] = %d, want 150", out[0])
	}
	if out[1] != 350 {
		t.Errorf("out[1] = %d, want 350", out[1])
	}
}

func TestDownmix48kStereoTo16kMono_LengthFormula(t *testing.T) {
	// floor(N / (2*2*3)) * 2 bytes for N bytes of 48k/2ch/16-bit input.
	frames := 97 // 97 stereo frames = 388 bytes
	pcm := make([]int16, frames*2)
	out := Downmix48kStereoTo16kMono(pcm)
	wantSamples := frames / downmixRatio
	if len(out) != wantSamples {
		t.Fatalf("len(out) = %d, want %d", len(out), wantSamples)
	}
}

func TestDownmix48kStereoTo16kMono_EmptyInput(t *testing.T) {
	if out := Downmix48kStereoTo16kMono(nil); len(out) != 0 {
		t.Fatalf("len(out) = %d, want 0", len(out))
	}
}

func TestUpsampler_DoublesLengthAndDuplicatesChannels(t *testing.T) {
	u := NewUpsampler()
	pcm := []int16{100, 200, 300}
	out := u.ResampleMonoToStereo(pcm)
	// 3 mono samples -> 6 interpolated mono samples -> 12 interleaved stereo.
	if len(out) != 12 {
		t.Fatalf("len(out) = %d, want 12", len(out))
	}
	for i := 0; i < len(out); i += 2 {
		if out[i] != out[i+1] {
			t.Fatalf("frame %d not duplicated: L=%d R=%d", i/2, out[i], out[i+1])
		}
	}
}

func TestUpsampler_CarriesStateAcrossChunks(t *testing.T) {
	u := NewUpsampler()
	first := u.ResampleMonoToStereo([]int16{100})
	if len(first) == 0 {
		t.Fatal("expected output from first chunk")
	}
	// Second chunk should interpolate from the trailing sample of the
	// first, not restart cold.
	second := u.ResampleMonoToStereo([]int16{200})
	if len(second) != 4 {
		t.Fatalf("len(second) = %d, want 4", len(second))
	}
	if second[0] != 100 {
		t.Errorf("second[0] = %d, want carried-over 100", second[0])
	}
}

func TestUpsampler_EmptyChunkReturnsNil(t *testing.T) {
	u := NewUpsampler()
	if out := u.ResampleMonoToStereo(nil); out != nil {
		t.Fatalf("out = %v, want nil", out)
	}
}
