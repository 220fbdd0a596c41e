package audio

import (
	"bytes"
	"math"
	"math/rand"
	"testing"
	"time"
)

func sine(freq float64, rate int, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.8 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func zeroCrossings(s []float32) int {
	n := 0
	for i := 1; i < len(s); i++ {
		if (s[i-1] < 0) != (s[i] < 0) {
			n++
		}
	}
	return n
}

func TestResample_RoundTripPreservesFrequency(t *testing.T) {
	const freq = 1000.0
	in := sine(freq, 48000, 48000)

	down := Resample(in, 48000, 16000)
	if len(down) != 16000 {
		t.Fatalf("downsampled len=%d, want 16000", len(down))
	}
	up := Resample(down, 16000, 48000)
	if len(up) != 48000 {
		t.Fatalf("upsampled len=%d, want 48000", len(up))
	}

	if got, want := zeroCrossings(down), zeroCrossings(in); abs(got-want) > 2 {
		t.Fatalf("16k zero crossings=%d, want %d±2", got, want)
	}
	if got, want := zeroCrossings(up), zeroCrossings(in); abs(got-want) > 2 {
		t.Fatalf("round-trip zero crossings=%d, want %d±2", got, want)
	}

	// Linear interpolation of a 1kHz tone at 16kHz stays within ~2% of full scale.
	var maxErr float64
	for i := 0; i < len(up)-3; i++ {
		if d := math.Abs(float64(up[i] - in[i])); d > maxErr {
			maxErr = d
		}
	}
	if maxErr > 0.05 {
		t.Fatalf("max round-trip error=%.4f, want <= 0.05", maxErr)
	}
}

func TestResample_InterpolatesBetweenFloorAndCeil(t *testing.T) {
	in := []float32{0, 1, 0, -1}
	out := Resample(in, 2, 4)
	want := []float32{0, 0.5, 1, 0.5, 0, -0.5, -1, -1}
	if len(out) != len(want) {
		t.Fatalf("len=%d, want %d", len(out), len(want))
	}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Fatalf("out[%d]=%v, want %v", i, out[i], want[i])
		}
	}
}

func TestResampler_StreamingMatchesContinuousSignal(t *testing.T) {
	in := sine(440, 48000, 4800)
	rs := NewResampler(48000, 16000)

	var streamed []float32
	for off := 0; off < len(in); {
		n := 317
		if off+n > len(in) {
			n = len(in) - off
		}
		streamed = append(streamed, rs.Process(in[off:off+n])...)
		off += n
	}
	whole := Resample(in, 48000, 16000)
	if abs(len(streamed)-len(whole)) > 1 {
		t.Fatalf("streamed len=%d, whole len=%d", len(streamed), len(whole))
	}
	for i := 0; i < len(streamed) && i < len(whole); i++ {
		if math.Abs(float64(streamed[i]-whole[i])) > 1e-4 {
			t.Fatalf("sample %d: streamed=%v whole=%v", i, streamed[i], whole[i])
		}
	}
}

func TestDownmix_AveragesChannels(t *testing.T) {
	out := Downmix([]float32{1, 0, 0.5, 0.5, -1, 1}, 2)
	want := []float32{0.5, 0.5, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d]=%v, want %v", i, out[i], want[i])
		}
	}
}

func TestFloatToInt16_Clamps(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, 32767},
		{1.7, 32767},
		{-1, -32768},
		{-3, -32768},
		{0.5, 16383},
		{float32(math.NaN()), 0},
	}
	for _, tt := range tests {
		if got := FloatToInt16(tt.in); got != tt.want {
			t.Fatalf("FloatToInt16(%v)=%d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPCM16RoundTrip(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 0.999, -1}
	back := PCM16ToFloat(ToPCM16(in))
	for i := range in {
		if math.Abs(float64(back[i]-in[i])) > 1.0/16384 {
			t.Fatalf("sample %d: got %v, want %v", i, back[i], in[i])
		}
	}
}

func TestFramer_NoSampleLossAcrossFlushes(t *testing.T) {
	f, err := NewFramer(DefaultFormat(), 4096)
	if err != nil {
		t.Fatalf("NewFramer: %v", err)
	}

	rng := rand.New(rand.NewSource(7))
	var input []byte
	var frames []Frame
	at := time.Unix(100, 0)
	for i := 0; i < 200; i++ {
		n := 2 * (1 + rng.Intn(1500))
		chunk := make([]byte, n)
		rng.Read(chunk)
		input = append(input, chunk...)
		frames = append(frames, f.Write(chunk, at)...)
		at = at.Add(DefaultFormat().Duration(n))
	}

	var got []byte
	for i, fr := range frames {
		if len(fr.Data) != 4096 {
			t.Fatalf("frame %d len=%d, want 4096", i, len(fr.Data))
		}
		if fr.Seq != uint64(i+1) {
			t.Fatalf("frame %d seq=%d, want %d", i, fr.Seq, i+1)
		}
		got = append(got, fr.Data...)
	}
	if len(input)-len(got) >= 4096 {
		t.Fatalf("carried remainder=%d, want < one frame", len(input)-len(got))
	}
	if f.Pending() != len(input)-len(got) {
		t.Fatalf("pending=%d, want %d", f.Pending(), len(input)-len(got))
	}

	if last, ok := f.Flush(); ok {
		if !last.Partial {
			t.Fatal("flushed remainder should be partial")
		}
		got = append(got, last.Data...)
	}
	if !bytes.Equal(got, input) {
		t.Fatalf("concatenated frames differ from input (got %d bytes, want %d)", len(got), len(input))
	}
}

func TestFramer_TimestampsFollowAudioClock(t *testing.T) {
	format := DefaultFormat()
	f, _ := NewFramer(format, 3200) // 100ms
	start := time.Unix(10, 0)
	frames := f.Write(make([]byte, 3200*3), start)
	if len(frames) != 3 {
		t.Fatalf("frames=%d, want 3", len(frames))
	}
	for i, fr := range frames {
		want := start.Add(time.Duration(i) * 100 * time.Millisecond)
		if !fr.CapturedAt.Equal(want) {
			t.Fatalf("frame %d at=%v, want %v", i, fr.CapturedAt, want)
		}
	}
}

func TestNewFramer_RejectsBadInput(t *testing.T) {
	if _, err := NewFramer(DefaultFormat(), 1); err == nil {
		t.Fatal("expected error for frame smaller than one sample")
	}
	if _, err := NewFramer(Format{SampleRate: 16000, Channels: 1, BitsPerSample: 8}, 4096); err == nil {
		t.Fatal("expected error for 8-bit format")
	}
}

func TestFormat_Math(t *testing.T) {
	f := DefaultFormat()
	if f.BytesPerSecond() != 32000 {
		t.Fatalf("BytesPerSecond=%d, want 32000", f.BytesPerSecond())
	}
	if f.DurationMs(4096) != 128 {
		t.Fatalf("DurationMs(4096)=%d, want 128", f.DurationMs(4096))
	}
	if f.BytesForDurationMs(3000) != 96000 {
		t.Fatalf("BytesForDurationMs(3000)=%d, want 96000", f.BytesForDurationMs(3000))
	}
}

func TestWAV_EncodeThenReadHeader(t *testing.T) {
	pcm := ToPCM16(sine(440, 16000, 160))
	wav := EncodeWAV(pcm, DefaultFormat())
	r := bytes.NewReader(wav)
	format, err := ReadWAVHeader(r)
	if err != nil {
		t.Fatalf("ReadWAVHeader: %v", err)
	}
	if format != DefaultFormat() {
		t.Fatalf("format=%+v, want %+v", format, DefaultFormat())
	}
	if r.Len() != len(pcm) {
		t.Fatalf("remaining=%d, want %d", r.Len(), len(pcm))
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
