package audio

import (
	"encoding/binary"
	"math"
)

// Downmix averages interleaved multi-channel samples into a single channel.
// Mono input is returned as a copy.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(interleaved))
		copy(out, interleaved)
		return out
	}
	n := len(interleaved) / channels
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float32
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += interleaved[base+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// Resample converts a complete mono buffer from srcRate to dstRate by linear
// interpolation. Output sample i reads the fractional source index
// i*srcRate/dstRate and blends the floor and ceil samples around it.
func Resample(in []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || len(in) == 0 {
		return nil
	}
	if srcRate == dstRate {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}

	n := int(int64(len(in)) * int64(dstRate) / int64(srcRate))
	out := make([]float32, n)
	ratio := float64(srcRate) / float64(dstRate)
	last := len(in) - 1
	for i := range out {
		pos := float64(i) * ratio
		i0 := int(math.Floor(pos))
		if i0 > last {
			i0 = last
		}
		i1 := i0 + 1
		if i1 > last {
			i1 = last
		}
		frac := float32(pos - float64(i0))
		out[i] = in[i0] + (in[i1]-in[i0])*frac
	}
	return out
}

// Resampler is the streaming form of Resample. It keeps the fractional read
// position and the previous block's last sample so consecutive blocks
// interpolate as one continuous signal.
type Resampler struct {
	srcRate int
	dstRate int
	step    float64
	pos     float64
	prev    float32
	hasPrev bool
}

// NewResampler creates a resampler from srcRate to dstRate.
func NewResampler(srcRate, dstRate int) *Resampler {
	return &Resampler{
		srcRate: srcRate,
		dstRate: dstRate,
		step:    float64(srcRate) / float64(dstRate),
	}
}

// Process resamples the next block of mono samples.
func (r *Resampler) Process(in []float32) []float32 {
	if len(in) == 0 {
		return nil
	}
	if r.srcRate == r.dstRate {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}

	sample := func(i int) float32 {
		if i < 0 {
			return r.prev
		}
		return in[i]
	}

	out := make([]float32, 0, int(float64(len(in))/r.step)+1)
	for {
		i0 := int(math.Floor(r.pos))
		if i0 < 0 && !r.hasPrev {
			i0 = 0
			r.pos = 0
		}
		if i0+1 >= len(in) {
			break
		}
		frac := float32(r.pos - float64(i0))
		s0 := sample(i0)
		out = append(out, s0+(in[i0+1]-s0)*frac)
		r.pos += r.step
	}
	r.pos -= float64(len(in))
	r.prev = in[len(in)-1]
	r.hasPrev = true
	return out
}

// Reset clears the interpolation state.
func (r *Resampler) Reset() {
	r.pos = 0
	r.prev = 0
	r.hasPrev = false
}

// ToPCM16 clamps float samples to [-1, 1] and scales them to signed 16-bit
// little-endian PCM.
func ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(FloatToInt16(s)))
	}
	return out
}

// FloatToInt16 converts one float sample with clamping. Negative values scale
// by 32768 and positive values by 32767 so both ends of the range are reachable.
func FloatToInt16(s float32) int16 {
	if s != s { // NaN
		return 0
	}
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

// PCM16ToFloat decodes signed 16-bit little-endian PCM into floats in [-1, 1).
func PCM16ToFloat(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(v) / 32768
	}
	return out
}
