// Package audio normalizes captured audio into the fixed frames the provider
// streams consume: mono, a fixed sample rate, and signed 16-bit little-endian PCM.
package audio

import "time"

// Format specifies audio format parameters.
type Format struct {
	// SampleRate in Hz. Common values: 16000, 24000, 44100, 48000.
	SampleRate int `json:"sample_rate" yaml:"sample_rate"`

	// Channels: 1 for mono, 2 for stereo.
	Channels int `json:"channels" yaml:"channels"`

	// BitsPerSample: 16 for the PCM the pipeline emits.
	BitsPerSample int `json:"bits_per_sample" yaml:"bits_per_sample"`
}

// DefaultFormat returns the target format sent to the providers.
func DefaultFormat() Format {
	return Format{
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
	}
}

// BytesPerSample returns the size of one sample frame across all channels.
func (f Format) BytesPerSample() int {
	return f.Channels * (f.BitsPerSample / 8)
}

// BytesPerSecond returns the audio byte rate.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.BytesPerSample()
}

// DurationMs returns the duration in milliseconds for the given byte count.
func (f Format) DurationMs(bytes int) int {
	if f.BytesPerSecond() == 0 {
		return 0
	}
	return (bytes * 1000) / f.BytesPerSecond()
}

// Duration returns the exact duration of the given byte count.
func (f Format) Duration(bytes int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(int64(bytes) * int64(time.Second) / int64(bps))
}

// BytesForDurationMs returns the byte count for the given duration in milliseconds,
// rounded down to a whole sample.
func (f Format) BytesForDurationMs(ms int) int {
	n := (f.BytesPerSecond() * ms) / 1000
	if bs := f.BytesPerSample(); bs > 0 {
		n -= n % bs
	}
	return n
}

// Valid reports whether the format can be framed.
func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0 && f.BitsPerSample == 16
}
