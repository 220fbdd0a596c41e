// Package stt streams capture audio to a speech-to-text provider and publishes
// diarized transcript events onto the session bus.
package stt

import (
	"log/slog"
	"time"
)

// Options configures the streaming transcription dialer.
type Options struct {
	APIKey string
	// URL overrides the provider endpoint. Tests point it at a local server.
	URL        string
	Model      string // default: "nova-3"
	Language   string // default: "en"
	SampleRate int    // default: 16000
	Channels   int    // default: 1
	Diarize    bool
	// EndpointingMs is the silence before the provider finalizes a fragment.
	EndpointingMs int
	// UtteranceEndMs is the gap after the last word that closes a turn.
	UtteranceEndMs int
	// KeepAlive is how often an idle stream is pinged. Zero disables it.
	KeepAlive time.Duration
	Logger    *slog.Logger
}

// DefaultOptions returns the settings used for live meetings.
func DefaultOptions() Options {
	return Options{
		Model:          "nova-3",
		Language:       "en",
		SampleRate:     16000,
		Channels:       1,
		Diarize:        true,
		EndpointingMs:  2500,
		UtteranceEndMs: 3000,
		KeepAlive:      5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Model == "" {
		o.Model = def.Model
	}
	if o.Language == "" {
		o.Language = def.Language
	}
	if o.SampleRate <= 0 {
		o.SampleRate = def.SampleRate
	}
	if o.Channels <= 0 {
		o.Channels = def.Channels
	}
	if o.EndpointingMs <= 0 {
		o.EndpointingMs = def.EndpointingMs
	}
	if o.UtteranceEndMs <= 0 {
		o.UtteranceEndMs = def.UtteranceEndMs
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
