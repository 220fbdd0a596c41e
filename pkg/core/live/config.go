package live

import (
	"time"

	"github.com/vango-go/vai-wingman/pkg/core/stream"
)

// Config holds orchestrator tuning. Zero fields take the defaults below.
type Config struct {
	Policy stream.ReconnectPolicy

	// Cooldowns maps a completion provider name to its minimum dispatch interval.
	Cooldowns       map[string]time.Duration
	DefaultCooldown time.Duration

	// MinUtterances is the transcript length below which no summary is attempted.
	MinUtterances int
	// MaxContextTurns bounds the rolling context kept in memory.
	MaxContextTurns int

	SuggestTimeout time.Duration
	SummaryTimeout time.Duration
	PersistTimeout time.Duration
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		Policy: stream.DefaultReconnectPolicy(),
		Cooldowns: map[string]time.Duration{
			"gemini":            5 * time.Second,
			"gemini-flash-lite": 3 * time.Second,
		},
		DefaultCooldown: 5 * time.Second,
		MinUtterances:   3,
		MaxContextTurns: 10,
		SuggestTimeout:  20 * time.Second,
		SummaryTimeout:  60 * time.Second,
		PersistTimeout:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Policy.InitialInterval <= 0 {
		c.Policy = d.Policy
	}
	if c.Cooldowns == nil {
		c.Cooldowns = d.Cooldowns
	}
	if c.DefaultCooldown <= 0 {
		c.DefaultCooldown = d.DefaultCooldown
	}
	if c.MinUtterances <= 0 {
		c.MinUtterances = d.MinUtterances
	}
	if c.MaxContextTurns <= 0 {
		c.MaxContextTurns = d.MaxContextTurns
	}
	if c.SuggestTimeout <= 0 {
		c.SuggestTimeout = d.SuggestTimeout
	}
	if c.SummaryTimeout <= 0 {
		c.SummaryTimeout = d.SummaryTimeout
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = d.PersistTimeout
	}
	return c
}
