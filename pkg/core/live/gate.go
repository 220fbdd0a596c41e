package live

import "time"

// Cooldown tracks per-provider dispatch times. It is a guard only and is
// never persisted.
type Cooldown struct {
	intervals map[string]time.Duration
	fallback  time.Duration
	last      map[string]time.Time
}

// NewCooldown creates a cooldown. Providers missing from intervals use fallback.
func NewCooldown(intervals map[string]time.Duration, fallback time.Duration) *Cooldown {
	iv := make(map[string]time.Duration, len(intervals))
	for k, v := range intervals {
		iv[k] = v
	}
	return &Cooldown{intervals: iv, fallback: fallback, last: make(map[string]time.Time)}
}

// Interval returns the configured interval for provider.
func (c *Cooldown) Interval(provider string) time.Duration {
	if d, ok := c.intervals[provider]; ok {
		return d
	}
	return c.fallback
}

// Allow reports whether provider may be called at now, and records the
// dispatch when it may.
func (c *Cooldown) Allow(provider string, now time.Time) bool {
	if last, ok := c.last[provider]; ok && now.Sub(last) < c.Interval(provider) {
		return false
	}
	c.last[provider] = now
	return true
}

// Verdict is the gate's decision for one utterance.
type Verdict int

const (
	VerdictDispatch Verdict = iota
	VerdictSelf
	VerdictCooldown
)

// String returns the verdict name used in logs and counters.
func (v Verdict) String() string {
	switch v {
	case VerdictDispatch:
		return "dispatch"
	case VerdictSelf:
		return "speaker_filter"
	case VerdictCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Gate applies the speaker filter and the provider cooldown. Dropped
// utterances are not queued.
type Gate struct {
	speakerFilter bool
	provider      string
	cooldown      *Cooldown
	now           func() time.Time
}

// NewGate creates a gate for one session.
func NewGate(speakerFilter bool, provider string, cooldown *Cooldown, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{speakerFilter: speakerFilter, provider: provider, cooldown: cooldown, now: now}
}

// Admit decides whether u triggers a suggestion.
func (g *Gate) Admit(u Utterance) Verdict {
	if g.speakerFilter && u.IsSelf {
		return VerdictSelf
	}
	if !g.cooldown.Allow(g.provider, g.now()) {
		return VerdictCooldown
	}
	return VerdictDispatch
}
