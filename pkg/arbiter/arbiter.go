// Package arbiter enforces priority order among the three audio tiers.
//
// The engine is the single source of truth for which tier may currently be
// audible. Speech outranks keyword effects, keyword effects outrank
// background music, and priority is strict: speech, once started, is never
// interrupted by an effect request. Background music is never pre-empted
// explicitly; it is paused only as a side effect of a higher-tier request and
// resumed when that tier's session completes.
package arbiter

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumikit/go-companion/pkg/audioout"
	"github.com/lumikit/go-companion/pkg/sched"
)

// Tier is one of the three mutually-arbitrated audio roles, ordered by
// priority: Speech > KeywordEffect > Background.
type Tier int

const (
	TierBackground Tier = iota
	TierKeywordEffect
	TierSpeech
)

// String returns a human-readable tier name.
func (t Tier) String() string {
	switch t {
	case TierBackground:
		return "background"
	case TierKeywordEffect:
		return "effect"
	case TierSpeech:
		return "speech"
	default:
		return "unknown"
	}
}

// Session is one clip's active playback lifetime within one tier.
// At most one session exists per tier at any time.
type Session struct {
	ID        string
	ClipID    string
	StartedAt time.Time
	PausedAt  *time.Time
	Duration  time.Duration
	Playing   bool
}

// BackgroundControl is the rotation player surface the engine pauses and
// resumes. The background output channel stays owned by the rotation player;
// the engine only arbitrates when it may be audible.
type BackgroundControl interface {
	Pause()
	Resume()
	Playing() bool
}

// Engine arbitrates playback across the three tiers.
type Engine struct {
	clock           sched.Clock
	logger          *slog.Logger
	pauseBackground bool

	mu       sync.Mutex
	bg       BackgroundControl
	sinks    map[Tier]audioout.Sink
	sessions map[Tier]*Session
	timers   map[Tier]*sched.Timer

	// resumeBg is set when the engine paused the background tier for the
	// currently active higher-tier session.
	resumeBg bool
}

// Option configures the engine.
type Option func(*Engine)

// WithClock sets the clock used for completion timers.
func WithClock(clock sched.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithPauseBackground controls whether higher-tier requests pause the
// background tier. Defaults to true.
func WithPauseBackground(on bool) Option {
	return func(e *Engine) { e.pauseBackground = on }
}

// WithSink assigns the output sink for the effect or speech tier.
func WithSink(tier Tier, sink audioout.Sink) Option {
	return func(e *Engine) { e.sinks[tier] = sink }
}

// New creates an arbitration engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		clock:           sched.Real{},
		logger:          slog.Default(),
		pauseBackground: true,
		sinks:           make(map[Tier]audioout.Sink),
		sessions:        make(map[Tier]*Session),
		timers:          make(map[Tier]*sched.Timer),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "arbiter")
	for _, tier := range []Tier{TierKeywordEffect, TierSpeech} {
		e.timers[tier] = sched.NewTimer(e.clock)
		if e.sinks[tier] == nil {
			e.sinks[tier] = &audioout.Null{Logger: e.logger}
		}
	}
	return e
}

// AttachBackground registers the rotation player as the background tier.
func (e *Engine) AttachBackground(bg BackgroundControl) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bg = bg
}

// RequestPlay asks the engine to start a clip on the given tier. It reports
// whether the request was accepted; a rejected request is a logged no-op.
func (e *Engine) RequestPlay(tier Tier, clip audioout.Clip) bool {
	switch tier {
	case TierBackground:
		// Only the rotation player invokes this tier; the engine just
		// records the session so it can account for pause/resume.
		e.mu.Lock()
		e.sessions[TierBackground] = newSession(clip, e.clock.Now())
		e.mu.Unlock()
		return true

	case TierKeywordEffect:
		e.mu.Lock()
		if e.activeLocked(TierSpeech) {
			e.mu.Unlock()
			e.logger.Info("effect rejected while speech active", "clip", clip.ID)
			return false
		}
		e.stopLocked(TierKeywordEffect)
		e.mu.Unlock()

		e.pauseBackgroundForHigherTier()
		e.start(TierKeywordEffect, clip)
		return true

	case TierSpeech:
		e.mu.Lock()
		e.stopLocked(TierKeywordEffect)
		e.stopLocked(TierSpeech)
		e.mu.Unlock()

		e.pauseBackgroundForHigherTier()
		e.start(TierSpeech, clip)
		return true

	default:
		e.logger.Warn("play request for unknown tier", "tier", int(tier))
		return false
	}
}

// Active reports whether the tier has a playing session.
func (e *Engine) Active(tier Tier) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeLocked(tier)
}

// Busy reports whether the effect or speech tier is occupied.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeLocked(TierKeywordEffect) || e.activeLocked(TierSpeech)
}

// SessionInfo returns a copy of the tier's session, if one exists.
func (e *Engine) SessionInfo(tier Tier) (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.sessions[tier]
	if s == nil {
		return Session{}, false
	}
	return *s, true
}

// Shutdown stops every active session. Idempotent.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked(TierKeywordEffect)
	e.stopLocked(TierSpeech)
	e.sessions[TierBackground] = nil
	e.resumeBg = false
}

func newSession(clip audioout.Clip, now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		ClipID:    clip.ID,
		StartedAt: now,
		Duration:  clip.Duration,
		Playing:   true,
	}
}

func (e *Engine) activeLocked(tier Tier) bool {
	s := e.sessions[tier]
	return s != nil && s.Playing
}

// stopLocked forcibly destroys the tier's session and silences its sink.
func (e *Engine) stopLocked(tier Tier) {
	s := e.sessions[tier]
	if s == nil {
		return
	}
	if t := e.timers[tier]; t != nil {
		t.Disarm()
	}
	if sink := e.sinks[tier]; sink != nil {
		if err := sink.Stop(); err != nil {
			e.logger.Warn("sink stop failed", "tier", tier.String(), "error", err)
		}
	}
	e.sessions[tier] = nil
	e.logger.Debug("session stopped", "tier", tier.String(), "clip", s.ClipID)
}

// pauseBackgroundForHigherTier pauses the background tier ahead of an effect
// or speech session, honoring the policy flag. The rotation player is called
// outside the engine lock; component locks never nest across packages.
func (e *Engine) pauseBackgroundForHigherTier() {
	e.mu.Lock()
	policy := e.pauseBackground
	bg := e.bg
	already := e.resumeBg
	e.mu.Unlock()

	if !policy || bg == nil || already || !bg.Playing() {
		return
	}
	bg.Pause()

	e.mu.Lock()
	e.resumeBg = true
	if s := e.sessions[TierBackground]; s != nil && s.Playing {
		now := e.clock.Now()
		s.PausedAt = &now
		s.Playing = false
	}
	e.mu.Unlock()
	e.logger.Debug("background paused for higher tier")
}

func (e *Engine) start(tier Tier, clip audioout.Clip) {
	e.mu.Lock()
	e.sessions[tier] = newSession(clip, e.clock.Now())
	sink := e.sinks[tier]
	timer := e.timers[tier]
	e.mu.Unlock()

	if err := sink.Play(clip.ID); err != nil {
		e.logger.Warn("sink play failed", "tier", tier.String(), "clip", clip.ID, "error", err)
	}
	timer.Arm(clip.Duration, func() { e.complete(tier) })
	e.logger.Debug("session started", "tier", tier.String(), "clip", clip.ID, "duration", clip.Duration)
}

// complete handles a timer-driven clip end on the effect or speech tier and
// restores the background tier if it was paused for that session.
func (e *Engine) complete(tier Tier) {
	e.mu.Lock()
	e.sessions[tier] = nil
	resume := e.resumeBg && !e.activeLocked(TierKeywordEffect) && !e.activeLocked(TierSpeech)
	if resume {
		e.resumeBg = false
		if s := e.sessions[TierBackground]; s != nil {
			s.PausedAt = nil
			s.Playing = true
		}
	}
	bg := e.bg
	e.mu.Unlock()

	e.logger.Debug("session completed", "tier", tier.String())
	if resume && bg != nil {
		bg.Resume()
	}
}
