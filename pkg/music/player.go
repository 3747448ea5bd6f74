// Package music implements the background rotation player.
//
// The player owns a catalog of music clips and the background output
// channel. It plays a non-repeating random rotation: each completion timer
// chains straight into the next selection with no idle gap, and the next
// clip always differs from the previous one whenever the catalog has more
// than one entry. Pause captures exact elapsed time so Resume rearms the
// completion timer with precisely the remaining duration.
package music

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/lumikit/go-companion/pkg/arbiter"
	"github.com/lumikit/go-companion/pkg/audioout"
	"github.com/lumikit/go-companion/pkg/sched"
)

// State is the rotation player's lifecycle state.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// SessionRecorder receives the background tier's playback bookkeeping.
// Satisfied by *arbiter.Engine.
type SessionRecorder interface {
	RequestPlay(tier arbiter.Tier, clip audioout.Clip) bool
}

// Player is the background rotation player.
type Player struct {
	catalog []audioout.Clip
	sink    audioout.Sink
	arb     SessionRecorder
	clock   sched.Clock
	timer   *sched.Timer
	rng     *rand.Rand
	logger  *slog.Logger

	mu        sync.Mutex
	state     State
	current   *audioout.Clip
	last      string
	startedAt time.Time
	accrued   time.Duration
}

// Option configures the player.
type Option func(*Player)

// WithClock sets the clock driving completion timers.
func WithClock(clock sched.Clock) Option {
	return func(p *Player) { p.clock = clock }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Player) { p.logger = logger }
}

// WithRand sets the random source used for rotation selection.
func WithRand(rng *rand.Rand) Option {
	return func(p *Player) { p.rng = rng }
}

// WithArbiter registers the arbitration engine that tracks the background
// session record.
func WithArbiter(arb SessionRecorder) Option {
	return func(p *Player) { p.arb = arb }
}

// New creates a rotation player over the given catalog and output sink.
func New(catalog []audioout.Clip, sink audioout.Sink, opts ...Option) *Player {
	p := &Player{
		catalog: catalog,
		sink:    sink,
		clock:   sched.Real{},
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "music")
	p.timer = sched.NewTimer(p.clock)
	return p
}

// Start selects the next clip and plays it. Called externally to begin the
// rotation and internally by each clip's completion timer, so rotation runs
// back-to-back with no idle gap.
func (p *Player) Start() {
	p.mu.Lock()
	if len(p.catalog) == 0 {
		p.mu.Unlock()
		p.logger.Warn("start skipped, music catalog is empty")
		return
	}
	clip := p.selectNextLocked()
	p.current = &clip
	p.last = clip.ID
	p.accrued = 0
	p.startedAt = p.clock.Now()
	p.state = StatePlaying
	p.mu.Unlock()

	if p.arb != nil {
		p.arb.RequestPlay(arbiter.TierBackground, clip)
	}
	if p.sink != nil {
		if err := p.sink.Play(clip.ID); err != nil {
			p.logger.Warn("music play failed", "clip", clip.ID, "error", err)
		}
	}
	p.timer.Arm(clip.Duration, p.Start)
	p.logger.Debug("music clip started", "clip", clip.ID, "duration", clip.Duration)
}

// selectNextLocked picks a uniformly random clip, excluding the last played
// one when more than one candidate exists.
func (p *Player) selectNextLocked() audioout.Clip {
	if len(p.catalog) == 1 {
		return p.catalog[0]
	}
	candidates := make([]audioout.Clip, 0, len(p.catalog))
	for _, c := range p.catalog {
		if c.ID != p.last {
			candidates = append(candidates, c)
		}
	}
	return candidates[p.rng.Intn(len(candidates))]
}

// Pause suspends playback, capturing elapsed time. No-op unless playing.
func (p *Player) Pause() {
	p.mu.Lock()
	if p.state != StatePlaying {
		p.mu.Unlock()
		return
	}
	p.timer.Disarm()
	p.accrued += p.clock.Now().Sub(p.startedAt)
	p.state = StatePaused
	p.mu.Unlock()

	if ps, ok := p.sink.(audioout.Pausable); ok {
		if err := ps.Pause(); err != nil {
			p.logger.Warn("music pause failed", "error", err)
		}
	}
	p.logger.Debug("music paused", "elapsed", p.accrued)
}

// Resume continues a paused clip, rearming the completion timer with exactly
// the remaining duration. If no clip is loaded it behaves like Start.
// No-op while already playing.
func (p *Player) Resume() {
	p.mu.Lock()
	if p.state == StatePlaying {
		p.mu.Unlock()
		return
	}
	if p.current == nil {
		p.mu.Unlock()
		p.Start()
		return
	}
	remaining := p.current.Duration - p.accrued
	if remaining < 0 {
		remaining = 0
	}
	p.startedAt = p.clock.Now()
	p.state = StatePlaying
	p.mu.Unlock()

	if ps, ok := p.sink.(audioout.Pausable); ok {
		if err := ps.Resume(); err != nil {
			p.logger.Warn("music resume failed", "error", err)
		}
	}
	p.timer.Arm(remaining, p.Start)
	p.logger.Debug("music resumed", "remaining", remaining)
}

// Stop halts playback and unloads the current clip.
func (p *Player) Stop() {
	p.mu.Lock()
	p.timer.Disarm()
	p.state = StateIdle
	p.current = nil
	p.accrued = 0
	p.mu.Unlock()

	if p.sink != nil {
		if err := p.sink.Stop(); err != nil {
			p.logger.Warn("music stop failed", "error", err)
		}
	}
}

// Playing reports whether a clip is actively playing.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StatePlaying
}

// State returns the current lifecycle state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Current returns the loaded clip, if any.
func (p *Player) Current() (audioout.Clip, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return audioout.Clip{}, false
	}
	return *p.current, true
}

// Elapsed returns total audible playback time for the current clip across
// pause boundaries.
func (p *Player) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StatePlaying {
		return p.accrued + p.clock.Now().Sub(p.startedAt)
	}
	return p.accrued
}

// Compile-time check: the player is the engine's background control.
var _ arbiter.BackgroundControl = (*Player)(nil)
