// Package motion implements the idle-loop motion player.
//
// The player runs a loop of randomly selected idle clips, each played once
// even if the clip was authored to loop. PlaySpecific interrupts the loop
// with a single named clip and restores the loop when it completes; a second
// PlaySpecific before then cancels the pending restore and restarts with the
// new clip — last caller wins, no queueing.
package motion

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/lumikit/go-companion/pkg/sched"
)

// Clip is a named motion clip. Loop records the authored playback mode; the
// player forces one-shot playback regardless.
type Clip struct {
	ID       string
	Duration time.Duration
	Loop     bool
}

// Sink drives the underlying motion output (an animator, a model runtime).
type Sink interface {
	// Play starts the named clip. loop selects the playback mode.
	Play(clipID string, loop bool) error

	// Name returns the backend name.
	Name() string
}

// State is the player's lifecycle state.
type State int

const (
	StateIdleLoop State = iota
	StatePlayingAction
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdleLoop:
		return "idle-loop"
	case StatePlayingAction:
		return "playing-action"
	default:
		return "unknown"
	}
}

// Player runs the idle motion loop and one-shot action interrupts.
type Player struct {
	idle   []Clip
	sink   Sink
	clock  sched.Clock
	timer  *sched.Timer
	rng    *rand.Rand
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	current string
}

// Option configures the player.
type Option func(*Player)

// WithClock sets the clock driving clip timers.
func WithClock(clock sched.Clock) Option {
	return func(p *Player) { p.clock = clock }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Player) { p.logger = logger }
}

// WithRand sets the random source for idle clip selection.
func WithRand(rng *rand.Rand) Option {
	return func(p *Player) { p.rng = rng }
}

// New creates a motion player over the given idle catalog and output sink.
func New(idle []Clip, sink Sink, opts ...Option) *Player {
	p := &Player{
		idle:   idle,
		sink:   sink,
		clock:  sched.Real{},
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "motion")
	p.timer = sched.NewTimer(p.clock)
	return p
}

// Start begins (or restarts) the idle loop. The loop terminates on its own
// if the idle catalog is empty.
func (p *Player) Start() {
	if p.sink == nil {
		p.logger.Warn("motion start skipped, no output")
		return
	}
	if len(p.idle) == 0 {
		p.logger.Warn("motion start skipped, idle catalog is empty")
		return
	}
	p.playNextIdle()
}

// playNextIdle selects a random idle clip, plays it once, and waits out its
// duration before repeating.
func (p *Player) playNextIdle() {
	p.mu.Lock()
	clip := p.idle[p.rng.Intn(len(p.idle))]
	p.state = StateIdleLoop
	p.current = clip.ID
	p.mu.Unlock()

	// One pass only, whatever the clip's authored mode says.
	if err := p.sink.Play(clip.ID, false); err != nil {
		p.logger.Warn("idle clip play failed", "clip", clip.ID, "error", err)
	}
	p.timer.Arm(clip.Duration, p.playNextIdle)
	p.logger.Debug("idle clip started", "clip", clip.ID, "duration", clip.Duration)
}

// PlaySpecific interrupts the idle loop with a single one-shot clip, then
// restores the loop. Calling it again before the clip completes cancels the
// pending restore and restarts with the new clip. Nil clip or missing output
// is a logged no-op.
func (p *Player) PlaySpecific(clip *Clip) {
	if clip == nil {
		p.logger.Warn("play specific skipped, nil clip")
		return
	}
	if p.sink == nil {
		p.logger.Warn("play specific skipped, no output", "clip", clip.ID)
		return
	}

	p.mu.Lock()
	p.state = StatePlayingAction
	p.current = clip.ID
	p.mu.Unlock()

	if err := p.sink.Play(clip.ID, false); err != nil {
		p.logger.Warn("action clip play failed", "clip", clip.ID, "error", err)
	}
	// Arming replaces the idle wait (or a previous action's restore).
	p.timer.Arm(clip.Duration, p.Start)
	p.logger.Debug("action clip started", "clip", clip.ID, "duration", clip.Duration)
}

// Shutdown cancels any pending wait and leaves the player quiescent.
// Idempotent.
func (p *Player) Shutdown() {
	p.timer.Disarm()
	p.mu.Lock()
	p.state = StateIdleLoop
	p.current = ""
	p.mu.Unlock()
}

// State returns the current lifecycle state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Current returns the most recently started clip ID.
func (p *Player) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// MockSink records motion commands for tests.
type MockSink struct {
	mu    sync.Mutex
	plays []MockPlay
}

// MockPlay is one recorded Play call.
type MockPlay struct {
	ClipID string
	Loop   bool
}

// NewMockSink creates an empty recording sink.
func NewMockSink() *MockSink { return &MockSink{} }

// Play records the command.
func (m *MockSink) Play(clipID string, loop bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plays = append(m.plays, MockPlay{ClipID: clipID, Loop: loop})
	return nil
}

// Name returns "mock".
func (m *MockSink) Name() string { return "mock" }

// Plays returns every recorded Play call in order.
func (m *MockSink) Plays() []MockPlay {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockPlay, len(m.plays))
	copy(out, m.plays)
	return out
}

var _ Sink = (*MockSink)(nil)
