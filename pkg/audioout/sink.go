// Package audioout defines the playback sinks the audio arbiter commands.
//
// A Sink is one exclusive output channel. Each audio tier (background music,
// keyword effects, synthesized speech) owns its own Sink; no two components
// ever command the same one.
package audioout

import (
	"log/slog"
	"sync"
	"time"
)

// Clip identifies a playable audio clip and its nominal duration.
type Clip struct {
	ID       string
	Duration time.Duration
}

// Sink plays named clips on one output channel.
type Sink interface {
	// Play starts playback of the named clip, replacing whatever the sink
	// was playing.
	Play(clipID string) error

	// Stop halts playback immediately. Safe to call when idle.
	Stop() error

	// Name returns the backend name (e.g. "null", "mock").
	Name() string
}

// Pausable is implemented by sinks that can suspend playback and pick it up
// again from the same position. The background music channel requires it;
// effect and speech channels are only ever stopped, never paused.
type Pausable interface {
	Pause() error
	Resume() error
}

// Null is a Sink that only logs. It stands in when no output device is
// configured; playback degrades to a logged no-op.
type Null struct {
	Logger *slog.Logger
}

func (n *Null) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

// Play logs the play command.
func (n *Null) Play(clipID string) error {
	n.logger().Debug("null sink play", "clip", clipID)
	return nil
}

// Stop logs the stop command.
func (n *Null) Stop() error {
	n.logger().Debug("null sink stop")
	return nil
}

// Name returns "null".
func (n *Null) Name() string { return "null" }

// Mock is a Sink that records commands for tests.
type Mock struct {
	mu      sync.Mutex
	played  []string
	stops   int
	pauses  int
	resumes int
	current string
}

// NewMock creates an empty recording sink.
func NewMock() *Mock { return &Mock{} }

// Play records the clip and marks it current.
func (m *Mock) Play(clipID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.played = append(m.played, clipID)
	m.current = clipID
	return nil
}

// Stop records the stop and clears the current clip.
func (m *Mock) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.current = ""
	return nil
}

// Pause records the pause.
func (m *Mock) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses++
	return nil
}

// Resume records the resume.
func (m *Mock) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumes++
	return nil
}

// Name returns "mock".
func (m *Mock) Name() string { return "mock" }

// Pauses returns how many times Pause was called.
func (m *Mock) Pauses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pauses
}

// Resumes returns how many times Resume was called.
func (m *Mock) Resumes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resumes
}

// Played returns every clip ID passed to Play, in order.
func (m *Mock) Played() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.played))
	copy(out, m.played)
	return out
}

// Stops returns how many times Stop was called.
func (m *Mock) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// Current returns the clip playing since the last Play, or "" after Stop.
func (m *Mock) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Compile-time interface checks.
var (
	_ Sink     = (*Null)(nil)
	_ Sink     = (*Mock)(nil)
	_ Pausable = (*Mock)(nil)
)
