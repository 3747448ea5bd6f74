package chat

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumikit/go-companion/pkg/arbiter"
	"github.com/lumikit/go-companion/pkg/audioout"
	"github.com/lumikit/go-companion/pkg/backend"
	"github.com/lumikit/go-companion/pkg/events"
	"github.com/lumikit/go-companion/pkg/motion"
	"github.com/lumikit/go-companion/pkg/wav"
)

// KeywordAction maps a trigger keyword to a motion clip and the prompt hint
// the backend is told about. Matching is substring-based, first match wins
// in table order; overlapping keywords are not disambiguated by specificity.
type KeywordAction struct {
	Keyword    string
	Clip       *motion.Clip
	PromptHint string
}

// KeywordSound maps a trigger keyword to a sound-effect clip. Same matching
// semantics as KeywordAction, independent table.
type KeywordSound struct {
	Keyword string
	Clip    audioout.Clip
}

// actionPrefix prefixes the synthetic user-role message that tells the
// backend an action was performed.
const actionPrefix = "你现在正在"

// resetNotice is the system notification shown when the rolling-reset limit
// trips.
const resetNotice = "对话轮数已达上限，已开启新的对话。"

// Default music-control phrases scanned in user input.
var (
	DefaultPausePhrases  = []string{"暂停音乐", "暂停播放"}
	DefaultResumePhrases = []string{"继续音乐", "播放音乐", "继续播放"}
)

// MusicControl is the rotation player surface the orchestrator drives on
// music-control phrases.
type MusicControl interface {
	Pause()
	Resume()
}

// MotionTrigger is the motion player surface for keyword actions.
type MotionTrigger interface {
	PlaySpecific(clip *motion.Clip)
}

// Arbiter is the audio arbitration surface the orchestrator needs.
type Arbiter interface {
	RequestPlay(tier arbiter.Tier, clip audioout.Clip) bool
	Busy() bool
}

// Orchestrator sequences one conversation: keyword scans, history
// mutations, and playback requests. It exclusively owns the session and the
// keyword tables.
type Orchestrator struct {
	session *Session
	bus     *events.Bus
	logger  *slog.Logger

	actions []KeywordAction
	sounds  []KeywordSound

	music  MusicControl
	motion MotionTrigger
	arb    Arbiter

	pausePhrases  []string
	resumePhrases []string
}

// OrchestratorOption configures the orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithKeywordActions sets the action keyword table.
func WithKeywordActions(actions []KeywordAction) OrchestratorOption {
	return func(o *Orchestrator) { o.actions = actions }
}

// WithKeywordSounds sets the sound-effect keyword table.
func WithKeywordSounds(sounds []KeywordSound) OrchestratorOption {
	return func(o *Orchestrator) { o.sounds = sounds }
}

// WithMusic attaches the rotation player for music-control phrases.
func WithMusic(m MusicControl) OrchestratorOption {
	return func(o *Orchestrator) { o.music = m }
}

// WithMotion attaches the motion player for keyword actions.
func WithMotion(m MotionTrigger) OrchestratorOption {
	return func(o *Orchestrator) { o.motion = m }
}

// WithArbiter attaches the audio arbitration engine.
func WithArbiter(a Arbiter) OrchestratorOption {
	return func(o *Orchestrator) { o.arb = a }
}

// WithMusicPhrases overrides the pause/resume phrase tables.
func WithMusicPhrases(pause, resume []string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.pausePhrases = pause
		o.resumePhrases = resume
	}
}

// WithOrchestratorLogger sets the structured logger.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = logger }
}

// NewOrchestrator creates a turn orchestrator over the given session.
func NewOrchestrator(session *Session, bus *events.Bus, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		session:       session,
		bus:           bus,
		logger:        slog.Default(),
		pausePhrases:  DefaultPausePhrases,
		resumePhrases: DefaultResumePhrases,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "chat")
	return o
}

// StartNewConversation clears the history, re-seeds the persona message,
// and notifies displays. Legal from any state.
func (o *Orchestrator) StartNewConversation() {
	o.session.Reset()
	o.publish(events.Event{Kind: events.KindCleared})
	o.publish(events.Event{Kind: events.KindConversationStarted})
	o.logger.Info("new conversation started", "session", o.session.ID())
}

// ProcessUserInput runs the keyword scans and history bookkeeping for one
// user input. It reports whether the backend should be called; currently no
// input short-circuits the backend call, so it always returns true.
func (o *Orchestrator) ProcessUserInput(text string) bool {
	o.scanMusicPhrases(text)
	o.scanKeywordSounds(text)
	actionMatched := o.scanKeywordActions(text)

	// An action match counts as a turn in its own right; the rolling-reset
	// check applies only to plain inputs.
	if !actionMatched && o.session.AtLimit() {
		o.session.Reset()
		o.publish(events.Event{Kind: events.KindConversationStarted})
		o.publish(events.Event{
			Kind:   events.KindMessageAppended,
			Sender: events.SenderSystem,
			Text:   resetNotice,
		})
		o.logger.Info("session reset at rolling limit", "limit", o.session.Limit())
	}

	o.session.Append(backend.RoleUser, text)
	o.publish(events.Event{
		Kind:   events.KindMessageAppended,
		Sender: events.SenderUser,
		Text:   text,
	})
	return true
}

// scanMusicPhrases drives the rotation player on pause/resume phrases.
// Skipped while a keyword effect or speech session is active.
func (o *Orchestrator) scanMusicPhrases(text string) {
	if o.music == nil {
		return
	}
	if o.arb != nil && o.arb.Busy() {
		return
	}
	if containsAny(text, o.pausePhrases) {
		o.logger.Debug("music pause phrase matched")
		o.music.Pause()
		return
	}
	if containsAny(text, o.resumePhrases) {
		o.logger.Debug("music resume phrase matched")
		o.music.Resume()
	}
}

// scanKeywordSounds requests keyword-effect playback for the first matching
// entry.
func (o *Orchestrator) scanKeywordSounds(text string) {
	if o.arb == nil {
		return
	}
	for _, entry := range o.sounds {
		if strings.Contains(text, entry.Keyword) {
			o.logger.Debug("sound keyword matched", "keyword", entry.Keyword, "clip", entry.Clip.ID)
			o.arb.RequestPlay(arbiter.TierKeywordEffect, entry.Clip)
			return
		}
	}
}

// scanKeywordActions triggers the motion player and appends the synthetic
// action message for the first matching entry. Reports whether any entry
// matched.
func (o *Orchestrator) scanKeywordActions(text string) bool {
	for _, entry := range o.actions {
		if !strings.Contains(text, entry.Keyword) {
			continue
		}
		o.logger.Debug("action keyword matched", "keyword", entry.Keyword)
		if o.motion != nil {
			o.motion.PlaySpecific(entry.Clip)
		}
		// Tell the backend what the companion is doing.
		o.session.Append(backend.RoleUser, actionPrefix+entry.PromptHint)
		return true
	}
	return false
}

// ProcessAIResponse appends the assistant reply and notifies displays. It
// does not trigger speech synthesis; that is the caller's responsibility.
func (o *Orchestrator) ProcessAIResponse(text string) {
	o.session.Append(backend.RoleAssistant, text)
	o.publish(events.Event{
		Kind:   events.KindMessageAppended,
		Sender: events.SenderAI,
		Text:   text,
	})
}

// PlaySynthesizedAudio requests speech-tier playback of decoded samples.
// The arbiter's own resume logic restores background music when the speech
// session completes. Nil or empty audio is a logged no-op.
func (o *Orchestrator) PlaySynthesizedAudio(pcm *wav.PCM) {
	if pcm == nil || len(pcm.Samples) == 0 {
		o.logger.Warn("skipping empty synthesized audio")
		return
	}
	if o.arb == nil {
		o.logger.Warn("skipping synthesized audio, no arbiter attached")
		return
	}

	clip := audioout.Clip{
		ID:       "speech-" + uuid.NewString(),
		Duration: pcmDuration(pcm),
	}
	o.arb.RequestPlay(arbiter.TierSpeech, clip)
}

// History returns a snapshot of the conversation history.
func (o *Orchestrator) History() []backend.Message {
	return o.session.Messages()
}

// SystemNotice publishes a system-tier chat message without touching the
// history. Used to surface backend failures to the user.
func (o *Orchestrator) SystemNotice(text string) {
	o.publish(events.Event{
		Kind:   events.KindMessageAppended,
		Sender: events.SenderSystem,
		Text:   text,
	})
}

func (o *Orchestrator) publish(ev events.Event) {
	if o.bus != nil {
		o.bus.Publish(ev)
	}
}

// pcmDuration derives playback time from sample count, rate, and channels.
func pcmDuration(pcm *wav.PCM) time.Duration {
	rate := pcm.SampleRate * pcm.Channels
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(len(pcm.Samples)) / float64(rate) * float64(time.Second))
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			return true
		}
	}
	return false
}
