package chat

import (
	"context"
	"log/slog"

	"github.com/lumikit/go-companion/internal/config"
	"github.com/lumikit/go-companion/pkg/backend"
	"github.com/lumikit/go-companion/pkg/wav"
)

// Dispatcher is the backend surface the runner dispatches through.
// Satisfied by *backend.Client.
type Dispatcher interface {
	SendChat(ctx context.Context, req *backend.ChatRequest) (string, error)
	SynthesizeSpeech(ctx context.Context, text, endpoint string) (*wav.PCM, error)
}

// Runner drives one full turn: user input through the orchestrator, the
// backend call, the reply, and best-effort speech synthesis. Settings are
// re-read on every turn, never cached.
type Runner struct {
	orch     *Orchestrator
	client   Dispatcher
	settings *config.Settings
	logger   *slog.Logger
}

// NewRunner creates a turn runner.
func NewRunner(orch *Orchestrator, client Dispatcher, settings *config.Settings, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		orch:     orch,
		client:   client,
		settings: settings,
		logger:   logger.With("component", "runner"),
	}
}

// Turn processes one user input end to end. Backend failures surface as a
// system-tier chat message and are returned; they are never retried here.
// Synthesis failures are logged only — speech is best-effort and a failed
// synthesis does not block the conversation.
func (r *Runner) Turn(ctx context.Context, text string) error {
	if !r.orch.ProcessUserInput(text) {
		return nil
	}

	// Read the settings fresh for this dispatch.
	st := r.settings.Snapshot()

	reply, err := r.client.SendChat(ctx, &backend.ChatRequest{
		Provider: backend.Provider(st.Provider),
		Model:    st.Model,
		Endpoint: st.ServerAddress,
		Messages: r.orch.History(),
	})
	if err != nil {
		r.logger.Error("chat dispatch failed", "provider", st.Provider, "error", err)
		r.orch.SystemNotice("对话请求失败：" + err.Error())
		return err
	}

	r.orch.ProcessAIResponse(reply)

	// Speech flag re-read after the chat round trip; a settings change
	// mid-turn takes effect here.
	if !r.settings.Snapshot().SpeechEnabled {
		return nil
	}

	pcm, err := r.client.SynthesizeSpeech(ctx, reply, st.SpeechAddress)
	if err != nil {
		r.logger.Warn("speech synthesis failed", "error", err)
		return nil
	}
	r.orch.PlaySynthesizedAudio(pcm)
	return nil
}
