package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumikit/go-companion/internal/config"
	"github.com/lumikit/go-companion/pkg/arbiter"
	"github.com/lumikit/go-companion/pkg/backend"
	"github.com/lumikit/go-companion/pkg/events"
	"github.com/lumikit/go-companion/pkg/wav"
)

type fakeDispatcher struct {
	reply    string
	chatErr  error
	pcm      *wav.PCM
	synthErr error

	chatReqs  []*backend.ChatRequest
	synthText []string
	endpoints []string
}

func (f *fakeDispatcher) SendChat(_ context.Context, req *backend.ChatRequest) (string, error) {
	f.chatReqs = append(f.chatReqs, req)
	return f.reply, f.chatErr
}

func (f *fakeDispatcher) SynthesizeSpeech(_ context.Context, text, endpoint string) (*wav.PCM, error) {
	f.synthText = append(f.synthText, text)
	f.endpoints = append(f.endpoints, endpoint)
	return f.pcm, f.synthErr
}

func testSettings() *config.Settings {
	s := config.New()
	s.SetProvider(config.ProviderLocal)
	s.SetServerAddress("http://chat.test/api/chat")
	s.SetSpeechAddress("http://tts.test")
	s.SetModel("qwen-lora")
	return s
}

func newRunnerFixture(disp *fakeDispatcher) (*Runner, *Orchestrator, *fakeArbiter) {
	arb := &fakeArbiter{}
	orch := NewOrchestrator(NewSession("persona", 10), events.NewBus(nil), WithArbiter(arb))
	return NewRunner(orch, disp, testSettings(), nil), orch, arb
}

func TestTurnSuccess(t *testing.T) {
	disp := &fakeDispatcher{
		reply: "你好呀",
		pcm:   &wav.PCM{Channels: 1, SampleRate: 16000, Samples: make([]float64, 8000)},
	}
	r, orch, arb := newRunnerFixture(disp)

	require.NoError(t, r.Turn(context.Background(), "在吗"))

	// The dispatch carried the full ordered history and the live settings.
	require.Len(t, disp.chatReqs, 1)
	req := disp.chatReqs[0]
	assert.Equal(t, backend.ProviderLocal, req.Provider)
	assert.Equal(t, "qwen-lora", req.Model)
	assert.Equal(t, "http://chat.test/api/chat", req.Endpoint)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "在吗", req.Messages[1].Content)

	history := orch.History()
	require.Len(t, history, 3)
	assert.Equal(t, backend.RoleAssistant, history[2].Role)
	assert.Equal(t, "你好呀", history[2].Content)

	// Reply went to synthesis and then to the speech tier.
	require.Equal(t, []string{"你好呀"}, disp.synthText)
	assert.Equal(t, []string{"http://tts.test"}, disp.endpoints)
	require.Len(t, arb.tiers, 1)
	assert.Equal(t, arbiter.TierSpeech, arb.tiers[0])
}

func TestTurnDispatchFailureSurfacesNotice(t *testing.T) {
	disp := &fakeDispatcher{chatErr: backend.ErrNetwork}
	arb := &fakeArbiter{}
	bus := events.NewBus(nil)
	orch := NewOrchestrator(NewSession("persona", 10), bus, WithArbiter(arb))
	r := NewRunner(orch, disp, testSettings(), nil)

	ch, cancel := bus.Subscribe(8)
	defer cancel()

	err := r.Turn(context.Background(), "在吗")
	require.ErrorIs(t, err, backend.ErrNetwork)

	// The user message stands; no assistant reply was appended.
	history := orch.History()
	require.Len(t, history, 2)
	assert.Equal(t, backend.RoleUser, history[1].Role)

	var notice *events.Event
	for _, ev := range drain(ch) {
		if ev.Sender == events.SenderSystem {
			ev := ev
			notice = &ev
		}
	}
	require.NotNil(t, notice, "failure must surface as a system message")
	assert.Contains(t, notice.Text, "对话请求失败：")

	assert.Empty(t, disp.synthText, "no synthesis after a failed dispatch")
}

func TestTurnSpeechDisabledSkipsSynthesis(t *testing.T) {
	disp := &fakeDispatcher{reply: "好"}
	arb := &fakeArbiter{}
	orch := NewOrchestrator(NewSession("persona", 10), events.NewBus(nil), WithArbiter(arb))
	settings := testSettings()
	settings.SetSpeechEnabled(false)
	r := NewRunner(orch, disp, settings, nil)

	require.NoError(t, r.Turn(context.Background(), "在吗"))

	assert.Empty(t, disp.synthText)
	assert.Empty(t, arb.requests)
	assert.Len(t, orch.History(), 3, "reply still recorded without speech")
}

func TestTurnSynthesisFailureIsNonFatal(t *testing.T) {
	disp := &fakeDispatcher{reply: "好", synthErr: errors.New("tts down")}
	r, orch, arb := newRunnerFixture(disp)

	require.NoError(t, r.Turn(context.Background(), "在吗"), "synthesis failure must not fail the turn")

	assert.Len(t, orch.History(), 3)
	assert.Empty(t, arb.requests, "nothing to play after a failed synthesis")
}
