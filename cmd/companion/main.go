// Command companion runs the conversational companion controller with a
// stdin chat loop and the web dashboard.
//
// Configuration comes from COMPANION_* environment variables; see
// internal/config. Playback goes to logging sinks unless real outputs are
// wired in.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lumikit/go-companion/internal/config"
	"github.com/lumikit/go-companion/internal/log"
	"github.com/lumikit/go-companion/pkg/arbiter"
	"github.com/lumikit/go-companion/pkg/audioout"
	"github.com/lumikit/go-companion/pkg/backend"
	"github.com/lumikit/go-companion/pkg/chat"
	"github.com/lumikit/go-companion/pkg/events"
	"github.com/lumikit/go-companion/pkg/motion"
	"github.com/lumikit/go-companion/pkg/music"
	"github.com/lumikit/go-companion/pkg/web"
)

const persona = "你现在要扮演洛天依AI。你说话简短、温柔。"

// logMotionSink logs motion commands when no model runtime is attached.
type logMotionSink struct{}

func (logMotionSink) Play(clipID string, loop bool) error {
	log.Info("motion play", "clip", clipID, "loop", loop)
	return nil
}

func (logMotionSink) Name() string { return "log" }

func main() {
	var (
		level    = flag.String("log", "info", "log level (debug, info, warn, error)")
		webAddr  = flag.String("web", ":8090", "dashboard listen address")
		maxTurns = flag.Int("rounds", chat.DefaultMaxRounds, "turn pairs before the session resets")
	)
	flag.Parse()
	log.Init(*level)

	settings := config.FromEnv()
	bus := events.NewBus(log.L())

	engine := arbiter.New(
		arbiter.WithLogger(log.L()),
		arbiter.WithSink(arbiter.TierKeywordEffect, &audioout.Null{Logger: log.L()}),
		arbiter.WithSink(arbiter.TierSpeech, &audioout.Null{Logger: log.L()}),
	)

	musicCatalog := []audioout.Clip{
		{ID: "bgm-spring", Duration: 3 * time.Minute},
		{ID: "bgm-night", Duration: 4 * time.Minute},
		{ID: "bgm-rain", Duration: 150 * time.Second},
	}
	player := music.New(musicCatalog, &audioout.Null{Logger: log.L()},
		music.WithArbiter(engine),
		music.WithLogger(log.L()),
	)
	engine.AttachBackground(player)

	idleClips := []motion.Clip{
		{ID: "idle-sway", Duration: 6 * time.Second},
		{ID: "idle-blink", Duration: 4 * time.Second, Loop: true},
		{ID: "idle-tilt", Duration: 5 * time.Second},
	}
	mover := motion.New(idleClips, logMotionSink{}, motion.WithLogger(log.L()))

	waveClip := &motion.Clip{ID: "wave", Duration: 2 * time.Second}
	orch := chat.NewOrchestrator(
		chat.NewSession(persona, *maxTurns),
		bus,
		chat.WithArbiter(engine),
		chat.WithMusic(player),
		chat.WithMotion(mover),
		chat.WithKeywordActions([]chat.KeywordAction{
			{Keyword: "挥手", Clip: waveClip, PromptHint: "挥手致意"},
			{Keyword: "跳舞", Clip: &motion.Clip{ID: "dance", Duration: 8 * time.Second}, PromptHint: "开心地跳舞"},
		}),
		chat.WithKeywordSounds([]chat.KeywordSound{
			{Keyword: "你好", Clip: audioout.Clip{ID: "sfx-greet", Duration: time.Second}},
			{Keyword: "晚安", Clip: audioout.Clip{ID: "sfx-night", Duration: 2 * time.Second}},
		}),
		chat.WithOrchestratorLogger(log.L()),
	)

	client := backend.NewClient(
		backend.WithAPIKey(settings.Snapshot().APIKey),
		backend.WithLogger(log.L()),
	)
	runner := chat.NewRunner(orch, client, settings, log.L())

	server := web.NewServer(bus, log.L())
	go func() {
		if err := server.Run(*webAddr); err != nil {
			log.Error("dashboard stopped", "error", err)
		}
	}()

	player.Start()
	mover.Start()
	orch.StartNewConversation()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
		_ = server.Shutdown()
		os.Exit(0)
	}()

	fmt.Println("输入消息开始对话（Ctrl-D 退出）：")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if err := runner.Turn(ctx, text); err != nil {
			log.Warn("turn failed", "error", err)
		}
	}

	player.Stop()
	mover.Shutdown()
	engine.Shutdown()
	_ = server.Shutdown()
}
