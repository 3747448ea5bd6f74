// Package web provides a real-time chat-log dashboard for go-companion.
//
// The server subscribes to the orchestrator's event bus and streams entries
// to websocket viewers. It is purely observational: it never feeds anything
// back into orchestration state.
package web

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/lumikit/go-companion/pkg/events"
)

// maxTranscript bounds the in-memory transcript buffer.
const maxTranscript = 200

// Entry is one displayed chat line.
type Entry struct {
	Time   string `json:"time"`
	Sender string `json:"sender"` // user, ai, system
	Text   string `json:"text"`
}

// Server is the dashboard server.
type Server struct {
	app    *fiber.App
	bus    *events.Bus
	logger *slog.Logger

	mu         sync.RWMutex
	transcript []Entry
	viewers    map[*websocket.Conn]chan []byte

	stop func()
}

// NewServer creates a dashboard server fed by the given bus.
func NewServer(bus *events.Bus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
		}),
		bus:     bus,
		logger:  logger.With("component", "web"),
		viewers: make(map[*websocket.Conn]chan []byte),
	}

	s.app.Use(cors.New())
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	s.app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "go-companion",
			"viewers": s.viewerCount(),
		})
	})
	s.app.Get("/ws", websocket.New(s.handleViewer))

	return s
}

// Run subscribes to the bus and serves on addr. Blocks until Shutdown.
func (s *Server) Run(addr string) error {
	ch, cancel := s.bus.Subscribe(64)
	s.stop = cancel
	go s.pump(ch)

	s.logger.Info("dashboard listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the server and drops the bus subscription.
func (s *Server) Shutdown() error {
	if s.stop != nil {
		s.stop()
	}
	return s.app.Shutdown()
}

// pump converts bus events into transcript entries and fans them out.
func (s *Server) pump(ch <-chan events.Event) {
	for ev := range ch {
		switch ev.Kind {
		case events.KindCleared:
			s.mu.Lock()
			s.transcript = nil
			s.mu.Unlock()
			s.broadcast([]byte(`{"cleared":true}`))

		case events.KindMessageAppended:
			entry := Entry{
				Time:   time.Now().Format("15:04:05"),
				Sender: ev.Sender.String(),
				Text:   ev.Text,
			}
			s.append(entry)
			if data, err := json.Marshal(entry); err == nil {
				s.broadcast(data)
			}
		}
	}
}

// append adds an entry to the bounded transcript buffer.
func (s *Server) append(entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, entry)
	if len(s.transcript) > maxTranscript {
		s.transcript = s.transcript[len(s.transcript)-maxTranscript:]
	}
}

// Transcript returns a copy of the buffered entries.
func (s *Server) Transcript() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *Server) viewerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.viewers)
}

// handleViewer serves one websocket viewer: replay the transcript, then
// stream new entries until the connection drops.
func (s *Server) handleViewer(c *websocket.Conn) {
	send := make(chan []byte, 64)

	s.mu.Lock()
	s.viewers[c] = send
	backlog := make([]Entry, len(s.transcript))
	copy(backlog, s.transcript)
	s.mu.Unlock()

	s.logger.Debug("viewer connected", "viewers", s.viewerCount())

	defer func() {
		s.mu.Lock()
		delete(s.viewers, c)
		s.mu.Unlock()
		c.Close()
		s.logger.Debug("viewer disconnected", "viewers", s.viewerCount())
	}()

	for _, entry := range backlog {
		data, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	// Reads are discarded; the read loop only detects disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case data := <-send:
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// broadcast fans data out to every viewer, dropping it for slow ones.
func (s *Server) broadcast(data []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, send := range s.viewers {
		select {
		case send <- data:
		default:
			s.logger.Warn("dropping frame for slow viewer")
		}
	}
}
