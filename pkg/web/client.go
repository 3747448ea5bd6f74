package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Viewer is a remote dashboard client. It dials the server's /ws endpoint
// and delivers transcript entries to a callback.
type Viewer struct {
	url     string
	logger  *slog.Logger
	onEntry func(Entry)

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewViewer creates a viewer for the given ws:// URL.
func NewViewer(url string, onEntry func(Entry), logger *slog.Logger) *Viewer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Viewer{
		url:     url,
		logger:  logger.With("component", "web.viewer"),
		onEntry: onEntry,
	}
}

// Connect dials the dashboard and starts the read loop. The loop exits when
// the connection drops or Close is called.
func (v *Viewer) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, v.url, nil)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.conn = conn
	v.mu.Unlock()

	go v.readLoop(conn)
	v.logger.Info("connected to dashboard", "url", v.url)
	return nil
}

func (v *Viewer) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			v.logger.Debug("viewer read loop ended", "error", err)
			return
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil || entry.Sender == "" {
			continue // clear markers and malformed frames
		}
		if v.onEntry != nil {
			v.onEntry(entry)
		}
	}
}

// Close drops the connection. Safe to call before Connect.
func (v *Viewer) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.conn == nil {
		return nil
	}
	err := v.conn.Close()
	v.conn = nil
	return err
}
