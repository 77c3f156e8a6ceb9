package feed

import (
	"context"
	"fmt"
	"time"

	"nhooyr.io/websocket"
)

const (
	dialTimeout = 10 * time.Second
	readLimit   = 1 << 20 // 1MB
)

// Stream is one open upstream connection.
type Stream interface {
	// Read blocks until the next text message arrives.
	Read(ctx context.Context) ([]byte, error)
	// Ping sends a heartbeat and waits for the pong. It relies on a
	// concurrent Read to receive the pong.
	Ping(ctx context.Context) error
	Close() error
}

// DialFunc opens a Stream to url.
type DialFunc func(ctx context.Context, url string) (Stream, error)

// DialWebsocket opens a websocket Stream.
func DialWebsocket(ctx context.Context, url string) (Stream, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(readLimit)

	return &wsStream{conn: conn}, nil
}

type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) Read(ctx context.Context) ([]byte, error) {
	for {
		msgType, data, err := s.conn.Read(ctx)
		if err != nil {
			return nil, err
		}
		if msgType != websocket.MessageText {
			continue
		}
		return data, nil
	}
}

func (s *wsStream) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func (s *wsStream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "reconnect")
}
