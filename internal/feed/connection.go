package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/petersimagin1985-max/crypto-orderflow/internal/instrumentation"
)

// ErrHeartbeatTimeout is the cause recorded when a ping goes unanswered.
var ErrHeartbeatTimeout = errors.New("heartbeat timeout")

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handler receives every raw message in arrival order. It runs on the read
// goroutine, so the next message is not read until it returns.
type Handler func(ctx context.Context, raw []byte, receivedAt time.Time)

// Options configures a Connection.
type Options struct {
	URL               string
	BackoffMin        time.Duration
	BackoffMax        time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	Dial              DialFunc // defaults to DialWebsocket
}

// Connection keeps the upstream trade stream open for the lifetime of its
// context: connect, read, reconnect with exponential backoff.
type Connection struct {
	url               string
	dial              DialFunc
	handler           Handler
	backoff           *Backoff
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	state             atomic.Int32
	logger            *slog.Logger
	metrics           *instrumentation.Metrics

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewConnection creates a feed connection. metrics may be nil.
func NewConnection(opts Options, handler Handler, logger *slog.Logger, metrics *instrumentation.Metrics) *Connection {
	dial := opts.Dial
	if dial == nil {
		dial = DialWebsocket
	}

	return &Connection{
		url:               opts.URL,
		dial:              dial,
		handler:           handler,
		backoff:           NewBackoff(opts.BackoffMin, opts.BackoffMax),
		heartbeatInterval: opts.HeartbeatInterval,
		heartbeatTimeout:  opts.HeartbeatTimeout,
		logger:            logger.With("component", "feed", "url", opts.URL),
		metrics:           metrics,
		sleep:             sleepContext,
		now:               time.Now,
	}
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	return State(c.state.Load())
}

// Run connects and reads until ctx is cancelled. Every failure, whether the
// dial or an established stream, is followed by a backoff wait. It only
// returns ctx's error.
func (c *Connection) Run(ctx context.Context) error {
	defer c.setState(StateDisconnected)

	for {
		if err := ctx.Err(); err != nil {
			c.logger.Info("feed_stopping")
			return err
		}

		c.setState(StateConnecting)
		stream, err := c.dial(ctx, c.url)
		if err == nil {
			c.backoff.Reset()
			c.setState(StateConnected)
			c.logger.Info("feed_connected")

			err = c.receive(ctx, stream)
			if closeErr := stream.Close(); closeErr != nil {
				c.logger.Debug("feed_close_failed", "error", closeErr)
			}
		}
		c.setState(StateDisconnected)

		if ctxErr := ctx.Err(); ctxErr != nil {
			c.logger.Info("feed_stopping")
			return ctxErr
		}

		delay := c.backoff.Next()
		c.logger.Warn("feed_disconnected", "error", err, "retry_in_sec", delay.Seconds())
		if c.metrics != nil {
			c.metrics.RecordReconnect(delay)
		}

		if err := c.sleep(ctx, delay); err != nil {
			c.logger.Info("feed_stopping")
			return err
		}
	}
}

// receive reads until the stream fails, the heartbeat times out, or ctx is
// cancelled. The heartbeat goroutine has exited when it returns.
func (c *Connection) receive(ctx context.Context, stream Stream) error {
	connCtx, cancel := context.WithCancelCause(ctx)

	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel(nil)

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.heartbeat(connCtx, cancel, stream)
	}()

	for {
		raw, err := stream.Read(connCtx)
		if err != nil {
			if cause := context.Cause(connCtx); errors.Is(cause, ErrHeartbeatTimeout) {
				return cause
			}
			return fmt.Errorf("read: %w", err)
		}

		// The handler gets the parent context so a heartbeat failure
		// cannot abort a store write halfway through.
		c.handler(ctx, raw, c.now())

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (c *Connection) heartbeat(ctx context.Context, cancel context.CancelCauseFunc, stream Stream) {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, done := context.WithTimeout(ctx, c.heartbeatTimeout)
			err := stream.Ping(pingCtx)
			done()

			if err != nil {
				if ctx.Err() == nil {
					cancel(fmt.Errorf("%w: %w", ErrHeartbeatTimeout, err))
				}
				return
			}
			c.logger.Debug("feed_heartbeat_ok")
		}
	}
}

func (c *Connection) setState(s State) {
	c.state.Store(int32(s))
	if c.metrics != nil {
		c.metrics.RecordFeedState(int(s))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
