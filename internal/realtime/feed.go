// Package realtime subscribes to the push update channel.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/rtms/taskboard/pkg/models"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
	dialTimeout  = 10 * time.Second
)

// ErrClosed is returned when connecting a feed that was already closed.
var ErrClosed = errors.New("feed closed")

// errStopped ends the loop group on an orderly shutdown.
var errStopped = errors.New("stopped")

// Feed is a single push channel connection fanning events out to subscribers.
// It does not reconnect; once the connection drops, Done is closed and Err
// reports why.
type Feed struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	closed bool
	err    error
	done   chan struct{}

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(models.UpdateEvent)

	closeOnce sync.Once
}

// New creates a feed for the endpoint at rawURL.
func New(rawURL string, logger *slog.Logger) *Feed {
	return &Feed{
		url:    rawURL,
		dialer: &websocket.Dialer{HandshakeTimeout: dialTimeout, Proxy: http.ProxyFromEnvironment},
		logger: logger,
		done:   make(chan struct{}),
		subs:   make(map[int]func(models.UpdateEvent)),
	}
}

// Connect dials the channel with token and starts delivering events.
func (f *Feed) Connect(ctx context.Context, token string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.conn != nil {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	endpoint, err := withToken(f.url, token)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	dialCtx, cancelDial := context.WithTimeout(ctx, dialTimeout)
	defer cancelDial()
	conn, _, err := f.dialer.DialContext(dialCtx, endpoint, header)
	if err != nil {
		return fmt.Errorf("failed to connect to update channel: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		cancel()
		conn.Close()
		return ErrClosed
	}
	f.conn = conn
	f.cancel = cancel
	f.mu.Unlock()

	go f.run(runCtx, conn)
	return nil
}

func withToken(rawURL, token string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid update channel url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f *Feed) run(ctx context.Context, conn *websocket.Conn) {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return f.readLoop(conn)
	})

	g.Go(func() error {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return errStopped
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
					return fmt.Errorf("ping failed: %w", err)
				}
			}
		}
	})

	// Unblock the read loop once anything stops the group
	g.Go(func() error {
		<-ctx.Done()
		conn.Close()
		return errStopped
	})

	err := g.Wait()
	if errors.Is(err, errStopped) {
		err = nil
	}

	f.mu.Lock()
	if !f.closed && err != nil {
		f.err = err
	}
	f.mu.Unlock()
	if err != nil {
		f.logger.Warn("update channel stopped", "error", err)
	}
	close(f.done)
}

func (f *Feed) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			f.mu.Lock()
			closed := f.closed
			f.mu.Unlock()
			if closed || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errStopped
			}
			return fmt.Errorf("read failed: %w", err)
		}

		var event models.UpdateEvent
		if err := json.Unmarshal(data, &event); err != nil {
			f.logger.Debug("ignoring malformed update", "error", err)
			continue
		}
		f.dispatch(event)
	}
}

func (f *Feed) dispatch(event models.UpdateEvent) {
	f.subMu.Lock()
	fns := make([]func(models.UpdateEvent), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.subMu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}

// Subscribe registers fn for every event and returns the release function.
// Releasing more than once has no further effect. fn runs on the read loop
// and must not block.
func (f *Feed) Subscribe(fn func(models.UpdateEvent)) func() {
	f.subMu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.subMu.Lock()
			delete(f.subs, id)
			f.subMu.Unlock()
		})
	}
}

// Done is closed when the connection has stopped.
func (f *Feed) Done() <-chan struct{} {
	return f.done
}

// Err returns the error that stopped the connection, if any.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Close shuts the connection down. It is safe to call more than once and
// before Connect.
func (f *Feed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		conn := f.conn
		cancel := f.cancel
		f.mu.Unlock()

		if conn == nil {
			close(f.done)
			return
		}

		select {
		case <-f.done:
			// Connection already gone
		default:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if werr := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout)); werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
				err = werr
			}
		}
		cancel()
		<-f.done
	})
	return err
}
