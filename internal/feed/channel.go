package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jask/simdash/internal/logging"
)

// ParseFailureAck is the text frame sent back for an unparseable message
// when acknowledgments are enabled.
const ParseFailureAck = "Cannot Parse"

// Conn is the subset of *websocket.Conn the channel uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// EventKind classifies channel events.
type EventKind int

const (
	EventOpened EventKind = iota
	EventReceived
	EventParseFailed
	EventIgnored
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventReceived:
		return "received"
	case EventParseFailed:
		return "parse-failed"
	case EventIgnored:
		return "ignored"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers in arrival order.
type Event struct {
	Kind         EventKind
	Notification Notification // set for EventReceived
	Raw          []byte       // set for EventParseFailed and EventIgnored
	Err          error        // parse error, or the read error that closed the channel
}

// Options tunes a Channel.
type Options struct {
	// AckParseFailures replies ParseFailureAck to unparseable frames.
	AckParseFailures bool
}

type subscriber struct {
	id int
	fn func(Event)
}

// Channel reads frames off a connection, decodes them and fans the resulting
// events out to subscribers. Subscribers run on the Run goroutine one event at
// a time, so a subscriber that applies notifications sees them strictly in
// order.
type Channel struct {
	conn Conn
	opts Options

	mu     sync.Mutex
	subs   []subscriber
	nextID int

	// gorilla allows one concurrent writer
	wmu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

func NewChannel(conn Conn, opts Options) *Channel {
	return &Channel{conn: conn, opts: opts, closed: make(chan struct{})}
}

// Subscribe registers fn and returns a function that removes it.
func (c *Channel) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

func (c *Channel) emit(ev Event) {
	c.mu.Lock()
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()
	for _, s := range subs {
		s.fn(ev)
	}
}

// Run reads until the connection ends, ctx is cancelled or Close is called.
// It returns nil for those orderly endings and the read error otherwise. The
// last event delivered is always EventClosed. Run does not reconnect.
func (c *Channel) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-stop:
		}
	}()

	c.emit(Event{Kind: EventOpened})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			err = c.readErr(err)
			c.emit(Event{Kind: EventClosed, Err: err})
			return err
		}
		c.handle(data)
	}
}

func (c *Channel) handle(data []byte) {
	n, err := Decode(data)
	switch {
	case err == nil:
		c.emit(Event{Kind: EventReceived, Notification: n})
	case errors.Is(err, ErrUnknownOp):
		logging.Debugf("feed: ignoring frame: %v", err)
		c.emit(Event{Kind: EventIgnored, Raw: data, Err: err})
	default:
		logging.Warnf("feed: %v", err)
		c.emit(Event{Kind: EventParseFailed, Raw: data, Err: err})
		if c.opts.AckParseFailures {
			if werr := c.write(websocket.TextMessage, []byte(ParseFailureAck)); werr != nil {
				logging.Debugf("feed: ack failed: %v", werr)
			}
		}
	}
}

func (c *Channel) write(mt int, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteMessage(mt, data)
}

func (c *Channel) readErr(err error) error {
	select {
	case <-c.closed:
		return nil
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return fmt.Errorf("feed read: %w", err)
}

// Close sends a close frame and shuts the connection. Notifications already
// delivered stay applied. Safe to call more than once.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = c.conn.Close()
	})
	return err
}

// Dial opens the push channel at url.
func Dial(ctx context.Context, url string, handshakeTimeout time.Duration) (*websocket.Conn, error) {
	d := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	conn, resp, err := d.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}
