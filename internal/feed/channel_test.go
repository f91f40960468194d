package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeConn struct {
	in     chan []byte
	mu     sync.Mutex
	writes []string
	closed chan struct{}
	once   sync.Once
	err    error
}

func newFakeConn(frames ...string) *fakeConn {
	c := &fakeConn{in: make(chan []byte, len(frames)), closed: make(chan struct{})}
	for _, f := range frames {
		c.in <- []byte(f)
	}
	return c
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case b, ok := <-c.in:
		if !ok {
			if c.err != nil {
				return 0, nil, c.err
			}
			return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
		return websocket.TextMessage, b, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(mt int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mt == websocket.TextMessage {
		c.writes = append(c.writes, string(data))
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

func collect(ch *Channel) *[]Event {
	var events []Event
	ch.Subscribe(func(e Event) { events = append(events, e) })
	return &events
}

func TestChannelDeliversInOrder(t *testing.T) {
	conn := newFakeConn(
		`{"op":"CREATE","response":{"file":"a","data":{"datasets":[]}}}`,
		`garbage`,
		`{"op":"HELLO"}`,
		`{"op":"REMOVE","file":"a"}`,
	)
	close(conn.in)
	ch := NewChannel(conn, Options{})
	events := collect(ch)

	if err := ch.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var kinds []EventKind
	for _, e := range *events {
		kinds = append(kinds, e.Kind)
	}
	want := []EventKind{EventOpened, EventReceived, EventParseFailed, EventIgnored, EventReceived, EventClosed}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, kinds[i], want[i])
		}
	}
	if _, ok := (*events)[4].Notification.(Remove); !ok {
		t.Fatalf("event 4 = %#v", (*events)[4].Notification)
	}
	if len(conn.written()) != 0 {
		t.Fatalf("ack sent with acks disabled: %v", conn.written())
	}
}

func TestChannelAcksParseFailures(t *testing.T) {
	conn := newFakeConn(`{"op":`, `{"op":"WRITE"}`)
	close(conn.in)
	ch := NewChannel(conn, Options{AckParseFailures: true})
	if err := ch.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := conn.written()
	if len(got) != 2 || got[0] != ParseFailureAck {
		t.Fatalf("writes = %v", got)
	}
}

func TestChannelReportsConnectionLoss(t *testing.T) {
	conn := newFakeConn()
	conn.err = errors.New("connection reset")
	close(conn.in)
	ch := NewChannel(conn, Options{})
	events := collect(ch)

	err := ch.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("Run err = %v", err)
	}
	last := (*events)[len(*events)-1]
	if last.Kind != EventClosed || last.Err == nil {
		t.Fatalf("last event = %+v", last)
	}
}

func TestChannelStopsOnCancel(t *testing.T) {
	conn := newFakeConn()
	ch := NewChannel(conn, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ch.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run after cancel = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestUnsubscribe(t *testing.T) {
	conn := newFakeConn(`{"op":"REMOVE","file":"a"}`)
	close(conn.in)
	ch := NewChannel(conn, Options{})
	var n int
	stop := ch.Subscribe(func(Event) { n++ })
	stop()
	_ = ch.Run(context.Background())
	if n != 0 {
		t.Fatalf("unsubscribed handler called %d times", n)
	}
}

func TestDialAgainstWebsocketServer(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	acks := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"CREATE","response":{"file":"a","data":{"datasets":[{"label":"x","data":[1]}]}}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`nope`))
		_, msg, err := conn.ReadMessage()
		if err == nil {
			acks <- string(msg)
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	}))
	defer srv.Close()

	ctx := context.Background()
	conn, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	ch := NewChannel(conn, Options{AckParseFailures: true})
	var received []Notification
	ch.Subscribe(func(e Event) {
		if e.Kind == EventReceived {
			received = append(received, e.Notification)
		}
	})
	if err := ch.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(received) != 1 || received[0].ChartID() != "a" {
		t.Fatalf("received = %#v", received)
	}
	select {
	case a := <-acks:
		if a != ParseFailureAck {
			t.Fatalf("ack = %q", a)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the ack")
	}
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	if _, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), time.Second); err == nil {
		t.Fatal("expected dial error against a plain HTTP handler")
	}
}
