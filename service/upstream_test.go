package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fleetdash/models"
)

// chanHandler turns transport callbacks into a stream of events.
type chanHandler struct {
	events chan string
}

func newChanHandler() *chanHandler {
	return &chanHandler{events: make(chan string, 32)}
}

func (h *chanHandler) HandleOpen()              { h.events <- "open" }
func (h *chanHandler) HandleMessage(raw []byte) { h.events <- "message:" + string(raw) }
func (h *chanHandler) HandleClose(err error)    { h.events <- "close" }
func (h *chanHandler) HandleError(err error)    { h.events <- "error" }

func (h *chanHandler) next(t *testing.T) string {
	t.Helper()
	select {
	case ev := <-h.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transport event")
		return ""
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestUpstream(url string) *Upstream {
	return NewUpstream(UpstreamConfig{
		URL:              url,
		HandshakeTimeout: time.Second,
		WriteWait:        time.Second,
		ReadLimit:        1 << 16,
	}, testLogger())
}

func TestUpstreamSessionRoundTrip(t *testing.T) {
	received := make(chan map[string]string, 4)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		readFrame := func() bool {
			var msg map[string]string
			if err := conn.ReadJSON(&msg); err != nil {
				return false
			}
			received <- msg
			return true
		}

		if !readFrame() {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"fetchInitial","socketId":"sock-1","connectedDevices":[]}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
		if !readFrame() {
			return
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
		conn.ReadMessage()
	}))
	defer srv.Close()

	u := newTestUpstream(wsURL(srv))
	h := newChanHandler()
	runErr := make(chan error, 1)
	go func() { runErr <- u.Run(context.Background(), h) }()

	if ev := h.next(t); ev != "open" {
		t.Fatalf("first event = %q, want open", ev)
	}
	if err := u.Send(models.FetchInitialRequest{}); err != nil {
		t.Fatalf("Send fetchInitial: %v", err)
	}
	if ev := h.next(t); !strings.Contains(ev, `"socketId":"sock-1"`) {
		t.Fatalf("event = %q, want fetchInitial reply", ev)
	}
	if ev := h.next(t); ev != `message:{"type":"ping"}` {
		t.Fatalf("event = %q, want ping", ev)
	}
	if err := u.Send(models.Pong{SocketID: "sock-1"}); err != nil {
		t.Fatalf("Send pong: %v", err)
	}
	if ev := h.next(t); ev != "close" {
		t.Fatalf("event = %q, want close", ev)
	}

	select {
	case err := <-runErr:
		var closeErr *websocket.CloseError
		if !errors.As(err, &closeErr) || closeErr.Code != websocket.CloseGoingAway {
			t.Errorf("Run error = %v, want close 1001", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after close")
	}

	first, second := <-received, <-received
	if first["type"] != "fetchInitial" {
		t.Errorf("first frame = %v, want fetchInitial", first)
	}
	if second["type"] != "pong" || second["socketId"] != "sock-1" {
		t.Errorf("second frame = %v, want pong with socketId", second)
	}

	if err := u.Send(models.Pong{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after close = %v, want ErrClosed", err)
	}
}

func TestUpstreamDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	h := newChanHandler()
	err := newTestUpstream(url).Run(context.Background(), h)
	if err == nil {
		t.Fatal("Run succeeded against a closed server")
	}
	if ev := h.next(t); ev != "error" {
		t.Errorf("event = %q, want error", ev)
	}
	select {
	case ev := <-h.events:
		t.Errorf("unexpected extra event %q", ev)
	default:
	}
}

func TestUpstreamCancelIsNotReported(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	h := newChanHandler()
	runErr := make(chan error, 1)
	go func() { runErr <- newTestUpstream(wsURL(srv)).Run(ctx, h) }()

	if ev := h.next(t); ev != "open" {
		t.Fatalf("event = %q, want open", ev)
	}
	cancel()

	select {
	case err := <-runErr:
		if err != nil {
			t.Errorf("Run after cancel = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	select {
	case ev := <-h.events:
		t.Errorf("cancellation reported as %q", ev)
	default:
	}
}

func TestUpstreamSendQueueFull(t *testing.T) {
	u := NewUpstream(UpstreamConfig{URL: "ws://unused", SendBuffer: 1}, testLogger())
	if err := u.Send(models.FetchInitialRequest{}); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if err := u.Send(models.FetchInitialRequest{}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("second Send = %v, want ErrQueueFull", err)
	}

	var frame map[string]string
	if err := json.Unmarshal(<-u.send, &frame); err != nil || frame["type"] != "fetchInitial" {
		t.Errorf("queued frame = %v (%v), want fetchInitial", frame, err)
	}
}
