package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fleetdash/models"
)

var (
	// ErrClosed is returned by Send after the upstream connection ended.
	ErrClosed = errors.New("upstream closed")
	// ErrQueueFull is returned by Send when the write pump is behind.
	ErrQueueFull = errors.New("upstream send queue full")
)

// UpstreamHandler receives transport events in arrival order.
type UpstreamHandler interface {
	HandleOpen()
	HandleMessage(raw []byte)
	HandleClose(err error)
	HandleError(err error)
}

// UpstreamConfig configures the connection to the tracking server.
type UpstreamConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	ReadLimit        int64
	SendBuffer       int
}

// Upstream is the single duplex connection to the tracking server. It
// never reconnects: once Run returns the session is over.
type Upstream struct {
	cfg    UpstreamConfig
	dialer *websocket.Dialer
	logger *slog.Logger

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func NewUpstream(cfg UpstreamConfig, logger *slog.Logger) *Upstream {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 16
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	return &Upstream{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  1024,
		},
		logger: logger.With("upstream", cfg.URL),
		send:   make(chan []byte, cfg.SendBuffer),
		closed: make(chan struct{}),
	}
}

// Send queues msg for the write pump without blocking.
func (u *Upstream) Send(msg models.Outbound) error {
	data, err := models.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	select {
	case <-u.closed:
		return ErrClosed
	default:
	}
	select {
	case u.send <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run dials the server and pumps frames until the connection ends or
// ctx is cancelled. Transport failures are reported to h exactly once;
// cancellation is not reported.
func (u *Upstream) Run(ctx context.Context, h UpstreamHandler) error {
	defer u.markClosed()

	u.logger.Info("🔌 dialing upstream")
	conn, _, err := u.dialer.DialContext(ctx, u.cfg.URL, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		h.HandleError(err)
		return fmt.Errorf("dial upstream: %w", err)
	}
	defer conn.Close()

	h.HandleOpen()

	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		u.writePump(pumpCtx, conn)
	}()

	err = u.readPump(ctx, conn, h)
	cancel()
	<-writeDone
	return err
}

// readPump forwards every frame to h in the order it was read.
func (u *Upstream) readPump(ctx context.Context, conn *websocket.Conn, h UpstreamHandler) error {
	if u.cfg.ReadLimit > 0 {
		conn.SetReadLimit(u.cfg.ReadLimit)
	}

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stopWatch:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				u.logger.Warn("upstream closed the connection", "code", closeErr.Code, "text", closeErr.Text)
				h.HandleClose(err)
			} else {
				u.logger.Error("upstream read failed", "error", err)
				h.HandleError(err)
			}
			return fmt.Errorf("read upstream: %w", err)
		}
		h.HandleMessage(message)
	}
}

// writePump drains the send queue. The server owns keepalive, so no
// ping ticker runs here.
func (u *Upstream) writePump(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case data := <-u.send:
			conn.SetWriteDeadline(time.Now().Add(u.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				u.logger.Error("upstream write failed", "error", err)
				return
			}
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(u.cfg.WriteWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (u *Upstream) markClosed() {
	u.closeOnce.Do(func() { close(u.closed) })
}
