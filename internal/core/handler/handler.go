package handler

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"uniqnum/internal/core/random"
	"uniqnum/internal/core/registry"
	"uniqnum/internal/shared"
	"uniqnum/internal/shared/types"
)

const defaultBufferSize = 1024

// Options tunes per-connection I/O. Zero timeouts disable the deadline.
type Options struct {
	BufferSize   int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Counters 记录连接处理结果
type Counters struct {
	Accepted  uint64
	Rejected  uint64
	Responded uint64
	Failed    uint64
}

// Handler serves one number per connection and turns away a client IP that
// already has a connection being served.
type Handler struct {
	clients *registry.ClientRegistry
	issued  *registry.IssuedRegistry
	source  random.Source
	events  types.EventPublisher
	traffic *shared.TrafficCounter
	opts    Options

	accepted  atomic.Uint64
	rejected  atomic.Uint64
	responded atomic.Uint64
	failed    atomic.Uint64
}

func New(clients *registry.ClientRegistry, issued *registry.IssuedRegistry, source random.Source, opts Options) *Handler {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	return &Handler{
		clients: clients,
		issued:  issued,
		source:  source,
		opts:    opts,
	}
}

// WithEvents sets the sink for connection lifecycle events. Call before serving.
func (h *Handler) WithEvents(p types.EventPublisher) *Handler {
	h.events = p
	return h
}

// WithTraffic sets the byte counter shared by all handled connections. Call before serving.
func (h *Handler) WithTraffic(c *shared.TrafficCounter) *Handler {
	h.traffic = c
	return h
}

// Counters returns a snapshot of the outcome counters.
func (h *Handler) Counters() Counters {
	return Counters{
		Accepted:  h.accepted.Load(),
		Rejected:  h.rejected.Load(),
		Responded: h.responded.Load(),
		Failed:    h.failed.Load(),
	}
}

// Handle owns conn and closes it before returning.
func (h *Handler) Handle(conn net.Conn) {
	clientIP := ClientIP(conn.RemoteAddr())
	traceID := uuid.NewString()
	l := log.With().Str("trace_id", traceID).Str("client_ip", clientIP).Logger()

	l.Debug().Str("remote_addr", conn.RemoteAddr().String()).Msg("New client connection")

	if !h.clients.TryAcquire(clientIP) {
		h.rejected.Add(1)
		l.Info().Msg("Connection rejected. Client already connected")
		h.publish(clientIP, traceID, types.ActionRejected, nil, nil)
		closeConn(&l, conn)
		return
	}

	h.accepted.Add(1)
	defer func() {
		h.clients.Release(clientIP)
		closeConn(&l, conn)
		l.Info().Msg("Client disconnected")
		h.publish(clientIP, traceID, types.ActionClosed, nil, nil)
	}()

	l.Info().Msg("New connection accepted")
	h.publish(clientIP, traceID, types.ActionAccepted, nil, nil)

	counted := shared.NewCountedConn(conn, h.traffic)

	number, err := h.respond(counted)
	if err != nil {
		h.failed.Add(1)
		l.Warn().Err(err).Msg("Failed to send response")
		h.publish(clientIP, traceID, types.ActionError, nil, err)
		return
	}
	h.responded.Add(1)
	l.Debug().Str("number", number.String()).Msg("Response sent")
	h.publish(clientIP, traceID, types.ActionResponded, number, nil)

	drained, err := h.drain(counted)
	if err != nil {
		l.Warn().Err(err).Int64("drained_bytes", drained).Msg("Failed to drain client input")
		return
	}
	l.Debug().Int64("drained_bytes", drained).Msg("Client input drained")
}

func (h *Handler) respond(conn net.Conn) (*big.Int, error) {
	number := h.issued.ReserveUnique(h.source)
	resp := BuildResponse(number)

	if h.opts.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout)); err != nil {
			return nil, fmt.Errorf("set write deadline: %w", err)
		}
	}
	if _, err := conn.Write(resp); err != nil {
		return nil, fmt.Errorf("write response: %w", err)
	}
	return number, nil
}

// drain reads and discards client bytes until EOF. An expired read deadline ends
// the drain quietly.
func (h *Handler) drain(conn net.Conn) (int64, error) {
	if h.opts.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout)); err != nil {
			return 0, fmt.Errorf("set read deadline: %w", err)
		}
	}

	buf := make([]byte, h.opts.BufferSize)
	var total int64
	for {
		n, err := conn.Read(buf)
		total += int64(n)
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return total, nil
		}
		return total, fmt.Errorf("drain: %w", err)
	}
}

func (h *Handler) publish(clientIP, traceID string, action types.ConnAction, number *big.Int, err error) {
	if h.events == nil {
		return
	}
	entry := &types.ConnEvent{
		Timestamp: time.Now(),
		ClientIP:  clientIP,
		TraceID:   traceID,
		Action:    action,
	}
	if number != nil {
		entry.Number = number.String()
	}
	if err != nil {
		entry.Error = err.Error()
	}
	h.events.PublishConnEvent(entry)
}

// ClientIP returns the host part of addr, which is the key clients are deduplicated on.
func ClientIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return tcpAddr.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

func closeConn(l *zerolog.Logger, conn net.Conn) {
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		l.Debug().Err(err).Msg("Error closing connection")
	}
}
