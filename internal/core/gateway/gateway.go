package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"uniqnum/internal/shared/logger"
	"uniqnum/internal/shared/types"
)

const (
	defaultWorkers = 10
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// ConnHandler takes ownership of an accepted connection and closes it when done.
type ConnHandler interface {
	Handle(conn net.Conn)
}

// Config 网关监听配置
type Config struct {
	Port      int // 0 picks a free port
	Workers   int // concurrent handlers, defaults to 10
	ReusePort bool
}

// Gateway accepts TCP connections and runs each one through a bounded pool of handlers.
// When every worker is busy the accept loop waits for a free slot, leaving new
// connections in the kernel backlog instead of dropping them.
type Gateway struct {
	cfg          Config
	handler      ConnHandler
	listener     net.Listener
	listenerInfo *types.ListenerInfo
	pool         errgroup.Group
	log          zerolog.Logger

	mu      sync.Mutex
	closed  bool
	serving chan struct{}
	conns   map[net.Conn]struct{}

	closeOnce sync.Once
}

func New(cfg Config, handler ConnHandler) *Gateway {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	g := &Gateway{
		cfg:     cfg,
		handler: handler,
		log:     logger.WithComponent("gateway"),
		conns:   make(map[net.Conn]struct{}),
	}
	g.pool.SetLimit(cfg.Workers)
	return g
}

// InitializeListener 负责监听端口，但不阻塞。它返回实际监听的端口号。
func (g *Gateway) InitializeListener() (int, error) {
	listenAddr := fmt.Sprintf("0.0.0.0:%d", g.cfg.Port)
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			return controlListener(c, g.cfg)
		},
	}
	listener, err := lc.Listen(context.Background(), "tcp", listenAddr)
	if err != nil {
		return 0, fmt.Errorf("gateway failed to listen on %s: %w", listenAddr, err)
	}
	g.listener = listener

	tcpAddr := listener.Addr().(*net.TCPAddr)
	g.listenerInfo = &types.ListenerInfo{
		Address: tcpAddr.IP.String(),
		Port:    tcpAddr.Port,
	}
	g.log.Info().
		Str("listen_addr", listener.Addr().String()).
		Int("workers", g.cfg.Workers).
		Msg("Gateway is listening.")

	return g.listenerInfo.Port, nil
}

// GetListenerInfo 返回网关的监听信息。
func (g *Gateway) GetListenerInfo() *types.ListenerInfo {
	return g.listenerInfo
}

// Serve runs the accept loop until Close is called (returns nil) or the
// listener fails in a way that is not worth retrying (returns the error).
func (g *Gateway) Serve() error {
	if g.listener == nil {
		return errors.New("gateway: Serve called before InitializeListener")
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.serving = make(chan struct{})
	serving := g.serving
	g.mu.Unlock()
	defer close(serving)

	var delay time.Duration
	for {
		conn, err := g.listener.Accept()
		if err != nil {
			if g.isClosed() {
				g.log.Info().Msg("Gateway listener is closing.")
				return nil
			}
			if isTransientAcceptError(err) {
				delay = nextDelay(delay)
				g.log.Warn().Err(err).Dur("retry_in", delay).Msg("Gateway failed to accept connection")
				time.Sleep(delay)
				continue
			}
			return fmt.Errorf("gateway accept on %s: %w", g.listener.Addr(), err)
		}
		delay = 0
		g.dispatch(conn)
	}
}

// dispatch blocks while all workers are busy.
func (g *Gateway) dispatch(conn net.Conn) {
	g.pool.Go(func() error {
		g.track(conn)
		defer g.untrack(conn)
		defer func() {
			if r := recover(); r != nil {
				g.log.Error().
					Interface("panic", r).
					Str("remote_addr", conn.RemoteAddr().String()).
					Msg("Connection handler panicked")
				_ = conn.Close()
			}
		}()
		g.handler.Handle(conn)
		return nil
	})
}

// track registers a connection being handled. Once the gateway is closed, new
// connections get an expired read deadline straight away.
func (g *Gateway) track(conn net.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conns[conn] = struct{}{}
	if g.closed {
		_ = conn.SetReadDeadline(time.Now())
	}
}

func (g *Gateway) untrack(conn net.Conn) {
	g.mu.Lock()
	delete(g.conns, conn)
	g.mu.Unlock()
}

// expireReads unblocks handlers waiting on client input so they can finish.
func (g *Gateway) expireReads() {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	for conn := range g.conns {
		_ = conn.SetReadDeadline(now)
	}
	if n := len(g.conns); n > 0 {
		g.log.Info().Int("connections", n).Msg("Expiring reads on in-flight connections")
	}
}

func (g *Gateway) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Close stops accepting, cuts short any pending client reads and waits for
// in-flight handlers to finish.
func (g *Gateway) Close() {
	g.closeOnce.Do(func() {
		g.mu.Lock()
		g.closed = true
		serving := g.serving
		g.mu.Unlock()

		if g.listener != nil {
			if err := g.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				g.log.Warn().Err(err).Msg("Error closing gateway listener")
			}
		}
		g.expireReads()
		if serving != nil {
			<-serving
		}
		_ = g.pool.Wait()
		g.log.Info().Msg("Gateway has been shut down")
	})
}

// isTransientAcceptError reports errors that a later Accept may not hit again,
// such as running out of file descriptors.
func isTransientAcceptError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.ENOBUFS) ||
		errors.Is(err, syscall.ENOMEM) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNRESET)
}

func nextDelay(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptDelay
	}
	d *= 2
	if d > maxAcceptDelay {
		d = maxAcceptDelay
	}
	return d
}
