package web

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"uniqnum/internal/shared/logger"
	"uniqnum/internal/shared/types"
)

// maxAdminConns caps concurrent connections to the admin port.
const maxAdminConns = 64

// --- DIAGNOSTIC HELPER: A listener that logs accepted connections ---
type loggingListener struct {
	net.Listener
}

func (l loggingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err == nil {
		logger.Debug().Str("remote_addr", conn.RemoteAddr().String()).Msg("[WebServer] Connection accepted")
	}
	return conn, err
}

// basicAuthMiddleware 检查 web_user 和 web_password 是否已配置。
// 如果配置了，它将强制执行 HTTP Basic Authentication。
func basicAuthMiddleware(next http.Handler, user, pass string) http.Handler {
	// 如果用户名或密码未设置，则不启用认证，直接返回原始处理器
	if user == "" || pass == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Unauthorized.\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewMux builds the admin routes.
func NewMux(cfg *types.Config, handler *Handler, hub *Hub) *http.ServeMux {
	webUser := cfg.LocalConf.WebUser
	webPassword := cfg.LocalConf.WebPassword

	mux := http.NewServeMux()
	mux.Handle("/api/status", basicAuthMiddleware(http.HandlerFunc(handler.HandleStatus), webUser, webPassword))
	mux.Handle("/api/clients", basicAuthMiddleware(http.HandlerFunc(handler.HandleGetClients), webUser, webPassword))

	// --- WebSocket Endpoint (公开，无需认证) ---
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	})
	return mux
}

// Server is the optional admin HTTP server.
type Server struct {
	srv      *http.Server
	listener net.Listener
}

// StartServer starts the admin server in the background. It returns nil, nil
// when web_port is not set.
func StartServer(wg *sync.WaitGroup, cfg *types.Config, handler *Handler, hub *Hub) (*Server, error) {
	if cfg.LocalConf.WebPort <= 0 {
		logger.Info().Msg("[WebServer] Web UI is disabled (web_port is 0 or not set).")
		return nil, nil
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.LocalConf.WebPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start web UI on %s: %w", addr, err)
	}
	return serve(wg, listener, NewMux(cfg, handler, hub)), nil
}

func serve(wg *sync.WaitGroup, listener net.Listener, mux http.Handler) *Server {
	s := &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: listener,
	}
	logger.Info().Msgf("Web UI is listening on http://%s", listener.Addr())

	wg.Add(1)
	go func() {
		defer wg.Done()
		limited := netutil.LimitListener(loggingListener{Listener: listener}, maxAdminConns)
		if err := s.srv.Serve(limited); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Web server error")
		}
		logger.Info().Msg("Web server stopped.")
	}()
	return s
}

// Addr returns the bound admin address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Close stops the admin server immediately.
func (s *Server) Close() error {
	return s.srv.Close()
}
