package app

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"uniqnum/internal/core/gateway"
	"uniqnum/internal/core/handler"
	"uniqnum/internal/core/random"
	"uniqnum/internal/core/registry"
	"uniqnum/internal/service/web"
	"uniqnum/internal/shared"
	"uniqnum/internal/shared/globalstate"
	"uniqnum/internal/shared/logger"
	"uniqnum/internal/shared/types"
)

const statsInterval = 2 * time.Second

// AppServer is the application's main struct. It owns the two registries and
// wires them into the gateway, the handler and the admin web service.
type AppServer struct {
	cfg *types.Config

	clients   *registry.ClientRegistry
	issued    *registry.IssuedRegistry
	generator *random.Generator
	traffic   *shared.TrafficCounter

	handler   *handler.Handler
	gateway   *gateway.Gateway
	hub       *web.Hub
	webServer *web.Server
	status    *globalstate.StatusManager

	serveErr  chan error
	stopCh    chan struct{}
	waitGroup sync.WaitGroup
	stopOnce  sync.Once
}

// AppServer must implement StatsProvider 接口
var _ types.StatsProvider = (*AppServer)(nil)

// New builds an AppServer from cfg. cfg is used as given; callers apply defaults.
func New(cfg *types.Config) *AppServer {
	s := &AppServer{
		cfg:       cfg,
		clients:   registry.NewClientRegistry(),
		issued:    registry.NewIssuedRegistry(),
		generator: random.New(cfg.ServerConf.ValueBits),
		traffic:   &shared.TrafficCounter{},
		hub:       web.NewHub(),
		status:    globalstate.GlobalStatus,
		serveErr:  make(chan error, 1),
		stopCh:    make(chan struct{}),
	}

	s.handler = handler.New(s.clients, s.issued, s.generator, handler.Options{
		BufferSize:   cfg.CommonConf.BufferSize,
		ReadTimeout:  time.Duration(cfg.ServerConf.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.ServerConf.WriteTimeout) * time.Second,
	}).WithEvents(s.hub).WithTraffic(s.traffic)

	s.gateway = gateway.New(gateway.Config{
		Port:      cfg.LocalConf.Port,
		Workers:   cfg.CommonConf.MaxConnections,
		ReusePort: cfg.LocalConf.ReusePort,
	}, s.handler)

	return s
}

// Start binds the number port and launches every background service.
// It returns the bound port.
func (s *AppServer) Start() (int, error) {
	s.status.Set("Starting...")

	port, err := s.gateway.InitializeListener()
	if err != nil {
		s.status.Set("Bind failed")
		return 0, err
	}

	go s.hub.Run()

	webServer, err := web.StartServer(&s.waitGroup, s.cfg, web.NewHandler(s, s.gateway, s.status), s.hub)
	if err != nil {
		// The admin UI is optional; the number port keeps running without it.
		logger.Error().Err(err).Msg("Web UI failed to start")
	}
	s.webServer = webServer
	if webServer != nil {
		logger.Info().Str("web_addr", webServer.Addr().String()).Msg("Admin web enabled")
	}

	s.waitGroup.Add(1)
	go func() {
		defer s.waitGroup.Done()
		s.serveErr <- s.gateway.Serve()
	}()

	s.waitGroup.Add(1)
	go s.statsLoop()

	s.status.Set(fmt.Sprintf("Listening on port %d", port))
	logger.Info().
		Int("port", port).
		Int("value_bits", s.generator.Bits()).
		Msgf("Server started on port %d", port)
	return port, nil
}

// Run is the process entry point: it starts the server and blocks until a
// signal arrives or the accept loop fails. Startup and accept failures are fatal.
func (s *AppServer) Run() {
	if _, err := s.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Server startup failed")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-s.serveErr:
		if err != nil {
			logger.Fatal().Err(err).Msg("Gateway accept loop failed")
		}
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}
	s.Stop()
}

// ServeErr delivers the accept loop's exit error once.
func (s *AppServer) ServeErr() <-chan error {
	return s.serveErr
}

// Stop gracefully shuts down the server.
func (s *AppServer) Stop() {
	s.stopOnce.Do(func() {
		s.status.Set("Stopping...")
		close(s.stopCh)

		s.gateway.Close()
		if s.webServer != nil {
			if err := s.webServer.Close(); err != nil {
				logger.Warn().Err(err).Msg("Error closing web server")
			}
		}
		s.hub.Stop()
		s.waitGroup.Wait()

		s.status.Set("Stopped")
		logger.Info().Msg("Server stopped.")
	})
}

// Stats 汇总当前的运行数据
func (s *AppServer) Stats() *types.Stats {
	c := s.handler.Counters()
	return &types.Stats{
		Timestamp:     time.Now(),
		ActiveClients: s.clients.Len(),
		IssuedValues:  s.issued.Len(),
		Accepted:      c.Accepted,
		Rejected:      c.Rejected,
		Responded:     c.Responded,
		Failed:        c.Failed,
		Traffic:       s.traffic.Snapshot(),
	}
}

// ConnectedClients lists addresses with a connection being served.
func (s *AppServer) ConnectedClients() []string {
	return s.clients.Snapshot()
}

// GetListenerInfo returns the number port binding, nil before Start.
func (s *AppServer) GetListenerInfo() *types.ListenerInfo {
	return s.gateway.GetListenerInfo()
}

// statsLoop 定期广播统计数据
func (s *AppServer) statsLoop() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.hub.ClientCount() == 0 {
				continue
			}
			s.hub.BroadcastDashboardUpdate(s.Stats())
		case <-s.stopCh:
			return
		}
	}
}
