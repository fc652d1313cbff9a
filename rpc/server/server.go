package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ValentinKolb/homekv/lib/home"
	"github.com/ValentinKolb/homekv/lib/lockmgr"
	"github.com/ValentinKolb/homekv/lib/store"
	"github.com/ValentinKolb/homekv/rpc/common"
	"github.com/gorilla/websocket"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// ErrTabGone is returned by Send for tabs without an open connection
var ErrTabGone = errors.New("tab is not connected")

// NewServer creates a new server on top of the backing store s.
// The server owns the home.Service and delivers its broadcasts.
//
// Usage:
//
//	srv := server.NewServer(config, s)
//	if err := srv.Serve(ctx); err != nil {
//		panic(err)
//	}
func NewServer(config common.ServerConfig, s store.IStore) *Server {
	srv := &Server{
		config: config,
		conns:  xsync.NewMapOf[home.TabID, *tabConn](),
		upgrader: websocket.Upgrader{
			// tabs connect from arbitrary page origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	srv.service = home.NewService(s, lockmgr.NewLockManager(), srv)

	Logger.Infof("Created homekv server")
	Logger.Infof(config.String())
	return srv
}

// Server serves the tab channel and the HTTP api
type Server struct {
	config   common.ServerConfig
	service  *home.Service
	conns    *xsync.MapOf[home.TabID, *tabConn]
	upgrader websocket.Upgrader
}

// Service returns the data service of the server
func (s *Server) Service() *home.Service {
	return s.service
}

// timeout is the write timeout used for tab connections
func (s *Server) timeout() time.Duration {
	if s.config.TimeoutSecond <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.config.TimeoutSecond) * time.Second
}

// Handler returns the HTTP handler with all routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	routes := map[string]http.HandlerFunc{
		"GET /tabs":     s.handleTabs,
		"GET /settings": s.handleGetSettings,
		"PUT /settings": s.handlePutSettings,
		"GET /roots":    s.handleRoots,
		"GET /metrics":  s.handleMetrics,
	}
	for pattern, handler := range routes {
		if s.config.LogLevel == "debug" {
			handler = loggerMiddleware(handler)
		}
		mux.HandleFunc(pattern, handler)
	}
	return mux
}

// Serve listens on the configured endpoint until ctx is done
func (s *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.config.Endpoint,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		Logger.Infof("Starting HTTP server on %s", s.config.Endpoint)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	Logger.Infof("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout())
	defer cancel()

	s.closeTabs()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see home.TabSender)
// --------------------------------------------------------------------------

func (s *Server) Send(ctx context.Context, tab home.TabID, env home.Envelope) error {
	conn, ok := s.conns.Load(tab)
	if !ok {
		return ErrTabGone
	}
	return conn.write(ctx, common.NewEnvelopeMessage(env, ""), s.timeout())
}
