// Package api serves a small read-only HTTP API over providers, menus and
// subscriptions.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"biteboard/internal/provider"
	"biteboard/internal/runtime/supervisor"
	"biteboard/internal/storage"
	"biteboard/pkg/logx"
)

type Config struct {
	Addr string
	// AccessKey enables the /api group. Empty disables it.
	AccessKey string
	// Pprof adds /api/debug/pprof; it needs AccessKey.
	Pprof bool
}

// Providers is the part of provider.Registry the API reads.
type Providers interface {
	Get(name string) (provider.Provider, bool)
	List() []provider.Provider
}

type Subscriptions interface {
	Channels() map[string]storage.ChannelSubscription
}

type Server struct {
	cfg  Config
	h    *Handler
	log  logx.Logger
	srv  *http.Server
	ln   net.Listener
	done chan struct{}
}

func New(cfg Config, h *Handler, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	return &Server{cfg: cfg, h: h, log: log.With(logx.String("comp", "api"))}
}

var ginMode sync.Once

// Engine builds the router. Exposed for tests.
func (s *Server) Engine() *gin.Engine {
	ginMode.Do(func() { gin.SetMode(gin.ReleaseMode) })
	r := gin.New()
	r.Use(requestLog(s.log), gin.Recovery())

	r.GET("/health", s.h.Health)
	r.GET("/providers", s.h.ListProviders)
	r.GET("/providers/:name/menu", s.h.ProviderMenu)

	if s.cfg.AccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(s.cfg.AccessKey))
		{
			api.GET("/subscriptions", s.h.ListSubscriptions)
		}
		if s.cfg.Pprof {
			mountPprof(api)
		}
	}
	return r
}

// Start binds the listener and serves under sup until Stop.
func (s *Server) Start(ctx context.Context, sup *supervisor.Supervisor) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.done = make(chan struct{})
	s.log.Info("api listening", logx.String("addr", ln.Addr().String()), logx.Bool("private_api", s.cfg.AccessKey != ""), logx.Bool("pprof", s.cfg.Pprof && s.cfg.AccessKey != ""))

	sup.Go("api.serve", func(context.Context) error {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("api server stopped", logx.Err(err))
			return err
		}
		return nil
	})
	return nil
}

// Addr is the bound address, useful with port 0.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.cfg.Addr
	}
	return s.ln.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return err
}

func requestLog(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []logx.Field{
			logx.String("method", c.Request.Method),
			logx.String("path", c.Request.URL.Path),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("took", time.Since(start)),
			logx.String("client", c.ClientIP()),
		}
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			fields = append(fields, logx.String("error", msg))
		}
		log.Debug("http request", fields...)
	}
}

func authMiddleware(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-API-Key")
		if got == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				got = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		switch {
		case got == "":
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
		case got != key:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
		default:
			c.Next()
		}
	}
}
