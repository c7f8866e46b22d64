package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/beka-birhanu/vinom-swarm/api/i"
	service_i "github.com/beka-birhanu/vinom-swarm/service/i"
	"github.com/gin-gonic/gin"
)

const defaultReadHeaderTimeout = 5 * time.Second

// Router manages the HTTP server: the REST controllers under the base URL and
// the websocket endpoint.
type Router struct {
	addr   string
	engine *gin.Engine
	server *http.Server
	logger service_i.Logger
}

// Config holds configuration settings for creating a new Router instance.
type Config struct {
	Addr        string // Address to listen on
	BaseURL     string // Base URL for API routes
	Controllers []i.Controller
	SocketPath  string       // Path of the websocket endpoint, skipped when empty
	Socket      http.Handler // Websocket upgrade handler
	Mode        string       // gin mode (release, debug, test)
	Logger      service_i.Logger
}

// NewRouter creates a new Router instance with the given configuration and
// registers every route.
func NewRouter(config Config) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	engine := gin.New()
	if config.Logger != nil {
		engine.Use(requestLogger(config.Logger))
	}
	engine.Use(gin.Recovery())

	// Setting up routes under baseURL
	api := engine.Group(config.BaseURL)
	{
		publicRoutes := api.Group("/v1")
		{
			for _, c := range config.Controllers {
				c.RegisterPublic(publicRoutes)
			}
		}
	}

	if config.SocketPath != "" && config.Socket != nil {
		engine.GET(config.SocketPath, gin.WrapH(config.Socket))
	}

	return &Router{
		addr:   config.Addr,
		engine: engine,
		logger: config.Logger,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           engine,
			ReadHeaderTimeout: defaultReadHeaderTimeout,
		},
	}
}

// Handler returns the routed HTTP handler.
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Run serves HTTP until Shutdown is called.
func (r *Router) Run() error {
	if r.logger != nil {
		r.logger.Info(fmt.Sprintf("listening on %s", r.addr))
	}
	if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (r *Router) Shutdown(ctx context.Context) error {
	return r.server.Shutdown(ctx)
}

func requestLogger(logger service_i.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		msg := fmt.Sprintf("%s %s %d %s", ctx.Request.Method, ctx.Request.URL.Path, ctx.Writer.Status(), time.Since(start))
		if ctx.Writer.Status() >= http.StatusInternalServerError {
			logger.Error(msg)
			return
		}
		logger.Info(msg)
	}
}
