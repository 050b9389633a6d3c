package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"quote-proxy/src/interfaces"
	"quote-proxy/src/logger"
	"quote-proxy/src/models"
	"quote-proxy/src/quotes"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	healthTimeout     = 2 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// QuoteService is what the proxy route needs from the quote layer.
type QuoteService interface {
	Get(ctx context.Context, req models.MQuoteRequest) (*quotes.Result, error)
}

// -----------------------------------------------------------------------------
// QuoteServer
// -----------------------------------------------------------------------------

type QuoteServer struct {
	Config   *models.MConfig
	Logger   *logger.Logger
	Quotes   QuoteService
	Store    interfaces.ICacheStore
	Gatherer prometheus.Gatherer

	engine     *gin.Engine
	httpServer *http.Server

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan models.MQuoteEvent // Buffered Queue
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	hubOnce    sync.Once
	stopOnce   sync.Once

	// Latest event per symbol, replayed on subscribe
	latest     map[string]models.MQuoteEvent
	stateMutex sync.RWMutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewQuoteServer(cfg *models.MConfig, svc QuoteService, store interfaces.ICacheStore, gatherer prometheus.Gatherer, logger *logger.Logger) *QuoteServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &QuoteServer{
		Config:   cfg,
		Logger:   logger,
		Quotes:   svc,
		Store:    store,
		Gatherer: gatherer,
		engine:   gin.New(),
		clients:  make(map[*Client]struct{}),
		// Queue size of 256 absorbs a full warmer cycle of updates
		broadcast:  make(chan models.MQuoteEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		latest:     make(map[string]models.MQuoteEvent),
	}

	s.engine.Use(gin.Recovery())
	if cfg.LogLevel == "DEBUG" {
		s.engine.Use(gin.Logger())
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Cache")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *QuoteServer) setupRoutes() {
	// Path kept from the portfolio backend so the frontend needs no change
	s.engine.GET("/api/portfolios/proxy/yahoo", s.getYahooProxy)

	// REST API endpoints
	s.engine.GET("/api/config", s.getConfig)
	s.engine.GET("/api/health", s.getHealth)
	if s.Gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})))
	}

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the routes, mainly for tests.
func (s *QuoteServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// StartHub runs the websocket hub loop. Safe to call more than once.
func (s *QuoteServer) StartHub() {
	s.hubOnce.Do(func() {
		go s.handleWebsockets()
	})
}

// -----------------------------------------------------------------------------

// Start blocks serving HTTP until Stop is called.
func (s *QuoteServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	s.StartHub()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *QuoteServer) Stop(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	// Clean shutdown of the hub, Publish after this is a no-op
	s.stopOnce.Do(func() { close(s.done) })
	return err
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *QuoteServer) getYahooProxy(c *gin.Context) {
	var req models.MQuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": quotes.MsgInvalidParameters})
		return
	}

	res, err := s.Quotes.Get(c.Request.Context(), req)
	if err != nil {
		status, message := errorResponse(err)
		if status >= http.StatusInternalServerError {
			s.Logger.Error("Proxy error for %s (%s/%s): %v", req.Symbol, req.Range, req.Interval, err)
		}
		c.JSON(status, gin.H{"error": message})
		return
	}

	cacheHeader := "MISS"
	if res.Source == quotes.SourceCache {
		cacheHeader = "HIT"
	}
	c.Header("X-Cache", cacheHeader)
	c.Data(http.StatusOK, "application/json; charset=utf-8", res.Quote.Data)
}

// -----------------------------------------------------------------------------

func (s *QuoteServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ranges":    quotes.SortedKeys(quotes.SupportedRanges),
		"intervals": quotes.SortedKeys(quotes.SupportedIntervals),
		"watchlist": gin.H{
			"enabled":  s.Config.Warmer.Enabled,
			"symbols":  s.Config.Warmer.Symbols,
			"range":    s.Config.Warmer.Range,
			"interval": s.Config.Warmer.Interval,
		},
	})
}

// -----------------------------------------------------------------------------

func (s *QuoteServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	connections := len(s.clients)
	s.stateMutex.RUnlock()

	status, storeStatus, code := "ok", "ok", http.StatusOK
	if s.Store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := s.Store.Ping(ctx); err != nil {
			status, storeStatus, code = "degraded", err.Error(), http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status":      status,
		"store":       storeStatus,
		"connections": connections,
	})
}
