// Package httpserver exposes the exporter over HTTP.
package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/quil-exporter/internal/metrics"
)

// DefaultAddr matches the port the node's dashboards scrape.
const DefaultAddr = "0.0.0.0:8000"

// Scraper runs one poll cycle and reports when the last one finished.
type Scraper interface {
	Scrape(ctx context.Context) string
	LastScrape() (time.Time, string)
}

// Server serves /metrics and a health endpoint.
type Server struct {
	addr      string
	scraper   Scraper
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP server.
func NewServer(addr string, scraper Scraper) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:    addr,
		scraper: scraper,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/metrics", s.handleMetrics)
	r.GET("/api/health", s.handleHealth)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// A scrape may wait on the RPC, the node binary and journalctl in turn.
		WriteTimeout:      90 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.addr)
	}
	s.listener = listener
	s.startTime = time.Now()

	go func() { _ = s.server.Serve(listener) }()
	return nil
}

// Addr returns the active listen address.
// Before Start, it returns the configured address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleMetrics(c *gin.Context) {
	text := s.scraper.Scrape(c.Request.Context())
	c.Data(http.StatusOK, metrics.ContentType, []byte(text))
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	}
	if at, result := s.scraper.LastScrape(); !at.IsZero() {
		body["last_scrape"] = at.UTC().Format(time.RFC3339)
		body["last_result"] = result
	}
	c.JSON(http.StatusOK, body)
}
