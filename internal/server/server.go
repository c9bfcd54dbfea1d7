// Package server exposes the bridge over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/gjson"

	"github.com/chris/dashbridge/internal/bridge"
	"github.com/chris/dashbridge/internal/db"
	"github.com/chris/dashbridge/internal/grafana"
)

type Bridge interface {
	HandleMessage(ctx context.Context, p bridge.Payload) (*bridge.Reply, error)
	Messages(limit int) (map[string]db.Message, error)
	Conversation(id string, limit int) ([]db.Message, error)
	Dashboard(ctx context.Context, uid string) ([]byte, error)
	UpdateDashboard(ctx context.Context, uid string, payload []byte) ([]byte, error)
}

type Options struct {
	Addr        string
	CORSOrigins []string
	// Registry is served on /metrics when set.
	Registry *prometheus.Registry
}

type Server struct {
	bridge Bridge
	engine *gin.Engine
	http   *http.Server
}

func New(b Bridge, opts Options) *Server {
	s := &Server{bridge: b, engine: gin.New()}
	s.engine.Use(gin.Recovery(), requestLog())
	s.engine.Use(cors.New(corsConfig(opts.CORSOrigins)))

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Registry != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	}

	api := s.engine.Group("/api")
	api.POST("/messages", s.postMessage)
	api.GET("/messages", s.listMessages)
	api.GET("/conversations/:id", s.getConversation)
	api.GET("/dashboards/:uid", s.getDashboard)
	api.POST("/dashboards/:uid", s.updateDashboard)

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Content-Length", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe blocks until the server stops. A graceful Shutdown is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	log.Printf("server: listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) postMessage(c *gin.Context) {
	var p bridge.Payload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	reply, err := s.bridge.HandleMessage(c.Request.Context(), p)
	if err != nil {
		log.Printf("server: processing message: %v", err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (s *Server) listMessages(c *gin.Context) {
	limit, ok := queryLimit(c, 100)
	if !ok {
		return
	}
	msgs, err := s.bridge.Messages(limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (s *Server) getConversation(c *gin.Context) {
	limit, ok := queryLimit(c, 50)
	if !ok {
		return
	}
	msgs, err := s.bridge.Conversation(c.Param("id"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	if msgs == nil {
		msgs = []db.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

func queryLimit(c *gin.Context, def int) (int, bool) {
	v := c.Query("limit")
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "limit must be a positive integer"})
		return 0, false
	}
	return n, true
}

func (s *Server) getDashboard(c *gin.Context) {
	doc, err := s.bridge.Dashboard(c.Request.Context(), c.Param("uid"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", doc)
}

func (s *Server) updateDashboard(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "body must be a JSON object"})
		return
	}
	resp, err := s.bridge.UpdateDashboard(c.Request.Context(), c.Param("uid"), body)
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", resp)
}

func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, grafana.ErrNotFound) {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"detail": err.Error()})
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("server: %s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}
