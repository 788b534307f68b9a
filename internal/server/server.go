// Package server exposes shaped report views over HTTP for dashboards.
// Every report endpoint answers 200 with a view; fetch failures travel in the
// view's alerts, the same way they do on the command line.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/kebunops/opsreport/internal/report"
	"github.com/kebunops/opsreport/internal/util"
)

// Options configures the HTTP gateway.
type Options struct {
	// APIKey, when set, is required in the X-API-KEY header on /api routes.
	APIKey string
	// AllowOrigins lists CORS origins. Empty allows all.
	AllowOrigins []string
	// Version is reported by /health.
	Version string
}

// Server serves report views.
type Server struct {
	svc    *report.Service
	opts   Options
	engine *gin.Engine
}

// New builds the router.
func New(svc *report.Service, opts Options) *Server {
	s := &Server{svc: svc, opts: opts}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	corsCfg := cors.DefaultConfig()
	if len(opts.AllowOrigins) > 0 {
		corsCfg.AllowOrigins = opts.AllowOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "X-API-KEY")
	r.Use(cors.New(corsCfg))

	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	v1.Use(apiKeyAuth(opts.APIKey))
	{
		v1.GET("/locations", s.locations)

		reports := v1.Group("/reports")
		{
			reports.GET("/hpt", s.hpt)
			reports.GET("/production", s.production)
			reports.GET("/productivity", s.productivity)
		}
	}

	s.engine = r
	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving report gateway", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	slog.Info("shutting down report gateway")
	return srv.Shutdown(shutdownCtx)
}

// ─── Middleware ───────────────────────────────────────────────────────────────

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func apiKeyAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-KEY") != key {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.opts.Version})
}

func (s *Server) locations(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Locations(c.Request.Context(), selection(c, "select")))
}

func (s *Server) hpt(c *gin.Context) {
	f, ok := filterFromQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.svc.HPT(c.Request.Context(), f))
}

func (s *Server) production(c *gin.Context) {
	f, ok := filterFromQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.svc.Production(c.Request.Context(), f))
}

func (s *Server) productivity(c *gin.Context) {
	f, ok := filterFromQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.svc.Productivity(c.Request.Context(), f))
}

// filterFromQuery reads locations, start, end, pest and variant. With
// neither date given the range defaults to the current month. On a bad range it writes 400 and
// returns false.
func filterFromQuery(c *gin.Context) (report.Filter, bool) {
	start, end := c.Query("start"), c.Query("end")
	if start == "" && end == "" {
		start, end = util.DefaultRange(time.Now())
	}
	if err := util.ValidateRange(start, end); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return report.Filter{}, false
	}
	return report.Filter{
		Locations: selection(c, "locations"),
		Start:     start,
		End:       end,
		PestID:    c.Query("pest"),
		VariantID: c.Query("variant"),
	}, true
}

// selection distinguishes an absent parameter (nil, every location) from an
// empty one (no locations).
func selection(c *gin.Context, key string) []string {
	v, present := c.GetQuery(key)
	if !present {
		return nil
	}
	if names := util.SplitList(v); names != nil {
		return names
	}
	return []string{}
}
