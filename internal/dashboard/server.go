// Package dashboard serves a small embedded web UI over the process's own
// telemetry: recent metrics from the handler registry, recent log entries via
// a logrus hook, and host resource samples. It observes the running service
// only; it never touches bot state or the trade path.
package dashboard

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"botflow/config"
	"botflow/internal/metrics"
	"botflow/logger"
)

//go:embed templates/*.tmpl assets/*
var embeddedFS embed.FS

const (
	defaultDashboardPort    = "8080"
	defaultRefreshInterval  = 5 * time.Second
	dashboardShutdownBudget = 5 * time.Second
)

// Server hosts the monitoring dashboard.
type Server struct {
	cfg               config.DashboardConfig
	log               *logger.Log
	metricStore       *metricStore
	logStore          *logStore
	metricHandler     metrics.MetricHandlerID
	httpServer        *http.Server
	refreshIntervalMs int
	resourceSampler   *resourceSampler
}

// NewServer wires the metric handler, log hook and resource sampler and
// returns the server. A disabled dashboard returns nil, which every method
// tolerates.
func NewServer(cfg config.DashboardConfig, log *logger.Log) (*Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	cfg.Address = normalizeAddress(cfg.Address)
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	if cfg.LogHistory <= 0 {
		cfg.LogHistory = defaultHistory
	}
	if cfg.MetricsHistory <= 0 {
		cfg.MetricsHistory = defaultHistory
	}

	store := newMetricStore(cfg.MetricsHistory)
	logs := newLogStore(cfg.LogHistory)
	log.AddHook(logs)

	return &Server{
		cfg:               cfg,
		log:               log,
		metricStore:       store,
		logStore:          logs,
		metricHandler:     metrics.RegisterMetricHandler(store.handle),
		refreshIntervalMs: int(cfg.RefreshInterval / time.Millisecond),
		resourceSampler:   newResourceSampler(cfg.MetricsHistory, cfg.RefreshInterval, "/", log),
	}, nil
}

// Run serves the dashboard until the context is cancelled or the listener
// fails.
func (s *Server) Run(ctx context.Context, appName string) error {
	if s == nil {
		return nil
	}
	defer s.cleanup()

	router, err := s.buildRouter(appName)
	if err != nil {
		return err
	}

	s.resourceSampler.start(ctx)

	s.httpServer = &http.Server{
		Addr:    s.cfg.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), dashboardShutdownBudget)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) cleanup() {
	metrics.UnregisterMetricHandler(s.metricHandler)
	if s.logStore != nil {
		s.logStore.close()
	}
	s.resourceSampler.stop()
}

// Address reports the listen address after normalization.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) buildRouter(appName string) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	// Trust no proxy headers; operators can widen this via
	// GIN_TRUSTED_PROXIES when running behind a load balancer.
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	tmpl := template.Must(template.New("dashboard").ParseFS(embeddedFS, "templates/index.tmpl"))
	router.SetHTMLTemplate(tmpl)

	if assets, err := fs.Sub(embeddedFS, "assets"); err == nil {
		router.StaticFS("/assets", http.FS(assets))
	}

	router.GET("/", s.handleIndex(appName))
	router.GET("/api/metrics", s.handleMetrics)
	router.GET("/api/logs", s.handleLogs)
	router.GET("/api/resources", s.handleResources)

	return router, nil
}

func (s *Server) handleIndex(appName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.tmpl", gin.H{
			"AppName":           appName,
			"RefreshIntervalMs": s.refreshIntervalMs,
		})
	}
}

func (s *Server) handleMetrics(c *gin.Context) {
	snap := s.metricStore.snapshot()
	payload := make([]gin.H, 0, len(snap))
	for _, m := range snap {
		payload = append(payload, gin.H{
			"timestamp": m.Timestamp.Format(time.RFC3339Nano),
			"component": m.Component,
			"name":      m.Name,
			"value":     m.Value,
			"type":      m.Type,
			"fields":    m.Fields,
		})
	}
	c.JSON(http.StatusOK, gin.H{"metrics": payload})
}

func (s *Server) handleLogs(c *gin.Context) {
	snap := s.logStore.snapshot()
	payload := make([]gin.H, 0, len(snap))
	for _, l := range snap {
		payload = append(payload, gin.H{
			"timestamp": l.Timestamp.Format(time.RFC3339Nano),
			"level":     l.Level,
			"component": l.Component,
			"message":   l.Message,
			"fields":    l.Fields,
		})
	}
	c.JSON(http.StatusOK, gin.H{"logs": payload})
}

func (s *Server) handleResources(c *gin.Context) {
	snap := s.resourceSampler.snapshot()
	payload := make([]gin.H, 0, len(snap))
	for _, r := range snap {
		payload = append(payload, gin.H{
			"timestamp":      r.Timestamp.Format(time.RFC3339Nano),
			"cpu_percent":    r.CPUPercent,
			"memory_used":    r.MemoryUsed,
			"memory_total":   r.MemoryTotal,
			"memory_percent": r.MemoryPct,
			"disk_used":      r.DiskUsed,
			"disk_total":     r.DiskTotal,
			"disk_percent":   r.DiskPct,
		})
	}
	c.JSON(http.StatusOK, gin.H{"resources": payload})
}

// normalizeAddress accepts the loose address forms operators put in config
// (bare ports, URLs, bare hosts, wildcards) and produces a host:port string
// net.Listen accepts. An empty address binds everywhere on the default port.
func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return net.JoinHostPort("0.0.0.0", defaultDashboardPort)
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if parsed.Host != "" {
				addr = parsed.Host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") && len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
		return "0.0.0.0" + addr
	}

	if host, port, err := net.SplitHostPort(addr); err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = defaultDashboardPort
		}
		return net.JoinHostPort(host, port)
	}

	// A bare IP (including IPv6) or hostname without a port.
	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(addr, defaultDashboardPort)
	}
	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, defaultDashboardPort)
	}
	return addr
}
