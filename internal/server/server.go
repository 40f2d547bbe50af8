// Package server is the dashboard bridge: it keeps the NetGuard views
// polled, serves them as JSON under /api/view and pushes every change to
// WebSocket clients.
package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nshruti113/netguard-dashboard/internal/api"
	"github.com/nshruti113/netguard-dashboard/internal/logging"
	"github.com/nshruti113/netguard-dashboard/internal/models"
	"github.com/nshruti113/netguard-dashboard/internal/poller"
	"github.com/nshruti113/netguard-dashboard/internal/storage"
	"github.com/nshruti113/netguard-dashboard/internal/telemetry"
	"github.com/nshruti113/netguard-dashboard/internal/view"
)

type Options struct {
	Addr            string
	StaticDir       string
	ShutdownTimeout time.Duration
	PollInterval    time.Duration
}

type Server struct {
	opts   Options
	client *api.Client
	cache  storage.Cache
	views  *Views
	hub    *Hub
	router *gin.Engine
}

func New(client *api.Client, cache storage.Cache, opts Options) *Server {
	if cache == nil {
		cache = storage.Nop{}
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	telemetry.InitMetrics()

	hub := NewHub()
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		opts:   opts,
		client: client,
		cache:  cache,
		views:  NewViews(client, cache, hub, opts.PollInterval),
		hub:    hub,
		router: router,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router for http.Server and httptest
func (s *Server) Handler() http.Handler { return s.router }

// Views returns the polled views behind the server
func (s *Server) Views() *Views { return s.views }

func (s *Server) setupRoutes() {
	s.router.Use(corsMiddleware())

	v := s.router.Group("/api/view")
	{
		v.GET("/dashboard", s.getDashboard)
		v.GET("/flows", s.getFlows)
		v.GET("/flows/:id", s.getFlow)
		v.GET("/alerts", s.getAlerts)
		v.GET("/stats", s.getStats)
		v.POST("/refresh/:view", s.refreshView)
	}

	auth := s.router.Group("/api/auth")
	{
		auth.POST("/login", s.login)
		auth.POST("/logout", s.logout)
	}

	s.router.GET("/healthz", s.healthz)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/ws", s.handleWebSocket)

	if s.opts.StaticDir != "" {
		s.router.StaticFile("/", filepath.Join(s.opts.StaticDir, "index.html"))
		s.router.Static("/static", s.opts.StaticDir)
	}
}

// Start mounts the views without serving HTTP
func (s *Server) Start(ctx context.Context) {
	s.views.Start(ctx)
}

// Stop unmounts the views and disconnects WebSocket clients
func (s *Server) Stop() {
	s.views.Stop()
	s.hub.Close()
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	s.Start(ctx)
	defer s.Stop()

	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           otelhttp.NewHandler(s.router, "netguard-bridge"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Logger.WithField("addr", s.opts.Addr).Info("Dashboard bridge listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Logger.Info("Dashboard bridge shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// respond writes a view state, as 401 once the view lost its credential
func respond(c *gin.Context, vs viewState) {
	if vs.State == poller.StateUnauthenticated {
		c.JSON(http.StatusUnauthorized, gin.H{"view": vs.View, "state": vs.State, "redirect": loginPath})
		return
	}
	c.JSON(http.StatusOK, vs)
}

// fail maps a client error onto a response status
func fail(c *gin.Context, err error) {
	var te *api.TransportError
	switch {
	case api.IsAuth(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "redirect": loginPath})
	case errors.As(err, &te) && te.StatusCode == http.StatusNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &te) && te.StatusCode == http.StatusBadRequest:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

func (s *Server) getDashboard(c *gin.Context) {
	respond(c, stateOf(s.views.Dashboard()))
}

type flowList struct {
	Total   int            `json:"total"`
	Matched int            `json:"matched"`
	Items   []view.FlowRow `json:"items"`
}

func (s *Server) getFlows(c *gin.Context) {
	var f view.FlowFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap := s.views.Flows()
	vs := stateOf(snap)
	if snap.HasData {
		matched := view.FilterFlows(snap.Data, f)
		vs.Data = flowList{Total: len(snap.Data), Matched: len(matched), Items: view.FlowRows(matched)}
	}
	respond(c, vs)
}

// getFlow answers from the polled list and falls back to the API for
// flows that already scrolled out of it.
func (s *Server) getFlow(c *gin.Context) {
	id := c.Param("id")
	for _, f := range s.views.Flows().Data {
		if f.ID == id {
			c.JSON(http.StatusOK, gin.H{"flow": f, "row": view.NewFlowRow(f)})
			return
		}
	}
	f, err := s.client.Flow(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flow": f, "row": view.NewFlowRow(f)})
}

type alertList struct {
	Total   int             `json:"total"`
	Matched int             `json:"matched"`
	Counts  map[string]int  `json:"counts"`
	Items   []view.AlertRow `json:"items"`
}

func (s *Server) getAlerts(c *gin.Context) {
	var f view.AlertFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if sev := strings.TrimSpace(f.Severity); sev != "" && !strings.EqualFold(sev, view.AllSeverities) {
		if _, ok := models.ParseSeverity(sev); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown severity " + sev})
			return
		}
	}

	snap := s.views.Alerts()
	vs := stateOf(snap)
	if snap.HasData {
		counts := make(map[string]int, len(models.Severities))
		for _, sev := range models.Severities {
			counts[sev.String()] = 0
		}
		for _, a := range snap.Data {
			counts[a.Severity.String()]++
		}
		matched := view.FilterAlerts(snap.Data, f)
		vs.Data = alertList{
			Total:   len(snap.Data),
			Matched: len(matched),
			Counts:  counts,
			Items:   view.AlertRows(matched),
		}
	}
	respond(c, vs)
}

type trafficStats struct {
	Summary view.TrafficSummary   `json:"summary"`
	Series  []view.Point          `json:"series"`
	Window  *models.TrafficWindow `json:"window,omitempty"`
	// History covers the cached flow history when since is requested
	History []view.Point `json:"history,omitempty"`
}

func (s *Server) getStats(c *gin.Context) {
	mode := view.ParseMode(c.Query("mode"))
	var since time.Duration
	if raw := c.Query("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be a positive duration such as 15m"})
			return
		}
		since = d
	}

	snap := s.views.Flows()
	vs := stateOf(snap)
	if snap.HasData {
		ctx := c.Request.Context()
		stats := trafficStats{
			Summary: view.TrafficStats(snap.Data, mode),
			Series:  view.TrafficSeries(snap.Data, mode),
			Window:  s.latestWindow(ctx),
		}
		if since > 0 {
			stats.History = s.history(ctx, since, mode)
		}
		vs.Data = stats
	}
	respond(c, vs)
}

// history returns the chart series of the flows cached over the last since
func (s *Server) history(ctx context.Context, since time.Duration, mode view.Mode) []view.Point {
	flows, err := s.cache.RecentFlowHistory(ctx, since)
	if err != nil {
		logging.Logger.WithError(err).Warn("Failed to read flow history")
		return nil
	}
	return view.TrafficSeries(flows, mode)
}

// latestWindow returns the current minute's counters, or the previous
// minute's while the current one is still empty.
func (s *Server) latestWindow(ctx context.Context) *models.TrafficWindow {
	now := time.Now()
	for _, at := range []time.Time{now, now.Add(-time.Minute)} {
		w, err := s.cache.TrafficWindow(ctx, at)
		if err != nil {
			logging.Logger.WithError(err).Warn("Failed to read traffic window")
			return nil
		}
		if w != nil {
			return w
		}
	}
	return nil
}

func (s *Server) refreshView(c *gin.Context) {
	name := c.Param("view")
	if err := s.views.Refresh(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"view": name, "status": "refresh queued"})
}

func (s *Server) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cred, err := s.client.Login(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	s.views.Remount()
	c.JSON(http.StatusOK, gin.H{"email": cred.Email, "user_id": cred.UserID})
}

// logout drops the credential; the views redirect on their next cycle
func (s *Server) logout(c *gin.Context) {
	if err := s.client.Logout(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"views":   s.views.States(),
		"clients": s.hub.Len(),
	})
}

// handleWebSocket sends the current state of every view, then streams
// transitions as they happen.
func (s *Server) handleWebSocket(c *gin.Context) {
	s.hub.Serve(c.Writer, c.Request, func(conn *websocket.Conn) {
		for _, ev := range s.views.events() {
			if err := s.hub.Send(conn, ev); err != nil {
				logging.Logger.WithError(err).Debug("WebSocket hello failed")
				return
			}
		}
	})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"took_ms": time.Since(start).Milliseconds(),
		}).Debug("Bridge request")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
