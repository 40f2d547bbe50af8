// Package mockapi is a self-contained stand-in for the NetGuard REST API.
// It generates synthetic flows, raises alerts with the detector and serves
// both under /api the way the real service does.
package mockapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nshruti113/netguard-dashboard/internal/logging"
	"github.com/nshruti113/netguard-dashboard/internal/models"
)

const (
	recentWindow = 5 * time.Minute
	attackWindow = 30 * time.Second
	userKey      = "netguard.user"
)

// alertJSON is the wire shape of an alert: the flow is referenced by id and
// severity is only present when the detector graded the alert itself.
type alertJSON struct {
	ID         string    `json:"_id"`
	User       string    `json:"user"`
	Flow       string    `json:"flow"`
	AttackType string    `json:"attack_type"`
	Timestamp  time.Time `json:"timestamp"`
	Severity   string    `json:"severity,omitempty"`
}

func toAlertJSON(a models.Alert) alertJSON {
	return alertJSON{
		ID:         a.ID,
		User:       a.User,
		Flow:       a.LinkedFlowID(),
		AttackType: a.AttackType,
		Timestamp:  a.Timestamp,
		Severity:   a.Severity.String(),
	}
}

func toAlertsJSON(alerts []models.Alert) []alertJSON {
	out := make([]alertJSON, len(alerts))
	for i, a := range alerts {
		out[i] = toAlertJSON(a)
	}
	return out
}

type Server struct {
	store  *Store
	router *gin.Engine
}

func NewServer(store *Store) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{store: store, router: router}
	s.setupRoutes()
	return s
}

// Handler exposes the router for http.Server and httptest
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.Use(corsMiddleware())

	api := s.router.Group("/api")
	{
		api.POST("/auth/register/", s.register)
		api.POST("/auth/login/", s.login)

		authed := api.Group("", s.requireToken)
		authed.GET("/auth/api-key/", s.getAPIKey)
		authed.GET("/config/", s.getConfig)
		authed.GET("/config/api-key/", s.getAPIKey)

		authed.GET("/status/", s.getStatus)

		authed.GET("/flows/", s.listFlows)
		authed.POST("/flows/", s.createFlow)
		authed.GET("/flows/recent/", s.recentFlows)
		authed.GET("/flows/:id/", s.getFlow)

		authed.GET("/alerts/", s.listAlerts)
		authed.GET("/alerts/recent/", s.recentAlerts)
		authed.GET("/alerts/severity/:severity/", s.alertsBySeverity)
		authed.GET("/alerts/:id/", s.getAlert)
	}
}

func detail(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"detail": msg})
}

// requireToken accepts "Token <t>" and "Bearer <t>"
func (s *Server) requireToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || (scheme != "Token" && scheme != "Bearer") || token == "" {
		detail(c, http.StatusUnauthorized, "Authentication credentials were not provided.")
		return
	}
	u, ok := s.store.Authenticate(strings.TrimSpace(token))
	if !ok {
		detail(c, http.StatusUnauthorized, "Invalid token.")
		return
	}
	c.Set(userKey, u)
	c.Next()
}

func authResponse(token string, u *User) gin.H {
	return gin.H{
		"token": token,
		"user": gin.H{
			"_id":      u.ID,
			"username": u.Username,
			"email":    u.Email,
		},
	}
}

func (s *Server) register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	token, u, err := s.store.Register(req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrWeakPassword), errors.Is(err, ErrMissingField):
		detail(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		logging.Logger.WithError(err).Error("Registration failed")
		detail(c, http.StatusInternalServerError, "registration failed")
		return
	}
	c.JSON(http.StatusCreated, authResponse(token, u))
}

func (s *Server) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	token, u, err := s.store.Login(req.Email, req.Password)
	if err != nil {
		detail(c, http.StatusUnauthorized, err.Error())
		return
	}
	c.JSON(http.StatusOK, authResponse(token, u))
}

func (s *Server) getAPIKey(c *gin.Context) {
	u := c.MustGet(userKey).(*User)
	c.JSON(http.StatusOK, gin.H{
		"api_key":    u.APIKey,
		"created_at": u.KeyCreatedAt,
	})
}

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Config())
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Status(time.Now(), recentWindow, attackWindow))
}

func limitParam(c *gin.Context, def int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Server) listFlows(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Flows(0))
}

func (s *Server) recentFlows(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Flows(limitParam(c, 10)))
}

func (s *Server) getFlow(c *gin.Context) {
	f, ok := s.store.Flow(c.Param("id"))
	if !ok {
		detail(c, http.StatusNotFound, "Not found.")
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) createFlow(c *gin.Context) {
	var f models.NetworkFlow
	if err := c.ShouldBindJSON(&f); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.StartDateTime.IsZero() {
		f.StartDateTime = time.Now().UTC()
	}
	s.store.AddFlows(f)
	c.JSON(http.StatusCreated, f)
}

func (s *Server) listAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, toAlertsJSON(s.store.Alerts(0)))
}

func (s *Server) recentAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, toAlertsJSON(s.store.Alerts(limitParam(c, 5))))
}

// alertsBySeverity filters on the severity the alert was stored with, so
// alerts the detector left ungraded never match.
func (s *Server) alertsBySeverity(c *gin.Context) {
	sev, ok := models.ParseSeverity(c.Param("severity"))
	if !ok {
		detail(c, http.StatusBadRequest, "unknown severity")
		return
	}
	out := make([]alertJSON, 0)
	for _, a := range s.store.Alerts(0) {
		if a.Severity == sev {
			out = append(out, toAlertJSON(a))
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getAlert(c *gin.Context) {
	a, ok := s.store.Alert(c.Param("id"))
	if !ok {
		detail(c, http.StatusNotFound, "Not found.")
		return
	}
	c.JSON(http.StatusOK, toAlertJSON(a))
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
		}).Debug("mock API request")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
