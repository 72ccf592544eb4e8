// Package devgateway is a local stand-in for the hosted backend. It exposes
// the gateway operations over HTTP plus a realtime websocket, evaluates each
// request under the caller's bearer token, and applies the same row ownership
// policy the hosted backend enforces.
package devgateway

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/trailtalk/trailtalk/internal/database"
	"github.com/trailtalk/trailtalk/internal/gateway"
	"github.com/trailtalk/trailtalk/internal/gateway/gormgw"
	"github.com/trailtalk/trailtalk/internal/gateway/wire"
	"github.com/trailtalk/trailtalk/internal/logger"
	"github.com/trailtalk/trailtalk/internal/session"
)

// tokenTTL bounds dev-minted session tokens.
const tokenTTL = 24 * time.Hour

// Server serves the gateway API over one shared database connection and
// change broker.
type Server struct {
	db     *gorm.DB
	base   *gormgw.DB
	secret []byte
	router *gin.Engine
}

// tokenUser is the per-request identity derived from the bearer token.
type tokenUser struct {
	id string
}

func (u tokenUser) UserID() (string, bool) { return u.id, u.id != "" }

// New builds the server. All requests share the broker owned by the base
// gateway so writes from one caller reach every subscriber.
func New(db *gorm.DB, jwtSecret []byte) *Server {
	s := &Server{
		db:     db,
		base:   gormgw.New(db, nil),
		secret: jwtSecret,
	}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the router for http.Server and httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/realtime", s.handleRealtime)

	// Dev convenience: mint a token for any user id. The hosted backend's
	// auth service owns this in production.
	r.POST("/auth/token", s.handleToken)

	api := r.Group("/api/v1")
	{
		api.POST("/query", s.handleQuery)
		api.POST("/count", s.handleCount)
		api.POST("/insert", s.handleInsert)
		api.POST("/update", s.handleUpdate)
		api.POST("/delete", s.handleDelete)
	}
	return r
}

// gatewayFor returns a gateway acting as the request's bearer identity.
// A missing or invalid token yields an anonymous, read-only view.
func (s *Server) gatewayFor(c *gin.Context) *gormgw.DB {
	header := c.GetHeader("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		return s.base
	}
	user, err := session.FromToken(token, s.secret)
	if err != nil {
		logger.Log.Warn("Rejected bearer token", zap.Error(err))
		return s.base
	}
	return s.base.WithUser(tokenUser{id: user.ID})
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := database.Health(s.db); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"service":   "trailtalk-devgateway",
	})
}

func (s *Server) handleToken(c *gin.Context) {
	var req wire.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		badRequest(c, "user_id is required")
		return
	}
	token, err := session.SignToken(req.UserID, s.secret, tokenTTL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, wire.TokenResponse{Token: token})
}

func (s *Server) handleQuery(c *gin.Context) {
	var q gateway.Query
	if err := c.ShouldBindJSON(&q); err != nil {
		badRequest(c, "malformed query")
		return
	}
	rows, err := s.gatewayFor(c).Select(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, wire.RowsResponse{Rows: rows})
}

func (s *Server) handleCount(c *gin.Context) {
	var req wire.CountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed count request")
		return
	}
	n, err := s.gatewayFor(c).Count(c.Request.Context(), req.Table, req.Filters)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, wire.CountResponse{Count: n})
}

func (s *Server) handleInsert(c *gin.Context) {
	var req wire.InsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed insert request")
		return
	}
	rows, err := s.gatewayFor(c).Insert(c.Request.Context(), req.Table, req.Rows)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, wire.RowsResponse{Rows: rows})
}

func (s *Server) handleUpdate(c *gin.Context) {
	var req wire.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed update request")
		return
	}
	if err := s.gatewayFor(c).Update(c.Request.Context(), req.Table, req.Patch, req.Filters); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDelete(c *gin.Context) {
	var req wire.DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed delete request")
		return
	}
	if err := s.gatewayFor(c).Delete(c.Request.Context(), req.Table, req.Filters); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, wire.ErrorResponse{Code: wire.CodeBadRequest, Error: msg})
}

// writeError maps gateway sentinel errors onto HTTP statuses and wire codes.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gateway.ErrAuthRequired):
		c.JSON(http.StatusUnauthorized, wire.ErrorResponse{Code: wire.CodeAuthRequired, Error: err.Error()})
	case errors.Is(err, gateway.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, wire.ErrorResponse{Code: wire.CodePermissionDenied, Error: err.Error()})
	case errors.Is(err, gateway.ErrNotFound):
		c.JSON(http.StatusNotFound, wire.ErrorResponse{Code: wire.CodeNotFound, Error: err.Error()})
	default:
		logger.Log.Error("Gateway request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, wire.ErrorResponse{Code: wire.CodeInternal, Error: err.Error()})
	}
}
