package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"botview/internal/engine"
	"botview/internal/interfaces"
	"botview/internal/logger"
	"botview/internal/metrics"
	"botview/internal/session"
	"botview/internal/types"
)

// ErrUnknownMode is returned for a mode body that is neither TRADING nor
// TRAINING.
var ErrUnknownMode = errors.New("unknown mode")

// Handler exposes the engine's control surface and view over HTTP.
type Handler struct {
	engine interfaces.Engine
	hub    *Hub
}

func NewHandler(eng interfaces.Engine, hub *Hub) *Handler {
	return &Handler{engine: eng, hub: hub}
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

type symbolRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

type limitRequest struct {
	Limit int `json:"limit" binding:"required"`
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(eng interfaces.Engine, hub *Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), cors())

	h := NewHandler(eng, hub)
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/ws", h.HandleWebSocket)

	api := r.Group("/api")
	{
		api.GET("/view", h.GetView)
		api.GET("/symbols", h.GetSymbols)
		api.POST("/mode", h.SelectMode)
		api.POST("/start", h.Start)
		api.POST("/pause", h.Pause)
		api.POST("/toggle", h.Toggle)
		api.POST("/reset", h.Reset)
		api.POST("/symbol", h.SetSymbol)
		api.POST("/training/limit", h.SetTrainingLimit)
	}
	return r
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !logger.IsDebugEnabled() {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		logger.Debug(c.Request.Context(), "HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// statusFor maps engine errors onto HTTP statuses. Anything not caused by
// the request itself is reported as an upstream failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrEmptyDataset), errors.Is(err, types.ErrNotActiveMode):
		return http.StatusConflict
	case errors.Is(err, session.ErrInvalidLimit), errors.Is(err, engine.ErrUnknownSymbol),
		errors.Is(err, ErrUnknownMode):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// respond writes the current view on success and the error otherwise.
func (h *Handler) respond(c *gin.Context, err error) {
	if err != nil {
		c.JSON(statusFor(err), gin.H{
			"error": err.Error(),
			"view":  h.engine.View(),
		})
		return
	}
	c.JSON(http.StatusOK, h.engine.View())
}

func (h *Handler) Health(c *gin.Context) {
	v := h.engine.View()
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "botview",
		"mode":    v.Mode,
		"running": v.Running,
		"clients": h.hub.ClientCount(),
	})
}

func (h *Handler) GetView(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.View())
}

func (h *Handler) GetSymbols(c *gin.Context) {
	syms, err := h.engine.Symbols(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbols": syms, "active": h.engine.View().Symbol})
}

func (h *Handler) SelectMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, ok := types.ParseMode(req.Mode)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrUnknownMode.Error() + ": " + req.Mode})
		return
	}
	h.respond(c, h.engine.SelectMode(c.Request.Context(), mode))
}

func (h *Handler) Start(c *gin.Context) {
	h.respond(c, h.engine.Start(c.Request.Context()))
}

func (h *Handler) Pause(c *gin.Context) {
	h.engine.Pause(c.Request.Context())
	h.respond(c, nil)
}

func (h *Handler) Toggle(c *gin.Context) {
	h.respond(c, h.engine.Toggle(c.Request.Context()))
}

// Reset outlives the request: an aborted client must not leave the account
// half reset.
func (h *Handler) Reset(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())
	h.respond(c, h.engine.Reset(ctx))
}

func (h *Handler) SetSymbol(c *gin.Context) {
	var req symbolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, h.engine.SetSymbol(c.Request.Context(), req.Symbol))
}

func (h *Handler) SetTrainingLimit(c *gin.Context) {
	var req limitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, h.engine.SetTrainingLimit(c.Request.Context(), req.Limit))
}

// HandleWebSocket upgrades the connection and streams view updates. The
// client gets the current view right away.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "WebSocket upgrade failed", "error", err)
		return
	}

	client := newClient(conn, h.hub)
	for _, m := range []Message{
		{Type: ConnectionStatus, Data: ConnectionStatusData{Status: "connected", ClientID: client.ID, Timestamp: time.Now().UnixMilli()}},
		{Type: ViewUpdate, Data: h.engine.View()},
	} {
		if payload, err := encode(m.Type, m.Data); err == nil {
			client.Send <- payload
		}
	}

	if !h.hub.registerClient(client) {
		_ = conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}
