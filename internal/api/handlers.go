package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"deskchat/internal/gate"
	"deskchat/internal/models"
)

// Responder runs one conversation turn.
type Responder interface {
	Respond(ctx context.Context, sessionID, message string) (*models.ChatReply, error)
}

// Ingester loads one document into a knowledge-base collection.
type Ingester interface {
	IngestFile(ctx context.Context, path, collection string) (int, error)
}

// Handler wires HTTP routes to the conversation orchestrator.
type Handler struct {
	responder  Responder
	ingester   Ingester
	gate       *gate.Gate
	collection string
}

// NewHandler constructs a Handler instance.
func NewHandler(responder Responder, ingester Ingester, defaultCollection string) *Handler {
	return &Handler{
		responder:  responder,
		ingester:   ingester,
		gate:       gate.New(),
		collection: defaultCollection,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/health", h.health)
	api.POST("/chat", h.chat)
	api.POST("/ingest", h.ingest)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	// one turn in flight per session; racing messages must queue client-side
	if err := h.gate.Acquire(sessionID); err != nil {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "session busy, please retry"})
		return
	}
	defer h.gate.Release(sessionID)

	reply, err := h.responder.Respond(c.Request.Context(), sessionID, req.Message)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reply)
}

type ingestRequest struct {
	Path       string `json:"path"`
	Collection string `json:"collection"`
}

func (h *Handler) ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}
	collection := strings.TrimSpace(req.Collection)
	if collection == "" {
		collection = h.collection
	}
	count, err := h.ingester.IngestFile(c.Request.Context(), req.Path, collection)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"collection": collection,
		"chunks":     count,
	})
}
