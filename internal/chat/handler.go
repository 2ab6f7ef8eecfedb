package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"adpulse/internal/store"
	"adpulse/pkg/logging"
)

// Handler exposes the assistant over HTTP: a streaming message endpoint
// plus thread listing, history and soft deletion.
type Handler struct {
	orchestrator *Orchestrator
	store        *store.Store
	logger       logging.Logger
}

func NewHandler(orchestrator *Orchestrator, st *store.Store, logger logging.Logger) *Handler {
	return &Handler{orchestrator: orchestrator, store: st, logger: logger}
}

// RegisterRoutes mounts the chat API under /v1. Identity middleware must
// run before these handlers.
func RegisterRoutes(router gin.IRoutes, h *Handler) {
	router.POST("/v1/chat/message", h.HandleMessage)
	router.GET("/v1/chat/threads", h.HandleListThreads)
	router.GET("/v1/chat/threads/:id/messages", h.HandleThreadMessages)
	router.DELETE("/v1/chat/threads/:id", h.HandleDeleteThread)
}

type messageRequest struct {
	ThreadID string `json:"thread_id,omitempty"`
	Message  string `json:"message"`
}

// HandleMessage streams one conversation turn as newline-delimited JSON,
// one event per line, flushed per event.
func (h *Handler) HandleMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	orgID := c.GetString("org_id")
	if orgID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing organization"})
		return
	}

	sink, err := newNDJSONSink(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unavailable"})
		return
	}
	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	turn := TurnRequest{
		OrgID:    orgID,
		UserID:   c.GetString("user_id"),
		ThreadID: strings.TrimSpace(req.ThreadID),
		Message:  req.Message,
	}
	if err := h.orchestrator.SendMessage(c.Request.Context(), turn, sink); err != nil {
		h.logger.WithError(err).WithField("org_id", orgID).Warn("Chat turn failed")
	}
}

func (h *Handler) HandleListThreads(c *gin.Context) {
	orgID := c.GetString("org_id")
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	threads, err := h.store.ListThreads(c.Request.Context(), orgID, limit, offset)
	if err != nil {
		h.logger.WithError(err).WithField("org_id", orgID).Error("Failed to list threads")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list threads"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

func (h *Handler) HandleThreadMessages(c *gin.Context) {
	orgID := c.GetString("org_id")
	threadID := c.Param("id")
	limit, _ := strconv.Atoi(c.Query("limit"))

	if _, err := h.store.GetThread(c.Request.Context(), orgID, threadID); err != nil {
		if errors.Is(err, store.ErrThreadNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
			return
		}
		h.logger.WithError(err).WithField("thread_id", threadID).Error("Failed to load thread")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load thread"})
		return
	}

	messages, err := h.store.GetThreadMessages(c.Request.Context(), orgID, threadID, limit)
	if err != nil {
		h.logger.WithError(err).WithField("thread_id", threadID).Error("Failed to load messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *Handler) HandleDeleteThread(c *gin.Context) {
	orgID := c.GetString("org_id")
	threadID := c.Param("id")

	err := h.store.SoftDeleteThread(c.Request.Context(), orgID, threadID)
	if errors.Is(err, store.ErrThreadNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("thread_id", threadID).Error("Failed to delete thread")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete thread"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ndjsonSink writes one JSON object per line and flushes after each event.
type ndjsonSink struct {
	writer  http.ResponseWriter
	flusher http.Flusher
}

func newNDJSONSink(writer http.ResponseWriter) (*ndjsonSink, error) {
	flusher, ok := writer.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}
	return &ndjsonSink{writer: writer, flusher: flusher}, nil
}

func (s *ndjsonSink) Send(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.writer, "%s\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
