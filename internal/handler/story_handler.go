// Package handler exposes the story orchestrator to the UI layer over HTTP
// and serves the same-origin health endpoint the connectivity probe uses.
package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"story-client/internal/models"
	"story-client/internal/service"
)

// ErrorResponse is the standard JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StoryHandler wires the orchestrator into Gin routes.
type StoryHandler struct {
	service *service.StoryService
	logger  *zap.Logger
}

// NewStoryHandler creates the HTTP handler for the story service.
func NewStoryHandler(svc *service.StoryService, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		service: svc,
		logger:  logger.Named("StoryHandler"),
	}
}

// RegisterRoutes mounts all story endpoints on the router.
func (h *StoryHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/health-check", h.healthCheck)

	story := r.Group("/api/story")
	{
		story.POST("/start", h.startStory)
		story.POST("/choice", h.selectChoice)
		story.POST("/reset", h.resetSession)
		story.GET("/state", h.getState)
	}
}

// healthCheck answers the connectivity probe. Reachability is the signal; no
// dependency checks belong here.
func (h *StoryHandler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type startStoryRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

func (h *StoryHandler) startStory(c *gin.Context) {
	var req startStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body for startStory", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "prompt is required"})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "please enter a story prompt"})
		return
	}

	if err := h.service.StartNewStory(c.Request.Context(), req.Prompt); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.service.Snapshot())
}

type selectChoiceRequest struct {
	Index *int `json:"index" binding:"required"`
}

func (h *StoryHandler) selectChoice(c *gin.Context) {
	var req selectChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body for selectChoice", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "choice index is required"})
		return
	}

	// Index validation is the caller-side concern; the orchestrator treats
	// an out-of-range index as a no-op rather than an error.
	snap := h.service.Snapshot()
	if *req.Index < 0 || *req.Index >= len(snap.Choices) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "choice index out of range"})
		return
	}

	if err := h.service.SelectChoice(c.Request.Context(), *req.Index); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.service.Snapshot())
}

func (h *StoryHandler) resetSession(c *gin.Context) {
	if err := h.service.ResetSession(c.Request.Context()); err != nil {
		h.logger.Error("Failed to reset session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to reset session"})
		return
	}
	c.JSON(http.StatusOK, h.service.Snapshot())
}

func (h *StoryHandler) getState(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Snapshot())
}

// respondError maps a classified failure onto an HTTP status. The original
// classification stays visible to the client in the error body.
func (h *StoryHandler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "an unknown error occurred"

	if errors.Is(err, service.ErrBusy) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: service.ErrBusy.Message})
		return
	}

	var reqErr *models.RequestError
	if errors.As(err, &reqErr) {
		message = reqErr.Message
		switch reqErr.Kind {
		case models.ErrKindRateLimited:
			status = http.StatusTooManyRequests
		case models.ErrKindTimeout:
			status = http.StatusGatewayTimeout
		case models.ErrKindNetwork:
			if reqErr.StatusCode == 0 {
				status = http.StatusServiceUnavailable
			} else {
				status = http.StatusBadGateway
			}
		case models.ErrKindInvalidResponse:
			status = http.StatusBadGateway
		case models.ErrKindConfiguration:
			status = http.StatusInternalServerError
		}
	}

	c.JSON(status, ErrorResponse{Error: message})
}
