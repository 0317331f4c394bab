package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/JassinAlSafe/gamerfie-sub001/audit"
	"github.com/JassinAlSafe/gamerfie-sub001/interaction"
	mw "github.com/JassinAlSafe/gamerfie-sub001/middleware"
	"github.com/gin-gonic/gin"
)

// InteractionHandler exposes reactions and comments on activity events.
type InteractionHandler struct {
	svc     *interaction.Service
	auditor *audit.Service
}

// NewInteractionHandler creates an InteractionHandler.
func NewInteractionHandler(svc *interaction.Service, auditor *audit.Service) *InteractionHandler {
	return &InteractionHandler{svc: svc, auditor: auditor}
}

type reactionBody struct {
	Kind string `json:"kind" binding:"required"`
}

// AddReaction handles POST /api/events/:id/reactions.
// Re-reacting with the same kind returns 200 with the existing row.
func (h *InteractionHandler) AddReaction(c *gin.Context) {
	started := time.Now()
	userID := mw.GetUserID(c)

	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}
	var body reactionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reaction, err := h.svc.AddReaction(c.Request.Context(), userID, eventID, body.Kind)
	auditLog(h.auditor, c, "reaction.add", started, body, reaction, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reaction)
}

// RemoveReaction handles DELETE /api/events/:id/reactions/:kind.
func (h *InteractionHandler) RemoveReaction(c *gin.Context) {
	started := time.Now()
	userID := mw.GetUserID(c)

	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}
	kind := c.Param("kind")

	err = h.svc.RemoveReaction(c.Request.Context(), userID, eventID, kind)
	auditLog(h.auditor, c, "reaction.remove", started,
		gin.H{"event_id": eventID, "kind": kind}, nil, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type commentBody struct {
	Content string `json:"content" binding:"required"`
}

// AddComment handles POST /api/events/:id/comments.
func (h *InteractionHandler) AddComment(c *gin.Context) {
	started := time.Now()
	userID := mw.GetUserID(c)

	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}
	var body commentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.svc.AddComment(c.Request.Context(), userID, eventID, body.Content)
	auditLog(h.auditor, c, "comment.add", started, gin.H{"event_id": eventID}, comment, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// ListComments handles GET /api/events/:id/comments.
func (h *InteractionHandler) ListComments(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}
	comments, err := h.svc.Comments(c.Request.Context(), eventID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

// DeleteComment handles DELETE /api/comments/:id.
func (h *InteractionHandler) DeleteComment(c *gin.Context) {
	started := time.Now()
	userID := mw.GetUserID(c)

	commentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid comment id"})
		return
	}

	err = h.svc.DeleteComment(c.Request.Context(), userID, commentID)
	auditLog(h.auditor, c, "comment.delete", started, gin.H{"comment_id": commentID}, nil, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
