package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/JassinAlSafe/gamerfie-sub001/audit"
	mw "github.com/JassinAlSafe/gamerfie-sub001/middleware"
	"github.com/JassinAlSafe/gamerfie-sub001/social"
	"github.com/gin-gonic/gin"
)

// SocialHandler exposes the friend graph REST endpoints.
type SocialHandler struct {
	svc     *social.Service
	auditor *audit.Service
}

// NewSocialHandler creates a SocialHandler.
func NewSocialHandler(svc *social.Service, auditor *audit.Service) *SocialHandler {
	return &SocialHandler{svc: svc, auditor: auditor}
}

// List handles GET /api/friends?status=.
func (h *SocialHandler) List(c *gin.Context) {
	userID := mw.GetUserID(c)
	friends, err := h.svc.ListFriends(c.Request.Context(), userID, c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

type friendRequestBody struct {
	RecipientID int64 `json:"recipient_id" binding:"required"`
}

// Request handles POST /api/friends/request.
func (h *SocialHandler) Request(c *gin.Context) {
	started := time.Now()
	userID := mw.GetUserID(c)

	var body friendRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	edge, err := h.svc.Request(c.Request.Context(), userID, body.RecipientID)
	auditLog(h.auditor, c, "friend.request", started, body, edge, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, edge)
}

type friendRespondBody struct {
	Status string `json:"status" binding:"required"`
}

// Respond handles PATCH /api/friends/:id.
func (h *SocialHandler) Respond(c *gin.Context) {
	started := time.Now()
	userID := mw.GetUserID(c)

	edgeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid edge id"})
		return
	}
	var body friendRespondBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	edge, err := h.svc.Respond(c.Request.Context(), userID, edgeID, body.Status)
	auditLog(h.auditor, c, "friend.respond", started, body, edge, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, edge)
}

// Remove handles DELETE /api/friends/:id.
func (h *SocialHandler) Remove(c *gin.Context) {
	started := time.Now()
	userID := mw.GetUserID(c)

	edgeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid edge id"})
		return
	}

	err = h.svc.Remove(c.Request.Context(), userID, edgeID)
	auditLog(h.auditor, c, "friend.remove", started, gin.H{"edge_id": edgeID}, nil, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
