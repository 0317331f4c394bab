package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/JassinAlSafe/gamerfie-sub001/activity"
	"github.com/JassinAlSafe/gamerfie-sub001/audit"
	mw "github.com/JassinAlSafe/gamerfie-sub001/middleware"
	"github.com/gin-gonic/gin"
)

// ActivityHandler exposes the activity event log.
type ActivityHandler struct {
	svc     *activity.Service
	auditor *audit.Service
}

// NewActivityHandler creates an ActivityHandler.
func NewActivityHandler(svc *activity.Service, auditor *audit.Service) *ActivityHandler {
	return &ActivityHandler{svc: svc, auditor: auditor}
}

type createActivityBody struct {
	Type     string                 `json:"type" binding:"required"`
	GameID   *int64                 `json:"subject_game_id"`
	FriendID *int64                 `json:"subject_friend_id"`
	Payload  map[string]interface{} `json:"payload"`
	IsPublic *bool                  `json:"is_public"`
}

// Create handles POST /api/activities. Events default to public.
func (h *ActivityHandler) Create(c *gin.Context) {
	started := time.Now()
	userID := mw.GetUserID(c)

	var body createActivityBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.Payload == nil {
		body.Payload = map[string]interface{}{}
	}
	isPublic := true
	if body.IsPublic != nil {
		isPublic = *body.IsPublic
	}

	event, err := h.svc.Record(c.Request.Context(), userID, body.Type,
		activity.Subject{GameID: body.GameID, FriendID: body.FriendID},
		body.Payload, isPublic)
	auditLog(h.auditor, c, "activity.create", started, body, event, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// ListMine handles GET /api/activities/mine?offset=&limit=.
func (h *ActivityHandler) ListMine(c *gin.Context) {
	userID := mw.GetUserID(c)
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	events, err := h.svc.EventsByActor(c.Request.Context(), userID, offset, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// Get handles GET /api/events/:id.
func (h *ActivityHandler) Get(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}
	event, err := h.svc.Get(c.Request.Context(), eventID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}
