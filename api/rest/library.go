package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/JassinAlSafe/gamerfie-sub001/audit"
	"github.com/JassinAlSafe/gamerfie-sub001/library"
	mw "github.com/JassinAlSafe/gamerfie-sub001/middleware"
	"github.com/gin-gonic/gin"
)

// LibraryHandler exposes the game library and progress history endpoints.
type LibraryHandler struct {
	svc     *library.Service
	auditor *audit.Service
}

// NewLibraryHandler creates a LibraryHandler.
func NewLibraryHandler(svc *library.Service, auditor *audit.Service) *LibraryHandler {
	return &LibraryHandler{svc: svc, auditor: auditor}
}

// List handles GET /api/library.
func (h *LibraryHandler) List(c *gin.Context) {
	userID := mw.GetUserID(c)
	entries, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// Get handles GET /api/library/:game_id.
func (h *LibraryHandler) Get(c *gin.Context) {
	userID := mw.GetUserID(c)
	gameID, err := strconv.ParseInt(c.Param("game_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}
	entry, err := h.svc.Entry(c.Request.Context(), userID, gameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Update handles PUT /api/library/:game_id.
func (h *LibraryHandler) Update(c *gin.Context) {
	started := time.Now()
	userID := mw.GetUserID(c)

	gameID, err := strconv.ParseInt(c.Param("game_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}
	var patch library.EntryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.svc.UpdateEntry(c.Request.Context(), userID, gameID, patch)
	auditLog(h.auditor, c, "library.update", started, patch, entry, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// History handles GET /api/library/:game_id/history.
func (h *LibraryHandler) History(c *gin.Context) {
	userID := mw.GetUserID(c)
	gameID, err := strconv.ParseInt(c.Param("game_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}
	points, err := h.svc.History(c.Request.Context(), userID, gameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": points})
}
