package rest

import (
	"net/http"
	"strconv"

	"github.com/JassinAlSafe/gamerfie-sub001/feed"
	mw "github.com/JassinAlSafe/gamerfie-sub001/middleware"
	"github.com/gin-gonic/gin"
)

// FeedHandler serves the composed activity feed.
type FeedHandler struct {
	composer *feed.Composer
}

// NewFeedHandler creates a FeedHandler.
func NewFeedHandler(composer *feed.Composer) *FeedHandler {
	return &FeedHandler{composer: composer}
}

// Get handles GET /api/feed?offset=&limit=.
func (h *FeedHandler) Get(c *gin.Context) {
	userID := mw.GetUserID(c)
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	page, err := h.composer.Page(c.Request.Context(), userID, offset, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
