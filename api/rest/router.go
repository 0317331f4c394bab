package rest

import (
	"net/http"

	"github.com/JassinAlSafe/gamerfie-sub001/cache"
	"github.com/JassinAlSafe/gamerfie-sub001/config"
	mw "github.com/JassinAlSafe/gamerfie-sub001/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Deps bundles everything the REST router needs.
type Deps struct {
	Auth        *AuthHandler
	Social      *SocialHandler
	Activity    *ActivityHandler
	Feed        *FeedHandler
	Interaction *InteractionHandler
	Library     *LibraryHandler

	Cache    cache.Cache
	Security config.SecurityConfig
	Logger   *zap.Logger
}

// NewRouter builds the Gin engine with the full middleware chain and all
// REST routes. Realtime routes (SSE, WS) are attached by the caller.
func NewRouter(deps Deps, debug bool) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID())
	r.Use(mw.Logger(deps.Logger))
	r.Use(mw.Recovery(deps.Logger))
	r.Use(mw.RateLimit(rate.Limit(deps.Security.RateLimitRPS), deps.Security.RateLimitBurst))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.POST("/auth/login", deps.Auth.Login)

	authed := api.Group("")
	authed.Use(mw.Auth(deps.Security, deps.Cache))
	{
		authed.POST("/auth/logout", deps.Auth.Logout)
		authed.POST("/auth/refresh", deps.Auth.Refresh)

		authed.GET("/friends", deps.Social.List)
		authed.POST("/friends/request", deps.Social.Request)
		authed.PATCH("/friends/:id", deps.Social.Respond)
		authed.DELETE("/friends/:id", deps.Social.Remove)

		authed.GET("/feed", deps.Feed.Get)

		authed.POST("/activities", deps.Activity.Create)
		authed.GET("/activities/mine", deps.Activity.ListMine)
		authed.GET("/events/:id", deps.Activity.Get)

		authed.POST("/events/:id/reactions", deps.Interaction.AddReaction)
		authed.DELETE("/events/:id/reactions/:kind", deps.Interaction.RemoveReaction)
		authed.POST("/events/:id/comments", deps.Interaction.AddComment)
		authed.GET("/events/:id/comments", deps.Interaction.ListComments)
		authed.DELETE("/comments/:id", deps.Interaction.DeleteComment)

		authed.GET("/library", deps.Library.List)
		authed.GET("/library/:game_id", deps.Library.Get)
		authed.PUT("/library/:game_id", deps.Library.Update)
		authed.GET("/library/:game_id/history", deps.Library.History)
	}

	return r
}
