package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JassinAlSafe/gamerfie-sub001/activity"
	"github.com/JassinAlSafe/gamerfie-sub001/apperr"
	"github.com/JassinAlSafe/gamerfie-sub001/model"
	"github.com/JassinAlSafe/gamerfie-sub001/social"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Actor is the display slice of the event's author.
type Actor struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// GameRef is the display slice of an event's subject game.
type GameRef struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	CoverURL string `json:"cover_url"`
}

// EventView is the public shape of one feed row. Counts are computed at
// composition time from the reaction/comment rows; there is no materialized
// counter column, so a full refetch always yields correct counts.
type EventView struct {
	ID             int64           `json:"id"`
	Type           string          `json:"type"`
	Actor          Actor           `json:"actor"`
	SubjectGame    *GameRef        `json:"subject_game"` // nil when unresolved (e.g. deleted game)
	Payload        json.RawMessage `json:"payload"`
	ReactionsCount int64           `json:"reactions_count"`
	CommentsCount  int64           `json:"comments_count"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Page is one feed page.
type Page struct {
	Events  []EventView `json:"events"`
	HasMore bool        `json:"has_more"`
}

// Composer builds a viewer's feed from their accepted-friend set.
type Composer struct {
	db          *gorm.DB
	friends     *social.Service
	events      *activity.Service
	pageSize    int
	maxPageSize int
	logger      *zap.Logger
}

// NewComposer creates a feed Composer. pageSize is the default page length
// when the caller passes limit <= 0; maxPageSize caps caller-supplied limits.
func NewComposer(db *gorm.DB, friends *social.Service, events *activity.Service, pageSize, maxPageSize int, logger *zap.Logger) *Composer {
	if pageSize <= 0 {
		pageSize = 20
	}
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return &Composer{
		db:          db,
		friends:     friends,
		events:      events,
		pageSize:    pageSize,
		maxPageSize: maxPageSize,
		logger:      logger,
	}
}

// Page composes one feed page for the viewer:
//  1. resolve accepted friends; empty set short-circuits to an empty page,
//  2. query public events from that set, newest first,
//  3. batch-resolve actor and game display rows (two IN queries, never N+1),
//  4. join reaction/comment counts (two grouped queries),
//  5. shape; unresolved games degrade to a nil subject.
func (c *Composer) Page(ctx context.Context, viewerID int64, offset, limit int) (*Page, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = c.pageSize
	}
	if limit > c.maxPageSize {
		limit = c.maxPageSize
	}

	friendIDs, err := c.friends.AcceptedFriendIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if len(friendIDs) == 0 {
		return &Page{Events: []EventView{}, HasMore: false}, nil
	}

	// limit+1 probe for has_more.
	events, err := c.events.EventsByActors(ctx, friendIDs, offset, limit+1)
	if err != nil {
		return nil, err
	}
	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}
	if len(events) == 0 {
		return &Page{Events: []EventView{}, HasMore: false}, nil
	}

	views, err := c.shape(ctx, events)
	if err != nil {
		return nil, err
	}
	return &Page{Events: views, HasMore: hasMore}, nil
}

func (c *Composer) shape(ctx context.Context, events []model.ActivityEvent) ([]EventView, error) {
	actorIDs := make([]int64, 0, len(events))
	gameIDs := make([]int64, 0, len(events))
	eventIDs := make([]int64, 0, len(events))
	seenActor := map[int64]bool{}
	seenGame := map[int64]bool{}
	for _, e := range events {
		eventIDs = append(eventIDs, e.ID)
		if !seenActor[e.ActorID] {
			seenActor[e.ActorID] = true
			actorIDs = append(actorIDs, e.ActorID)
		}
		if e.SubjectGameID != nil && !seenGame[*e.SubjectGameID] {
			seenGame[*e.SubjectGameID] = true
			gameIDs = append(gameIDs, *e.SubjectGameID)
		}
	}

	var users []model.User
	if err := c.db.WithContext(ctx).Where("id IN ?", actorIDs).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}
	usersByID := make(map[int64]*model.User, len(users))
	for i := range users {
		usersByID[users[i].ID] = &users[i]
	}

	gamesByID := map[int64]*model.Game{}
	if len(gameIDs) > 0 {
		var games []model.Game
		if err := c.db.WithContext(ctx).Where("id IN ?", gameIDs).Find(&games).Error; err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
		}
		for i := range games {
			gamesByID[games[i].ID] = &games[i]
		}
	}

	reactionCounts, err := c.countByEvent(ctx, &model.Reaction{}, eventIDs)
	if err != nil {
		return nil, err
	}
	commentCounts, err := c.countByEvent(ctx, &model.Comment{}, eventIDs)
	if err != nil {
		return nil, err
	}

	views := make([]EventView, 0, len(events))
	for _, e := range events {
		view := EventView{
			ID:             e.ID,
			Type:           e.Type,
			Payload:        json.RawMessage(e.Payload),
			ReactionsCount: reactionCounts[e.ID],
			CommentsCount:  commentCounts[e.ID],
			CreatedAt:      e.CreatedAt,
		}
		if u, ok := usersByID[e.ActorID]; ok {
			view.Actor = Actor{ID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL}
		} else {
			view.Actor = Actor{ID: e.ActorID}
		}
		if e.SubjectGameID != nil {
			if g, ok := gamesByID[*e.SubjectGameID]; ok {
				view.SubjectGame = &GameRef{ID: g.ID, Name: g.Name, CoverURL: g.CoverURL}
			}
			// Unresolved subject (deleted game) stays nil rather than
			// failing the page.
		}
		views = append(views, view)
	}
	return views, nil
}

type eventCount struct {
	EventID int64
	N       int64
}

func (c *Composer) countByEvent(ctx context.Context, mdl interface{}, eventIDs []int64) (map[int64]int64, error) {
	var rows []eventCount
	err := c.db.WithContext(ctx).
		Model(mdl).
		Select("event_id, COUNT(*) AS n").
		Where("event_id IN ?", eventIDs).
		Group("event_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}
	counts := make(map[int64]int64, len(rows))
	for _, r := range rows {
		counts[r.EventID] = r.N
	}
	return counts, nil
}
