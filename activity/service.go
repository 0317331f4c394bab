package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JassinAlSafe/gamerfie-sub001/apperr"
	"github.com/JassinAlSafe/gamerfie-sub001/model"
	"github.com/JassinAlSafe/gamerfie-sub001/notify"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Subject identifies what an event is about. Both fields optional.
type Subject struct {
	GameID   *int64
	FriendID *int64
}

// FriendResolver resolves the accepted-friend set of a user. Satisfied by
// social.Service.
type FriendResolver interface {
	AcceptedFriendIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Service is the append-only activity event log.
type Service struct {
	db       *gorm.DB
	friends  FriendResolver
	notifier *notify.Notifier
	logger   *zap.Logger
}

// NewService creates an activity Service.
func NewService(db *gorm.DB, friends FriendResolver, notifier *notify.Notifier, logger *zap.Logger) *Service {
	return &Service{db: db, friends: friends, notifier: notifier, logger: logger}
}

// Record inserts one immutable event row and fans a change notification out
// to the actor's accepted friends. The fan-out is best-effort; a friend who
// misses the push sees the event on their next feed fetch.
func (s *Service) Record(ctx context.Context, actorID int64, eventType string, subject Subject, payload map[string]interface{}, isPublic bool) (*model.ActivityEvent, error) {
	if err := validatePayload(eventType, subject, payload); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload not serializable", apperr.ErrValidation)
	}

	event := &model.ActivityEvent{
		ActorID:         actorID,
		Type:            eventType,
		SubjectGameID:   subject.GameID,
		SubjectFriendID: subject.FriendID,
		Payload:         datatypes.JSON(raw),
		IsPublic:        isPublic,
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}

	if event.IsPublic {
		s.fanOut(ctx, event)
	}
	return event, nil
}

// fanOut publishes the new event to each accepted friend's feed channel.
func (s *Service) fanOut(ctx context.Context, event *model.ActivityEvent) {
	friendIDs, err := s.friends.AcceptedFriendIDs(ctx, event.ActorID)
	if err != nil {
		s.logger.Warn("fan-out friend resolve failed",
			zap.Int64("actor_id", event.ActorID),
			zap.Error(err))
		return
	}
	channels := make([]string, 0, len(friendIDs))
	for _, id := range friendIDs {
		channels = append(channels, notify.FeedChannel(id))
	}
	if len(channels) > 0 {
		s.notifier.Upsert(ctx, "activity_event", event, channels...)
	}
}

// EventsByActors returns a page of public events from the given actors,
// newest first. Identical created_at timestamps (sub-second batch writes) are
// tie-broken by id DESC so pagination stays stable across requests.
// Returns limit+1 probing: callers pass their page size and slice off hasMore.
func (s *Service) EventsByActors(ctx context.Context, actorIDs []int64, offset, limit int) ([]model.ActivityEvent, error) {
	if len(actorIDs) == 0 {
		return []model.ActivityEvent{}, nil
	}
	var events []model.ActivityEvent
	err := s.db.WithContext(ctx).
		Where("actor_id IN ? AND is_public = ?", actorIDs, true).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}
	return events, nil
}

// EventsByActor returns one user's own events (public and private), newest
// first. Used for profile pages.
func (s *Service) EventsByActor(ctx context.Context, actorID int64, offset, limit int) ([]model.ActivityEvent, error) {
	var events []model.ActivityEvent
	err := s.db.WithContext(ctx).
		Where("actor_id = ?", actorID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}
	return events, nil
}

// Get returns one event by ID.
func (s *Service) Get(ctx context.Context, eventID int64) (*model.ActivityEvent, error) {
	var event model.ActivityEvent
	if err := s.db.WithContext(ctx).First(&event, eventID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: event %d", apperr.ErrNotFound, eventID)
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}
	return &event, nil
}

// validatePayload checks the type-specific payload shape. No deeper
// validation: events are write-once and shaped by trusted internal callers.
func validatePayload(eventType string, subject Subject, payload map[string]interface{}) error {
	switch eventType {
	case model.ActivityStatusChanged:
		if subject.GameID == nil {
			return fmt.Errorf("%w: status_changed requires a subject game", apperr.ErrValidation)
		}
		if _, ok := payload["status"]; !ok {
			return fmt.Errorf("%w: status_changed payload requires status", apperr.ErrValidation)
		}
	case model.ActivityProgress:
		if subject.GameID == nil {
			return fmt.Errorf("%w: progress requires a subject game", apperr.ErrValidation)
		}
	case model.ActivityGameCompleted:
		if subject.GameID == nil {
			return fmt.Errorf("%w: game_completed requires a subject game", apperr.ErrValidation)
		}
	case model.ActivityAchievement:
		if _, ok := payload["name"]; !ok {
			return fmt.Errorf("%w: achievement payload requires name", apperr.ErrValidation)
		}
	case model.ActivityReview:
		if _, ok := payload["rating"]; !ok {
			return fmt.Errorf("%w: review payload requires rating", apperr.ErrValidation)
		}
	case model.ActivityFriendAccepted:
		if subject.FriendID == nil {
			return fmt.Errorf("%w: friend_accepted requires a subject friend", apperr.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown event type %q", apperr.ErrValidation, eventType)
	}
	return nil
}
