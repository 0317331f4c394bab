package interaction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JassinAlSafe/gamerfie-sub001/apperr"
	"github.com/JassinAlSafe/gamerfie-sub001/model"
	"github.com/JassinAlSafe/gamerfie-sub001/notify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var validKinds = map[string]bool{
	"like":      true,
	"celebrate": true,
	"love":      true,
	"laugh":     true,
	"wow":       true,
}

// Service records reactions and comments against activity events and keeps
// the per-event change channel fed.
type Service struct {
	db            *gorm.DB
	notifier      *notify.Notifier
	maxCommentLen int
	logger        *zap.Logger
}

// NewService creates an interaction Service.
func NewService(db *gorm.DB, notifier *notify.Notifier, maxCommentLen int, logger *zap.Logger) *Service {
	if maxCommentLen <= 0 {
		maxCommentLen = 5000
	}
	return &Service{db: db, notifier: notifier, maxCommentLen: maxCommentLen, logger: logger}
}

// AddReaction inserts one reaction row. A unique violation means the user
// already reacted with this kind and is treated as idempotent success —
// reaction toggling in clients depends on the double-tap not erroring.
func (s *Service) AddReaction(ctx context.Context, userID, eventID int64, kind string) (*model.Reaction, error) {
	if !validKinds[kind] {
		return nil, fmt.Errorf("%w: unknown reaction kind %q", apperr.ErrValidation, kind)
	}
	if err := s.eventExists(ctx, eventID); err != nil {
		return nil, err
	}

	reaction := &model.Reaction{EventID: eventID, UserID: userID, Kind: kind}
	if err := s.db.WithContext(ctx).Create(reaction).Error; err != nil {
		if apperr.UniqueViolation(err) {
			var existing model.Reaction
			if ferr := s.db.WithContext(ctx).
				Where("event_id = ? AND user_id = ? AND kind = ?", eventID, userID, kind).
				First(&existing).Error; ferr == nil {
				return &existing, nil
			}
			return reaction, nil
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}

	s.notifier.Upsert(ctx, "reaction", reaction, notify.EventChannel(eventID))
	return reaction, nil
}

// RemoveReaction deletes by composite key. Deleting an absent row is a no-op
// success, mirroring the idempotent insert.
func (s *Service) RemoveReaction(ctx context.Context, userID, eventID int64, kind string) error {
	res := s.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ? AND kind = ?", eventID, userID, kind).
		Delete(&model.Reaction{})
	if res.Error != nil {
		return fmt.Errorf("%w: %v", apperr.ErrTransientStore, res.Error)
	}
	if res.RowsAffected > 0 {
		s.notifier.Delete(ctx, "reaction",
			&model.Reaction{EventID: eventID, UserID: userID, Kind: kind},
			notify.EventChannel(eventID))
	}
	return nil
}

// AddComment appends a comment. Content is trimmed, must be non-empty and
// within the configured length bound.
func (s *Service) AddComment(ctx context.Context, userID, eventID int64, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: comment content is empty", apperr.ErrValidation)
	}
	if len(content) > s.maxCommentLen {
		return nil, fmt.Errorf("%w: comment exceeds %d characters", apperr.ErrValidation, s.maxCommentLen)
	}
	if err := s.eventExists(ctx, eventID); err != nil {
		return nil, err
	}

	comment := &model.Comment{EventID: eventID, UserID: userID, Content: content}
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}

	s.notifier.Upsert(ctx, "comment", comment, notify.EventChannel(eventID))
	return comment, nil
}

// DeleteComment removes a comment; only its author may.
func (s *Service) DeleteComment(ctx context.Context, userID, commentID int64) error {
	var comment model.Comment
	if err := s.db.WithContext(ctx).First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: comment %d", apperr.ErrNotFound, commentID)
		}
		return fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}
	if comment.UserID != userID {
		return fmt.Errorf("%w: not the comment author", apperr.ErrForbidden)
	}
	if err := s.db.WithContext(ctx).Delete(&model.Comment{}, commentID).Error; err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}
	s.notifier.Delete(ctx, "comment", &comment, notify.EventChannel(comment.EventID))
	return nil
}

// Comments lists an event's comments, oldest first.
func (s *Service) Comments(ctx context.Context, eventID int64) ([]model.Comment, error) {
	if err := s.eventExists(ctx, eventID); err != nil {
		return nil, err
	}
	var comments []model.Comment
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}
	return comments, nil
}

func (s *Service) eventExists(ctx context.Context, eventID int64) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.ActivityEvent{}).
		Where("id = ?", eventID).Count(&count).Error
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: event %d", apperr.ErrNotFound, eventID)
	}
	return nil
}
