package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JassinAlSafe/gamerfie-sub001/activity"
	"github.com/JassinAlSafe/gamerfie-sub001/apperr"
	"github.com/JassinAlSafe/gamerfie-sub001/model"
	"github.com/JassinAlSafe/gamerfie-sub001/notify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EntryPatch carries the fields a library update may change. Nil means
// "leave as is".
type EntryPatch struct {
	Status                *string `json:"status"`
	PlayTime              *int    `json:"play_time"`
	CompletionPercentage  *int    `json:"completion_percentage"`
	AchievementsCompleted *int    `json:"achievements_completed"`
	Notes                 *string `json:"notes"`
}

var validStatuses = map[string]bool{
	model.LibraryWantToPlay: true,
	model.LibraryPlaying:    true,
	model.LibraryCompleted:  true,
	model.LibraryDropped:    true,
}

// Service maintains library entries and their progress history, and drives
// the library → progress → activity write pipeline.
//
// Pipeline contract: the entry upsert and the progress append share one
// transaction (same store). The trailing activity record is a separate write;
// if it fails the library change stands and the record goes to the outbox for
// retry. Readers must tolerate a library change whose event has not landed
// yet — the two are never guaranteed to be observed together.
type Service struct {
	db       *gorm.DB
	events   *activity.Service
	outbox   *activity.Outbox
	notifier *notify.Notifier
	logger   *zap.Logger
}

// NewService creates a library Service. outbox may be nil; failed activity
// records are then dropped (gap covered by the eventual-consistency contract).
func NewService(db *gorm.DB, events *activity.Service, outbox *activity.Outbox, notifier *notify.Notifier, logger *zap.Logger) *Service {
	return &Service{db: db, events: events, outbox: outbox, notifier: notifier, logger: logger}
}

// UpdateEntry applies patch to the (userID, gameID) entry, creating it if
// absent, appends a progress point, and records an activity event.
func (s *Service) UpdateEntry(ctx context.Context, userID, gameID int64, patch EntryPatch) (*model.LibraryEntry, error) {
	if patch.Status != nil && !validStatuses[*patch.Status] {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, *patch.Status)
	}
	if patch.CompletionPercentage != nil && (*patch.CompletionPercentage < 0 || *patch.CompletionPercentage > 100) {
		return nil, fmt.Errorf("%w: completion_percentage out of range", apperr.ErrValidation)
	}
	if patch.PlayTime != nil && *patch.PlayTime < 0 {
		return nil, fmt.Errorf("%w: play_time must be non-negative", apperr.ErrValidation)
	}

	var game model.Game
	if err := s.db.WithContext(ctx).First(&game, gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: game %d", apperr.ErrNotFound, gameID)
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}

	var entry model.LibraryEntry
	statusChanged := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND game_id = ?", userID, gameID).First(&entry).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry = model.LibraryEntry{
				UserID: userID,
				GameID: gameID,
				Status: model.LibraryWantToPlay,
			}
			statusChanged = true
		case err != nil:
			return err
		}

		prevStatus := entry.Status
		applyPatch(&entry, patch)
		if entry.Status != prevStatus {
			statusChanged = true
		}
		now := time.Now()
		entry.LastPlayedAt = &now

		if err := tx.Save(&entry).Error; err != nil {
			return err
		}
		// Progress history is append-only and lives in the same store, so it
		// rides the entry's transaction.
		return tx.Create(&model.ProgressPoint{
			UserID:               userID,
			GameID:               gameID,
			PlayTime:             entry.PlayTime,
			CompletionPercentage: entry.CompletionPercentage,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}

	s.notifier.Upsert(ctx, "library_entry", &entry, notify.LibraryChannel(userID, gameID))
	s.notifier.Upsert(ctx, "progress_point", &model.ProgressPoint{
		UserID:               userID,
		GameID:               gameID,
		PlayTime:             entry.PlayTime,
		CompletionPercentage: entry.CompletionPercentage,
	}, notify.ProgressChannel(userID, gameID))

	s.recordActivity(ctx, userID, gameID, &entry, statusChanged)
	return &entry, nil
}

// recordActivity issues the trailing activity write. Always sequenced after
// the library write so the inverse gap (event without library change) cannot
// occur.
func (s *Service) recordActivity(ctx context.Context, userID, gameID int64, entry *model.LibraryEntry, statusChanged bool) {
	eventType := model.ActivityProgress
	payload := map[string]interface{}{
		"play_time":             entry.PlayTime,
		"completion_percentage": entry.CompletionPercentage,
	}
	if statusChanged {
		eventType = model.ActivityStatusChanged
		payload["status"] = entry.Status
		if entry.Status == model.LibraryCompleted {
			eventType = model.ActivityGameCompleted
			payload["status"] = model.LibraryCompleted
		}
	}

	subject := activity.Subject{GameID: &gameID}
	if _, err := s.events.Record(ctx, userID, eventType, subject, payload, true); err != nil {
		s.logger.Warn("trailing activity record failed, enqueueing to outbox",
			zap.Int64("user_id", userID),
			zap.Int64("game_id", gameID),
			zap.String("type", eventType),
			zap.Error(err))
		if s.outbox != nil {
			s.outbox.Enqueue(&activity.PendingRecord{
				ActorID:  userID,
				Type:     eventType,
				Subject:  subject,
				Payload:  payload,
				IsPublic: true,
			})
		}
	}
}

func applyPatch(entry *model.LibraryEntry, patch EntryPatch) {
	if patch.Status != nil {
		entry.Status = *patch.Status
	}
	if patch.PlayTime != nil {
		entry.PlayTime = *patch.PlayTime
	}
	if patch.CompletionPercentage != nil {
		entry.CompletionPercentage = *patch.CompletionPercentage
	}
	if patch.AchievementsCompleted != nil {
		entry.AchievementsCompleted = *patch.AchievementsCompleted
	}
	if patch.Notes != nil {
		entry.Notes = *patch.Notes
	}
}

// Entry returns the (userID, gameID) library row.
func (s *Service) Entry(ctx context.Context, userID, gameID int64) (*model.LibraryEntry, error) {
	var entry model.LibraryEntry
	err := s.db.WithContext(ctx).Where("user_id = ? AND game_id = ?", userID, gameID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no library entry for game %d", apperr.ErrNotFound, gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}
	return &entry, nil
}

// List returns all of a user's library rows, most recently updated first.
func (s *Service) List(ctx context.Context, userID int64) ([]model.LibraryEntry, error) {
	var entries []model.LibraryEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}
	return entries, nil
}

// History returns the progress timeline for (userID, gameID), oldest first,
// as chart rendering expects.
func (s *Service) History(ctx context.Context, userID, gameID int64) ([]model.ProgressPoint, error) {
	var points []model.ProgressPoint
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		Order("created_at ASC, id ASC").
		Find(&points).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}
	return points, nil
}
