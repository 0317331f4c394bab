package model

import (
	"time"

	"gorm.io/datatypes"
)

// Activity event types.
const (
	ActivityStatusChanged  = "status_changed"
	ActivityProgress       = "progress"
	ActivityAchievement    = "achievement"
	ActivityReview         = "review"
	ActivityGameCompleted  = "game_completed"
	ActivityFriendAccepted = "friend_accepted"
)

// ActivityEvent is an immutable record of a user action. Rows are only ever
// inserted; the feed is composed from them at read time.
type ActivityEvent struct {
	ID              int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorID         int64          `gorm:"index:idx_activity_actor,priority:1;not null" json:"actor_id"`
	Type            string         `gorm:"size:32;not null" json:"type"`
	SubjectGameID   *int64         `gorm:"index:idx_activity_game" json:"subject_game_id"`
	SubjectFriendID *int64         `json:"subject_friend_id"`
	Payload         datatypes.JSON `json:"payload"`
	IsPublic        bool           `gorm:"default:true;not null" json:"is_public"`
	CreatedAt       time.Time      `gorm:"index:idx_activity_actor,priority:2;autoCreateTime:milli" json:"created_at"`
}
