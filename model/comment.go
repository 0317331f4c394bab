package model

import "time"

// Comment is an append-only comment on an activity event.
// Deletable by its author only.
type Comment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID   int64     `gorm:"index:idx_comment_event;not null" json:"event_id"`
	UserID    int64     `gorm:"not null" json:"user_id"`
	Content   string    `gorm:"size:5000;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
