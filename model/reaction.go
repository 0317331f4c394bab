package model

import "time"

// Reaction is one user's reaction of a given kind on an event.
// The composite unique index is the server-side idempotence guarantee:
// a second insert for the same (event,user,kind) fails at the store.
type Reaction struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID   int64     `gorm:"uniqueIndex:idx_reaction_key;not null" json:"event_id"`
	UserID    int64     `gorm:"uniqueIndex:idx_reaction_key;not null" json:"user_id"`
	Kind      string    `gorm:"uniqueIndex:idx_reaction_key;size:16;not null" json:"kind"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
