package model

import "time"

// Library entry statuses.
const (
	LibraryWantToPlay = "want_to_play"
	LibraryPlaying    = "playing"
	LibraryCompleted  = "completed"
	LibraryDropped    = "dropped"
)

// LibraryEntry is one user's state for one game. One row per (user, game);
// concurrent updates are last-write-wins at the row level.
type LibraryEntry struct {
	ID                    int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID                int64      `gorm:"uniqueIndex:idx_library_key;not null" json:"user_id"`
	GameID                int64      `gorm:"uniqueIndex:idx_library_key;not null" json:"game_id"`
	Status                string     `gorm:"size:16;not null" json:"status"`
	PlayTime              int        `gorm:"default:0" json:"play_time"` // minutes
	CompletionPercentage  int        `gorm:"default:0" json:"completion_percentage"`
	AchievementsCompleted int        `gorm:"default:0" json:"achievements_completed"`
	LastPlayedAt          *time.Time `json:"last_played_at"`
	Notes                 string     `gorm:"size:2000" json:"notes"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProgressPoint is an append-only snapshot of playtime/completion used to
// render trend charts. Never updated or deleted.
type ProgressPoint struct {
	ID                   int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID               int64     `gorm:"index:idx_progress_key,priority:1;not null" json:"user_id"`
	GameID               int64     `gorm:"index:idx_progress_key,priority:2;not null" json:"game_id"`
	PlayTime             int       `json:"play_time"`
	CompletionPercentage int       `json:"completion_percentage"`
	CreatedAt            time.Time `gorm:"autoCreateTime:milli" json:"created_at"`
}
