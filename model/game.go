package model

import "time"

// Game is a catalog entry that library rows and activity events reference.
type Game struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"size:200;not null;index" json:"name"`
	CoverURL    string    `gorm:"size:256" json:"cover_url"`
	ReleaseYear int       `json:"release_year"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
