package model

import "time"

// FriendEdge statuses.
const (
	FriendPending  = "pending"
	FriendAccepted = "accepted"
	FriendDeclined = "declined"
)

// FriendEdge is a directed friend-relationship record (requester → recipient).
// At most one edge may exist per unordered user pair; PairLow/PairHigh hold the
// pair in canonical order so the unique index catches concurrent duplicate
// requests that slip past the application-level check.
type FriendEdge struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RequesterID int64     `gorm:"index:idx_edge_requester;not null" json:"requester_id"`
	RecipientID int64     `gorm:"index:idx_edge_recipient;not null" json:"recipient_id"`
	PairLow     int64     `gorm:"uniqueIndex:idx_edge_pair;not null" json:"-"`
	PairHigh    int64     `gorm:"uniqueIndex:idx_edge_pair;not null" json:"-"`
	Status      string    `gorm:"size:16;default:pending;not null" json:"status"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// CounterpartID returns the other side of the edge relative to userID.
func (e *FriendEdge) CounterpartID(userID int64) int64 {
	if e.RequesterID == userID {
		return e.RecipientID
	}
	return e.RequesterID
}

// Touches reports whether userID is on either side of the edge.
func (e *FriendEdge) Touches(userID int64) bool {
	return e.RequesterID == userID || e.RecipientID == userID
}
