package social

import (
	"context"
	"errors"
	"fmt"

	"github.com/JassinAlSafe/gamerfie-sub001/apperr"
	"github.com/JassinAlSafe/gamerfie-sub001/model"
	"github.com/JassinAlSafe/gamerfie-sub001/notify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FriendInfo is one friend-list row: the edge plus the counterpart's profile.
type FriendInfo struct {
	EdgeID    int64  `json:"edge_id"`
	Status    string `json:"status"`
	Requested bool   `json:"requested"` // true if the listed user sent the request
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// Service is the friend edge store. All coordination is via the store's
// row constraints; the service itself is stateless.
type Service struct {
	db       *gorm.DB
	notifier *notify.Notifier
	logger   *zap.Logger
}

// NewService creates a friend edge Service.
func NewService(db *gorm.DB, notifier *notify.Notifier, logger *zap.Logger) *Service {
	return &Service{db: db, notifier: notifier, logger: logger}
}

// Request creates a pending edge from requester to recipient.
// Fails with DuplicateEdge if any edge exists between the pair in either
// direction. The OR check is best-effort against concurrent requests; the
// unique (pair_low, pair_high) index is the authoritative fallback.
func (s *Service) Request(ctx context.Context, requesterID, recipientID int64) (*model.FriendEdge, error) {
	if requesterID == recipientID {
		return nil, fmt.Errorf("%w: cannot friend yourself", apperr.ErrValidation)
	}

	var recipient model.User
	if err := s.db.WithContext(ctx).First(&recipient, recipientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, recipientID)
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&model.FriendEdge{}).
		Where("(requester_id = ? AND recipient_id = ?) OR (requester_id = ? AND recipient_id = ?)",
			requesterID, recipientID, recipientID, requesterID).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}
	if count > 0 {
		return nil, apperr.ErrDuplicateEdge
	}

	low, high := requesterID, recipientID
	if low > high {
		low, high = high, low
	}
	edge := &model.FriendEdge{
		RequesterID: requesterID,
		RecipientID: recipientID,
		PairLow:     low,
		PairHigh:    high,
		Status:      model.FriendPending,
	}
	if err := s.db.WithContext(ctx).Create(edge).Error; err != nil {
		if apperr.UniqueViolation(err) {
			// Lost the race against a concurrent request for the same pair.
			return nil, apperr.ErrDuplicateEdge
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}

	s.notifier.Upsert(ctx, "friend_edge", edge, notify.FeedChannel(recipientID))
	return edge, nil
}

// Respond transitions a pending edge to accepted or declined. Only the
// recipient may respond. Declined edges are terminal: they block new requests
// between the pair until one side removes the edge.
func (s *Service) Respond(ctx context.Context, userID, edgeID int64, status string) (*model.FriendEdge, error) {
	if status != model.FriendAccepted && status != model.FriendDeclined {
		return nil, fmt.Errorf("%w: status must be accepted or declined", apperr.ErrValidation)
	}

	var edge model.FriendEdge
	if err := s.db.WithContext(ctx).First(&edge, edgeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: edge %d", apperr.ErrNotFound, edgeID)
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}
	if edge.RecipientID != userID {
		return nil, fmt.Errorf("%w: only the recipient may respond", apperr.ErrForbidden)
	}
	if edge.Status != model.FriendPending {
		return nil, fmt.Errorf("%w: edge %d already %s", apperr.ErrNotFound, edgeID, edge.Status)
	}

	edge.Status = status
	if err := s.db.WithContext(ctx).Model(&edge).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}

	s.notifier.Upsert(ctx, "friend_edge", &edge,
		notify.FeedChannel(edge.RequesterID), notify.FeedChannel(edge.RecipientID))
	return &edge, nil
}

// Remove deletes an edge. Either party may remove it, regardless of status:
// unfriending an accepted edge, withdrawing a pending request, or clearing a
// declined edge to allow a fresh request.
func (s *Service) Remove(ctx context.Context, userID, edgeID int64) error {
	var edge model.FriendEdge
	if err := s.db.WithContext(ctx).First(&edge, edgeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: edge %d", apperr.ErrNotFound, edgeID)
		}
		return fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}
	if !edge.Touches(userID) {
		return fmt.Errorf("%w: not a party to edge %d", apperr.ErrForbidden, edgeID)
	}
	if err := s.db.WithContext(ctx).Delete(&model.FriendEdge{}, edgeID).Error; err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}
	s.notifier.Delete(ctx, "friend_edge", &edge,
		notify.FeedChannel(edge.RequesterID), notify.FeedChannel(edge.RecipientID))
	return nil
}

// ListFriends returns edges touching userID, with the counterpart profile
// resolved via one batch IN lookup instead of a per-row join. statusFilter
// narrows by edge status; empty means all.
func (s *Service) ListFriends(ctx context.Context, userID int64, statusFilter string) ([]FriendInfo, error) {
	q := s.db.WithContext(ctx).
		Where("requester_id = ? OR recipient_id = ?", userID, userID)
	if statusFilter != "" {
		q = q.Where("status = ?", statusFilter)
	}

	var edges []model.FriendEdge
	if err := q.Order("created_at DESC").Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}
	if len(edges) == 0 {
		return []FriendInfo{}, nil
	}

	counterpartIDs := make([]int64, 0, len(edges))
	for _, e := range edges {
		counterpartIDs = append(counterpartIDs, e.CounterpartID(userID))
	}

	var users []model.User
	if err := s.db.WithContext(ctx).Where("id IN ?", counterpartIDs).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}
	byID := make(map[int64]*model.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	result := make([]FriendInfo, 0, len(edges))
	for _, e := range edges {
		info := FriendInfo{
			EdgeID:    e.ID,
			Status:    e.Status,
			Requested: e.RequesterID == userID,
			UserID:    e.CounterpartID(userID),
		}
		if u, ok := byID[info.UserID]; ok {
			info.Username = u.Username
			info.AvatarURL = u.AvatarURL
		}
		result = append(result, info)
	}
	return result, nil
}

// AcceptedFriendIDs returns the IDs of all users with an accepted edge to
// userID. Used by the feed composer's visibility resolve.
func (s *Service) AcceptedFriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	var edges []model.FriendEdge
	err := s.db.WithContext(ctx).
		Where("(requester_id = ? OR recipient_id = ?) AND status = ?",
			userID, userID, model.FriendAccepted).
		Find(&edges).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransientStore, err)
	}
	ids := make([]int64, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.CounterpartID(userID))
	}
	return ids, nil
}
