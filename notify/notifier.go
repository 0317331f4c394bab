package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JassinAlSafe/gamerfie-sub001/cache"
	"go.uber.org/zap"
)

// Change ops.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// Change is a row-level change notification. Clients re-fetch or merge the
// carried row by primary key; they never apply it as a blind append.
type Change struct {
	Resource string          `json:"resource"` // activity_event | reaction | comment | library_entry | progress_point | friend_edge
	Op       string          `json:"op"`
	Row      json.RawMessage `json:"row"`
}

// Channel name builders. A channel is the predicate scope a client can
// subscribe to.
func FeedChannel(userID int64) string            { return fmt.Sprintf("feed:%d", userID) }
func LibraryChannel(userID, gameID int64) string { return fmt.Sprintf("library:%d:%d", userID, gameID) }
func ProgressChannel(userID, gameID int64) string {
	return fmt.Sprintf("progress:%d:%d", userID, gameID)
}
func EventChannel(eventID int64) string { return fmt.Sprintf("event:%d", eventID) }

// Notifier publishes row-change notifications on scoped pub/sub channels.
// Delivery is best-effort: a dropped notification is recovered by the next
// full fetch, so publish errors are logged and swallowed.
type Notifier struct {
	pubsub cache.PubSub
	logger *zap.Logger
}

// New creates a Notifier.
func New(pubsub cache.PubSub, logger *zap.Logger) *Notifier {
	return &Notifier{pubsub: pubsub, logger: logger}
}

// Publish marshals the change and publishes it to every channel.
func (n *Notifier) Publish(ctx context.Context, change Change, channels ...string) {
	data, err := json.Marshal(change)
	if err != nil {
		n.logger.Error("notify marshal failed", zap.Error(err))
		return
	}
	for _, ch := range channels {
		if err := n.pubsub.Publish(ctx, ch, string(data)); err != nil {
			n.logger.Warn("notify publish failed",
				zap.String("channel", ch),
				zap.Error(err))
		}
	}
}

// Upsert publishes an upsert change for row on the given channels.
func (n *Notifier) Upsert(ctx context.Context, resource string, row interface{}, channels ...string) {
	n.publishRow(ctx, resource, OpUpsert, row, channels)
}

// Delete publishes a delete change for row on the given channels.
func (n *Notifier) Delete(ctx context.Context, resource string, row interface{}, channels ...string) {
	n.publishRow(ctx, resource, OpDelete, row, channels)
}

func (n *Notifier) publishRow(ctx context.Context, resource, op string, row interface{}, channels []string) {
	raw, err := json.Marshal(row)
	if err != nil {
		n.logger.Error("notify row marshal failed",
			zap.String("resource", resource),
			zap.Error(err))
		return
	}
	n.Publish(ctx, Change{Resource: resource, Op: op, Row: raw}, channels...)
}
