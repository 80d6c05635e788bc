package hub

import (
	"Promo/internal/event"
	"Promo/internal/model"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SeenReconciler flips unseen messages to seen for a sender->viewer pair and
// tells the original sender.
type SeenReconciler struct {
	store       MessageStore
	presence    *Registry
	pushTimeout time.Duration
	logger      *zap.Logger
}

func NewSeenReconciler(store MessageStore, presence *Registry, opts Options, logger *zap.Logger) *SeenReconciler {
	opts = opts.withDefaults()
	return &SeenReconciler{
		store:       store,
		presence:    presence,
		pushTimeout: opts.PushTimeout,
		logger:      logger,
	}
}

// Reconcile records that viewerID has seen every message otherPartyID sent
// them. It returns the number of messages flipped; zero emits nothing.
func (s *SeenReconciler) Reconcile(ctx context.Context, viewerID, otherPartyID string) (int64, error) {
	if !IsValidIdentity(viewerID) || !IsValidIdentity(otherPartyID) {
		return 0, ErrInvalidIdentity
	}

	count, err := s.store.MarkSeen(ctx, otherPartyID, viewerID)
	if err != nil {
		return 0, fmt.Errorf("mark seen: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	s.logger.Info("messages marked as seen",
		zap.String("viewer_id", viewerID),
		zap.String("sender_id", otherPartyID),
		zap.Int64("count", count),
	)

	sender, ok := s.presence.Lookup(otherPartyID)
	if !ok {
		return count, nil
	}

	ev, err := event.New(event.EventSeenUpdate, model.SeenUpdate{ViewerID: viewerID, Count: count})
	if err != nil {
		return count, err
	}
	if !sender.SafeSend(ev, s.pushTimeout) {
		s.logger.Warn("seen update dropped",
			zap.String("sender_id", otherPartyID),
			zap.String("client_id", sender.ID),
		)
	}
	return count, nil
}
