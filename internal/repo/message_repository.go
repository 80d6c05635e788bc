package repo

import (
	"Promo/internal/db"
	"Promo/internal/model"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	ErrInvalidMessage   = errors.New("invalid message: message cannot be nil")
	ErrEmptyContent     = errors.New("invalid message: text or image is required")
	ErrInvalidID        = errors.New("invalid user ID")
	ErrOperationTimeout = errors.New("operation timeout exceeded")
)

const (
	// Timeouts
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	// Retry configuration
	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second
)

// Document field names of the messages collection
const (
	fieldID         = "_id"
	fieldSenderID   = "senderId"
	fieldReceiverID = "receiverId"
	fieldSeen       = "seen"
	fieldTimestamp  = "timestamp"
)

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

type MessageRepository interface {
	InsertMessage(ctx context.Context, msg *model.Message) (string, error)
	MarkSeen(ctx context.Context, senderID, receiverID string) (int64, error)
	FindBetween(ctx context.Context, userA, userB string) ([]model.Message, error)
	CountUnseen(ctx context.Context, receiverID string) (map[string]int64, error)
}

func NewMessageRepository(repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// -----------------------------------------------------------------------------
// InsertMessage
// -----------------------------------------------------------------------------

// InsertMessage persists msg exactly once. The ObjectID is fixed before the
// first attempt, so a duplicate key on a retry means an earlier attempt landed.
func (m *messageRepository) InsertMessage(ctx context.Context, msg *model.Message) (string, error) {
	if err := m.validateMessage(msg); err != nil {
		return "", err
	}

	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return "", err
			}
		}

		_, err := m.mongoRepo.Create(ctx, *msg)
		if err == nil || (attempt > 0 && mongo.IsDuplicateKeyError(err)) {
			m.logger.Info("message inserted successfully",
				zap.String("message_id", msg.ID.Hex()),
				zap.String("sender_id", msg.SenderID.Hex()),
				zap.String("receiver_id", msg.ReceiverID.Hex()),
				zap.Int("attempt", attempt+1),
			)
			return msg.ID.Hex(), nil
		}

		lastErr = err

		// Don't retry on context cancellation or non-retryable errors
		if !isRetryableError(err) {
			break
		}

		m.logger.Warn("insert attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	m.logger.Error("failed to insert message after all retries",
		zap.Error(lastErr),
		zap.String("sender_id", msg.SenderID.Hex()),
		zap.String("receiver_id", msg.ReceiverID.Hex()),
	)

	return "", fmt.Errorf("insert message failed: %w", lastErr)
}

// -----------------------------------------------------------------------------
// MarkSeen - flips every unseen sender->receiver message and reports the count
// -----------------------------------------------------------------------------
func (m *messageRepository) MarkSeen(ctx context.Context, senderID, receiverID string) (int64, error) {
	sender, err := ParseID(senderID)
	if err != nil {
		return 0, err
	}
	receiver, err := ParseID(receiverID)
	if err != nil {
		return 0, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq(fieldSenderID, sender).
		Eq(fieldReceiverID, receiver).
		Eq(fieldSeen, false).
		Build()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return 0, err
			}
		}

		result, err := m.mongoRepo.UpdateMany(ctx, filter, bson.M{fieldSeen: true})
		if err == nil {
			m.logger.Debug("messages marked as seen",
				zap.String("sender_id", senderID),
				zap.String("receiver_id", receiverID),
				zap.Int64("count", result.ModifiedCount),
			)
			return result.ModifiedCount, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	m.logger.Error("failed to mark messages as seen",
		zap.Error(lastErr),
		zap.String("sender_id", senderID),
		zap.String("receiver_id", receiverID),
	)
	return 0, fmt.Errorf("mark seen failed: %w", lastErr)
}

// -----------------------------------------------------------------------------
// FindBetween - both directions of a pair, oldest first
// -----------------------------------------------------------------------------
func (m *messageRepository) FindBetween(ctx context.Context, userA, userB string) ([]model.Message, error) {
	a, err := ParseID(userA)
	if err != nil {
		return nil, err
	}
	b, err := ParseID(userB)
	if err != nil {
		return nil, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().EitherWay(fieldSenderID, fieldReceiverID, a, b).Build()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
			m.logger.Warn("retrying history query",
				zap.String("user_a", userA),
				zap.String("user_b", userB),
				zap.Int("attempt", attempt+1),
			)
		}

		msgs, err := m.mongoRepo.FindAll(ctx, filter,
			db.SortField{Field: fieldTimestamp},
			db.SortField{Field: fieldID},
		)
		if err == nil {
			m.logger.Debug("history retrieved",
				zap.String("user_a", userA),
				zap.String("user_b", userB),
				zap.Int("count", len(msgs)),
			)
			return msgs, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	return nil, m.handleReadError(lastErr, userA)
}

type unseenGroup struct {
	SenderID primitive.ObjectID `bson:"_id"`
	Count    int64              `bson:"count"`
}

// -----------------------------------------------------------------------------
// CountUnseen - unseen messages addressed to receiverID, grouped by sender
// -----------------------------------------------------------------------------
func (m *messageRepository) CountUnseen(ctx context.Context, receiverID string) (map[string]int64, error) {
	receiver, err := ParseID(receiverID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{fieldReceiverID: receiver, fieldSeen: false}}},
		{{Key: "$group", Value: bson.M{"_id": "$" + fieldSenderID, "count": bson.M{"$sum": 1}}}},
	}

	groups, err := db.Aggregate[model.Message, unseenGroup](ctx, m.mongoRepo, pipeline)
	if err != nil {
		return nil, m.handleReadError(err, receiverID)
	}

	counts := make(map[string]int64, len(groups))
	for _, g := range groups {
		counts[g.SenderID.Hex()] = g.Count
	}
	return counts, nil
}

// -----------------------------------------------------------------------------
// Private Helper Methods
// -----------------------------------------------------------------------------

func (m *messageRepository) validateMessage(msg *model.Message) error {
	if msg == nil {
		return ErrInvalidMessage
	}
	if msg.SenderID.IsZero() || msg.ReceiverID.IsZero() {
		return ErrInvalidID
	}
	if strings.TrimSpace(msg.Text) == "" && strings.TrimSpace(msg.Image) == "" {
		return ErrEmptyContent
	}
	return nil
}

func (m *messageRepository) handleReadError(err error, userID string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		m.logger.Error("read timeout", zap.String("user_id", userID))
		return ErrOperationTimeout
	}

	if errors.Is(err, context.Canceled) {
		m.logger.Debug("read cancelled", zap.String("user_id", userID))
		return err
	}

	m.logger.Error("read failed", zap.Error(err), zap.String("user_id", userID))
	return fmt.Errorf("read messages failed: %w", err)
}

// ParseID converts a hex user id into an ObjectID.
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

func waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}
