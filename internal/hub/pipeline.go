package hub

import (
	"Promo/internal/event"
	"Promo/internal/model"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	ErrInvalidIdentity = errors.New("invalid user identity")
	ErrEmptyContent    = errors.New("message needs text or an image")
	ErrSenderMismatch  = errors.New("sender does not match session")
	ErrNotRegistered   = errors.New("connection has no registered session")
	ErrPersistence     = errors.New("message could not be stored")
)

// Delivery error codes sent to clients
const (
	CodeInvalidPayload    = "invalid_payload"
	CodeInvalidIdentity   = "invalid_identity"
	CodeEmptyContent      = "empty_content"
	CodeSenderMismatch    = "sender_mismatch"
	CodePersistenceFailed = "persistence_failed"
)

// MessageStore is the durable message store the pipeline and the seen
// reconciler write to.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg *model.Message) (string, error)
	MarkSeen(ctx context.Context, senderID, receiverID string) (int64, error)
}

// ProfileReader resolves display projections for enrichment.
type ProfileReader interface {
	GetProfiles(ctx context.Context, ids ...string) (map[string]model.UserProjection, error)
}

// DeliveryError is a send failure reported back to the originating connection.
type DeliveryError struct {
	Code         string
	ClientTempID string
	Err          error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

func (e *DeliveryError) Payload() model.ErrorPayload {
	return model.ErrorPayload{
		Code:         e.Code,
		Reason:       e.Err.Error(),
		ClientTempID: e.ClientTempID,
	}
}

// IsValidIdentity reports whether id is a well-formed user identity.
func IsValidIdentity(id string) bool {
	return primitive.IsValidObjectID(id)
}

// Pipeline validates, persists and fans out chat messages.
type Pipeline struct {
	store       MessageStore
	profiles    ProfileReader
	presence    *Registry
	sendTimeout time.Duration
	pushTimeout time.Duration
	logger      *zap.Logger
	now         func() time.Time
	sent        *sentIndex
}

func NewPipeline(store MessageStore, profiles ProfileReader, presence *Registry, opts Options, logger *zap.Logger) *Pipeline {
	opts = opts.withDefaults()
	return &Pipeline{
		store:       store,
		profiles:    profiles,
		presence:    presence,
		sendTimeout: opts.SendTimeout,
		pushTimeout: opts.PushTimeout,
		logger:      logger,
		now:         time.Now,
		sent:        newSentIndex(defaultDedupeSize),
	}
}

// Deliver handles one send request from origin. Validation happens before any
// store write. On success the message is persisted first, then pushed to the
// receiver if reachable, and a send-confirmed always goes back to origin.
func (p *Pipeline) Deliver(ctx context.Context, origin *Client, req model.SendMessage) (*model.MessageView, error) {
	msg, derr := p.validate(req)
	if derr != nil {
		p.logger.Info("send rejected",
			zap.String("sender_id", req.SenderID),
			zap.String("receiver_id", req.ReceiverID),
			zap.String("code", derr.Code),
		)
		emitError(p.logger, origin, derr, p.sendTimeout)
		return nil, derr
	}

	// a resend of a stored message (its confirmation was lost) is confirmed
	// again under the original id and never stored twice
	if view, ok := p.sent.lookup(req.SenderID, req.ClientTempID); ok {
		p.logger.Info("duplicate send confirmed again",
			zap.String("message_id", view.ID),
			zap.String("client_temp_id", req.ClientTempID),
		)
		p.confirm(origin, req.ClientTempID, view)
		return &view, nil
	}

	if _, err := p.store.InsertMessage(ctx, msg); err != nil {
		derr := &DeliveryError{
			Code:         CodePersistenceFailed,
			ClientTempID: req.ClientTempID,
			Err:          fmt.Errorf("%w: %v", ErrPersistence, err),
		}
		emitError(p.logger, origin, derr, p.sendTimeout)
		return nil, derr
	}

	view := p.enrich(ctx, *msg)
	p.sent.record(req.SenderID, req.ClientTempID, view)

	if receiver, ok := p.presence.Lookup(req.ReceiverID); ok {
		p.push(receiver, event.EventMessageDelivered, view, p.pushTimeout)
	} else {
		p.logger.Debug("receiver offline, message kept for history",
			zap.String("message_id", view.ID),
			zap.String("receiver_id", req.ReceiverID),
		)
	}

	p.confirm(origin, req.ClientTempID, view)
	return &view, nil
}

func (p *Pipeline) confirm(origin *Client, clientTempID string, view model.MessageView) bool {
	return p.push(origin, event.EventSendConfirmed, model.SendConfirmed{
		ServerID:     view.ID,
		ClientTempID: clientTempID,
		Timestamp:    view.Timestamp,
		Seen:         view.Seen,
		Message:      view,
	}, p.sendTimeout)
}

func (p *Pipeline) validate(req model.SendMessage) (*model.Message, *DeliveryError) {
	if !IsValidIdentity(req.SenderID) || !IsValidIdentity(req.ReceiverID) {
		return nil, &DeliveryError{
			Code:         CodeInvalidIdentity,
			ClientTempID: req.ClientTempID,
			Err:          ErrInvalidIdentity,
		}
	}
	if strings.TrimSpace(req.Text) == "" && strings.TrimSpace(req.ImageURL) == "" {
		return nil, &DeliveryError{
			Code:         CodeEmptyContent,
			ClientTempID: req.ClientTempID,
			Err:          ErrEmptyContent,
		}
	}

	sender, _ := primitive.ObjectIDFromHex(req.SenderID)
	receiver, _ := primitive.ObjectIDFromHex(req.ReceiverID)

	return &model.Message{
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       req.Text,
		Image:      req.ImageURL,
		Seen:       false,
		// the store keeps millisecond precision
		Timestamp: p.now().UTC().Truncate(time.Millisecond),
	}, nil
}

// enrich joins the sender and receiver projections. A failed lookup degrades
// to bare ids; the message is already stored at this point.
func (p *Pipeline) enrich(ctx context.Context, msg model.Message) model.MessageView {
	profiles, err := p.profiles.GetProfiles(ctx, msg.SenderID.Hex(), msg.ReceiverID.Hex())
	if err != nil {
		p.logger.Warn("profile enrichment failed",
			zap.String("message_id", msg.ID.Hex()),
			zap.Error(err),
		)
	}
	return model.NewMessageView(msg, profiles)
}

func (p *Pipeline) push(c *Client, name string, payload any, timeout time.Duration) bool {
	ev, err := event.New(name, payload)
	if err != nil {
		p.logger.Error("failed to encode event", zap.String("event", name), zap.Error(err))
		return false
	}
	if !c.SafeSend(ev, timeout) {
		// dead or slow connection: the client catches up from history
		p.logger.Warn("live push dropped",
			zap.String("event", name),
			zap.String("client_id", c.ID),
		)
		return false
	}
	return true
}

func emitError(logger *zap.Logger, c *Client, derr *DeliveryError, timeout time.Duration) {
	ev, err := event.New(event.EventDeliveryError, derr.Payload())
	if err != nil {
		logger.Error("failed to encode delivery error", zap.Error(err))
		return
	}
	if !c.SafeSend(ev, timeout) {
		logger.Warn("delivery error not sent",
			zap.String("client_id", c.ID),
			zap.String("code", derr.Code),
		)
	}
}
