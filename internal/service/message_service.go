package service

import (
	"Promo/internal/model"
	"Promo/internal/repo"
	"context"
	"fmt"

	"go.uber.org/zap"
)

type MessageService interface {
	// History returns every message between the two users, oldest first,
	// enriched with both display projections.
	History(ctx context.Context, userID, otherUserID string) ([]model.MessageView, error)
	// UnseenCounts returns, per sender, how many messages userID has not seen.
	UnseenCounts(ctx context.Context, userID string) (map[string]int64, error)
}

type messageService struct {
	messageRepo repo.MessageRepository
	userRepo    repo.UserRepository
	logger      *zap.Logger
}

func NewMessageService(messageRepo repo.MessageRepository, userRepo repo.UserRepository, logger *zap.Logger) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		logger:      logger,
	}
}

func (s *messageService) History(ctx context.Context, userID, otherUserID string) ([]model.MessageView, error) {
	msgs, err := s.messageRepo.FindBetween(ctx, userID, otherUserID)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	profiles, err := s.userRepo.GetProfiles(ctx, userID, otherUserID)
	if err != nil {
		// render with bare ids rather than fail the whole conversation
		s.logger.Warn("history enrichment failed", zap.Error(err))
		profiles = nil
	}

	views := make([]model.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, model.NewMessageView(m, profiles))
	}
	return views, nil
}

func (s *messageService) UnseenCounts(ctx context.Context, userID string) (map[string]int64, error) {
	counts, err := s.messageRepo.CountUnseen(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("unseen counts: %w", err)
	}
	return counts, nil
}
