package repo

import (
	"Promo/internal/db"
	"Promo/internal/model"
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type UserRepository interface {
	// GetProfiles returns the display projection of every known id. Unknown
	// ids are simply absent from the result.
	GetProfiles(ctx context.Context, ids ...string) (map[string]model.UserProjection, error)
}

type userRepository struct {
	mongoRepo *db.Repository[model.User]
	logger    *zap.Logger
}

func NewUserRepository(repo *db.Repository[model.User], logger *zap.Logger) UserRepository {
	return &userRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *userRepository) GetProfiles(ctx context.Context, ids ...string) (map[string]model.UserProjection, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		oid, err := ParseID(id)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[oid]; dup {
			continue
		}
		seen[oid] = struct{}{}
		oids = append(oids, oid)
	}

	profiles := make(map[string]model.UserProjection, len(oids))
	if len(oids) == 0 {
		return profiles, nil
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	users, err := r.mongoRepo.FindAll(ctx, db.NewFilter().In(fieldID, oids).Build())
	if err != nil {
		r.logger.Error("failed to load user profiles", zap.Error(err), zap.Int("ids", len(oids)))
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	for _, u := range users {
		profiles[u.ID.Hex()] = u.Projection()
	}
	return profiles, nil
}
