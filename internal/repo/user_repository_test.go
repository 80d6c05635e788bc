package repo

import (
	"Promo/internal/db"
	"Promo/internal/model"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"
)

func TestUserRepository_GetProfiles(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	mt.Run("maps found users to projections", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: alice},
				{Key: "name", Value: "Alice"},
				{Key: "role", Value: model.RoleBusiness},
				{Key: "profilePicture", Value: "https://cdn.example/alice.png"},
			},
		))

		r := NewUserRepository(db.NewRepository[model.User](mt.DB, "users"), zap.NewNop())
		profiles, err := r.GetProfiles(context.Background(), alice.Hex(), bob.Hex(), alice.Hex())
		require.NoError(mt, err)

		assert.Equal(mt, model.UserProjection{
			ID:     alice.Hex(),
			Name:   "Alice",
			Avatar: "https://cdn.example/alice.png",
		}, profiles[alice.Hex()])
		_, ok := profiles[bob.Hex()]
		assert.False(mt, ok)
	})

	mt.Run("no ids skips the query", func(mt *mtest.T) {
		r := NewUserRepository(db.NewRepository[model.User](mt.DB, "users"), zap.NewNop())
		profiles, err := r.GetProfiles(context.Background())
		require.NoError(mt, err)
		assert.Empty(mt, profiles)
	})

	mt.Run("invalid id", func(mt *mtest.T) {
		r := NewUserRepository(db.NewRepository[model.User](mt.DB, "users"), zap.NewNop())
		_, err := r.GetProfiles(context.Background(), "xyz")
		assert.ErrorIs(mt, err, ErrInvalidID)
	})
}
