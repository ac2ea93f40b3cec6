package mongodb

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.pilab.hu/toolbridge/domain"
	"go.pilab.hu/toolbridge/errors"
)

// ActionRepositoryMongo implements domain.ActionRepository.
type ActionRepositoryMongo struct {
	collection *mongo.Collection
}

// NewActionRepository creates the repository and ensures its indexes.
func NewActionRepository(ctx context.Context, db *mongo.Database) (*ActionRepositoryMongo, error) {
	repo := &ActionRepositoryMongo{collection: db.Collection(ActionsCollection)}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "org_id", Value: 1}, {Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if _, err := repo.collection.Indexes().CreateMany(timeoutCtx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for actions collection (might already exist)")
	}
	return repo, nil
}

func (r *ActionRepositoryMongo) GetActionByKey(ctx context.Context, orgID, key string) (*domain.ActionDefinition, error) {
	var action domain.ActionDefinition
	err := r.collection.FindOne(ctx, bson.M{"org_id": orgID, "key": key}).Decode(&action)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.NewNotFound("action not found: " + key)
		}
		log.Error().Err(err).Str("orgID", orgID).Str("actionKey", key).Msg("Error retrieving action from MongoDB")
		return nil, err
	}
	return &action, nil
}

var _ domain.ActionRepository = (*ActionRepositoryMongo)(nil)
