package mongodb

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.pilab.hu/toolbridge/domain"
	"go.pilab.hu/toolbridge/errors"
)

// AuthConfigRepositoryMongo implements domain.AuthConfigRepository. A unique
// index on (org_id, tool_id) enforces the one-config-per-pair invariant.
type AuthConfigRepositoryMongo struct {
	collection *mongo.Collection
}

// NewAuthConfigRepository creates the repository and ensures its indexes.
func NewAuthConfigRepository(ctx context.Context, db *mongo.Database) (*AuthConfigRepositoryMongo, error) {
	repo := &AuthConfigRepositoryMongo{collection: db.Collection(AuthConfigsCollection)}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "org_id", Value: 1}, {Key: "tool_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if _, err := repo.collection.Indexes().CreateMany(timeoutCtx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for tool_auth_configs collection (might already exist)")
	}
	return repo, nil
}

func (r *AuthConfigRepositoryMongo) GetAuthConfig(ctx context.Context, orgID, toolID string) (*domain.OrgAuthConfig, error) {
	var cfg domain.OrgAuthConfig
	err := r.collection.FindOne(ctx, bson.M{"org_id": orgID, "tool_id": toolID}).Decode(&cfg)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.NewNotFound("auth config not found for tool " + toolID)
		}
		log.Error().Err(err).Str("orgID", orgID).Str("toolID", toolID).Msg("Error retrieving auth config from MongoDB")
		return nil, err
	}
	return &cfg, nil
}

// UpsertAuthConfig replaces the config for its (org, tool) pair, preserving
// the original ID and CreatedAt when a row already exists.
func (r *AuthConfigRepositoryMongo) UpsertAuthConfig(ctx context.Context, cfg *domain.OrgAuthConfig) error {
	now := time.Now().UTC()
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	filter := bson.M{"org_id": cfg.OrgID, "tool_id": cfg.ToolID}
	update := bson.M{
		"$set": bson.M{
			"type":       cfg.Type,
			"config":     cfg.Config,
			"updated_at": cfg.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":        cfg.ID,
			"org_id":     cfg.OrgID,
			"tool_id":    cfg.ToolID,
			"created_at": cfg.CreatedAt,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		log.Error().Err(err).Str("orgID", cfg.OrgID).Str("toolID", cfg.ToolID).Msg("Error upserting auth config in MongoDB")
		return err
	}
	return nil
}

func (r *AuthConfigRepositoryMongo) DeleteAuthConfig(ctx context.Context, orgID, toolID string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"org_id": orgID, "tool_id": toolID})
	if err != nil {
		log.Error().Err(err).Str("orgID", orgID).Str("toolID", toolID).Msg("Error deleting auth config from MongoDB")
		return err
	}
	if res.DeletedCount == 0 {
		return errors.NewNotFound("auth config not found for tool " + toolID)
	}
	return nil
}

var _ domain.AuthConfigRepository = (*AuthConfigRepositoryMongo)(nil)
