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

// CredentialRepositoryMongo implements domain.CredentialRepository. A unique
// index on (org_id, user_id, tool_id) enforces one credential per triple.
type CredentialRepositoryMongo struct {
	collection *mongo.Collection
}

// NewCredentialRepository creates the repository and ensures its indexes.
func NewCredentialRepository(ctx context.Context, db *mongo.Database) (*CredentialRepositoryMongo, error) {
	repo := &CredentialRepositoryMongo{collection: db.Collection(CredentialsCollection)}

	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "org_id", Value: 1},
				{Key: "user_id", Value: 1},
				{Key: "tool_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if _, err := repo.collection.Indexes().CreateMany(timeoutCtx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for user_credentials collection (might already exist)")
	}
	return repo, nil
}

func (r *CredentialRepositoryMongo) GetCredential(ctx context.Context, orgID, userID, toolID string) (*domain.UserCredential, error) {
	var cred domain.UserCredential
	filter := bson.M{"org_id": orgID, "user_id": userID, "tool_id": toolID}
	err := r.collection.FindOne(ctx, filter).Decode(&cred)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.NewNotFound("credential not found for user " + userID)
		}
		log.Error().Err(err).Str("orgID", orgID).Str("userID", userID).Str("toolID", toolID).
			Msg("Error retrieving credential from MongoDB")
		return nil, err
	}
	return &cred, nil
}

// UpsertCredential replaces the credential for its (org, user, tool) triple.
// The credential's ID reflects the stored row on return.
func (r *CredentialRepositoryMongo) UpsertCredential(ctx context.Context, cred *domain.UserCredential) error {
	now := time.Now().UTC()
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	filter := bson.M{"org_id": cred.OrgID, "user_id": cred.UserID, "tool_id": cred.ToolID}
	update := bson.M{
		"$set": bson.M{
			"access_token":  cred.AccessToken,
			"refresh_token": cred.RefreshToken,
			"expires_at":    cred.ExpiresAt,
			"updated_at":    cred.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":        cred.ID,
			"org_id":     cred.OrgID,
			"user_id":    cred.UserID,
			"tool_id":    cred.ToolID,
			"created_at": cred.CreatedAt,
		},
	}

	res := r.collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After))

	var stored domain.UserCredential
	if err := res.Decode(&stored); err != nil {
		log.Error().Err(err).Str("orgID", cred.OrgID).Str("userID", cred.UserID).Str("toolID", cred.ToolID).
			Msg("Error upserting credential in MongoDB")
		return err
	}
	*cred = stored
	return nil
}

func (r *CredentialRepositoryMongo) DeleteCredential(ctx context.Context, orgID, userID, toolID string) error {
	filter := bson.M{"org_id": orgID, "user_id": userID, "tool_id": toolID}
	res, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		log.Error().Err(err).Str("orgID", orgID).Str("userID", userID).Str("toolID", toolID).
			Msg("Error deleting credential from MongoDB")
		return err
	}
	if res.DeletedCount == 0 {
		return errors.NewNotFound("credential not found for user " + userID)
	}
	return nil
}

var _ domain.CredentialRepository = (*CredentialRepositoryMongo)(nil)
