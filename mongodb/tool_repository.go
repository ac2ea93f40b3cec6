package mongodb

import (
	"context"
	stderrors "errors"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"go.pilab.hu/toolbridge/domain"
	"go.pilab.hu/toolbridge/errors"
)

// ToolRepositoryMongo implements domain.ToolRepository.
type ToolRepositoryMongo struct {
	collection *mongo.Collection
}

// NewToolRepository creates the repository. The tools collection only needs
// the default _id index.
func NewToolRepository(db *mongo.Database) *ToolRepositoryMongo {
	return &ToolRepositoryMongo{collection: db.Collection(ToolsCollection)}
}

// GetToolByID retrieves a tool by its ID.
func (r *ToolRepositoryMongo) GetToolByID(ctx context.Context, id string) (*domain.Tool, error) {
	var tool domain.Tool
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&tool)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.NewNotFound("tool not found: " + id)
		}
		log.Error().Err(err).Str("toolID", id).Msg("Error retrieving tool from MongoDB")
		return nil, err
	}
	return &tool, nil
}

var _ domain.ToolRepository = (*ToolRepositoryMongo)(nil)
