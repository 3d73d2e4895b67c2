package repository

import (
	"context"
	"time"

	"holding-backend/internal/database"
	"holding-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type RequirementRepo struct {
	collection *mongo.Collection
}

func NewRequirementRepo() *RequirementRepo {
	return &RequirementRepo{
		collection: database.GetCollection("document_requirements"),
	}
}

func (r *RequirementRepo) FindByID(ctx context.Context, id bson.ObjectID) (*models.DocumentRequirement, error) {
	var requirement models.DocumentRequirement
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&requirement)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &requirement, nil
}

func (r *RequirementRepo) ByStep(ctx context.Context, stepID bson.ObjectID) ([]models.DocumentRequirement, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"step_id": stepID},
		options.Find().SetSort(bson.D{{Key: "priority", Value: 1}, {Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var requirements []models.DocumentRequirement
	if err := cursor.All(ctx, &requirements); err != nil {
		return nil, err
	}
	return requirements, nil
}

// DocTypesByStep returns the set of doc_type slugs already present on a
// step. Synthesis consults it for deduplication.
func (r *RequirementRepo) DocTypesByStep(ctx context.Context, stepID bson.ObjectID) (map[string]bool, error) {
	var values []string
	if err := r.collection.Distinct(ctx, "doc_type", bson.M{"step_id": stepID}).Decode(&values); err != nil {
		return nil, err
	}
	docTypes := make(map[string]bool, len(values))
	for _, v := range values {
		docTypes[v] = true
	}
	return docTypes, nil
}

func (r *RequirementRepo) Create(ctx context.Context, requirement *models.DocumentRequirement) error {
	requirement.CreatedAt = time.Now()
	result, err := r.collection.InsertOne(ctx, requirement)
	if err != nil {
		return err
	}
	requirement.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

func (r *RequirementRepo) CreateMany(ctx context.Context, requirements []models.DocumentRequirement) error {
	if len(requirements) == 0 {
		return nil
	}
	docs := make([]any, len(requirements))
	now := time.Now()
	for i := range requirements {
		requirements[i].CreatedAt = now
		docs[i] = requirements[i]
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

// EnsureIndexes creates necessary indexes for the requirements collection
func (r *RequirementRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "step_id", Value: 1}, {Key: "doc_type", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
