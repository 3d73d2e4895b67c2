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

type DocumentRepo struct {
	documents *mongo.Collection
	extracted *mongo.Collection
}

func NewDocumentRepo() *DocumentRepo {
	return &DocumentRepo{
		documents: database.GetCollection("documents"),
		extracted: database.GetCollection("document_extracted_fields"),
	}
}

func (r *DocumentRepo) Create(ctx context.Context, document *models.Document) error {
	document.CreatedAt = time.Now()
	result, err := r.documents.InsertOne(ctx, document)
	if err != nil {
		return err
	}
	document.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

func (r *DocumentRepo) FindByID(ctx context.Context, id bson.ObjectID) (*models.Document, error) {
	var document models.Document
	err := r.documents.FindOne(ctx, bson.M{"_id": id}).Decode(&document)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &document, nil
}

func (r *DocumentRepo) ByRequirement(ctx context.Context, requirementID bson.ObjectID) ([]models.Document, error) {
	cursor, err := r.documents.Find(ctx, bson.M{"requirement_id": requirementID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var documents []models.Document
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, err
	}
	return documents, nil
}

// List returns documents newest-first, optionally filtered by status.
func (r *DocumentRepo) List(ctx context.Context, status models.DocumentStatus, skip, limit int) ([]models.Document, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	cursor, err := r.documents.Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetSkip(int64(skip)).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	var documents []models.Document
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, err
	}
	return documents, nil
}

// Save replaces the whole document row after a lifecycle mutation.
func (r *DocumentRepo) Save(ctx context.Context, document *models.Document) error {
	_, err := r.documents.ReplaceOne(ctx, bson.M{"_id": document.ID}, document)
	return err
}

func (r *DocumentRepo) CreateExtracted(ctx context.Context, field *models.ExtractedField) error {
	field.CreatedAt = time.Now()
	result, err := r.extracted.InsertOne(ctx, field)
	if err != nil {
		return err
	}
	field.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

// HasExtracted reports whether a field was already recorded for the
// document. Keeps OCR redelivery from duplicating rows.
func (r *DocumentRepo) HasExtracted(ctx context.Context, documentID bson.ObjectID, fieldName string) (bool, error) {
	count, err := r.extracted.CountDocuments(ctx, bson.M{
		"document_id": documentID,
		"field_name":  fieldName,
	})
	return count > 0, err
}

func (r *DocumentRepo) ExtractedByDocument(ctx context.Context, documentID bson.ObjectID) ([]models.ExtractedField, error) {
	cursor, err := r.extracted.Find(ctx, bson.M{"document_id": documentID})
	if err != nil {
		return nil, err
	}
	var fields []models.ExtractedField
	if err := cursor.All(ctx, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// EnsureIndexes creates necessary indexes for the document collections
func (r *DocumentRepo) EnsureIndexes(ctx context.Context) error {
	if _, err := r.documents.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "requirement_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	}); err != nil {
		return err
	}
	_, err := r.extracted.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "document_id", Value: 1}, {Key: "field_name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
