package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type DocumentStatus string

const (
	DocumentUploaded   DocumentStatus = "uploaded"
	DocumentProcessing DocumentStatus = "processing"
	DocumentValidated  DocumentStatus = "validated"
	DocumentRejected   DocumentStatus = "rejected"
)

type CreatedByType string

const (
	CreatedBySystem     CreatedByType = "system"
	CreatedByConsultant CreatedByType = "consultant"
	CreatedByAdmin      CreatedByType = "admin"
	CreatedByLLM        CreatedByType = "llm"
)

// DocumentRequirement is a named request for one supporting document on
// an onboarding step. DocType is a stable slug, unique per step, used to
// keep re-synthesis from duplicating requirements.
type DocumentRequirement struct {
	ID            bson.ObjectID  `bson:"_id,omitempty" json:"id"`
	StepID        bson.ObjectID  `bson:"step_id" json:"step_id"`
	Name          string         `bson:"name" json:"name"`
	Description   string         `bson:"description" json:"description"`
	DocType       string         `bson:"doc_type" json:"doc_type"`
	IsRequired    bool           `bson:"is_required" json:"is_required"`
	Priority      int            `bson:"priority" json:"priority"`
	CreatedByID   *bson.ObjectID `bson:"created_by_id,omitempty" json:"created_by_id,omitempty"`
	CreatedByType CreatedByType  `bson:"created_by_type" json:"created_by_type"`
	Reason        string         `bson:"reason,omitempty" json:"reason,omitempty"`
	CreatedAt     time.Time      `bson:"created_at" json:"created_at"`
}

// Document is an uploaded file answering a requirement.
type Document struct {
	ID               bson.ObjectID  `bson:"_id,omitempty" json:"id"`
	RequirementID    bson.ObjectID  `bson:"requirement_id" json:"requirement_id"`
	FilePath         string         `bson:"file_path" json:"file_path"`
	OriginalFilename string         `bson:"original_filename" json:"original_filename"`
	ContentType      string         `bson:"content_type" json:"content_type"`
	FileSize         int64          `bson:"file_size" json:"file_size"`
	UploadedByID     bson.ObjectID  `bson:"uploaded_by_id" json:"uploaded_by_id"`
	Status           DocumentStatus `bson:"status" json:"status"`
	RejectionReason  string         `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`
	ValidatedByID    *bson.ObjectID `bson:"validated_by_id,omitempty" json:"validated_by_id,omitempty"`
	ValidatedAt      *time.Time     `bson:"validated_at,omitempty" json:"validated_at,omitempty"`
	OCRProcessed     bool           `bson:"ocr_processed" json:"ocr_processed"`
	OCRConfidence    *float64       `bson:"ocr_confidence,omitempty" json:"ocr_confidence,omitempty"`
	OCRProcessedAt   *time.Time     `bson:"ocr_processed_at,omitempty" json:"ocr_processed_at,omitempty"`
	CreatedAt        time.Time      `bson:"created_at" json:"created_at"`
}

// ExtractedField is one field pulled out of a document by OCR.
type ExtractedField struct {
	ID         bson.ObjectID `bson:"_id,omitempty" json:"id"`
	DocumentID bson.ObjectID `bson:"document_id" json:"document_id"`
	FieldName  string        `bson:"field_name" json:"field_name"`
	FieldValue string        `bson:"field_value" json:"field_value"`
	Confidence float64       `bson:"confidence" json:"confidence"`
	Method     string        `bson:"method" json:"method"`
	CreatedAt  time.Time     `bson:"created_at" json:"created_at"`
}
