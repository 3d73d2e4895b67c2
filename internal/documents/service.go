package documents

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"holding-backend/internal/apperr"
	"holding-backend/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// RequirementStore persists document requirements. Satisfied by
// repository.RequirementRepo.
type RequirementStore interface {
	FindByID(ctx context.Context, id bson.ObjectID) (*models.DocumentRequirement, error)
	ByStep(ctx context.Context, stepID bson.ObjectID) ([]models.DocumentRequirement, error)
	Create(ctx context.Context, requirement *models.DocumentRequirement) error
}

// DocumentStore persists documents and their extracted fields.
// Satisfied by repository.DocumentRepo.
type DocumentStore interface {
	Create(ctx context.Context, document *models.Document) error
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Document, error)
	ByRequirement(ctx context.Context, requirementID bson.ObjectID) ([]models.Document, error)
	List(ctx context.Context, status models.DocumentStatus, skip, limit int) ([]models.Document, error)
	Save(ctx context.Context, document *models.Document) error
	CreateExtracted(ctx context.Context, field *models.ExtractedField) error
	HasExtracted(ctx context.Context, documentID bson.ObjectID, fieldName string) (bool, error)
	ExtractedByDocument(ctx context.Context, documentID bson.ObjectID) ([]models.ExtractedField, error)
}

// Queue hands a fresh upload to the OCR workers.
type Queue interface {
	Enqueue(id bson.ObjectID)
}

// Service owns the document lifecycle: requirement listing, uploads,
// consultant review and OCR processing.
type Service struct {
	requirements RequirementStore
	docs         DocumentStore
	storage      Storage
	queue        Queue
	now          func() time.Time
}

func NewService(requirements RequirementStore, docs DocumentStore, storage Storage) *Service {
	return &Service{
		requirements: requirements,
		docs:         docs,
		storage:      storage,
		now:          time.Now,
	}
}

// SetQueue wires the OCR queue after construction; the queue itself
// needs the service to process jobs.
func (s *Service) SetQueue(queue Queue) {
	s.queue = queue
}

// Requirements lists a step's document requirements, highest priority
// first.
func (s *Service) Requirements(ctx context.Context, stepID bson.ObjectID) ([]models.DocumentRequirement, error) {
	requirements, err := s.requirements.ByStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if requirements == nil {
		requirements = []models.DocumentRequirement{}
	}
	return requirements, nil
}

// NewRequirementInput is a consultant-authored requirement.
type NewRequirementInput struct {
	Name        string `json:"name" validate:"required,min=3"`
	Description string `json:"description"`
	DocType     string `json:"doc_type" validate:"required,min=3"`
	IsRequired  bool   `json:"is_required"`
	Priority    int    `json:"priority" validate:"min=1,max=3"`
	Reason      string `json:"reason"`
}

// CreateRequirement lets a consultant add a requirement to a step.
func (s *Service) CreateRequirement(ctx context.Context, author *models.User, stepID bson.ObjectID, in NewRequirementInput) (*models.DocumentRequirement, error) {
	if !author.IsConsultant {
		return nil, apperr.Forbidden("only consultants can create document requirements")
	}
	requirement := &models.DocumentRequirement{
		StepID:        stepID,
		Name:          in.Name,
		Description:   in.Description,
		DocType:       in.DocType,
		IsRequired:    in.IsRequired,
		Priority:      in.Priority,
		CreatedByID:   &author.ID,
		CreatedByType: models.CreatedByConsultant,
		Reason:        in.Reason,
	}
	if err := s.requirements.Create(ctx, requirement); err != nil {
		return nil, err
	}
	return requirement, nil
}

// Upload stores the file and records the document, then hands it to the
// OCR workers.
func (s *Service) Upload(ctx context.Context, uploader *models.User, requirementID bson.ObjectID, filename, contentType string, size int64, r io.Reader) (*models.Document, error) {
	requirement, err := s.requirements.FindByID(ctx, requirementID)
	if err != nil {
		return nil, err
	}
	if requirement == nil {
		return nil, apperr.NotFound("document requirement not found")
	}

	key := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(filename))
	path, err := s.storage.Save(ctx, key, r)
	if err != nil {
		return nil, err
	}

	document := &models.Document{
		RequirementID:    requirementID,
		FilePath:         path,
		OriginalFilename: filename,
		ContentType:      contentType,
		FileSize:         size,
		UploadedByID:     uploader.ID,
		Status:           models.DocumentUploaded,
	}
	if err := s.docs.Create(ctx, document); err != nil {
		s.storage.Remove(ctx, path)
		return nil, err
	}
	if s.queue != nil {
		s.queue.Enqueue(document.ID)
	}
	return document, nil
}

// ByRequirement lists the documents uploaded for one requirement.
func (s *Service) ByRequirement(ctx context.Context, requirementID bson.ObjectID) ([]models.Document, error) {
	docs, err := s.docs.ByRequirement(ctx, requirementID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return docs, nil
}

// DocumentView joins a document with its extracted fields.
type DocumentView struct {
	models.Document
	ExtractedFields []models.ExtractedField `json:"extracted_fields"`
}

func (s *Service) Get(ctx context.Context, id bson.ObjectID) (*DocumentView, error) {
	document, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, apperr.NotFound("document not found")
	}
	fields, err := s.docs.ExtractedByDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = []models.ExtractedField{}
	}
	return &DocumentView{Document: *document, ExtractedFields: fields}, nil
}

// Download opens the stored file for streaming back to the client.
func (s *Service) Download(ctx context.Context, id bson.ObjectID) (*models.Document, io.ReadCloser, error) {
	document, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if document == nil {
		return nil, nil, apperr.NotFound("document not found")
	}
	rc, err := s.storage.Open(ctx, document.FilePath)
	if err != nil {
		return nil, nil, apperr.NotFound("stored file missing for document %s", id.Hex())
	}
	return document, rc, nil
}

// Validate approves a document, clearing any previous rejection.
func (s *Service) Validate(ctx context.Context, reviewer *models.User, id bson.ObjectID) (*models.Document, error) {
	return s.review(ctx, reviewer, id, models.DocumentValidated, "")
}

// Reject marks a document rejected; a reason is mandatory so the user
// knows what to fix.
func (s *Service) Reject(ctx context.Context, reviewer *models.User, id bson.ObjectID, reason string) (*models.Document, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperr.InvalidState("rejection requires a reason")
	}
	return s.review(ctx, reviewer, id, models.DocumentRejected, reason)
}

func (s *Service) review(ctx context.Context, reviewer *models.User, id bson.ObjectID, status models.DocumentStatus, reason string) (*models.Document, error) {
	if !reviewer.IsConsultant {
		return nil, apperr.Forbidden("only consultants can review documents")
	}
	document, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, apperr.NotFound("document not found")
	}
	now := s.now()
	document.Status = status
	document.RejectionReason = reason
	document.ValidatedByID = &reviewer.ID
	document.ValidatedAt = &now
	if err := s.docs.Save(ctx, document); err != nil {
		return nil, err
	}
	return document, nil
}

// List pages documents for the consultant review queue, optionally
// filtered by status.
func (s *Service) List(ctx context.Context, viewer *models.User, status models.DocumentStatus, skip, limit int) ([]models.Document, error) {
	if !viewer.IsConsultant {
		return nil, apperr.Forbidden("only consultants can list all documents")
	}
	docs, err := s.docs.List(ctx, status, skip, limit)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return docs, nil
}

// ProcessOCR runs the (simulated) extraction pass over one document.
// Safe to call twice: already-processed documents and already-extracted
// fields are skipped.
func (s *Service) ProcessOCR(ctx context.Context, id bson.ObjectID) error {
	document, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if document == nil {
		return apperr.NotFound("document not found")
	}
	if document.OCRProcessed {
		return nil
	}

	document.Status = models.DocumentProcessing
	if err := s.docs.Save(ctx, document); err != nil {
		return err
	}

	// TODO: replace the simulated extraction with a real OCR provider
	// once one is contracted.
	for field, value := range map[string]string{
		"nome": "Nome extraído do documento",
		"cpf":  "000.000.000-00",
	} {
		exists, err := s.docs.HasExtracted(ctx, id, field)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := s.docs.CreateExtracted(ctx, &models.ExtractedField{
			DocumentID: id,
			FieldName:  field,
			FieldValue: value,
			Confidence: 0.99,
			Method:     "ocr_simulado",
		}); err != nil {
			return err
		}
	}

	// The document stays in processing until a consultant validates or
	// rejects it.
	now := s.now()
	confidence := 0.99
	document.OCRProcessed = true
	document.OCRConfidence = &confidence
	document.OCRProcessedAt = &now
	return s.docs.Save(ctx, document)
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "arquivo"
	}
	return base
}
