package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"holding-backend/internal/documents"
	"holding-backend/internal/models"
	"holding-backend/internal/repository"
)

// maxUploadSize caps document uploads at 10 MB.
const maxUploadSize = 10 << 20

type DocumentHandler struct {
	service  *documents.Service
	userRepo *repository.UserRepo
}

func NewDocumentHandler(service *documents.Service, userRepo *repository.UserRepo) *DocumentHandler {
	return &DocumentHandler{service: service, userRepo: userRepo}
}

// --- GET /steps/{stepID}/requirements ---

func (h *DocumentHandler) ListRequirements(w http.ResponseWriter, r *http.Request) {
	if _, err := currentUser(r, h.userRepo); err != nil {
		writeError(w, err)
		return
	}
	stepID, err := objectIDParam(r, "stepID")
	if err != nil {
		writeError(w, err)
		return
	}
	requirements, err := h.service.Requirements(r.Context(), stepID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requirements)
}

// --- POST /steps/{stepID}/requirements ---

func (h *DocumentHandler) CreateRequirement(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.userRepo)
	if err != nil {
		writeError(w, err)
		return
	}
	stepID, err := objectIDParam(r, "stepID")
	if err != nil {
		writeError(w, err)
		return
	}
	var req documents.NewRequirementInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	requirement, err := h.service.CreateRequirement(r.Context(), user, stepID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, requirement)
}

// --- POST /requirements/{requirementID}/documents ---

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.userRepo)
	if err != nil {
		writeError(w, err)
		return
	}
	requirementID, err := objectIDParam(r, "requirementID")
	if err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file too large or invalid multipart body"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file field is required"})
		return
	}
	defer file.Close()

	document, err := h.service.Upload(r.Context(), user, requirementID,
		header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, document)
}

// --- GET /requirements/{requirementID}/documents ---

func (h *DocumentHandler) ListByRequirement(w http.ResponseWriter, r *http.Request) {
	if _, err := currentUser(r, h.userRepo); err != nil {
		writeError(w, err)
		return
	}
	requirementID, err := objectIDParam(r, "requirementID")
	if err != nil {
		writeError(w, err)
		return
	}
	docs, err := h.service.ByRequirement(r.Context(), requirementID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// --- GET /documents/{documentID} ---

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, err := currentUser(r, h.userRepo); err != nil {
		writeError(w, err)
		return
	}
	documentID, err := objectIDParam(r, "documentID")
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := h.service.Get(r.Context(), documentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// --- GET /documents/{documentID}/download ---

func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	if _, err := currentUser(r, h.userRepo); err != nil {
		writeError(w, err)
		return
	}
	documentID, err := objectIDParam(r, "documentID")
	if err != nil {
		writeError(w, err)
		return
	}
	document, rc, err := h.service.Download(r.Context(), documentID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", document.ContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", document.OriginalFilename))
	io.Copy(w, rc)
}

type ReviewDocumentRequest struct {
	Status models.DocumentStatus `json:"status"`
	Reason string                `json:"reason"`
}

// --- PATCH /documents/{documentID}/status ---

func (h *DocumentHandler) Review(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.userRepo)
	if err != nil {
		writeError(w, err)
		return
	}
	documentID, err := objectIDParam(r, "documentID")
	if err != nil {
		writeError(w, err)
		return
	}
	var req ReviewDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var document *models.Document
	switch req.Status {
	case models.DocumentValidated:
		document, err = h.service.Validate(r.Context(), user, documentID)
	case models.DocumentRejected:
		document, err = h.service.Reject(r.Context(), user, documentID, req.Reason)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be validated or rejected"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, document)
}

// --- GET /admin/documents ---

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.userRepo)
	if err != nil {
		writeError(w, err)
		return
	}
	status := models.DocumentStatus(r.URL.Query().Get("status"))
	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	skip := queryInt(r, "skip", 0)
	if skip < 0 {
		skip = 0
	}
	docs, err := h.service.List(r.Context(), user, status, skip, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}
