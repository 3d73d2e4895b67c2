package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"holding-backend/internal/chat"
	"holding-backend/internal/repository"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type ChatHandler struct {
	service  *chat.Service
	userRepo *repository.UserRepo
}

func NewChatHandler(service *chat.Service, userRepo *repository.UserRepo) *ChatHandler {
	return &ChatHandler{service: service, userRepo: userRepo}
}

type ChatMessageRequest struct {
	Message string `json:"message" validate:"required,min=1,max=2000"`
}

// --- POST /chat/{stepID}/message/stream ---
//
// Server-sent events: each chunk is one `data: {json}` line.
func (h *ChatHandler) StreamMessage(w http.ResponseWriter, r *http.Request) {
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
	var req ChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message must be between 1 and 2000 characters"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func(chunk chat.StreamChunk) error {
		payload, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte("data: ")); err != nil {
			return err
		}
		if _, err := w.Write(payload); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := h.service.ProcessMessage(r.Context(), user, stepID, req.Message, send); err != nil {
		// Headers may not be out yet for precondition failures; if they
		// are, report in-band.
		if payload, jsonErr := json.Marshal(chat.StreamChunk{Type: "complete", Content: err.Error()}); jsonErr == nil {
			w.Write([]byte("data: "))
			w.Write(payload)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

// --- POST /chat/{stepID}/message ---
//
// Non-streaming variant: runs the same turn and returns the aggregated
// result in one JSON body.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
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
	var req ChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message must be between 1 and 2000 characters"})
		return
	}

	response := map[string]any{}
	send := func(chunk chat.StreamChunk) error {
		switch chunk.Type {
		case "structured_data":
			response["structured_data"] = chunk.Data
		case "progress":
			response["progress"] = chunk.Data
		case "complete":
			response["message"] = chunk.Content
		}
		return nil
	}
	if err := h.service.ProcessMessage(r.Context(), user, stepID, req.Message, send); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// --- GET /chat/{stepID}/state ---

func (h *ChatHandler) GetState(w http.ResponseWriter, r *http.Request) {
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
	view, err := h.service.State(r.Context(), user, stepID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// --- GET /chat/{stepID}/structured-data ---

func (h *ChatHandler) GetStructuredData(w http.ResponseWriter, r *http.Request) {
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
	sd, err := h.service.StructuredData(r.Context(), user, stepID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sd)
}

// --- GET /chat/{stepID}/progress ---

func (h *ChatHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
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
	progress, err := h.service.Progress(r.Context(), user, stepID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// --- GET /chat/{stepID}/messages ---

func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
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
	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	result, err := h.service.Messages(r.Context(), user, stepID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- POST /chat/{stepID}/reset ---

func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.Reset(r.Context(), user, stepID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "conversa e dados da etapa reiniciados"})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
