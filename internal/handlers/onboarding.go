package handlers

import (
	"encoding/json"
	"net/http"

	"holding-backend/internal/onboarding"
	"holding-backend/internal/repository"
)

type OnboardingHandler struct {
	engine   *onboarding.Engine
	userRepo *repository.UserRepo
}

func NewOnboardingHandler(engine *onboarding.Engine, userRepo *repository.UserRepo) *OnboardingHandler {
	return &OnboardingHandler{engine: engine, userRepo: userRepo}
}

// --- GET /onboarding/flow ---

func (h *OnboardingHandler) GetActiveFlow(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.userRepo)
	if err != nil {
		writeError(w, err)
		return
	}
	flow, err := h.engine.ActiveFlow(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flow)
}

// --- GET /onboarding/step/{stepID} ---

func (h *OnboardingHandler) GetStep(w http.ResponseWriter, r *http.Request) {
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
	state, err := h.engine.StepState(r.Context(), user.ID, stepID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type UpdateStepDataRequest struct {
	Data map[string]any `json:"data"`
}

// --- PATCH /onboarding/step/{userStepID}/data ---

func (h *OnboardingHandler) UpdateStepData(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.userRepo)
	if err != nil {
		writeError(w, err)
		return
	}
	userStepID, err := objectIDParam(r, "userStepID")
	if err != nil {
		writeError(w, err)
		return
	}
	var req UpdateStepDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Data == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	step, err := h.engine.UpdateStep(r.Context(), user.ID, userStepID, req.Data, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

type UpdateStepStatusRequest struct {
	IsCompleted *bool `json:"is_completed"`
}

// --- PATCH /onboarding/step/{userStepID}/status ---

func (h *OnboardingHandler) UpdateStepStatus(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.userRepo)
	if err != nil {
		writeError(w, err)
		return
	}
	userStepID, err := objectIDParam(r, "userStepID")
	if err != nil {
		writeError(w, err)
		return
	}
	var req UpdateStepStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsCompleted == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "is_completed is required"})
		return
	}
	step, err := h.engine.UpdateStep(r.Context(), user.ID, userStepID, nil, req.IsCompleted)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}
