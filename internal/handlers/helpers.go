package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"holding-backend/internal/apperr"
	"holding-backend/internal/middleware"
	"holding-backend/internal/models"
	"holding-backend/internal/repository"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps service error kinds onto HTTP status codes. Unknown
// errors are logged and hidden behind a generic 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, apperr.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, apperr.ErrInvalidState):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, apperr.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
	case errors.Is(err, apperr.ErrUpstream):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		log.Printf("❌ Unhandled error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// currentUser loads the authenticated user from the repository using
// the identity the JWT middleware put on the context.
func currentUser(r *http.Request, userRepo *repository.UserRepo) (*models.User, error) {
	idHex := middleware.GetUserID(r.Context())
	id, err := bson.ObjectIDFromHex(idHex)
	if err != nil {
		return nil, apperr.Forbidden("invalid user identity")
	}
	user, err := userRepo.FindByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.Forbidden("user no longer exists")
	}
	return user, nil
}

// objectIDParam parses a chi URL parameter as an ObjectID.
func objectIDParam(r *http.Request, name string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		return bson.ObjectID{}, apperr.NotFound("invalid %s", name)
	}
	return id, nil
}
