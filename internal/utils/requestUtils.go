package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"clinicbook/internal/apperrors"
)

const maxBodyBytes = 1 << 20

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]string{"message": message})
}

// SendJSONError keeps the argument order of http.Error.
func SendJSONError(w http.ResponseWriter, message string, code int) {
	RespondWithError(w, code, message)
}

// WriteError renders a service error. Internal failures are logged and
// replaced with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
	}
	RespondWithError(w, status, apperrors.PublicMessage(err))
}

// DecodeJSON reads a single JSON object from the request body into dst and
// writes a 400 on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		SendJSONError(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// GetObjectIDFromVars parses the named route variable as an ObjectID and
// writes a 400 on failure.
func GetObjectIDFromVars(w http.ResponseWriter, r *http.Request, key string) (primitive.ObjectID, error) {
	raw := mux.Vars(r)[key]
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		SendJSONError(w, fmt.Sprintf("Invalid %s", key), http.StatusBadRequest)
		return primitive.NilObjectID, err
	}
	return id, nil
}
