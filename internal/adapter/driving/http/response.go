package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Wyydra/yaphone/internal/core/domain"
	"github.com/rs/zerolog/log"
)

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("Request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCallNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrIllegalOperation), errors.Is(err, domain.ErrIllegalStatus):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnregistered):
		return http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrServiceFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decode reads an optional JSON body into v; an empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Join(errBadRequest, err)
	}
	return nil
}
