package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/star/kinematics1d/internal/kinematics"
	"github.com/star/kinematics1d/internal/trajectory"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error      string `json:"error"`
	Kind       string `json:"kind,omitempty"`
	MaxSamples int    `json:"max_samples,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": msg} with the given status code.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorBody{Error: msg})
}

// ErrorKind classifies resolver and sampling errors. It returns "" for errors
// that were not caused by the request.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, trajectory.ErrInvalidStep):
		return "invalid_step"
	case errors.Is(err, trajectory.ErrNoDuration):
		return "no_duration"
	case errors.Is(err, trajectory.ErrTooManySamples):
		return "too_many_samples"
	case errors.Is(err, ErrBadParameter):
		return "bad_parameter"
	case kinematics.IsInputError(err):
		return kinematics.Kind(err)
	}
	return ""
}

// WriteInputError writes a 400 for request-caused errors and a 500 otherwise.
// maxSamples is reported alongside too_many_samples errors.
func WriteInputError(w http.ResponseWriter, err error, maxSamples int) {
	kind := ErrorKind(err)
	if kind == "" {
		WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	body := ErrorBody{Error: err.Error(), Kind: kind}
	if kind == "too_many_samples" {
		body.MaxSamples = maxSamples
	}
	WriteJSON(w, http.StatusBadRequest, body)
}
