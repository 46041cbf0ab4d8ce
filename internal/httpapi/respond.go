package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	playvalidator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rpattn/engcrm/internal/auth"
	"github.com/rpattn/engcrm/internal/ingestion"
	"github.com/rpattn/engcrm/internal/repository"
	"github.com/rpattn/engcrm/internal/smartlist"
	"github.com/rpattn/engcrm/pkg/validator"
)

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// propertyErrors carries a failed property validation to writeError.
type propertyErrors struct {
	result validator.ValidationResult
}

func (e propertyErrors) Error() string { return e.result.Err().Error() }

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		listErrs    smartlist.ValidationErrors
		compileErr  *smartlist.CompileError
		payloadErrs playvalidator.ValidationErrors
		propErrs    propertyErrors
	)

	switch {
	case errors.As(err, &listErrs):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid filters", Details: listErrs})
	case errors.As(err, &propErrs):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid properties", Details: propErrs.result.Errors})
	case errors.As(err, &payloadErrs):
		details := make([]map[string]string, len(payloadErrs))
		for i, fe := range payloadErrs {
			details[i] = map[string]string{"field": fe.Field(), "rule": fe.Tag()}
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid request", Details: details})
	case errors.As(err, &compileErr):
		message := "saved filters are no longer valid"
		if errors.Is(err, smartlist.ErrSchemaDrift) {
			message = "saved filters reference fields that no longer exist"
		}
		writeJSON(w, http.StatusConflict, errorResponse{Error: message, Details: compileErr.ValidationError})
	case errors.Is(err, smartlist.ErrValueTypeMismatch):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, auth.ErrMissingScope):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, smartlist.ErrUnsupportedFormat), errors.Is(err, errBadRequest),
		errors.Is(err, ingestion.ErrUnsupportedFormat), errors.Is(err, ingestion.ErrInvalidUpload):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
