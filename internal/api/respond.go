package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/busweaver/busweaver/pkg/errors"
	"github.com/busweaver/busweaver/pkg/store"
)

// errorEnvelope is the JSON error shape shared with the API client.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErrorCode writes the error envelope with an explicit status and code.
func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// writeError maps err to an HTTP status and writes the error envelope.
// The structured code travels in the envelope so clients can branch on
// it regardless of the status mapping.
func writeError(w http.ResponseWriter, logger *log.Logger, err error) {
	code, status := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", code, "err", err)
	}
	writeErrorCode(w, status, string(code), userMessage(err, code))
}

// userMessage keeps the full error chain (manifest builders prefix the
// failing entity) but drops a leading code so the text is not repeated
// next to the envelope's code field.
func userMessage(err error, code errors.Code) string {
	msg := err.Error()
	if code != "" {
		msg = strings.TrimPrefix(msg, string(code)+": ")
	}
	return msg
}

// classify picks the structured code and HTTP status for an error.
//
// Engine failures split into two groups: requests that are malformed on
// their own terms map to 400, while manifests that decode fine but
// describe an inconsistent topology map to 422.
func classify(err error) (errors.Code, int) {
	switch {
	case stderrors.Is(err, store.ErrNotFound):
		return errors.ErrCodeTopologyNotFound, http.StatusNotFound
	case stderrors.Is(err, store.ErrDuplicateName):
		return errors.ErrCodeAlreadyExists, http.StatusConflict
	}

	code := errors.GetCode(err)
	switch code {
	case errors.ErrCodeInvalidManifest, errors.ErrCodeInvalidFormat,
		errors.ErrCodeInvalidName, errors.ErrCodeUnsupported:
		return code, http.StatusBadRequest
	case errors.ErrCodeInvalidParameter, errors.ErrCodeOverlap,
		errors.ErrCodeNotConnected, errors.ErrCodeConversion:
		return code, http.StatusUnprocessableEntity
	case errors.ErrCodeAlreadyExists:
		return code, http.StatusConflict
	case errors.ErrCodeNotFound, errors.ErrCodeTopologyNotFound:
		return code, http.StatusNotFound
	case errors.ErrCodeTimeout:
		return code, http.StatusGatewayTimeout
	case errors.ErrCodeNetwork:
		return code, http.StatusBadGateway
	case "":
		return errors.ErrCodeInternal, http.StatusInternalServerError
	default:
		return code, http.StatusInternalServerError
	}
}
