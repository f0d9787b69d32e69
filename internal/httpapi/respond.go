package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/roach88/poe/internal/ir"
	"github.com/roach88/poe/internal/registry"
)

// Codes for failures that are not registry rejections.
const (
	CodeBadRequest = "BAD_REQUEST"
	CodeNotFound   = "NOT_FOUND"
	CodeInternal   = "INTERNAL"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// statusFor maps a registry error to an HTTP status.
func statusFor(err error) int {
	switch registry.CodeOf(err) {
	case registry.CodeAuthentication:
		return http.StatusUnauthorized
	case registry.CodeClaimTooLong, registry.CodeInvalidAccount:
		return http.StatusBadRequest
	case registry.CodeProofAlreadyExist:
		return http.StatusConflict
	case registry.CodeClaimNotExist:
		return http.StatusNotFound
	case registry.CodeNotClaimOwner:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err in the error envelope. Internal failures never
// expose their message.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		writeJSON(w, status, errorEnvelope{Error: errorBody{Code: CodeInternal, Message: "internal error"}})
		return
	}
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:    string(registry.CodeOf(err)),
		Message: err.Error(),
	}})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: errorBody{Code: CodeBadRequest, Message: msg}})
}

func writeNotFound(w http.ResponseWriter, claim ir.Claim) {
	writeJSON(w, http.StatusNotFound, errorEnvelope{Error: errorBody{
		Code:    CodeNotFound,
		Message: "claim " + claim.String() + " is not registered",
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
