package api

import (
	"encoding/json"
	"net/http"
)

type ErrorCode string

const (
	AuthError            ErrorCode = "AuthError"
	InputValidationError ErrorCode = "InputValidationError"
	InternalError        ErrorCode = "InternalError"
	InvalidBody          ErrorCode = "InvalidBody"
	InvalidCursor        ErrorCode = "InvalidCursor"
	InvalidSignature     ErrorCode = "InvalidSignature"
	LimitOutOfBounds     ErrorCode = "LimitOutOfBounds"
	NotFound             ErrorCode = "NotFound"
	NotPaid              ErrorCode = "NotPaid"
	VersionConflict      ErrorCode = "VersionConflict"
)

type Error struct {
	Message string    `json:"message"`
	Code    ErrorCode `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		jsonBody = []byte(`{"message": "failed to encode response", "code": "InternalError"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(jsonBody)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, Error{Message: message, Code: code})
}
