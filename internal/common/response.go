package common

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ErrorBody is the "error" object of every failed request. Code is stable and
// machine-readable (NO_MATCH, DOCUMENT_BUSY, ...); Message is for the till log.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Envelope is the success shape. List endpoints add pagination beside data.
type Envelope struct {
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// JSON encodes v before writing anything, so a payload that cannot be encoded
// becomes a 500 INTERNAL instead of a truncated body.
func JSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorEnvelope{Error: ErrorBody{Code: "INTERNAL", Message: "response encoding failed"}})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// Data writes v under "data".
func Data(w http.ResponseWriter, status int, v any) {
	JSON(w, status, Envelope{Data: v})
}

// Page writes one page of a list with its pagination and mirrors the unpaged
// count in X-Total-Count for the back office grid.
func Page(w http.ResponseWriter, items any, p Pagination) {
	w.Header().Set("X-Total-Count", strconv.Itoa(p.TotalItems))
	JSON(w, http.StatusOK, Envelope{Data: items, Pagination: &p})
}

// JSONError writes {"error": {...}} with the given status.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, errorEnvelope{Error: ErrorBody{Code: code, Message: message, Details: details}})
}
