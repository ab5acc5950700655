// Package problemdetails implements the RFC 7807 error body every API
// endpoint returns for non-2xx responses.
package problemdetails

import (
	"encoding/json"
	"net/http"
)

// Problem type URIs shared across the API surface.
const (
	TypeValidation = "https://turns.local/problems/validation-error"
	TypeNotFound   = "https://turns.local/problems/not-found"
	TypeConflict   = "https://turns.local/problems/conflict"
	TypeInternal   = "https://turns.local/problems/internal-error"
)

// ProblemDetails is the wire shape of an API error. Errors carries per-field
// validation messages when the problem type is validation.
type ProblemDetails struct {
	Type   *string              `json:"type,omitempty"`
	Title  string               `json:"title"`
	Status int                  `json:"status"`
	Detail *string              `json:"detail,omitempty"`
	Errors *map[string][]string `json:"errors,omitempty"`
}

// Build assembles a ProblemDetails value. Empty detail and problemType are omitted.
func Build(title, detail, problemType string, status int, fieldErrors map[string][]string) ProblemDetails {
	problem := ProblemDetails{
		Title:  title,
		Status: status,
	}

	if detail != "" {
		problem.Detail = &detail
	}
	if problemType != "" {
		problem.Type = &problemType
	}

	if len(fieldErrors) > 0 {
		copied := make(map[string][]string, len(fieldErrors))
		for field, messages := range fieldErrors {
			copied[field] = append([]string(nil), messages...)
		}
		problem.Errors = &copied
	}

	return problem
}

// Write sends the problem body with the application/problem+json media type.
func Write(w http.ResponseWriter, problem ProblemDetails) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}
