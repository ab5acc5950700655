// Package httpjson holds the JSON request/response helpers shared by the API
// handlers.
package httpjson

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

// ErrEmptyBody is returned by Decode when the request carries no body at all.
var ErrEmptyBody = errors.New("request body is required")

// Decode reads the request body into v. Unknown fields are rejected so typos
// in payloads fail loudly instead of being silently dropped.
func Decode(r *http.Request, v any) error {
	if r.Body == nil {
		return ErrEmptyBody
	}

	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return err
	}

	return nil
}

// Write sends v as a JSON response with the given status code.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
