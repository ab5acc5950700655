// Package validation configures the struct validator used on API payloads.
package validation

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// New builds a validator that reports field names from json tags, so
// validation errors line up with the payload the client actually sent.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		tag := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return field.Name
		}
		return tag
	})
	return v
}

// FieldErrors flattens a validator error into per-field messages. Non-validator
// errors yield a single generic body entry.
func FieldErrors(err error) map[string][]string {
	fields := map[string][]string{}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		fields["body"] = append(fields["body"], "invalid request body")
		return fields
	}

	for _, fieldErr := range validationErrs {
		message := "is invalid"
		switch fieldErr.Tag() {
		case "required":
			message = "is required"
		case "oneof":
			message = "must be one of: " + fieldErr.Param()
		case "min":
			message = "must be at least " + fieldErr.Param()
		case "max":
			message = "must be at most " + fieldErr.Param()
		}
		fields[fieldErr.Field()] = append(fields[fieldErr.Field()], message)
	}

	return fields
}
