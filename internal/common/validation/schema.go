// Package validation checks job variables against the JSON schemas declared
// in the activity registry.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema, safe for concurrent use.
type Schema struct {
	schema *gojsonschema.Schema
}

// Compile accepts a schema as a Go value (usually map[string]interface{}) or
// a JSON string.
func Compile(schema interface{}) (*Schema, error) {
	var loader gojsonschema.JSONLoader
	if s, ok := schema.(string); ok {
		loader = gojsonschema.NewStringLoader(s)
	} else {
		loader = gojsonschema.NewGoLoader(schema)
	}
	compiled, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: compiled}, nil
}

// MustCompile is Compile for schemas known at build time.
func MustCompile(schema interface{}) *Schema {
	s, err := Compile(schema)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a decoded document. A document that cannot be loaded at
// all is reported as a single root error.
func (s *Schema) Validate(doc interface{}) *ValidationResult {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(root)",
			Message: err.Error(),
			Code:    "INVALID_DOCUMENT",
		}}}
	}
	return toResult(result)
}

// ValidateJSON checks a raw JSON document such as job.Variables.
func (s *Schema) ValidateJSON(doc string) *ValidationResult {
	result, err := s.schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(root)",
			Message: err.Error(),
			Code:    "INVALID_DOCUMENT",
		}}}
	}
	return toResult(result)
}

// ValidateInput compiles schema and validates input in one step.
func ValidateInput(input map[string]interface{}, schema map[string]interface{}) *ValidationResult {
	s, err := Compile(schema)
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(schema)",
			Message: err.Error(),
			Code:    "INVALID_SCHEMA",
		}}}
	}
	return s.Validate(input)
}

func toResult(result *gojsonschema.Result) *ValidationResult {
	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fieldPath(desc),
			Message: desc.Description(),
			Code:    strings.ToUpper(strings.ReplaceAll(desc.Type(), "-", "_")),
		})
	}
	return out
}

// fieldPath reports required-property errors on the missing property rather
// than on its parent.
func fieldPath(desc gojsonschema.ResultError) string {
	field := desc.Field()
	if desc.Type() != "required" {
		return field
	}
	prop, ok := desc.Details()["property"].(string)
	if !ok {
		return field
	}
	if field == "(root)" || field == "" {
		return prop
	}
	return field + "." + prop
}

var activityNamingPattern = regexp.MustCompile(`^[a-z]+\.[a-z]+\.[a-z]+$`)

// ValidateActivityNaming validates activity ID follows naming convention
func ValidateActivityNaming(activityID string) error {
	if !activityNamingPattern.MatchString(activityID) {
		return fmt.Errorf("activity ID %q must follow format: domain.subdomain.action (e.g., chatbot.message.parse)", activityID)
	}
	return nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a field and anything nested under it.
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}
