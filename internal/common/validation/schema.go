package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/pkg/registry"
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

// SchemaValidator checks job variables against the input schema each task
// declares in the activity registry.
type SchemaValidator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewSchemaValidator compiles every input schema up front so a broken
// registry fails at startup, not on the first job.
func NewSchemaValidator(reg *registry.ActivityRegistry) (*SchemaValidator, error) {
	v := &SchemaValidator{schemas: make(map[string]*gojsonschema.Schema, len(reg.Activities))}
	for _, a := range reg.Activities {
		if len(a.InputSchema) == 0 {
			continue
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(a.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("compile input schema of %s: %w", a.TaskType, err)
		}
		v.schemas[a.TaskType] = schema
	}
	return v, nil
}

// Check validates raw JSON variables. Task types without a schema pass.
func (v *SchemaValidator) Check(taskType string, variables []byte) (*ValidationResult, error) {
	schema, ok := v.schemas[taskType]
	if !ok {
		return &ValidationResult{Valid: true}, nil
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(variables))
	if err != nil {
		return nil, fmt.Errorf("validate %s variables: %w", taskType, err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		field := e.Field()
		if p, ok := e.Details()["property"].(string); ok && field == "(root)" {
			field = p
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	sort.Slice(out.Errors, func(i, j int) bool { return out.Errors[i].Field < out.Errors[j].Field })
	return out, nil
}

// Validate is Check folded into an INVALID_INPUT error.
func (v *SchemaValidator) Validate(taskType string, variables []byte) error {
	if !json.Valid(variables) {
		return apperrors.NewInvalidInputError("job variables are not valid JSON")
	}
	result, err := v.Check(taskType, variables)
	if err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}
	if result.Valid {
		return nil
	}
	return apperrors.NewInvalidInputError(strings.Join(result.GetErrorMessages(), "; ")).
		WithMetadata("validationErrors", result.Errors)
}
