package queue

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-jobqueue/pkg/domain"
)

// Schema lists the payload fields a job type requires.
type Schema struct {
	Type     string
	Required []string
}

// Validate checks spec against the schema. Required fields must be present,
// non-nil, and, when they are strings, not blank.
func (s Schema) Validate(spec domain.JobSpec) error {
	for _, field := range s.Required {
		raw, ok := spec.Payload[field]
		if !ok || raw == nil {
			return &domain.InvalidJobSpecError{Index: -1, Type: spec.Type, Field: field}
		}
		if str, isString := raw.(string); isString && strings.TrimSpace(str) == "" {
			return &domain.InvalidJobSpecError{Index: -1, Type: spec.Type, Field: field}
		}
	}
	return nil
}

func validateSpec(schemas map[string]Schema, spec domain.JobSpec) error {
	typ := strings.TrimSpace(spec.Type)
	if typ == "" {
		return &domain.InvalidJobSpecError{Index: -1, Cause: fmt.Errorf("job type is required")}
	}
	schema, ok := schemas[typ]
	if !ok {
		return nil
	}
	return schema.Validate(spec)
}
