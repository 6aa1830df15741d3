package workflow

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "tasknotify://workflow.schema.json"

var (
	compiledSchema *jsonschema.Schema
	schemaErr      error
	schemaOnce     sync.Once
)

func documentSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("load workflow schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// ValidateDocument checks a JSON workflow document submitted by an
// administrator against the workflow schema and the definition's semantic
// rules, and decodes it. Problems are reported as domain validation errors.
func ValidateDocument(raw []byte) (*domain.WorkflowDefinition, error) {
	schema, err := documentSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, domain.NewValidationError("", "malformed JSON document")
	}
	if err := schema.Validate(doc); err != nil {
		return nil, schemaValidationError(err)
	}

	var def domain.WorkflowDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, domain.NewValidationError("", "malformed workflow document")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// schemaValidationError reports the first leaf cause of a schema failure.
func schemaValidationError(err error) error {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return domain.NewValidationError("", err.Error())
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	field := strings.TrimPrefix(ve.InstanceLocation, "/")
	field = strings.ReplaceAll(field, "/", ".")
	return domain.NewValidationError(field, ve.Message)
}
