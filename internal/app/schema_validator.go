package app

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed snapshot.schema.json
var snapshotSchemaJSON string

// snapshotSchemaURL names the embedded schema resource inside the compiler.
const snapshotSchemaURL = "kanboard://snapshot.schema.json"

// SchemaValidationError describes a deterministic schema-validation failure.
type SchemaValidationError struct {
	Path    string
	Message string
}

// Error renders the schema-validation failure.
func (e SchemaValidationError) Error() string {
	path := strings.TrimSpace(e.Path)
	if path == "" {
		path = "$"
	}
	return fmt.Sprintf("%s: %s", path, e.Message)
}

var (
	snapshotSchemaOnce sync.Once
	snapshotSchema     *jsonschema.Schema
	snapshotSchemaErr  error
)

// compiledSnapshotSchema compiles the embedded snapshot schema once.
func compiledSnapshotSchema() (*jsonschema.Schema, error) {
	snapshotSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if err := compiler.AddResource(snapshotSchemaURL, strings.NewReader(snapshotSchemaJSON)); err != nil {
			snapshotSchemaErr = fmt.Errorf("add snapshot schema: %w", err)
			return
		}
		snapshotSchema, snapshotSchemaErr = compiler.Compile(snapshotSchemaURL)
	})
	return snapshotSchema, snapshotSchemaErr
}

// validateSnapshotJSON checks raw snapshot bytes against the embedded schema.
// Failures are returned as SchemaValidationError values sorted by path.
func validateSnapshotJSON(raw []byte) ([]SchemaValidationError, error) {
	schema, err := compiledSnapshotSchema()
	if err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var doc any
	if err := decoder.Decode(&doc); err != nil {
		return []SchemaValidationError{{Message: "invalid json: " + err.Error()}}, nil
	}
	err = schema.Validate(doc)
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, err
	}
	out := collectSchemaErrors(nil, ve)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// collectSchemaErrors flattens nested validation causes into leaf failures.
func collectSchemaErrors(out []SchemaValidationError, ve *jsonschema.ValidationError) []SchemaValidationError {
	if ve == nil {
		return out
	}
	if len(ve.Causes) == 0 {
		return append(out, SchemaValidationError{
			Path:    jsonPointerToPath(ve.InstanceLocation),
			Message: ve.Message,
		})
	}
	for _, cause := range ve.Causes {
		out = collectSchemaErrors(out, cause)
	}
	return out
}

// jsonPointerToPath renders "/tasks/0/id" as "$.tasks[0].id".
func jsonPointerToPath(pointer string) string {
	pointer = strings.Trim(pointer, "/")
	if pointer == "" {
		return "$"
	}
	var b strings.Builder
	b.WriteString("$")
	for _, part := range strings.Split(pointer, "/") {
		if isDigits(part) {
			b.WriteString("[" + part + "]")
			continue
		}
		b.WriteString("." + part)
	}
	return b.String()
}

// isDigits reports whether s is a non-empty run of ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
