// Package schema validates template store documents against embedded JSON
// Schemas and decodes them into their typed form.
//
// Validation is structural: required properties must be present with the
// right types, while unknown properties are accepted so store content can
// grow ahead of this code.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/jsonc"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

// DocumentKind identifies one kind of store document.
type DocumentKind string

const (
	KindMetadata         DocumentKind = "metadata"
	KindExplanations     DocumentKind = "explanations"
	KindProgramMap       DocumentKind = "program-map"
	KindPrecomputedState DocumentKind = "precomputed-state"
	KindFunctionSpecs    DocumentKind = "function-specs"
)

// Kinds lists every document kind with an embedded schema.
var Kinds = []DocumentKind{
	KindMetadata,
	KindExplanations,
	KindProgramMap,
	KindPrecomputedState,
	KindFunctionSpecs,
}

// Stage is the step of document processing that failed.
type Stage string

const (
	StageParse  Stage = "parse"
	StageSchema Stage = "schema"
	StageDecode Stage = "decode"
)

// Error describes a document that failed to parse, validate or decode.
type Error struct {
	Kind       DocumentKind
	Stage      Stage
	Diagnostic string
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s document failed %s: %s", e.Kind, e.Stage, e.Diagnostic)
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Validator holds the compiled schemas. It is safe for concurrent use.
type Validator struct {
	schemas       map[DocumentKind]*jsonschema.Schema
	allowComments bool
}

// NewValidator compiles the embedded schemas. With allowComments, documents
// may contain comments and trailing commas.
func NewValidator(allowComments bool) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	for _, kind := range Kinds {
		data, err := schemaFiles.ReadFile(schemaPath(kind))
		if err != nil {
			return nil, fmt.Errorf("reading %s schema: %w", kind, err)
		}
		if err := compiler.AddResource(schemaURL(kind), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("adding %s schema: %w", kind, err)
		}
	}

	schemas := make(map[DocumentKind]*jsonschema.Schema, len(Kinds))
	for _, kind := range Kinds {
		compiled, err := compiler.Compile(schemaURL(kind))
		if err != nil {
			return nil, fmt.Errorf("compiling %s schema: %w", kind, err)
		}
		schemas[kind] = compiled
	}

	return &Validator{
		schemas:       schemas,
		allowComments: allowComments,
	}, nil
}

var defaultValidator = sync.OnceValues(func() (*Validator, error) {
	return NewValidator(false)
})

// Default returns the shared strict validator.
func Default() (*Validator, error) {
	return defaultValidator()
}

// Validate checks data against the schema for kind without decoding it.
func (v *Validator) Validate(kind DocumentKind, data []byte) error {
	_, err := v.validate(kind, data)
	return err
}

// Decode validates data against the schema for kind and unmarshals it into
// out, which must be a pointer.
func (v *Validator) Decode(kind DocumentKind, data []byte, out any) error {
	normalized, err := v.validate(kind, data)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(normalized, out); err != nil {
		return &Error{Kind: kind, Stage: StageDecode, Diagnostic: err.Error(), Cause: err}
	}

	return nil
}

// DecodeAs is the generic form of Validator.Decode.
func DecodeAs[T any](v *Validator, kind DocumentKind, data []byte) (T, error) {
	var out T
	if err := v.Decode(kind, data, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (v *Validator) validate(kind DocumentKind, data []byte) ([]byte, error) {
	compiled, ok := v.schemas[kind]
	if !ok {
		return nil, fmt.Errorf("unknown document kind %q", kind)
	}

	if v.allowComments {
		data = jsonc.ToJSON(data)
	}

	instance, err := decodeInstance(data)
	if err != nil {
		return nil, &Error{Kind: kind, Stage: StageParse, Diagnostic: err.Error(), Cause: err}
	}

	if err := compiled.Validate(instance); err != nil {
		return nil, &Error{Kind: kind, Stage: StageSchema, Diagnostic: diagnostic(err), Cause: err}
	}

	return data, nil
}

// decodeInstance parses a single JSON value, keeping numbers as json.Number so
// integer and bound checks run on the exact literal.
func decodeInstance(data []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var instance any
	if err := decoder.Decode(&instance); err != nil {
		return nil, err
	}
	if _, err := decoder.Token(); err != io.EOF {
		return nil, errors.New("invalid character after top-level value")
	}

	return instance, nil
}

// diagnostic flattens a schema failure into its leaf messages, each prefixed
// with the JSON pointer of the offending value.
func diagnostic(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}

	var buf bytes.Buffer
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			if buf.Len() > 0 {
				buf.WriteString("; ")
			}
			location := e.InstanceLocation
			if location == "" {
				location = "/"
			}
			fmt.Fprintf(&buf, "%s: %s", location, e.Message)
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(ve)

	return buf.String()
}

func schemaPath(kind DocumentKind) string {
	return "schemas/" + string(kind) + ".json"
}

func schemaURL(kind DocumentKind) string {
	return "file:///anchorplay/schemas/" + string(kind) + ".json"
}
