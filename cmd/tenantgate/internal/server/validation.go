package server

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/refresh_context.json
var refreshContextSchema []byte

const maxBodyBytes = 64 << 10

var errBodyTooLarge = errors.New("request body too large")

// bodyValidator checks a JSON request body against a compiled schema before
// it is decoded.
type bodyValidator struct {
	schema *jsonschema.Schema
}

func newBodyValidator(name string, raw []byte) (*bodyValidator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft7)
	if err := c.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	schema, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &bodyValidator{schema: schema}, nil
}

func mustBodyValidator(name string, raw []byte) *bodyValidator {
	v, err := newBodyValidator(name, raw)
	if err != nil {
		panic(err)
	}
	return v
}

var refreshContextValidator = mustBodyValidator("refresh_context.json", refreshContextSchema)

// Decode validates body and unmarshals it into dst. An empty body is
// treated as an empty object.
func (v *bodyValidator) Decode(body io.Reader, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(raw) > maxBodyBytes {
		return errBodyTooLarge
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if err := v.schema.Validate(inst); err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
