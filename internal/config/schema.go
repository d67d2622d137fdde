// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID identifies the config file schema.
const SchemaID = "https://holomush.dev/schemas/gatekeeper-config.schema.json"

var (
	schemaOnce     sync.Once
	schemaCompiled *jschema.Schema
	schemaErr      error
)

// GenerateSchema returns the JSON Schema for the config file. Every key is
// optional and unknown keys are rejected.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := r.Reflect(&Config{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Gatekeeper Configuration"
	schema.Description = "Schema for the gatekeeper YAML config file"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").With("operation", "marshal schema").Wrap(err)
	}
	return data, nil
}

// ValidateSchema checks a YAML config document against the schema. An empty
// document is valid.
func ValidateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("CONFIG_SCHEMA_INVALID").With("operation", "parse yaml").Wrap(err)
	}
	if doc == nil {
		return nil
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(normalize(doc)); err != nil {
		return oops.Code("CONFIG_SCHEMA_INVALID").Wrap(err)
	}
	return nil
}

func compiledSchema() (*jschema.Schema, error) {
	schemaOnce.Do(func() {
		raw, err := GenerateSchema()
		if err != nil {
			schemaErr = err
			return
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			schemaErr = oops.Code("CONFIG_SCHEMA_FAILED").With("operation", "parse schema").Wrap(err)
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource("config.json", doc); err != nil {
			schemaErr = oops.Code("CONFIG_SCHEMA_FAILED").With("operation", "add schema resource").Wrap(err)
			return
		}
		schemaCompiled, err = c.Compile("config.json")
		if err != nil {
			schemaErr = oops.Code("CONFIG_SCHEMA_FAILED").With("operation", "compile schema").Wrap(err)
		}
	})
	return schemaCompiled, schemaErr
}

// normalize converts yaml.v3 output to the value shapes the validator
// accepts. Mapping keys that are not strings are rendered as strings.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = normalize(v)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			key, _ := json.Marshal(k) //nolint:errcheck // scalar keys always marshal
			var s string
			if err := json.Unmarshal(key, &s); err != nil {
				s = string(key)
			}
			out[s] = normalize(v)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = normalize(v)
		}
		return out
	default:
		return val
	}
}
