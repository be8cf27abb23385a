// Package validation checks tool parameters against JSON Schema documents.
package validation

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/crypto/blake2b"

	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

// DefaultSchemaTTL bounds how long a compiled schema is reused.
const DefaultSchemaTTL = 10 * time.Minute

// SchemaValidator validates parameters against per-tool JSON schemas.
// Compiled schemas are cached by key together with a digest of the schema
// document, so a key whose schema changes is recompiled.
type SchemaValidator struct {
	cache *SchemaCache
}

// NewSchemaValidator creates a validator whose compiled schemas expire after ttl.
func NewSchemaValidator(ttl time.Duration) *SchemaValidator {
	if ttl <= 0 {
		ttl = DefaultSchemaTTL
	}
	return &SchemaValidator{cache: NewSchemaCache(ttl)}
}

// Validate checks params against schema. The document validated is the
// parameter value map with the raw input under "input". A nil schema
// accepts everything.
func (v *SchemaValidator) Validate(key string, schema map[string]any, params tool.Parameters) error {
	if schema == nil {
		return nil
	}

	sch, err := v.compiled(key, schema)
	if err != nil {
		return err
	}

	doc, err := document(params)
	if err != nil {
		return fmt.Errorf("%w: %v", tool.ErrInvalidParameters, err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("%w: schema validation failed: %v", tool.ErrInvalidParameters, err)
	}
	return nil
}

// Valid is Validate reduced to a bool for Handler.ValidateParameters.
func (v *SchemaValidator) Valid(key string, schema map[string]any, params tool.Parameters) bool {
	return v.Validate(key, schema, params) == nil
}

// Forget drops the compiled schema for key.
func (v *SchemaValidator) Forget(key string) {
	v.cache.Delete(key)
}

func (v *SchemaValidator) compiled(key string, schema map[string]any) (*jsonschema.Schema, error) {
	digest, err := schemaDigest(schema)
	if err != nil {
		return nil, err
	}

	res := v.cache.Get(key)
	same := res.Hit && res.Digest == digest
	if same && !res.NeedsRefresh {
		return res.Schema, nil
	}

	sch, err := Compile(schema)
	if err != nil {
		if same {
			// keep serving the previous version
			return res.Schema, nil
		}
		return nil, err
	}
	v.cache.Set(key, digest, sch)
	return sch, nil
}

// schemaDigest hashes the JSON encoding of schema. encoding/json sorts map
// keys, so equal documents hash equally.
func schemaDigest(schema map[string]any) (string, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("invalid parameter schema: %w", err)
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Compile compiles a schema given as decoded JSON.
func Compile(schema map[string]any) (*jsonschema.Schema, error) {
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("invalid parameter schema: %w", err)
	}
	schemaObj, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
	if err != nil {
		return nil, fmt.Errorf("schema unmarshal error: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaObj); err != nil {
		return nil, fmt.Errorf("schema compile error: %w", err)
	}
	sch, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("schema compile error: %w", err)
	}
	return sch, nil
}

func document(params tool.Parameters) (any, error) {
	doc := make(map[string]any, len(params.Values)+1)
	for k, val := range params.Values {
		doc[k] = val
	}
	doc["input"] = params.Input

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("parameters are not JSON encodable: %w", err)
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(raw))
}
