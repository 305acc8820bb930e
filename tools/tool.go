// Package tools implements the ToolRegistry/ToolInvoker of §4.5: a catalog of
// named tools with reflected JSON-schema parameter contracts, dispatched with
// per-(dialogue,tool,params) single-flight deduplication and a per-tool
// timeout, mirroring the teacher's dev package tool definitions
// (invopop/jsonschema-reflected Parameters on a llm.Tool value) generalized
// from IDE-coding tools to conversational tools.
package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/invopop/jsonschema"

	"coreconvo/domain"
)

// Tool is the collaborator contract of §6: a named, schema-described unit of
// work the orchestrator can dispatch mid tool-loop.
type Tool interface {
	ID() string
	Name() string
	Category() string
	Description() string
	ParameterSchema() *jsonschema.Schema
	// Invoke validates params (the bundled tools call ValidateAgainstSchema
	// first), does the actual work and returns a human/LLM-readable result
	// string.
	Invoke(ctx context.Context, params map[string]any) (string, error)
}

// Definition is the reflection-based helper most Tool implementations embed:
// it reflects a tool's typed Params struct once at registration time the way
// the teacher's dev package builds an llm.Tool{Parameters: (&jsonschema.Reflector{...}).Reflect(&Params{})}.
type Definition struct {
	id          string
	name        string
	category    string
	description string
	schema      *jsonschema.Schema
}

func NewDefinition(id, name, category, description string, paramsShape any) Definition {
	schema := (&jsonschema.Reflector{DoNotReference: true}).Reflect(paramsShape)
	return Definition{id: id, name: name, category: category, description: description, schema: schema}
}

func (d Definition) ID() string                       { return d.id }
func (d Definition) Name() string                     { return d.name }
func (d Definition) Category() string                 { return d.category }
func (d Definition) Description() string              { return d.description }
func (d Definition) ParameterSchema() *jsonschema.Schema { return d.schema }

// paramsHash produces the parameter-hash part of the (dialogue_id, tool_id,
// parameter-hash) key ToolInvoker's singleflight group dedupes on; params are
// serialized with sorted keys so map iteration order never perturbs the hash.
func paramsHash(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		ordered = append(ordered, k, params[k])
	}
	b, _ := json.Marshal(ordered)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ValidateAgainstSchema round-trips params through an instance of shape (a
// pointer to a zero-valued Params struct) via encoding/json, surfacing
// unmarshal failures and missing `jsonschema:"required"` fields as
// InvalidParameters, per §4.5.
func ValidateAgainstSchema(params map[string]any, shape any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return domain.NewError(domain.ErrInvalidParameters, "parameters are not valid JSON", err)
	}
	if err := json.Unmarshal(raw, shape); err != nil {
		return domain.NewError(domain.ErrInvalidParameters, "parameters do not match tool schema", err)
	}
	schema := (&jsonschema.Reflector{DoNotReference: true}).Reflect(shape)
	for _, name := range schema.Required {
		if _, ok := params[name]; !ok {
			return domain.NewError(domain.ErrInvalidParameters, "missing required parameter: "+name, nil)
		}
	}
	return nil
}
