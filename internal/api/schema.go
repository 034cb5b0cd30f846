package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// JSON Schemas for the policy management payloads. Operator and action
// vocabularies are closed sets; rejecting unknown values here keeps the
// evaluators free of defensive handling for rows that could never match.

const securityConfigSchema = `{
	"type": "object",
	"properties": {
		"allow_when_untrusted": {"type": "boolean"},
		"result_treatment": {
			"type": "string",
			"enum": ["trusted", "untrusted", "sanitize_with_dual_llm"]
		}
	},
	"required": ["allow_when_untrusted", "result_treatment"],
	"additionalProperties": false
}`

const invocationPolicySchema = `{
	"type": "object",
	"properties": {
		"argument_path": {"type": "string", "minLength": 1},
		"operator": {
			"type": "string",
			"enum": ["endsWith", "startsWith", "contains", "notContains", "equal", "notEqual", "regex"]
		},
		"value": {"type": "string"},
		"action": {
			"type": "string",
			"enum": ["block_always", "allow_when_context_is_untrusted"]
		},
		"reason": {"type": "string"}
	},
	"required": ["argument_path", "operator", "value", "action"],
	"additionalProperties": false
}`

const trustedDataPolicySchema = `{
	"type": "object",
	"properties": {
		"attribute_path": {"type": "string", "minLength": 1},
		"operator": {
			"type": "string",
			"enum": ["endsWith", "startsWith", "contains", "notContains", "equal", "notEqual", "regex"]
		},
		"value": {"type": "string"},
		"action": {
			"type": "string",
			"enum": ["mark_as_trusted", "block_always", "sanitize_with_dual_llm"]
		},
		"description": {"type": "string"}
	},
	"required": ["attribute_path", "operator", "value", "action"],
	"additionalProperties": false
}`

var (
	securityConfigValidator    = mustCompileSchema("security_config.json", securityConfigSchema)
	invocationPolicyValidator  = mustCompileSchema("invocation_policy.json", invocationPolicySchema)
	trustedDataPolicyValidator = mustCompileSchema("trusted_data_policy.json", trustedDataPolicySchema)
)

func mustCompileSchema(name, text string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(text)))
	if err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	sch, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	return sch
}

// validatePayload checks raw JSON against a compiled schema and returns a
// human-readable detail string, or "" when valid.
func validatePayload(sch *jsonschema.Schema, raw []byte) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "Invalid JSON body"
	}
	if err := sch.Validate(v); err != nil {
		return err.Error()
	}
	return ""
}
