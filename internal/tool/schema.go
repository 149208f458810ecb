package tool

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// RequestSchema is the JSON Schema (Draft 2020-12) for protocol
// requests. Every request is validated against it before handling.
const RequestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/mcp-tool-shop/code-covered/gaps-request.schema.json",
  "title": "Coverage Gap Request",
  "type": "object",
  "required": ["coverage"],
  "properties": {
    "coverage": {
      "type": "object",
      "description": "Inline coverage report or artifact reference"
    },
    "source_root": {
      "type": "string",
      "description": "Root directory for resolving relative source paths"
    },
    "priority_filter": {
      "type": "string",
      "enum": ["critical", "high", "medium", "low"],
      "description": "Keep suggestions at this tier or more severe"
    },
    "limit": {
      "type": "integer",
      "minimum": 1,
      "description": "Maximum suggestions in the response"
    },
    "fail_on": {
      "type": "string",
      "enum": ["none", "any", "critical", "high", "medium", "low"],
      "description": "Gating threshold for exit code 2"
    },
    "format": {
      "type": "string",
      "enum": ["json", "text"],
      "description": "Adds a text rendering when set to text"
    }
  }
}`

var (
	compileOnce     sync.Once
	compiledRequest *jsonschema.Schema
	compileErr      error
)

func requestSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		sch, err := jsonschema.UnmarshalJSON(strings.NewReader(RequestSchema))
		if err != nil {
			compileErr = fmt.Errorf("parsing request schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("request.json", sch); err != nil {
			compileErr = fmt.Errorf("adding request schema: %w", err)
			return
		}
		compiledRequest, compileErr = compiler.Compile("request.json")
	})
	return compiledRequest, compileErr
}

// ValidateRequest checks a raw request body against RequestSchema.
func ValidateRequest(raw []byte) error {
	sch, err := requestSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return fmt.Errorf("request is not valid JSON: %w", err)
	}
	return sch.Validate(inst)
}
