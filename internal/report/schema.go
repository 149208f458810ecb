package report

// Schema is the JSON Schema (Draft 2020-12) for the coverage-gap
// JSON output. It documents the structure returned by WriteJSON.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/mcp-tool-shop/code-covered/gap-report.schema.json",
  "title": "Coverage Gap Report",
  "description": "Output schema for code-covered gaps --format=json",
  "type": "object",
  "required": ["version", "stats", "suggestions", "warnings"],
  "properties": {
    "version": {
      "type": "string",
      "description": "Schema version (semver)"
    },
    "stats": { "$ref": "#/$defs/Stats" },
    "suggestions": {
      "type": "array",
      "items": { "$ref": "#/$defs/Suggestion" }
    },
    "warnings": {
      "type": "array",
      "items": { "type": "string" },
      "description": "Non-fatal per-file failures (missing, unreadable, or unparseable sources)"
    }
  },
  "$defs": {
    "Stats": {
      "type": "object",
      "required": ["coverage_percent", "files_analyzed", "files_with_gaps", "total_suggestions"],
      "properties": {
        "coverage_percent": {
          "type": "number",
          "minimum": 0,
          "maximum": 100,
          "description": "Overall line coverage, one decimal place"
        },
        "files_analyzed": { "type": "integer", "minimum": 0 },
        "files_with_gaps": { "type": "integer", "minimum": 0 },
        "total_suggestions": { "type": "integer", "minimum": 0 }
      }
    },
    "Suggestion": {
      "type": "object",
      "required": [
        "test_name", "test_file", "source_file", "description",
        "start_line", "end_line", "priority", "code_template",
        "setup_hints", "block_type"
      ],
      "properties": {
        "test_name": {
          "type": "string",
          "description": "Suggested test identifier, unique within the file"
        },
        "test_file": {
          "type": "string",
          "description": "Suggested path for the test file"
        },
        "source_file": {
          "type": "string",
          "description": "Source path as recorded in the coverage report"
        },
        "description": {
          "type": "string",
          "description": "One-line summary: scope, line range, triggering condition"
        },
        "start_line": { "type": "integer", "minimum": 1 },
        "end_line": { "type": "integer", "minimum": 1 },
        "priority": {
          "type": "string",
          "enum": ["critical", "high", "medium", "low"],
          "description": "Severity tier"
        },
        "code_template": {
          "type": "string",
          "description": "Arrange/act/assert stub, placeholder scaffolding only"
        },
        "setup_hints": {
          "oneOf": [
            { "type": "array", "items": { "type": "string" } },
            { "type": "null" }
          ],
          "description": "Mocking and fixture recommendations"
        },
        "block_type": {
          "type": "string",
          "enum": [
            "function", "conditional_branch", "loop", "loop_else",
            "exception_handler", "try_else", "try_finally",
            "context_manager", "pattern_arm", "module_level",
            "comprehension", "lambda", "raise_statement",
            "return_statement"
          ],
          "description": "Syntactic classification of the uncovered block"
        }
      }
    }
  }
}`
