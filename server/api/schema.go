package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const maxBodyBytes = 1 << 20

const taskDef = `{
	"type": "object",
	"required": ["id", "text"],
	"properties": {
		"id": {"type": "string"},
		"text": {"type": "string"},
		"completed": {"type": "boolean"},
		"priorityScore": {"type": "number"},
		"createdAt": {"type": "integer"}
	}
}`

var (
	reorderSchema = jsonschema.MustCompileString("reorder-request.json", `{
		"type": "object",
		"required": ["tasks", "newTaskText"],
		"properties": {
			"tasks": {"type": "array", "items": {"$ref": "#/$defs/task"}},
			"newTaskText": {"type": "string"}
		},
		"$defs": {"task": `+taskDef+`}
	}`)

	rerankSchema = jsonschema.MustCompileString("rerank-request.json", `{
		"type": "object",
		"required": ["tasks"],
		"properties": {
			"tasks": {"type": "array", "items": {"$ref": "#/$defs/task"}}
		},
		"$defs": {"task": `+taskDef+`}
	}`)

	suggestSchema = jsonschema.MustCompileString("suggest-request.json", `{
		"type": "object",
		"required": ["task", "tasks"],
		"properties": {
			"task": {"type": "object", "required": ["text"], "properties": {"text": {"type": "string"}}},
			"tasks": {"type": "array", "items": {"$ref": "#/$defs/task"}}
		},
		"$defs": {"task": `+taskDef+`}
	}`)
)

// decodeRequest reads the body, checks it against schema, and decodes it into v.
// Every failure wraps ErrInvalidInput.
func decodeRequest(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrInvalidInput, err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: body is not JSON: %v", ErrInvalidInput, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
