package reorder

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/cases"
)

var replySchema = jsonschema.MustCompileString("reply.json", `{
	"type": "array",
	"items": {"type": "string"}
}`)

var (
	leadingFence  = regexp.MustCompile("^\\s*```[A-Za-z0-9_+-]*[ \\t]*\\r?\\n?")
	trailingFence = regexp.MustCompile("\\r?\\n?[ \\t]*```\\s*$")

	// idAnnotation matches the "[ID:<uuid>]" suffix the prompt attaches to each task.
	idAnnotation = regexp.MustCompile(`(?i)\s*\[\s*ID\s*:\s*([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})\s*\]`)
)

// Reply is the parsed form of a model answer. Exactly one of Tokens or Err is meaningful:
// a nil Err means the answer was a JSON array of strings.
type Reply struct {
	Tokens []string
	Err    error
}

// Malformed reports whether the answer could not be interpreted.
func (r Reply) Malformed() bool { return r.Err != nil }

// StripCodeFence removes a markdown code fence wrapped around raw.
func StripCodeFence(raw string) string {
	s := leadingFence.ReplaceAllString(raw, "")
	s = trailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ParseReply interprets raw model output as an ordered list of task tokens.
func ParseReply(raw string) Reply {
	cleaned := StripCodeFence(raw)
	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return Reply{Err: fmt.Errorf("decode reply: %w", err)}
	}
	if err := replySchema.Validate(v); err != nil {
		return Reply{Err: fmt.Errorf("reply is not a list of strings: %w", err)}
	}
	items := v.([]any)
	tokens := make([]string, len(items))
	for i, item := range items {
		tokens[i] = item.(string)
	}
	return Reply{Tokens: tokens}
}

// Normalize returns the matching key for a task text or reply token:
// Unicode case-folded with surrounding space trimmed and inner runs collapsed.
func Normalize(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// stripAnnotation removes any echoed "[ID:...]" markup from token and returns the
// first annotated id, if there was one.
func stripAnnotation(token string) (string, string) {
	var id string
	if m := idAnnotation.FindStringSubmatch(token); m != nil {
		id = strings.ToLower(m[1])
	}
	return idAnnotation.ReplaceAllString(token, ""), id
}
