package ai

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

var (
	assistantPrefix = regexp.MustCompile(`(?i)^assistant:\s*`)
	codeFenceJSON   = regexp.MustCompile("(?i)```json")
)

// StripAssistantPrefix drops a leading "assistant:" echo and trims whitespace.
func StripAssistantPrefix(s string) string {
	return strings.TrimSpace(assistantPrefix.ReplaceAllString(strings.TrimSpace(s), ""))
}

// StripCodeFences removes markdown ``` and ```json fences anywhere in s.
func StripCodeFences(s string) string {
	s = codeFenceJSON.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// SchemaOf reflects the JSON schema handed to structured-output requests.
// Objects are closed; nested types are inlined.
func SchemaOf(value any) any {
	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r := jsonschema.Reflector{DoNotReference: true}
	return r.Reflect(reflect.New(t).Interface())
}

// DecodeLenient decodes model output into out. Besides plain JSON it accepts
// fenced blocks, a JSON document encoded as a string, and input that
// jsonrepair can fix.
func DecodeLenient(input string, out any) error {
	text := StripCodeFences(input)
	if json.Unmarshal([]byte(text), out) == nil {
		return nil
	}

	var inner string
	if json.Unmarshal([]byte(text), &inner) == nil {
		text = strings.TrimSpace(inner)
		if json.Unmarshal([]byte(text), out) == nil {
			return nil
		}
	}

	// models sometimes open the document twice: "{ {"
	if rest, ok := strings.CutPrefix(text, "{"); ok && strings.HasPrefix(strings.TrimSpace(rest), "{") {
		text = strings.TrimSpace(rest)
	}

	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return fmt.Errorf("json repair failed: %w (input: %s)", err, text)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("decode repaired json: %w (repaired: %s)", err, repaired)
	}
	return nil
}
