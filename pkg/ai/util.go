package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// ErrMalformedOutput is returned when structured model output cannot be
// decoded even after repair. Retrying the request may succeed.
var ErrMalformedOutput = errors.New("malformed model output")

// maxQuotedOutput bounds how much of a bad answer ends up in an error.
const maxQuotedOutput = 200

// GenerateSchema reflects the JSON schema sent as the response format for
// structured completions. Definitions are inlined and extra properties are
// rejected, which both providers require.
func GenerateSchema(value any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return reflector.Reflect(reflect.New(t).Interface())
}

// UnmarshalFlexible decodes a model answer into out. Besides plain JSON it
// accepts answers wrapped in a markdown code fence, double-encoded as a
// JSON string, opened with a doubled brace, or broken in ways jsonrepair
// can fix. Failures wrap ErrMalformedOutput.
func UnmarshalFlexible(input string, out any) error {
	input = stripCodeFence(strings.TrimSpace(input))
	if input == "" {
		return fmt.Errorf("%w: empty answer", ErrMalformedOutput)
	}

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	var asString string
	if err := json.Unmarshal([]byte(input), &asString); err == nil {
		asString = stripCodeFence(strings.TrimSpace(asString))
		if err := json.Unmarshal([]byte(asString), out); err == nil {
			return nil
		}
		input = asString
	}

	input = stripDoubledBrace(input)
	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return fmt.Errorf("%w: repair %q: %v", ErrMalformedOutput, quote(input), err)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("%w: decode repaired %q: %v", ErrMalformedOutput, quote(repaired), err)
	}
	return nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func stripDoubledBrace(s string) string {
	if strings.HasPrefix(s, "{") {
		rest := strings.TrimSpace(s[1:])
		if strings.HasPrefix(rest, "{") {
			return rest
		}
	}
	return s
}

func quote(s string) string {
	r := []rune(s)
	if len(r) <= maxQuotedOutput {
		return s
	}
	return string(r[:maxQuotedOutput]) + "..."
}
