package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/flynn-ai/llmgate/pkg/protocol"
)

const toolCallKey = "tool_call"

// fencedJSON matches ```json fenced blocks holding an object.
var fencedJSON = regexp.MustCompile("(?s)```json\\s*(\\{.*?})\\s*```")

// maxCandidate bounds the size of an embedded object considered by the
// scanning strategy.
const maxCandidate = 64 << 10

// ParseToolCall extracts a tool call from a model reply. It tries, in order:
// the whole trimmed text as JSON, each ```json fenced block, and each
// balanced {...} object in the text that mentions "tool_call". The first
// candidate that decodes to an object with a tool_call member wins.
// ok is false when the reply is a final answer.
func ParseToolCall(text string) (call *protocol.ToolCall, ok bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}

	if call, ok := decodeCandidate(strings.TrimSpace(text)); ok {
		return call, true
	}

	for _, m := range fencedJSON.FindAllStringSubmatch(text, -1) {
		if call, ok := decodeCandidate(m[1]); ok {
			return call, true
		}
	}

	for _, candidate := range embeddedObjects(text) {
		if call, ok := decodeCandidate(candidate); ok {
			return call, true
		}
	}

	return nil, false
}

// decodeCandidate parses one JSON document and returns its tool_call member.
// Malformed JSON, non-objects and documents without the key are rejected.
// A misshaped tool_call member still yields a call, marked Invalid.
func decodeCandidate(doc string) (*protocol.ToolCall, bool) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &envelope); err != nil {
		return nil, false
	}
	raw, ok := envelope[toolCallKey]
	if !ok {
		return nil, false
	}

	var call protocol.ToolCall
	if err := json.Unmarshal(raw, &call); err != nil {
		return malformedCall(raw), true
	}
	if call.Arguments == nil {
		call.Arguments = map[string]any{}
	}
	return &call, true
}

// malformedCall recovers what it can from a tool_call member that does not
// have the {"name": string, "arguments": object} shape.
func malformedCall(raw json.RawMessage) *protocol.ToolCall {
	call := &protocol.ToolCall{Arguments: map[string]any{}}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		// "tool_call": "calculator" names the tool without arguments
		_ = json.Unmarshal(raw, &call.Name)
		call.Invalid = "tool_call must be an object with name and arguments"
		return call
	}

	if err := json.Unmarshal(fields["name"], &call.Name); err != nil {
		call.Name = ""
		call.Invalid = "tool_call name must be a string"
		return call
	}
	call.Invalid = "tool_call arguments must be an object"
	return call
}

// embeddedObjects returns, in order of their opening brace, the balanced
// JSON-looking objects in text that contain the tool_call key. Braces
// inside string literals are ignored.
func embeddedObjects(text string) []string {
	marker := `"` + toolCallKey + `"`
	if !strings.Contains(text, marker) {
		return nil
	}

	var out []string
	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}
		end := matchBrace(text, start)
		if end < 0 {
			continue
		}
		candidate := text[start : end+1]
		if strings.Contains(candidate, marker) {
			out = append(out, candidate)
		}
	}
	return out
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false

	limit := min(len(text), start+maxCandidate)
	for i := start; i < limit; i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// FormatToolResult renders a tool result as the text of the next
// conversation message.
func FormatToolResult(name string, result any) string {
	return fmt.Sprintf("Result of tool '%s':\n```json\n%s\n```\n\nNow use this result to answer the user.",
		name, marshalIndent(result))
}

func marshalIndent(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fallback, _ := json.Marshal(fmt.Sprintf("%v", v))
		return string(fallback)
	}
	return strings.TrimRight(buf.String(), "\n")
}
