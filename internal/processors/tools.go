package processors

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/relaymesh/geminigate/internal/gemini"
)

// prunedSchemaKeys are JSON-schema keys the upstream rejects outright
// (spec §4.2).
var prunedSchemaKeys = []string{"additionalProperties", "$schema", "strict", "default"}

// PruneSchema recursively strips the keys above, and any "format" value
// other than "enum"/"date-time", from a JSON-schema document. It is
// idempotent: pruning a pruned schema is a no-op (spec §8).
func PruneSchema(schema json.RawMessage) json.RawMessage {
	if len(schema) == 0 {
		return schema
	}

	result := gjson.ParseBytes(schema)
	if !result.IsObject() && !result.IsArray() {
		return schema
	}

	pruned, err := pruneValue(schema)
	if err != nil {
		return schema
	}

	return pruned
}

func pruneValue(doc json.RawMessage) (json.RawMessage, error) {
	result := gjson.ParseBytes(doc)

	if result.IsArray() {
		out := []byte("[]")

		var outerErr error

		idx := 0

		result.ForEach(func(_, item gjson.Result) bool {
			child, err := pruneValue(json.RawMessage(item.Raw))
			if err != nil {
				outerErr = err
				return false
			}

			out, err = sjson.SetRawBytes(out, strconv.Itoa(idx), child)
			if err != nil {
				outerErr = err
				return false
			}

			idx++

			return true
		})

		return out, outerErr
	}

	if !result.IsObject() {
		return doc, nil
	}

	out := []byte("{}")

	var outerErr error

	result.ForEach(func(key, value gjson.Result) bool {
		k := key.String()

		for _, pruned := range prunedSchemaKeys {
			if k == pruned {
				return true
			}
		}

		if k == "format" {
			fv := value.String()
			if fv != "enum" && fv != "date-time" {
				return true
			}
		}

		var (
			child json.RawMessage
			err   error
		)

		if value.IsObject() || value.IsArray() {
			child, err = pruneValue(json.RawMessage(value.Raw))
		} else {
			child = json.RawMessage(value.Raw)
		}

		if err != nil {
			outerErr = err
			return false
		}

		out, err = sjson.SetRawBytes(out, sjsonEscape(k), child)
		if err != nil {
			outerErr = err
			return false
		}

		return true
	})

	return out, outerErr
}

// sjsonEscape escapes a raw object key so sjson's path syntax (which treats
// '.' and '*' specially) doesn't misinterpret it.
func sjsonEscape(key string) string {
	out := make([]byte, 0, len(key))

	for _, r := range key {
		if r == '.' || r == '*' || r == '?' || r == ':' {
			out = append(out, '\\')
		}

		out = append(out, string(r)...)
	}

	return string(out)
}

// ToolChoice is the parsed client tool_choice (Claude or OpenAI shape).
type ToolChoice struct {
	Mode string // "auto" | "none" | "any" | "function"
	Name string // set when Mode == "function"
}

// ToolCallingConfig maps a client tool_choice to Gemini's toolConfig (spec
// §4.2).
func ToolCallingConfig(choice *ToolChoice) *gemini.ToolConfig {
	if choice == nil {
		return &gemini.ToolConfig{FunctionCallingConfig: &gemini.FunctionCallingConfig{Mode: "AUTO"}}
	}

	switch choice.Mode {
	case "none":
		return &gemini.ToolConfig{FunctionCallingConfig: &gemini.FunctionCallingConfig{Mode: "NONE"}}
	case "any":
		return &gemini.ToolConfig{FunctionCallingConfig: &gemini.FunctionCallingConfig{Mode: "ANY"}}
	case "function":
		return &gemini.ToolConfig{FunctionCallingConfig: &gemini.FunctionCallingConfig{
			Mode:                 "ANY",
			AllowedFunctionNames: []string{choice.Name},
		}}
	default:
		return &gemini.ToolConfig{FunctionCallingConfig: &gemini.FunctionCallingConfig{Mode: "AUTO"}}
	}
}

// ToolDeclaration is a dialect-agnostic function tool definition.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// claudeBuiltinSchemas gives fixed parameter schemas to Claude's built-in
// tool types so they can travel through Gemini as ordinary function
// declarations (spec §4.2).
var claudeBuiltinSchemas = map[string]json.RawMessage{
	"bash": json.RawMessage(`{"type":"object","properties":{"command":{"type":"string"}},"required":["command"]}`),
	"str_replace_editor": json.RawMessage(
		`{"type":"object","properties":{"command":{"type":"string"},"path":{"type":"string"},"file_text":{"type":"string"},"old_str":{"type":"string"},"new_str":{"type":"string"}},"required":["command","path"]}`,
	),
}

// NormalizeClaudeBuiltin rewrites a Claude built-in tool type (bash_*,
// text_editor_*) to a named function declaration with a fixed schema. It
// returns ok=false for tools that aren't a recognized built-in.
func NormalizeClaudeBuiltin(toolType string) (ToolDeclaration, bool) {
	switch {
	case strings.HasPrefix(toolType, "bash_"):
		return ToolDeclaration{Name: "bash", Description: "Execute a bash command", Parameters: claudeBuiltinSchemas["bash"]}, true
	case strings.HasPrefix(toolType, "text_editor_"):
		return ToolDeclaration{
			Name:        "str_replace_editor",
			Description: "View, create, and edit files",
			Parameters:  claudeBuiltinSchemas["str_replace_editor"],
		}, true
	default:
		return ToolDeclaration{}, false
	}
}

// ToGeminiTools converts a list of dialect-agnostic declarations into the
// Gemini wire shape, pruning each parameter schema.
func ToGeminiTools(decls []ToolDeclaration) []*gemini.Tool {
	if len(decls) == 0 {
		return nil
	}

	functions := make([]*gemini.FunctionDeclaration, 0, len(decls))

	for _, d := range decls {
		functions = append(functions, &gemini.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  PruneSchema(d.Parameters),
		})
	}

	return []*gemini.Tool{{FunctionDeclarations: functions}}
}
