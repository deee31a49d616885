package agentloop

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// TurnParser turns the final text of a model turn into a ParsedTurn.
type TurnParser func(text string) ParsedTurn

// ParseTurn recognizes a tool call written as a JSON object with a "tool"
// string and an optional "arguments" object, either as the whole reply, in a
// fenced code block, or trailing prose. Anything else is plain text.
func ParseTurn(text string) ParsedTurn {
	for _, candidate := range callCandidates(text) {
		name := gjson.Get(candidate, "tool")
		if name.Type != gjson.String || strings.TrimSpace(name.String()) == "" {
			continue
		}
		args := json.RawMessage(`{}`)
		if a := gjson.Get(candidate, "arguments"); a.Exists() && a.Type != gjson.Null {
			args = json.RawMessage(a.Raw)
		}
		return ParsedTurn{
			Text:     text,
			ToolCall: &ToolCall{Name: strings.TrimSpace(name.String()), Arguments: args},
		}
	}
	return ParsedTurn{Text: strings.TrimSpace(text)}
}

// callCandidates lists the JSON objects that may hold a tool call, in order:
// fenced blocks, the whole reply, then a trailing {"tool" object.
func callCandidates(text string) []string {
	trimmed := strings.TrimSpace(text)
	var out []string

	rest := trimmed
	for {
		start := strings.Index(rest, "```")
		if start == -1 {
			break
		}
		body := rest[start+3:]
		if nl := strings.IndexByte(body, '\n'); nl != -1 {
			body = body[nl+1:]
		}
		end := strings.Index(body, "```")
		if end == -1 {
			break
		}
		if c := strings.TrimSpace(body[:end]); gjson.Valid(c) {
			out = append(out, c)
		}
		rest = body[end+3:]
	}

	if gjson.Valid(trimmed) && strings.HasPrefix(trimmed, "{") {
		out = append(out, trimmed)
	}

	start := strings.Index(trimmed, `{"tool"`)
	end := strings.LastIndexByte(trimmed, '}')
	if start != -1 && end > start {
		if c := trimmed[start : end+1]; gjson.Valid(c) {
			out = append(out, c)
		}
	}
	return out
}
