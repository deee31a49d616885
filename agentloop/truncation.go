package agentloop

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TruncationMode specifies how output is truncated.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// DefaultOutputChars is the character limit for tools without an entry in
// DefaultToolCharLimits.
const DefaultOutputChars = 20000

// Default character limits per tool for model-facing output.
var DefaultToolCharLimits = map[string]int{
	"file_read":     40000,
	"file_glob":     10000,
	"file_write":    1000,
	"file_edit":     4000,
	MemoryQueryTool: 40000,
}

// Default truncation modes per tool.
var DefaultTruncationModes = map[string]TruncationMode{
	"file_read": TruncateHeadTail,
	"file_glob": TruncateTail,
	"file_edit": TruncateTail,
}

// Default line limits per tool (applied after character truncation).
var DefaultToolLineLimits = map[string]int{
	"file_glob": 500,
}

// TruncateOutput applies character-based truncation to output. Cuts never
// split a UTF-8 sequence.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}

	if mode == TruncateTail {
		tail := runeStartAfter(output, len(output)-maxChars)
		return fmt.Sprintf("[output truncated: first %d characters removed; the full output is in the execution record]\n\n", tail) +
			output[tail:]
	}

	half := maxChars / 2
	head := runeStartBefore(output, half)
	tail := runeStartAfter(output, len(output)-half)
	return output[:head] +
		fmt.Sprintf("\n\n[output truncated: %d characters removed from the middle; the full output is in the execution record]\n\n", tail-head) +
		output[tail:]
}

func runeStartBefore(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

func runeStartAfter(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// TruncateLines applies line-based truncation using head/tail split.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if maxLines <= 0 || len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// TruncateToolOutput applies character truncation and then line truncation
// for a tool, falling back to the package defaults when a limit map has no
// entry for it.
func TruncateToolOutput(output string, toolName string, charLimits map[string]int, lineLimits map[string]int) string {
	maxChars, ok := charLimits[toolName]
	if !ok {
		maxChars, ok = DefaultToolCharLimits[toolName]
		if !ok {
			maxChars = DefaultOutputChars
		}
	}

	mode, ok := DefaultTruncationModes[toolName]
	if !ok {
		mode = TruncateHeadTail
	}

	result := TruncateOutput(output, maxChars, mode)

	maxLines, ok := lineLimits[toolName]
	if !ok {
		maxLines = DefaultToolLineLimits[toolName]
	}
	return TruncateLines(result, maxLines)
}
