package agentloop

import (
	"fmt"
	"strings"
)

// BuildPreamble renders the fixed instructions that precede the history in
// every prompt: the reply protocol, the capability table, and optional
// environment and user instructions.
func BuildPreamble(caps *Capabilities, environment, instructions string) string {
	var sb strings.Builder
	sb.WriteString("You are operating tools in a workspace on behalf of the user.\n\n")
	sb.WriteString("# Reply protocol\n\n")
	sb.WriteString("To call a tool, reply with exactly one JSON object and nothing else:\n")
	sb.WriteString("{\"tool\": \"<name>\", \"arguments\": {...}}\n")
	sb.WriteString("One tool call per reply. Its result appears in the history as a [tool_result] entry.\n")
	sb.WriteString("When the task is finished, reply with plain text summarizing the outcome.\n")
	sb.WriteString("Tools marked (requires approval) may be denied by the user; do not retry a denied call unchanged.\n")

	if caps != nil {
		sb.WriteString("\n# Tools\n")
		for _, c := range caps.List() {
			gate := ""
			if c.Gated {
				gate = " (requires approval)"
			}
			fmt.Fprintf(&sb, "\n## %s%s\n%s\n", c.Name, gate, strings.TrimSpace(c.Description))
			if len(c.Parameters) > 0 {
				fmt.Fprintf(&sb, "Parameters (JSON Schema): %s\n", CanonicalArguments(c.Parameters))
			}
		}
	}

	if environment != "" {
		sb.WriteString("\n")
		sb.WriteString(environment)
		sb.WriteString("\n")
	}

	if instructions != "" {
		sb.WriteString("\n# User Instructions\n\n")
		sb.WriteString(instructions)
		sb.WriteString("\n")
	}
	return sb.String()
}

// BuildPrompt joins the preamble and the materialized history.
func BuildPrompt(preamble, history string) string {
	return preamble + "\n# Conversation\n\n" + history + "\n\n[assistant]\n"
}
