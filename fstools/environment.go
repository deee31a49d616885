package fstools

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const maxProjectDocBytes = 32 * 1024

// EnvironmentContext renders the environment block placed in the prompt
// preamble.
func (w *Workspace) EnvironmentContext(model string) string {
	branch := ""
	isGit := isGitRepository(w.root)
	if isGit {
		branch = gitBranch(w.root)
	}

	var sb strings.Builder
	sb.WriteString("# Environment\n\n")
	fmt.Fprintf(&sb, "Workspace root: %s\n", w.root)
	fmt.Fprintf(&sb, "Is git repository: %v\n", isGit)
	if branch != "" {
		fmt.Fprintf(&sb, "Git branch: %s\n", branch)
	}
	fmt.Fprintf(&sb, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	if model != "" {
		fmt.Fprintf(&sb, "Model: %s\n", model)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// ProjectInstructions loads AGENTS.md from the workspace root, capped at
// 32KB. It returns "" when there is none.
func (w *Workspace) ProjectInstructions() string {
	data, err := os.ReadFile(filepath.Join(w.root, "AGENTS.md"))
	if err != nil {
		return ""
	}
	if len(data) > maxProjectDocBytes {
		data = append(data[:maxProjectDocBytes:maxProjectDocBytes], []byte("\n[AGENTS.md truncated]")...)
	}
	return strings.TrimSpace(string(data))
}

func isGitRepository(dir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	out, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

func gitBranch(dir string) string {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
