package fstools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ToolError is a failure reported back to the model.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func toolErr(code, format string, args ...any) error {
	return ToolError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// resolveRoot makes root absolute and resolves symlinks so later boundary
// checks compare like with like.
func resolveRoot(root string) (string, error) {
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		root = cwd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("abs(%s): %w", root, err)
	}
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		abs = r
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("workspace root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("workspace root %s is not a directory", abs)
	}
	return abs, nil
}

// resolve maps a workspace-relative path to an absolute path inside root.
// Absolute paths are accepted when they already lie inside root. Parent
// traversal and symlink escapes are rejected, as is anything under .git.
func (w *Workspace) resolve(p string) (abs, rel string, err error) {
	if p == "" {
		return "", "", toolErr("ERR_INVALID_PATH", "path is required")
	}
	candidate := p
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(w.root, filepath.Clean(p))
	}
	candidate = filepath.Clean(candidate)

	candidate, err = evalExisting(candidate)
	if err != nil {
		return "", "", toolErr("ERR_PATH_OUTSIDE_WORKSPACE", "%s: %v", p, err)
	}

	rel, err = filepath.Rel(w.root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", "", toolErr("ERR_PATH_OUTSIDE_WORKSPACE", "%s resolves outside the workspace", p)
	}

	slash := filepath.ToSlash(rel)
	if slash == ".git" || strings.HasPrefix(slash, ".git/") {
		return "", "", toolErr("ERR_DENIED", "paths under .git are not accessible")
	}
	return candidate, rel, nil
}

// evalExisting resolves symlinks in the deepest existing ancestor of p and
// re-joins the components that do not exist yet. A component that exists but
// cannot be resolved is a dangling or looping symlink and is rejected.
func evalExisting(p string) (string, error) {
	var missing []string
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{resolved}, missing...)...), nil
		}
		if _, lerr := os.Lstat(cur); lerr == nil {
			return "", fmt.Errorf("cannot resolve symlink %s", filepath.Base(cur))
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		missing = append([]string{filepath.Base(cur)}, missing...)
		cur = parent
	}
}
