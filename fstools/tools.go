package fstools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	defaultReadLimit = 2000
	maxGlobMatches   = 1000
)

type FileReadArgs struct {
	Path   string `json:"path" jsonschema_description:"File path, relative to the workspace root."`
	Offset int    `json:"offset,omitempty" jsonschema_description:"1-based line number to start reading from."`
	Limit  int    `json:"limit,omitempty" jsonschema_description:"Maximum number of lines to read (default 2000)."`
}

type FileGlobArgs struct {
	Pattern string `json:"pattern" jsonschema_description:"Glob pattern such as *.go or src/**/*.ts. ** matches any number of directories."`
	Path    string `json:"path,omitempty" jsonschema_description:"Directory to search from (default: workspace root)."`
}

type FileWriteArgs struct {
	Path    string `json:"path" jsonschema_description:"File path, relative to the workspace root. Parent directories are created."`
	Content string `json:"content" jsonschema_description:"The full file content to write."`
}

type FileEditArgs struct {
	Path       string `json:"path" jsonschema_description:"File path, relative to the workspace root."`
	OldString  string `json:"old_string" jsonschema_description:"Exact text to find. Must be unique in the file unless replace_all is set."`
	NewString  string `json:"new_string" jsonschema_description:"Replacement text."`
	ReplaceAll bool   `json:"replace_all,omitempty" jsonschema_description:"Replace every occurrence."`
}

type result struct {
	output    string
	affected  string
	artifacts []string
}

func (w *Workspace) fileRead(_ context.Context, a FileReadArgs) (result, error) {
	abs, rel, err := w.resolve(a.Path)
	if err != nil {
		return result{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return result{}, toolErr("ERR_NOT_FOUND", "%s does not exist", rel)
	}
	if info.IsDir() {
		return result{}, toolErr("ERR_NOT_A_FILE", "%s is a directory", rel)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return result{}, toolErr("ERR_IO", "read %s: %v", rel, err)
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	start := 0
	if a.Offset > 0 {
		start = a.Offset - 1
	}
	if start > len(lines) {
		start = len(lines)
	}
	limit := a.Limit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	end := start + limit
	if end > len(lines) {
		end = len(lines)
	}

	var sb strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&sb, "%d | %s\n", i+1, lines[i])
	}
	if end < len(lines) {
		fmt.Fprintf(&sb, "[%d more lines; use offset=%d to continue]\n", len(lines)-end, end+1)
	}
	if sb.Len() == 0 {
		sb.WriteString("(empty file)\n")
	}
	return result{output: sb.String(), affected: rel}, nil
}

func (w *Workspace) fileGlob(ctx context.Context, a FileGlobArgs) (result, error) {
	if a.Pattern == "" {
		return result{}, toolErr("ERR_INVALID_ARGS", "pattern is required")
	}
	if !doublestar.ValidatePattern(a.Pattern) {
		return result{}, toolErr("ERR_INVALID_ARGS", "bad pattern %q", a.Pattern)
	}

	base, baseRel := w.root, "."
	if a.Path != "" {
		var err error
		if base, baseRel, err = w.resolve(a.Path); err != nil {
			return result{}, err
		}
	}

	var matches []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if d.IsDir() || p == base {
			return nil
		}
		rel, _ := filepath.Rel(base, p)
		if ok, _ := doublestar.Match(a.Pattern, filepath.ToSlash(rel)); ok {
			wsRel, _ := filepath.Rel(w.root, p)
			matches = append(matches, filepath.ToSlash(wsRel))
			if len(matches) >= maxGlobMatches {
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return result{}, err
	}

	if len(matches) == 0 {
		return result{output: fmt.Sprintf("no files match %q under %s", a.Pattern, baseRel)}, nil
	}
	sort.Strings(matches)
	return result{output: strings.Join(matches, "\n")}, nil
}

func (w *Workspace) fileWrite(_ context.Context, a FileWriteArgs) (result, error) {
	abs, rel, err := w.resolve(a.Path)
	if err != nil {
		return result{}, err
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return result{}, toolErr("ERR_NOT_A_FILE", "%s is a directory", rel)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return result{}, toolErr("ERR_IO", "create parent of %s: %v", rel, err)
	}
	if err := os.WriteFile(abs, []byte(a.Content), 0o644); err != nil {
		return result{}, toolErr("ERR_IO", "write %s: %v", rel, err)
	}
	return result{
		output:    fmt.Sprintf("wrote %d bytes to %s", len(a.Content), rel),
		affected:  rel,
		artifacts: []string{rel},
	}, nil
}

func (w *Workspace) fileEdit(_ context.Context, a FileEditArgs) (result, error) {
	abs, rel, err := w.resolve(a.Path)
	if err != nil {
		return result{}, err
	}
	if a.OldString == "" {
		return result{}, toolErr("ERR_INVALID_ARGS", "old_string must not be empty")
	}
	if a.OldString == a.NewString {
		return result{}, toolErr("ERR_INVALID_ARGS", "old_string and new_string are identical")
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return result{}, toolErr("ERR_NOT_FOUND", "%s does not exist", rel)
	}
	content := string(data)

	count := strings.Count(content, a.OldString)
	switch {
	case count == 0:
		return result{}, toolErr("ERR_NO_MATCH", "old_string not found in %s", rel)
	case count > 1 && !a.ReplaceAll:
		return result{}, toolErr("ERR_AMBIGUOUS", "old_string found %d times in %s; add context to make it unique or set replace_all", count, rel)
	}

	n := 1
	if a.ReplaceAll {
		n = -1
	}
	if err := os.WriteFile(abs, []byte(strings.Replace(content, a.OldString, a.NewString, n)), 0o644); err != nil {
		return result{}, toolErr("ERR_IO", "write %s: %v", rel, err)
	}
	if !a.ReplaceAll {
		count = 1
	}
	return result{
		output:    fmt.Sprintf("replaced %d occurrence(s) in %s", count, rel),
		affected:  rel,
		artifacts: []string{rel},
	}, nil
}
