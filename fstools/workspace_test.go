package fstools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/martinemde/toolloop/agentloop"
	"github.com/martinemde/toolloop/execlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newWorkspace(t *testing.T, opts ...Option) (*Workspace, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := NewWorkspace(dir, opts...)
	require.NoError(t, err)
	return w, w.Root()
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func invoke(t *testing.T, w *Workspace, name, args string) agentloop.ToolOutcome {
	t.Helper()
	return w.Invoke(context.Background(), name, json.RawMessage(args))
}

func TestCapabilities(t *testing.T) {
	w, _ := newWorkspace(t)
	caps := w.Capabilities()

	assert.True(t, caps.IsGated(ToolFileWrite))
	assert.True(t, caps.IsGated(ToolFileEdit))
	assert.False(t, caps.IsGated(ToolFileRead))
	assert.False(t, caps.IsGated(ToolFileGlob))

	_, ok := caps.Get(ToolMemoryQuery)
	assert.False(t, ok, "memory_query needs a record store")

	c, ok := caps.Get(ToolFileEdit)
	require.True(t, ok)
	assert.Equal(t, "object", gjson.GetBytes(c.Parameters, "type").String())
	assert.True(t, gjson.GetBytes(c.Parameters, "properties.old_string").Exists())
	assert.Equal(t, "b.txt", caps.AffectedPath(ToolFileEdit, json.RawMessage(`{"path":"b.txt"}`)))
}

func TestCustomGatedTools(t *testing.T) {
	w, _ := newWorkspace(t, WithGatedTools(ToolFileRead))
	caps := w.Capabilities()
	assert.True(t, caps.IsGated(ToolFileRead))
	assert.False(t, caps.IsGated(ToolFileWrite))
}

func TestFileRead(t *testing.T) {
	w, root := newWorkspace(t)
	write(t, root, "notes.txt", "alpha\nbeta\ngamma\n")

	out := invoke(t, w, ToolFileRead, `{"path":"notes.txt"}`)
	require.True(t, out.Success, out.Output)
	assert.Equal(t, "1 | alpha\n2 | beta\n3 | gamma\n", out.Output)
	assert.Equal(t, "notes.txt", out.AffectedPath)

	out = invoke(t, w, ToolFileRead, `{"path":"notes.txt","offset":2,"limit":1}`)
	require.True(t, out.Success)
	assert.Equal(t, "2 | beta\n[1 more lines; use offset=3 to continue]\n", out.Output)
}

func TestFileReadFailures(t *testing.T) {
	w, root := newWorkspace(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	tests := []struct {
		name string
		args string
		code string
	}{
		{"missing", `{"path":"nope.txt"}`, "ERR_NOT_FOUND"},
		{"directory", `{"path":"sub"}`, "ERR_NOT_A_FILE"},
		{"escape", `{"path":"../outside.txt"}`, "ERR_PATH_OUTSIDE_WORKSPACE"},
		{"git", `{"path":".git/config"}`, "ERR_DENIED"},
		{"unknown field", `{"path":"a","bogus":1}`, "ERR_INVALID_ARGS"},
		{"malformed", `{"path":`, "ERR_INVALID_ARGS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := invoke(t, w, ToolFileRead, tt.args)
			assert.False(t, out.Success)
			assert.True(t, strings.HasPrefix(out.Output, tt.code), out.Output)
		})
	}
}

func TestFileGlob(t *testing.T) {
	w, root := newWorkspace(t)
	write(t, root, "main.go", "package main")
	write(t, root, "pkg/a/a.go", "package a")
	write(t, root, "pkg/a/a_test.go", "package a")
	write(t, root, "README.md", "# hi")

	out := invoke(t, w, ToolFileGlob, `{"pattern":"**/*.go"}`)
	require.True(t, out.Success, out.Output)
	assert.Equal(t, "main.go\npkg/a/a.go\npkg/a/a_test.go", out.Output)

	out = invoke(t, w, ToolFileGlob, `{"pattern":"*_test.go","path":"pkg/a"}`)
	require.True(t, out.Success)
	assert.Equal(t, "pkg/a/a_test.go", out.Output)

	out = invoke(t, w, ToolFileGlob, `{"pattern":"*.rs"}`)
	require.True(t, out.Success)
	assert.Contains(t, out.Output, "no files match")
}

func TestFileGlobPatterns(t *testing.T) {
	w, root := newWorkspace(t)
	write(t, root, "src/x.ts", "")
	write(t, root, "src/deep/y.ts", "")
	write(t, root, "lib/z.ts", "")
	write(t, root, ".git/HEAD", "ref")

	tests := []struct {
		pattern, want string
	}{
		{"*.ts", "no files match"},
		{"src/**/*.ts", "src/deep/y.ts\nsrc/x.ts"},
		{"**/*.ts", "lib/z.ts\nsrc/deep/y.ts\nsrc/x.ts"},
		{"{lib,src}/*.ts", "lib/z.ts\nsrc/x.ts"},
		{"**/HEAD", "no files match"},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			out := invoke(t, w, ToolFileGlob, fmt.Sprintf(`{"pattern":%q}`, tt.pattern))
			require.True(t, out.Success, out.Output)
			if strings.HasPrefix(tt.want, "no files") {
				assert.Contains(t, out.Output, tt.want)
				return
			}
			assert.Equal(t, tt.want, out.Output)
		})
	}

	out := invoke(t, w, ToolFileGlob, `{"pattern":"src/[x.ts"}`)
	assert.False(t, out.Success)
	assert.True(t, strings.HasPrefix(out.Output, "ERR_INVALID_ARGS"), out.Output)
}

func TestFileWrite(t *testing.T) {
	w, root := newWorkspace(t)

	out := invoke(t, w, ToolFileWrite, `{"path":"out/new.txt","content":"hello"}`)
	require.True(t, out.Success, out.Output)
	assert.Equal(t, filepath.Join("out", "new.txt"), out.AffectedPath)
	assert.Equal(t, []string{filepath.Join("out", "new.txt")}, out.Artifacts)

	data, err := os.ReadFile(filepath.Join(root, "out", "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	out = invoke(t, w, ToolFileWrite, `{"path":"/etc/passwd","content":"x"}`)
	assert.False(t, out.Success)
	assert.Contains(t, out.Output, "ERR_PATH_OUTSIDE_WORKSPACE")
}

func TestSymlinkEscapes(t *testing.T) {
	w, root := newWorkspace(t)
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "missing.txt"), filepath.Join(root, "dangling")))
	write(t, outside, "secret.txt", "s3cret")

	tests := []struct {
		name, tool, args string
	}{
		{"write through missing dirs", ToolFileWrite, `{"path":"link/newdir/pwned.txt","content":"x"}`},
		{"write through link", ToolFileWrite, `{"path":"link/pwned.txt","content":"x"}`},
		{"write dangling link", ToolFileWrite, `{"path":"dangling","content":"x"}`},
		{"read through link", ToolFileRead, `{"path":"link/secret.txt"}`},
		{"glob through link", ToolFileGlob, `{"pattern":"*","path":"link"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := invoke(t, w, tt.tool, tt.args)
			assert.False(t, out.Success, out.Output)
			assert.True(t, strings.HasPrefix(out.Output, "ERR_PATH_OUTSIDE_WORKSPACE"), out.Output)
		})
	}

	_, err := os.Stat(filepath.Join(outside, "newdir"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(outside, "missing.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileEdit(t *testing.T) {
	w, root := newWorkspace(t)
	write(t, root, "b.txt", "one two one")

	out := invoke(t, w, ToolFileEdit, `{"path":"b.txt","old_string":"one","new_string":"1"}`)
	assert.False(t, out.Success)
	assert.Contains(t, out.Output, "ERR_AMBIGUOUS")

	out = invoke(t, w, ToolFileEdit, `{"path":"b.txt","old_string":"two","new_string":"2"}`)
	require.True(t, out.Success, out.Output)
	assert.Equal(t, "replaced 1 occurrence(s) in b.txt", out.Output)

	out = invoke(t, w, ToolFileEdit, `{"path":"b.txt","old_string":"one","new_string":"1","replace_all":true}`)
	require.True(t, out.Success, out.Output)

	data, err := os.ReadFile(filepath.Join(root, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1 2 1", string(data))

	out = invoke(t, w, ToolFileEdit, `{"path":"b.txt","old_string":"zzz","new_string":"y"}`)
	assert.False(t, out.Success)
	assert.Contains(t, out.Output, "ERR_NO_MATCH")
}

func TestUnknownToolAndCancelledContext(t *testing.T) {
	w, _ := newWorkspace(t)

	out := invoke(t, w, "shell", `{}`)
	assert.False(t, out.Success)
	assert.Contains(t, out.Output, `unknown tool "shell"`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out = w.Invoke(ctx, ToolFileGlob, json.RawMessage(`{"pattern":"*"}`))
	assert.False(t, out.Success)
	assert.Contains(t, out.Output, "cancelled")
}

func TestMemoryQuery(t *testing.T) {
	store, err := execlog.Open(t.TempDir())
	require.NoError(t, err)
	w, _ := newWorkspace(t, WithRecords(store))

	_, ok := w.Capabilities().Get(ToolMemoryQuery)
	require.True(t, ok)

	rec := &agentloop.ExecutionRecord{
		ToolName:  ToolFileRead,
		Arguments: json.RawMessage(`{"path":"a.txt"}`),
		StepIndex: 1,
		Success:   true,
		Output:    "the full original output",
	}
	require.NoError(t, store.Record(context.Background(), rec))

	out := invoke(t, w, ToolMemoryQuery, `{"execution_ref":"`+rec.ExecutionID+`"}`)
	require.True(t, out.Success, out.Output)
	assert.Contains(t, out.Output, "file_read step 1 (ok)")
	assert.Contains(t, out.Output, `arguments: {"path":"a.txt"}`)
	assert.True(t, strings.HasSuffix(out.Output, "the full original output"))

	out = invoke(t, w, ToolMemoryQuery, `{"execution_ref":"`+rec.ExecutionID+`","field":"arguments.path"}`)
	require.True(t, out.Success, out.Output)
	assert.Equal(t, "a.txt", out.Output)

	out = invoke(t, w, ToolMemoryQuery, `{"execution_ref":"01ARZ3NDEKTSV4RRFFQ69G5FAV"}`)
	assert.False(t, out.Success)
	assert.Contains(t, out.Output, "ERR_NOT_FOUND")
}

func TestEnvironmentContext(t *testing.T) {
	w, root := newWorkspace(t)
	env := w.EnvironmentContext("test-model")
	assert.Contains(t, env, "Workspace root: "+root)
	assert.Contains(t, env, "Model: test-model")

	assert.Empty(t, w.ProjectInstructions())
	write(t, root, "AGENTS.md", "  Always run tests.\n")
	assert.Equal(t, "Always run tests.", w.ProjectInstructions())
}
