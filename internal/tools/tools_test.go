package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testExecContext(t *testing.T) *ExecContext {
	t.Helper()
	return &ExecContext{WorkDir: t.TempDir()}
}

func TestRegistryBasics(t *testing.T) {
	r := NewRegistry()
	for _, tool := range DefaultTools() {
		r.Register(tool)
	}

	names := r.Names()
	want := []string{"edit_file", "exec", "list_dir", "read_file", "write_file"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i, n := range want {
		if names[i] != n {
			t.Fatalf("names[%d] = %s, want %s", i, names[i], n)
		}
	}

	if _, ok := r.Get("exec"); !ok {
		t.Fatal("exec not found")
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatal("unexpected tool")
	}

	sub := r.Subset([]string{"exec", "read_file", "missing"})
	if got := sub.Names(); len(got) != 2 {
		t.Fatalf("subset names = %v", got)
	}
	without := r.Without([]string{"exec"})
	if _, ok := without.Get("exec"); ok {
		t.Fatal("exec should be excluded")
	}
	if len(without.Names()) != 4 {
		t.Fatalf("without names = %v", without.Names())
	}

	defs := r.Definitions()
	if len(defs) != 5 {
		t.Fatalf("definitions = %d", len(defs))
	}
	fn, _ := defs[0]["function"].(map[string]any)
	if fn == nil || fn["name"] != "edit_file" {
		t.Fatalf("first definition = %#v", defs[0])
	}
}

func TestToolClassDefaults(t *testing.T) {
	if got := ToolClass(NewReadFileTool()); got != ClassReadOnly {
		t.Fatalf("read_file class = %v", got)
	}
	if got := ToolClass(NewExecTool(0)); got != ClassShell {
		t.Fatalf("exec class = %v", got)
	}
	if got := ToolClass(unclassifiedTool{}); got != ClassWrite {
		t.Fatalf("unclassified class = %v", got)
	}
}

type unclassifiedTool struct{}

func (unclassifiedTool) Name() string               { return "plain" }
func (unclassifiedTool) Description() string        { return "" }
func (unclassifiedTool) Parameters() map[string]any { return nil }
func (unclassifiedTool) Execute(ctx context.Context, params map[string]any, ec *ExecContext) (string, error) {
	return "", nil
}

func TestWriteReadEditRoundtrip(t *testing.T) {
	ec := testExecContext(t)
	ctx := context.Background()

	out, err := NewWriteFileTool().Execute(ctx, map[string]any{
		"path": "notes/todo.txt", "content": "alpha beta",
	}, ec)
	if err != nil || !strings.Contains(out, "Successfully wrote") {
		t.Fatalf("write: %q %v", out, err)
	}

	out, err = NewReadFileTool().Execute(ctx, map[string]any{"path": "notes/todo.txt"}, ec)
	if err != nil || out != "alpha beta" {
		t.Fatalf("read: %q %v", out, err)
	}

	out, err = NewEditFileTool().Execute(ctx, map[string]any{
		"path": "notes/todo.txt", "old_text": "beta", "new_text": "gamma",
	}, ec)
	if err != nil || !strings.Contains(out, "Successfully edited") {
		t.Fatalf("edit: %q %v", out, err)
	}

	data, err := os.ReadFile(filepath.Join(ec.WorkDir, "notes", "todo.txt"))
	if err != nil || string(data) != "alpha gamma" {
		t.Fatalf("file content = %q, %v", data, err)
	}
}

func TestWriteOutsideWorkDirBlocked(t *testing.T) {
	ec := testExecContext(t)
	out, err := NewWriteFileTool().Execute(context.Background(), map[string]any{
		"path": "/tmp/evil-escape.txt", "content": "x",
	}, ec)
	if err != nil || !strings.Contains(out, "outside working directory") {
		t.Fatalf("write escape: %q %v", out, err)
	}
	out, err = NewEditFileTool().Execute(context.Background(), map[string]any{
		"path": "../sibling.txt", "old_text": "a", "new_text": "b",
	}, ec)
	if err != nil || !strings.Contains(out, "outside working directory") {
		t.Fatalf("edit escape: %q %v", out, err)
	}
}

func TestReadMissingFile(t *testing.T) {
	ec := testExecContext(t)
	out, err := NewReadFileTool().Execute(context.Background(), map[string]any{"path": "nope.txt"}, ec)
	if err != nil || !strings.Contains(out, "file not found") {
		t.Fatalf("read missing: %q %v", out, err)
	}
}

func TestEditMissingText(t *testing.T) {
	ec := testExecContext(t)
	NewWriteFileTool().Execute(context.Background(), map[string]any{"path": "f.txt", "content": "hello"}, ec)
	out, err := NewEditFileTool().Execute(context.Background(), map[string]any{
		"path": "f.txt", "old_text": "absent", "new_text": "x",
	}, ec)
	if err != nil || !strings.Contains(out, "text not found") {
		t.Fatalf("edit: %q %v", out, err)
	}
}

func TestListDir(t *testing.T) {
	ec := testExecContext(t)
	os.MkdirAll(filepath.Join(ec.WorkDir, "sub"), 0o755)
	os.WriteFile(filepath.Join(ec.WorkDir, "a.txt"), []byte("x"), 0o644)

	out, err := NewListDirTool().Execute(context.Background(), map[string]any{"path": "."}, ec)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "[DIR]  sub/") || !strings.Contains(out, "[FILE] a.txt") {
		t.Fatalf("list output:\n%s", out)
	}
}

func TestExecRunsCommand(t *testing.T) {
	ec := testExecContext(t)
	out, err := NewExecTool(0).Execute(context.Background(), map[string]any{"command": "echo hello"}, ec)
	if err != nil || strings.TrimSpace(out) != "hello" {
		t.Fatalf("exec: %q %v", out, err)
	}
}

func TestExecReportsExitCode(t *testing.T) {
	ec := testExecContext(t)
	out, err := NewExecTool(0).Execute(context.Background(), map[string]any{"command": "exit 3"}, ec)
	if err != nil || !strings.Contains(out, "Exit code: 3") {
		t.Fatalf("exec: %q %v", out, err)
	}
}

func TestExecSafetyGuard(t *testing.T) {
	ec := testExecContext(t)
	blocked := []string{
		"rm -rf /",
		"dd if=/dev/zero of=/dev/sda",
		"mkfs.ext4 /dev/sda1",
		"shutdown now",
	}
	for _, cmd := range blocked {
		out, err := NewExecTool(0).Execute(context.Background(), map[string]any{"command": cmd}, ec)
		if err != nil || !strings.Contains(out, "blocked by safety guard") {
			t.Fatalf("command %q: %q %v", cmd, out, err)
		}
	}
}

func TestExecTimeout(t *testing.T) {
	ec := testExecContext(t)
	out, err := NewExecTool(100*time.Millisecond).Execute(context.Background(), map[string]any{"command": "sleep 5"}, ec)
	if err != nil || !strings.Contains(out, "timed out") {
		t.Fatalf("exec: %q %v", out, err)
	}
}

func TestParamHelpers(t *testing.T) {
	params := map[string]any{
		"s": "text", "i": 7, "f": 3.0, "b": true,
	}
	if got := GetString(params, "s", "d"); got != "text" {
		t.Fatalf("GetString = %q", got)
	}
	if got := GetString(params, "missing", "d"); got != "d" {
		t.Fatalf("GetString default = %q", got)
	}
	if got := GetInt(params, "i", 0); got != 7 {
		t.Fatalf("GetInt = %d", got)
	}
	if got := GetInt(params, "f", 0); got != 3 {
		t.Fatalf("GetInt float = %d", got)
	}
	if got := GetBool(params, "b", false); !got {
		t.Fatal("GetBool = false")
	}
	if _, err := RequireString(params, "missing"); err == nil {
		t.Fatal("RequireString should fail")
	}
	if v, err := RequireString(params, "s"); err != nil || v != "text" {
		t.Fatalf("RequireString = %q, %v", v, err)
	}
}
