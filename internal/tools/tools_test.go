package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestShellRunsCommand(t *testing.T) {
	sh := NewShell(0)
	result, err := sh.Execute(context.Background(), []byte(`{"command":"echo hi"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("result = %+v, want success", result)
	}
	if result.Content != "hi\n" {
		t.Fatalf("Content = %q, want %q", result.Content, "hi\n")
	}
}

func TestShellMissingCommand(t *testing.T) {
	sh := NewShell(0)
	result, err := sh.Execute(context.Background(), []byte(`{"command":""}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for an empty command")
	}
}

func TestShellNonZeroExit(t *testing.T) {
	sh := NewShell(0)
	result, err := sh.Execute(context.Background(), []byte(`{"command":"exit 1"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for a non-zero exit")
	}
}

func TestReadFileReadsWithinRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "note.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rf := NewReadFile(dir)
	result, err := rf.Execute(context.Background(), []byte(`{"path":"note.txt"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.IsError || result.Content != "hello" {
		t.Fatalf("result = %+v", result)
	}
}

func TestReadFileRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	rf := NewReadFile(dir)
	result, err := rf.Execute(context.Background(), []byte(`{"path":"../../etc/passwd"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for a path escaping the workspace root")
	}
}

func TestReadFileMissingPath(t *testing.T) {
	rf := NewReadFile(t.TempDir())
	result, err := rf.Execute(context.Background(), []byte(`{"path":""}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for a missing path")
	}
}
