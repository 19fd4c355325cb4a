package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadInputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := readInput(path)
	if err != nil {
		t.Fatalf("readInput: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q", got)
	}
}

func TestReadInputEmpty(t *testing.T) {
	got, err := readInput("")
	if err != nil {
		t.Fatalf("readInput: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestWriteStderrToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "err.txt")
	if err := writeStderr(path, []byte("oops")); err != nil {
		t.Fatalf("writeStderr: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "oops" {
		t.Errorf("got %q", got)
	}
}
