package io

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/graphweave/graphrag/pkg/loader"
)

func TestNewDirSource_Missing(t *testing.T) {
	_, err := NewDirSource(filepath.Join(t.TempDir(), "nope"), "")
	if !errors.Is(err, loader.ErrSourceMissing) {
		t.Fatalf("NewDirSource() error = %v, want ErrSourceMissing", err)
	}

	file := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := NewDirSource(file, ""); !errors.Is(err, loader.ErrSourceMissing) {
		t.Fatalf("NewDirSource(file) error = %v, want ErrSourceMissing", err)
	}
}

func TestDirSource_ListAndRead(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b.txt":        "Venice is beautiful.",
		"a.TXT":        "Rome is historic.",
		"notes.md":     "ignored",
		"sub/c.txt":    "Paris.",
		"sub/skip.csv": "x,y",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	src, err := NewDirSource(dir, "")
	if err != nil {
		t.Fatalf("NewDirSource() error = %v", err)
	}
	got, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.TXT"),
		filepath.Join(dir, "b.txt"),
		filepath.Join(dir, "sub", "c.txt"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}

	body, err := src.Read(context.Background(), got[1])
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(body) != "Venice is beautiful." {
		t.Fatalf("Read() = %q", body)
	}
}
