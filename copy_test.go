package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCopyFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.jpg")
	if err := os.WriteFile(src, []byte("payload"), 0600); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2020, 3, 4, 5, 6, 7, 0, time.Local)
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(t.TempDir(), "nested", "dst.jpg")
	if err := copyFile(src, dst); err != nil {
		t.Fatalf("copyFile() error = %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("contents = %q", data)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("mtime = %v, want %v", info.ModTime(), mtime)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions = %v, want 0600", info.Mode().Perm())
	}
}

func TestCopyFileMissingSource(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "dst.jpg")
	if err := copyFile("/no/such/file.jpg", dst); err == nil {
		t.Fatal("copyFile() expected error for missing source")
	}
	if pathExists(dst) {
		t.Error("copyFile() left a destination behind after failure")
	}
}
