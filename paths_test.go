package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBuildLayout(t *testing.T) {
	root := t.TempDir()
	b := NewPathBuilder(root)

	taken := time.Date(2021, 6, 15, 10, 30, 0, 0, time.UTC)
	got, err := b.Build(taken, "Paris", "/photos/IMG_0001.jpg")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := filepath.Join(root, "2021", "06-June", "15", "Paris", "IMG_0001.jpg")
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}

	// The destination directory must already exist
	if !pathExists(filepath.Dir(got)) {
		t.Error("Build() did not create the destination directory")
	}
}

func TestBuildZeroPadsDay(t *testing.T) {
	root := t.TempDir()
	b := NewPathBuilder(root)

	taken := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	got, err := b.Build(taken, "Tokyo", "/photos/clip.mp4")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := filepath.Join(root, "2020", "01-January", "02", "Tokyo", "clip.mp4")
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestBuildCollisionSuffixes(t *testing.T) {
	root := t.TempDir()
	b := NewPathBuilder(root)
	taken := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)

	for i, want := range []string{"IMG_0001.jpg", "IMG_0001_1.jpg", "IMG_0001_2.jpg"} {
		got, err := b.Build(taken, "Paris", "/photos/IMG_0001.jpg")
		if err != nil {
			t.Fatalf("Build() #%d error = %v", i, err)
		}
		if filepath.Base(got) != want {
			t.Errorf("Build() #%d = %q, want basename %q", i, got, want)
		}
	}
}

func TestBuildReservesSlot(t *testing.T) {
	root := t.TempDir()
	b := NewPathBuilder(root)
	taken := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)

	first, err := b.Build(taken, "Paris", "/photos/IMG_0001.jpg")
	if err != nil {
		t.Fatal(err)
	}

	// The slot is claimed on return, before any copy happens
	if !pathExists(first) {
		t.Fatal("Build() did not reserve the returned path")
	}

	second, err := b.Build(taken, "Paris", "/photos/IMG_0001.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatalf("Build() handed out the same slot twice: %q", first)
	}

	// Two files heading for the same name must both survive the copies,
	// whichever order the copies land in
	if err := os.WriteFile(second, []byte("CONTENTS-B"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(first, []byte("CONTENTS-A"), 0644); err != nil {
		t.Fatal(err)
	}
	dataA, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	dataB, err := os.ReadFile(second)
	if err != nil {
		t.Fatal(err)
	}
	if string(dataA) != "CONTENTS-A" || string(dataB) != "CONTENTS-B" {
		t.Errorf("contents = %q, %q; a copy was lost to a shared slot", dataA, dataB)
	}
}

func TestBuildReservationAgainstExternalFiles(t *testing.T) {
	root := t.TempDir()
	b := NewPathBuilder(root)
	taken := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)

	// A file dropped into the destination by another process occupies the slot
	destDir := filepath.Join(root, "2021", "06-June", "15", "Paris")
	if err := os.MkdirAll(destDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(destDir, "IMG_0001.jpg"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := b.Build(taken, "Paris", "/photos/IMG_0001.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "IMG_0001_1.jpg" {
		t.Errorf("Build() = %q, want basename IMG_0001_1.jpg", filepath.Base(got))
	}
}

func TestBuildEmptyLocationFallsBack(t *testing.T) {
	root := t.TempDir()
	b := NewPathBuilder(root)

	taken := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)
	got, err := b.Build(taken, "", "/photos/a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(filepath.Dir(got)) != unknownLocation {
		t.Errorf("Build() place segment = %q, want %q", filepath.Base(filepath.Dir(got)), unknownLocation)
	}
}

func TestSanitizePathSegment(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain name", "Paris", "Paris"},
		{"accented name", "São Paulo", "Sao Paulo"},
		{"path separators", "A/B\\C:D", "A-B-C-D"},
		{"surrounding whitespace", "  Lyon  ", "Lyon"},
		{"empty", "", unknownLocation},
		{"only control characters", "\x01\x02", unknownLocation},
		{"umlaut", "Köln", "Koln"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizePathSegment(tt.input); got != tt.want {
				t.Errorf("sanitizePathSegment(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDirLockManagerSerializes(t *testing.T) {
	m := newDirLockManager()

	unlock := m.Lock("/some/dir")
	acquired := make(chan struct{})
	go func() {
		u := m.Lock("/some/dir")
		u()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock() acquired while first still held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock() never acquired after release")
	}
}
