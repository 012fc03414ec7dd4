package files

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidate_SingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Validate([]string{path})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	f := got[0]
	if f.Name != "doc.txt" || f.Size != 5 || f.RelPath != "" {
		t.Fatalf("unexpected entry: %+v", f)
	}
	if f.Type == "" {
		t.Fatal("MIME type not detected for .txt")
	}
}

func TestValidate_ZeroByteFileIsValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Validate([]string{path})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got[0].Size != 0 {
		t.Fatalf("expected size 0, got %d", got[0].Size)
	}
}

func TestValidate_DirectoryWalkSetsRelPath(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "photos")
	if err := os.MkdirAll(filepath.Join(root, "trip"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "trip", "b.jpg"), []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Validate([]string{root})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}

	rels := map[string]bool{}
	for _, f := range got {
		rels[f.RelPath] = true
	}
	if !rels["photos/a.jpg"] || !rels["photos/trip/b.jpg"] {
		t.Fatalf("relative paths not rooted at the selected directory: %v", rels)
	}
}

func TestValidate_MissingFileFailsWholeCall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Validate([]string{path, filepath.Join(dir, "missing.txt")}); err == nil {
		t.Fatal("expected error when any argument is missing")
	}
}

func TestValidate_EmptyArgs(t *testing.T) {
	if _, err := Validate(nil); err == nil {
		t.Fatal("expected error for empty argument list")
	}
}

func TestTotalSize(t *testing.T) {
	batch := []LocalFile{{Size: 10}, {Size: 0}, {Size: 90}}
	if got := TotalSize(batch); got != 100 {
		t.Fatalf("TotalSize = %d, want 100", got)
	}
}
