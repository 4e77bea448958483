package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadBatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	content := `http:
  - link: https://example.com/a.bin
    op: downloads
    connections: 4
  - link: ""
s3:
  - link: s3://bucket/folder/
ftp:
  - link: ftp://example.com/x
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	entries, err := readBatchFile(path)
	if err != nil {
		t.Fatalf("readBatchFile: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	var found bool
	for _, e := range entries {
		if e.URL == "https://example.com/a.bin" {
			found = true
			if e.OutputDir != "downloads" || e.Connections != 4 {
				t.Errorf("entry fields = %+v", e)
			}
		}
	}
	if !found {
		t.Error("http entry missing")
	}
}

func TestReadBatchFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	if err := os.WriteFile(path, []byte("ftp:\n  - link: ftp://x/y\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := readBatchFile(path); err == nil {
		t.Fatal("expected an error for a file without usable entries")
	}
	if _, err := readBatchFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestReadBatchFileOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	content := `s3:
  - link: s3://bucket/one.bin
http:
  - link: https://example.com/b.bin
  - link: https://example.com/a.bin
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	want := []string{"https://example.com/b.bin", "https://example.com/a.bin", "s3://bucket/one.bin"}
	for run := 0; run < 20; run++ {
		entries, err := readBatchFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != len(want) {
			t.Fatalf("got %d entries, want %d", len(entries), len(want))
		}
		for i, e := range entries {
			if e.URL != want[i] {
				t.Fatalf("run %d: entry %d = %s, want %s", run, i, e.URL, want[i])
			}
		}
	}
}
