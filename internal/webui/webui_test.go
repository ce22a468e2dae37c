package webui

import (
	"io/fs"
	"testing"
)

func TestFSServesIndexHTML(t *testing.T) {
	data, err := fs.ReadFile(FS(), "index.html")
	if err != nil {
		t.Fatalf("reading index.html from embedded FS: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("index.html is empty")
	}
}

func TestFSRootedAtStaticNotRepoRoot(t *testing.T) {
	if _, err := fs.Stat(FS(), "index.js"); err != nil {
		t.Fatalf("expected index.js at FS root: %v", err)
	}
	if _, err := fs.Stat(FS(), "static"); err == nil {
		t.Fatal("FS should be rooted inside static/, not expose it as a child")
	}
}
