package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClean(t *testing.T) {
	tests := []struct {
		input  string
		output string
	}{
		{"", ""},
		{"/", ""},
		{"css/app.css", "css/app.css"},
		{"/css//app.css", "css/app.css"},
		{"../secret", "secret"},
		{"a/../../etc/passwd", "etc/passwd"},
		{"..\\..\\win.ini", "win.ini"},
	}

	for _, tt := range tests {
		if got := Clean(tt.input); got != tt.output {
			t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.output)
		}
	}
}

func TestLocalFS(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "static")
	if err := os.MkdirAll(filepath.Join(root, "js"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "js", "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLocalFS(root)

	content, err := l.ReadFile("js/app.js")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(content) != "console.log(1)" {
		t.Errorf("unexpected content %q", content)
	}

	info, err := l.Stat("js")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if !info.IsDir || info.Name != "js" {
		t.Errorf("unexpected info %+v", info)
	}

	if _, err := l.ReadFile("js"); err == nil {
		t.Error("expected error reading a directory")
	}

	if _, err := l.ReadFile("../secret.txt"); !os.IsNotExist(err) {
		t.Errorf("expected traversal to resolve inside root, got %v", err)
	}
}
