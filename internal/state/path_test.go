package state

import (
	"path/filepath"
	"testing"
)

func TestVirtualPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		rel      string
	}{
		{
			name:     "simple path",
			input:    "test.txt",
			expected: "/test.txt",
			rel:      "test.txt",
		},
		{
			name:     "nested path",
			input:    "dir/test.txt",
			expected: "/dir/test.txt",
			rel:      "dir/test.txt",
		},
		{
			name:     "absolute path stays absolute",
			input:    "/dir/test.txt",
			expected: "/dir/test.txt",
			rel:      "dir/test.txt",
		},
		{
			name:     "dot path gets cleaned",
			input:    "./test.txt",
			expected: "/test.txt",
			rel:      "test.txt",
		},
		{
			name:     "double dot cannot escape root",
			input:    "../../etc/passwd",
			expected: "/etc/passwd",
			rel:      "etc/passwd",
		},
		{
			name:     "root",
			input:    "",
			expected: "/",
			rel:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vp := NewVirtualPath(tt.input)
			if vp.String() != tt.expected {
				t.Errorf("Expected path %q, got %q", tt.expected, vp.String())
			}
			if vp.Rel() != tt.rel {
				t.Errorf("Expected rel %q, got %q", tt.rel, vp.Rel())
			}
		})
	}
}

func TestVirtualPathOperations(t *testing.T) {
	vp := NewVirtualPath("/dir1/dir2/file.txt")

	t.Run("Parent", func(t *testing.T) {
		if got := vp.Parent().String(); got != "/dir1/dir2" {
			t.Errorf("Expected parent %q, got %q", "/dir1/dir2", got)
		}
		if got := NewVirtualPath("/top").Parent(); !got.IsRoot() {
			t.Errorf("Expected root parent, got %q", got.String())
		}
	})

	t.Run("Base", func(t *testing.T) {
		if got := vp.Base(); got != "file.txt" {
			t.Errorf("Expected base %q, got %q", "file.txt", got)
		}
	})

	t.Run("Join", func(t *testing.T) {
		if got := NewVirtualPath("/").Join("a").Join("b").String(); got != "/a/b" {
			t.Errorf("Expected %q, got %q", "/a/b", got)
		}
	})

	t.Run("Backing", func(t *testing.T) {
		root := filepath.Join("/srv", "repo")
		if got := vp.Backing(root); got != filepath.Join(root, "dir1", "dir2", "file.txt") {
			t.Errorf("Unexpected backing path %q", got)
		}
		if got := NewVirtualPath("/").Backing(root); got != root {
			t.Errorf("Root should map to backing root, got %q", got)
		}
	})

	t.Run("Within", func(t *testing.T) {
		dir := NewVirtualPath("/dir1")
		if !vp.Within(dir) {
			t.Error("Expected path to be within /dir1")
		}
		if !dir.Within(dir) {
			t.Error("A directory is within itself")
		}
		if NewVirtualPath("/dir10/file").Within(dir) {
			t.Error("/dir10 must not match prefix /dir1")
		}
		if !vp.Within(NewVirtualPath("/")) {
			t.Error("Everything is within root")
		}
	})

	t.Run("Rebase", func(t *testing.T) {
		got := vp.Rebase(NewVirtualPath("/dir1"), NewVirtualPath("/moved"))
		if got.String() != "/moved/dir2/file.txt" {
			t.Errorf("Expected %q, got %q", "/moved/dir2/file.txt", got.String())
		}
		self := NewVirtualPath("/dir1").Rebase(NewVirtualPath("/dir1"), NewVirtualPath("/x"))
		if self.String() != "/x" {
			t.Errorf("Expected %q, got %q", "/x", self.String())
		}
	})
}

func TestHiddenPaths(t *testing.T) {
	tests := []struct {
		path   string
		hidden bool
	}{
		{"/.git", true},
		{"/.git/config", true},
		{"/.git-annex", true},
		{"/docs/.git", false},
		{"/.gitignore", false},
		{"/", false},
	}
	for _, tt := range tests {
		if got := NewVirtualPath(tt.path).Hidden(); got != tt.hidden {
			t.Errorf("Hidden(%q) = %v, want %v", tt.path, got, tt.hidden)
		}
	}
}
