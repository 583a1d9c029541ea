package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"sharebox/internal/annex"
	"sharebox/internal/annex/annextest"
	"sharebox/internal/annex/mock_annex"
	"sharebox/internal/config"
	"sharebox/internal/materialize"
	"sharebox/internal/state"
	"sharebox/internal/syncer"

	"bazil.org/fuse"
	"github.com/golang/mock/gomock"
)

func newTestFS(t *testing.T, root string, tool annex.Tool) *ShareFS {
	t.Helper()
	cfg := &config.Config{GitDir: root}
	engine := materialize.New(state.NewResolver(root, false), tool)
	sfs, err := NewShareFS(cfg, engine, syncer.New(cfg, engine))
	if err != nil {
		t.Fatalf("Failed to create filesystem: %v", err)
	}
	return sfs
}

func setupTestFS(t *testing.T) (*ShareFS, *annextest.Fake, string) {
	t.Helper()
	root := t.TempDir()
	fake := annextest.New(root)
	return newTestFS(t, root, fake), fake, root
}

func rootDir(t *testing.T, sfs *ShareFS) *Dir {
	t.Helper()
	root, err := sfs.Root()
	if err != nil {
		t.Fatalf("Failed to get root: %v", err)
	}
	dir, ok := root.(*Dir)
	if !ok {
		t.Fatal("Root should be a Dir")
	}
	return dir
}

func names(entries []fuse.Dirent) map[string]fuse.DirentType {
	m := make(map[string]fuse.DirentType, len(entries))
	for _, e := range entries {
		m[e.Name] = e.Type
	}
	return m
}

func TestDirOperations(t *testing.T) {
	sfs, fake, backing := setupTestFS(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(backing, "file1.txt"), []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	if err := fake.Place("dir1/remote.bin", []byte("remote content")); err != nil {
		t.Fatalf("Failed to create placeholder: %v", err)
	}

	t.Run("RootDirectory", func(t *testing.T) {
		dir := rootDir(t, sfs)

		attr := &fuse.Attr{}
		if err := dir.Attr(ctx, attr); err != nil {
			t.Errorf("Failed to get root attributes: %v", err)
		}
		if attr.Mode&os.ModeDir == 0 {
			t.Error("Root should be a directory")
		}

		entries, err := dir.ReadDirAll(ctx)
		if err != nil {
			t.Fatalf("Failed to read root directory: %v", err)
		}
		got := names(entries)
		if _, ok := got[".git"]; ok {
			t.Error("Root listing must not expose .git")
		}
		if got["file1.txt"] != fuse.DT_File {
			t.Errorf("Expected file1.txt as a file, got %v", got)
		}
		if got["dir1"] != fuse.DT_Dir {
			t.Errorf("Expected dir1 as a directory, got %v", got)
		}
	})

	t.Run("HiddenLookup", func(t *testing.T) {
		dir := rootDir(t, sfs)
		if _, err := dir.Lookup(ctx, ".git"); err != syscall.ENOENT {
			t.Errorf("Expected ENOENT for .git, got %v", err)
		}
	})

	t.Run("CreateDirectory", func(t *testing.T) {
		dir := rootDir(t, sfs)

		newDir, err := dir.Mkdir(ctx, &fuse.MkdirRequest{Name: "newdir", Mode: os.ModeDir | 0755})
		if err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}

		dirAttr := &fuse.Attr{}
		if err := newDir.Attr(ctx, dirAttr); err != nil {
			t.Errorf("Failed to get new directory attributes: %v", err)
		}
		if dirAttr.Mode&os.ModeDir == 0 {
			t.Error("Created node should be a directory")
		}

		found, err := dir.Lookup(ctx, "newdir")
		if err != nil {
			t.Fatalf("Failed to lookup new directory: %v", err)
		}
		if _, ok := found.(*Dir); !ok {
			t.Errorf("Lookup should return a Dir, got %T", found)
		}
		if info, err := os.Stat(filepath.Join(backing, "newdir")); err != nil || !info.IsDir() {
			t.Errorf("Directory should exist in the backing store: %v", err)
		}
	})

	t.Run("CreateNestedDirectory", func(t *testing.T) {
		dir := rootDir(t, sfs)

		parentDir, err := dir.Mkdir(ctx, &fuse.MkdirRequest{Name: "parent", Mode: 0755})
		if err != nil {
			t.Fatalf("Failed to create parent directory: %v", err)
		}
		if _, err := parentDir.(*Dir).Mkdir(ctx, &fuse.MkdirRequest{Name: "child", Mode: 0755}); err != nil {
			t.Fatalf("Failed to create child directory: %v", err)
		}

		found, err := dir.Lookup(ctx, "parent")
		if err != nil {
			t.Fatalf("Failed to lookup parent directory: %v", err)
		}
		childDir, err := found.(*Dir).Lookup(ctx, "child")
		if err != nil {
			t.Errorf("Failed to lookup child directory: %v", err)
		}
		if childDir == nil {
			t.Error("Child directory not found")
		}
	})

	t.Run("RemoveDirectory", func(t *testing.T) {
		rmdirCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		dir := rootDir(t, sfs)

		if _, err := dir.Mkdir(rmdirCtx, &fuse.MkdirRequest{Name: "todelete", Mode: 0755}); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := dir.Remove(rmdirCtx, &fuse.RemoveRequest{Name: "todelete", Dir: true}); err != nil {
			t.Fatalf("Failed to remove directory: %v", err)
		}
		if _, err := dir.Lookup(rmdirCtx, "todelete"); err == nil {
			t.Error("Directory should not exist after removal")
		}
	})

	t.Run("RemoveNonEmptyDirectory", func(t *testing.T) {
		dir := rootDir(t, sfs)
		err := dir.Remove(ctx, &fuse.RemoveRequest{Name: "dir1", Dir: true})
		if err != syscall.ENOTEMPTY {
			t.Errorf("Expected ENOTEMPTY, got %v", err)
		}
	})

	t.Run("RenameDirectory", func(t *testing.T) {
		dir := rootDir(t, sfs)

		if _, err := dir.Mkdir(ctx, &fuse.MkdirRequest{Name: "olddirname", Mode: 0755}); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		targetDir, err := dir.Mkdir(ctx, &fuse.MkdirRequest{Name: "targetdir", Mode: 0755})
		if err != nil {
			t.Fatalf("Failed to create target directory: %v", err)
		}

		renameReq := &fuse.RenameRequest{OldName: "olddirname", NewName: "newdirname"}
		if err := dir.Rename(ctx, renameReq, targetDir); err != nil {
			t.Errorf("Failed to rename directory: %v", err)
		}

		if _, err := dir.Lookup(ctx, "olddirname"); err == nil {
			t.Error("Old directory name should not exist after rename")
		}
		found, err := targetDir.(*Dir).Lookup(ctx, "newdirname")
		if err != nil || found == nil {
			t.Errorf("Renamed directory not found at new location: %v", err)
		}
	})

	t.Run("RenameTrackedDirectory", func(t *testing.T) {
		dir := rootDir(t, sfs)

		if err := dir.Rename(ctx, &fuse.RenameRequest{OldName: "dir1", NewName: "moved"}, dir); err != nil {
			t.Fatalf("Failed to rename tracked directory: %v", err)
		}
		if _, ok := fake.TrackedKey("moved/remote.bin"); !ok {
			t.Error("Tracking should follow the rename")
		}
		if fake.Calls("Fetch") != 0 {
			t.Error("Renaming must not fetch placeholders")
		}
	})
}

func TestRemovePlaceholderDoesNotFetch(t *testing.T) {
	sfs, fake, backing := setupTestFS(t)
	ctx := context.Background()

	if err := fake.Place("big.iso", []byte("very large content")); err != nil {
		t.Fatalf("Failed to create placeholder: %v", err)
	}

	dir := rootDir(t, sfs)
	if err := dir.Remove(ctx, &fuse.RemoveRequest{Name: "big.iso"}); err != nil {
		t.Fatalf("Failed to remove placeholder: %v", err)
	}

	if fake.Calls("Fetch") != 0 {
		t.Errorf("Remove fetched content %d times", fake.Calls("Fetch"))
	}
	if _, ok := fake.TrackedKey("big.iso"); ok {
		t.Error("Removed file should no longer be tracked")
	}
	if _, err := os.Lstat(filepath.Join(backing, "big.iso")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Backing link should be gone, got %v", err)
	}
}

// Listing, lookups and attribute reads must never call the tool. The mock
// has no expectations, so any call fails the test.
func TestListingNeverTouchesTool(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	root := t.TempDir()
	layout := annextest.New(root)
	for _, name := range []string{"a.txt", "b.txt", "sub/c.txt"} {
		if err := layout.Place(name, []byte("content of "+name)); err != nil {
			t.Fatalf("Failed to create placeholder: %v", err)
		}
	}
	if err := os.Symlink("a.txt", filepath.Join(root, "shortcut")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	sfs := newTestFS(t, root, mock_annex.NewMockTool(ctrl))
	ctx := context.Background()
	dir := rootDir(t, sfs)

	entries, err := dir.ReadDirAll(ctx)
	if err != nil {
		t.Fatalf("Failed to list root: %v", err)
	}
	got := names(entries)
	want := map[string]fuse.DirentType{
		".": fuse.DT_Dir, "..": fuse.DT_Dir,
		"a.txt": fuse.DT_File, "b.txt": fuse.DT_File,
		"sub": fuse.DT_Dir, "shortcut": fuse.DT_Link,
	}
	if len(got) != len(want) {
		t.Errorf("Expected %d entries, got %v", len(want), got)
	}
	for name, typ := range want {
		if got[name] != typ {
			t.Errorf("Entry %q: expected type %v, got %v", name, typ, got[name])
		}
	}

	for _, name := range []string{"a.txt", "b.txt"} {
		node, err := dir.Lookup(ctx, name)
		if err != nil {
			t.Fatalf("Failed to lookup %q: %v", name, err)
		}
		attr := &fuse.Attr{}
		if err := node.Attr(ctx, attr); err != nil {
			t.Fatalf("Failed to get attributes of %q: %v", name, err)
		}
		if attr.Size != 0 {
			t.Errorf("Placeholder %q should report size 0, got %d", name, attr.Size)
		}
		if attr.Mode&os.ModeSymlink != 0 {
			t.Errorf("Placeholder %q should look like a regular file, got %v", name, attr.Mode)
		}
	}
}
