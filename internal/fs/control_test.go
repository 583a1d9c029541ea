package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"sharebox/internal/annex"
	"sharebox/internal/materialize"
	"sharebox/internal/state"
	"sharebox/internal/syncer"

	"bazil.org/fuse"
)

// waitIdle polls the phase attribute until the background cycle is done.
func waitIdle(t *testing.T, root *Dir) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for xattr(t, root, XattrPhase) != "idle" {
		if time.Now().After(deadline) {
			t.Fatal("Sync did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestControlSyncDoesNotBlockCaller(t *testing.T) {
	sfs, fake, _ := setupTestFS(t)
	ctx := context.Background()
	root := rootDir(t, sfs)

	if err := fake.AddRemote(ctx, "peer", "/srv/peer"); err != nil {
		t.Fatalf("Failed to add remote: %v", err)
	}
	started := make(chan struct{})
	release := make(chan struct{})
	fake.MergeFunc = func(context.Context, string) error {
		close(started)
		<-release
		return nil
	}

	errc := make(chan error, 1)
	go func() {
		errc <- root.Setxattr(ctx, &fuse.SetxattrRequest{Name: XattrCommand, Xattr: []byte("sync")})
	}()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Sync command failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Sync command blocked on the cycle")
	}

	<-started
	if got := xattr(t, root, XattrPhase); got == "idle" {
		t.Errorf("Expected a running phase, got %q", got)
	}
	if err := root.Setxattr(ctx, &fuse.SetxattrRequest{Name: XattrCommand, Xattr: []byte("sync")}); err != syscall.EBUSY {
		t.Errorf("Expected EBUSY while a sync runs, got %v", err)
	}
	// the tree stays usable during the cycle
	if _, err := root.ReadDirAll(ctx); err != nil {
		t.Errorf("Listing failed during sync: %v", err)
	}

	close(release)
	waitIdle(t, root)
	if report := xattr(t, root, XattrReport); !strings.HasPrefix(report, "sync ok") {
		t.Errorf("Unexpected report:\n%s", report)
	}
}

func TestControlSync(t *testing.T) {
	sfs, fake, _ := setupTestFS(t)
	ctx := context.Background()
	root := rootDir(t, sfs)

	if got := xattr(t, root, XattrReport); got != "no sync has run yet\n" {
		t.Errorf("Unexpected report before first sync: %q", got)
	}
	if got := xattr(t, root, XattrPhase); got != "idle" {
		t.Errorf("Expected idle phase, got %q", got)
	}

	if err := fake.AddRemote(ctx, "peer", "/srv/peer"); err != nil {
		t.Fatalf("Failed to add remote: %v", err)
	}
	fake.MergeFunc = func(context.Context, string) error {
		return fake.Place("foo", []byte("test"))
	}
	fake.ChangesResult = []annex.Change{{Kind: annex.Added, Path: "foo"}}

	if err := root.Setxattr(ctx, &fuse.SetxattrRequest{Name: XattrCommand, Xattr: []byte("sync\n")}); err != nil {
		t.Fatalf("Sync command failed: %v", err)
	}
	waitIdle(t, root)

	report := xattr(t, root, XattrReport)
	if !strings.HasPrefix(report, "sync ok") || !strings.Contains(report, "/foo") {
		t.Errorf("Unexpected report:\n%s", report)
	}

	// The new file is a placeholder until opened.
	file := lookupFile(t, sfs, "foo")
	attr := &fuse.Attr{}
	if err := file.Attr(ctx, attr); err != nil {
		t.Fatalf("Failed to get attributes: %v", err)
	}
	if attr.Size != 0 {
		t.Errorf("Synced file should report size 0 before open, got %d", attr.Size)
	}
	handle, err := file.Open(ctx, &fuse.OpenRequest{Flags: fuse.OpenReadOnly}, &fuse.OpenResponse{})
	if err != nil {
		t.Fatalf("Failed to open synced file: %v", err)
	}
	if got := readAll(t, handle.(*Handle)); got != "test" {
		t.Errorf("Expected synced content %q, got %q", "test", got)
	}
}

func TestControlSyncFailureIsNotPropagated(t *testing.T) {
	sfs, fake, _ := setupTestFS(t)
	ctx := context.Background()
	root := rootDir(t, sfs)

	if err := fake.AddRemote(ctx, "peer", "/srv/peer"); err != nil {
		t.Fatalf("Failed to add remote: %v", err)
	}
	fake.MergeFunc = func(context.Context, string) error {
		return fmt.Errorf("%w: peer unreachable", annex.ErrMergeFailed)
	}

	if err := root.Setxattr(ctx, &fuse.SetxattrRequest{Name: XattrCommand, Xattr: []byte("sync")}); err != nil {
		t.Errorf("A failed cycle should not fail the command, got %v", err)
	}
	waitIdle(t, root)
	if report := xattr(t, root, XattrReport); !strings.Contains(report, "peer unreachable") {
		t.Errorf("Report should carry the failure:\n%s", report)
	}
}

func TestControlRejectsUnknownRequests(t *testing.T) {
	sfs, _, _ := setupTestFS(t)
	ctx := context.Background()
	root := rootDir(t, sfs)

	if err := root.Setxattr(ctx, &fuse.SetxattrRequest{Name: XattrCommand, Xattr: []byte("explode")}); err != syscall.EINVAL {
		t.Errorf("Expected EINVAL for unknown command, got %v", err)
	}
	if err := root.Setxattr(ctx, &fuse.SetxattrRequest{Name: "user.other", Xattr: []byte("x")}); err != syscall.ENOTSUP {
		t.Errorf("Expected ENOTSUP for other attributes, got %v", err)
	}

	sub, err := root.Mkdir(ctx, &fuse.MkdirRequest{Name: "sub", Mode: 0755})
	if err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := sub.(*Dir).Setxattr(ctx, &fuse.SetxattrRequest{Name: XattrCommand, Xattr: []byte("sync")}); err != syscall.ENOTSUP {
		t.Errorf("Control channel lives on the root only, got %v", err)
	}
	if err := sub.(*Dir).Getxattr(ctx, &fuse.GetxattrRequest{Name: XattrReport}, &fuse.GetxattrResponse{}); err != fuse.ErrNoXattr {
		t.Errorf("Expected ErrNoXattr below the root, got %v", err)
	}
}

func TestToFuseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"not found", fmt.Errorf("/a: %w", state.ErrNotFound), syscall.ENOENT},
		{"wrapped not found", NewFSError(OpLookup, "/a", fmt.Errorf("/a: %w", state.ErrNotFound)), syscall.ENOENT},
		{"unavailable", fmt.Errorf("/a: %w: %w", materialize.ErrUnavailableContent, errors.New("exit status 1")), syscall.EIO},
		{"busy", syncer.ErrAlreadySyncing, syscall.EBUSY},
		{"backing store", &annex.BackingStoreError{Args: []string{"git", "commit"}, Err: errors.New("exit status 128")}, syscall.EIO},
		{"errno", &os.PathError{Op: "rmdir", Path: "/d", Err: syscall.ENOTEMPTY}, syscall.ENOTEMPTY},
		{"eperm stays eperm", &os.PathError{Op: "rename", Path: "/.git", Err: syscall.EPERM}, syscall.EPERM},
		{"permission", os.ErrPermission, syscall.EACCES},
		{"exists", os.ErrExist, syscall.EEXIST},
		{"cancelled", context.Canceled, syscall.EINTR},
		{"unknown", errors.New("boom"), syscall.EIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToFuseError(tt.err); got != tt.want {
				t.Errorf("ToFuseError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
