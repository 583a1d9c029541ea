// Package annextest provides an in-process stand-in for the git-annex tool.
// It lays out placeholders exactly like git-annex does (symlinks into
// .git/annex/objects) so the resolver sees real backing-store shapes, but
// keeps history in memory.
package annextest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"sharebox/internal/annex"
)

// Fake implements annex.Tool against a temporary directory.
type Fake struct {
	Root string

	mu      sync.Mutex
	remote  map[string][]byte // content peers can provide, by key
	tracked map[string]string // committed path -> key
	remotes []string
	calls   map[string]int
	head    int

	// FetchErr, when set, fails every Fetch.
	FetchErr error
	// FetchHook runs inside Fetch before content is written.
	FetchHook func(path string)
	// TrackErr, when set, fails every Track.
	TrackErr error
	// MergeFunc runs inside MergeFromRemote.
	MergeFunc func(ctx context.Context, remote string) error
	// ChangesResult is returned by Changes.
	ChangesResult []annex.Change
	// UnmergedResult is returned by Unmerged.
	UnmergedResult []annex.UnmergedPath
	// Resolutions records every Resolve call.
	Resolutions []annex.Resolution
	// Ignored lists base-name glob patterns treated as ignored.
	Ignored []string
}

var _ annex.Tool = (*Fake)(nil)

// New creates a Fake rooted at root, with the object directory in place.
func New(root string) *Fake {
	f := &Fake{
		Root:    root,
		remote:  make(map[string][]byte),
		tracked: make(map[string]string),
		calls:   make(map[string]int),
	}
	_ = os.MkdirAll(f.objectsDir(), 0755)
	return f
}

func (f *Fake) objectsDir() string {
	return filepath.Join(f.Root, ".git", "annex", "objects")
}

func (f *Fake) objectPath(key string) string {
	return filepath.Join(f.objectsDir(), key, key)
}

func (f *Fake) count(op string) {
	f.calls[op]++
}

// Calls returns how many times op (e.g. "Fetch") was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// KeyFor computes the SHA256E-style key of content.
func KeyFor(content []byte) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("SHA256E-s%d--%s", len(content), hex.EncodeToString(sum[:]))
}

// linkTo creates (or replaces) a symlink at rel pointing at key's object.
func (f *Fake) linkTo(rel, key string) error {
	full := filepath.Join(f.Root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	target, err := filepath.Rel(filepath.Dir(full), f.objectPath(key))
	if err != nil {
		return err
	}
	_ = os.Remove(full)
	return os.Symlink(target, full)
}

// Place creates a placeholder at rel whose content only a peer holds, as a
// sync would leave it.
func (f *Fake) Place(rel string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := KeyFor(content)
	f.remote[key] = append([]byte(nil), content...)
	f.tracked[rel] = key
	return f.linkTo(rel, key)
}

// Present creates a tracked link at rel whose content is already local.
func (f *Fake) Present(rel string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := KeyFor(content)
	if err := f.storeObject(key, content); err != nil {
		return err
	}
	f.tracked[rel] = key
	return f.linkTo(rel, key)
}

func (f *Fake) storeObject(key string, content []byte) error {
	obj := f.objectPath(key)
	if err := os.MkdirAll(filepath.Dir(obj), 0755); err != nil {
		return err
	}
	if _, err := os.Stat(obj); err == nil {
		return nil
	}
	return os.WriteFile(obj, content, 0444)
}

// TrackedKey returns the committed key of rel.
func (f *Fake) TrackedKey(rel string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.tracked[rel]
	return key, ok
}

func notAvailable(op, rel string) error {
	return &annex.BackingStoreError{
		Args:   []string{"git", "annex", op, "--", rel},
		Stderr: op + " " + rel + " (not available)",
		Err:    fmt.Errorf("exit status 1"),
	}
}

// Init implements annex.Tool.
func (f *Fake) Init(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Init")
	return os.MkdirAll(f.objectsDir(), 0755)
}

// AddRemote implements annex.Tool.
func (f *Fake) AddRemote(_ context.Context, name, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("AddRemote")
	f.remotes = append(f.remotes, name)
	return nil
}

// Remotes implements annex.Tool.
func (f *Fake) Remotes(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.remotes...), nil
}

// Track implements annex.Tool.
func (f *Fake) Track(_ context.Context, rel, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Track")
	if f.TrackErr != nil {
		return f.TrackErr
	}

	full := filepath.Join(f.Root, rel)
	info, err := os.Lstat(full)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(full)
		if err != nil {
			return err
		}
		if key := annex.KeyFromTarget(target); key != "" {
			f.tracked[rel] = key
		} else {
			f.tracked[rel] = "link:" + target
		}
		return nil
	}

	content, err := os.ReadFile(full)
	if err != nil {
		return err
	}
	key := KeyFor(content)
	if err := f.storeObject(key, content); err != nil {
		return err
	}
	f.tracked[rel] = key
	return f.linkTo(rel, key)
}

// Fetch implements annex.Tool.
func (f *Fake) Fetch(_ context.Context, rel string) error {
	f.mu.Lock()
	f.count("Fetch")
	hook := f.FetchHook
	fetchErr := f.FetchErr
	f.mu.Unlock()

	if hook != nil {
		hook(rel)
	}
	if fetchErr != nil {
		return fetchErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	target, err := os.Readlink(filepath.Join(f.Root, rel))
	if err != nil {
		return notAvailable("get", rel)
	}
	key := annex.KeyFromTarget(target)
	if _, err := os.Stat(f.objectPath(key)); err == nil {
		return nil
	}
	content, ok := f.remote[key]
	if !ok {
		return notAvailable("get", rel)
	}
	return f.storeObject(key, content)
}

// Unlock implements annex.Tool.
func (f *Fake) Unlock(_ context.Context, rel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Unlock")

	full := filepath.Join(f.Root, rel)
	target, err := os.Readlink(full)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(f.objectPath(annex.KeyFromTarget(target)))
	if err != nil {
		return notAvailable("unlock", rel)
	}
	if err := os.Remove(full); err != nil {
		return err
	}
	return os.WriteFile(full, content, 0644)
}

// Remove implements annex.Tool.
func (f *Fake) Remove(_ context.Context, rel, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Remove")
	for p := range f.tracked {
		if p == rel || strings.HasPrefix(p, rel+"/") {
			delete(f.tracked, p)
		}
	}
	return nil
}

// Move implements annex.Tool.
func (f *Fake) Move(_ context.Context, oldRel, newRel, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Move")
	for p, key := range f.tracked {
		if p != oldRel && !strings.HasPrefix(p, oldRel+"/") {
			continue
		}
		dest := newRel + strings.TrimPrefix(p, oldRel)
		delete(f.tracked, p)
		f.tracked[dest] = key
		full := filepath.Join(f.Root, dest)
		if info, err := os.Lstat(full); err == nil && info.Mode()&os.ModeSymlink != 0 && !strings.HasPrefix(key, "link:") {
			if err := f.linkTo(dest, key); err != nil {
				return err
			}
		}
	}
	return nil
}

// IsTracked implements annex.Tool.
func (f *Fake) IsTracked(_ context.Context, rel string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for p := range f.tracked {
		if p == rel || strings.HasPrefix(p, rel+"/") {
			return true, nil
		}
	}
	return false, nil
}

// IsIgnored implements annex.Tool.
func (f *Fake) IsIgnored(_ context.Context, rel string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, pattern := range f.Ignored {
		if ok, _ := path.Match(pattern, path.Base(rel)); ok {
			return true, nil
		}
	}
	return false, nil
}

// ObjectIdentity implements annex.Tool.
func (f *Fake) ObjectIdentity(_ context.Context, rel string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.tracked[rel]
	if !ok {
		return "", fmt.Errorf("%s is not tracked", rel)
	}
	return key, nil
}

// Head implements annex.Tool.
func (f *Fake) Head(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.head == 0 {
		return "", nil
	}
	return fmt.Sprintf("commit-%d", f.head), nil
}

// MergeFromRemote implements annex.Tool. Each successful call advances
// Head; a conflicted merge advances it on CommitMerge.
func (f *Fake) MergeFromRemote(ctx context.Context, remote string) error {
	f.mu.Lock()
	f.count("MergeFromRemote")
	merge := f.MergeFunc
	f.mu.Unlock()

	if merge != nil {
		if err := merge(ctx, remote); err != nil {
			return err
		}
	}

	f.mu.Lock()
	f.head++
	f.mu.Unlock()
	return nil
}

// Changes implements annex.Tool.
func (f *Fake) Changes(_ context.Context, from, to string) ([]annex.Change, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Changes")
	if from == to {
		return nil, nil
	}
	return append([]annex.Change(nil), f.ChangesResult...), nil
}

// Unmerged implements annex.Tool.
func (f *Fake) Unmerged(_ context.Context) ([]annex.UnmergedPath, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]annex.UnmergedPath(nil), f.UnmergedResult...), nil
}

// Resolve implements annex.Tool.
func (f *Fake) Resolve(_ context.Context, r annex.Resolution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Resolve")
	f.Resolutions = append(f.Resolutions, r)
	return nil
}

// CommitMerge implements annex.Tool.
func (f *Fake) CommitMerge(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("CommitMerge")
	f.UnmergedResult = nil
	f.head++
	return nil
}

// AbortMerge implements annex.Tool.
func (f *Fake) AbortMerge(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("AbortMerge")
	f.UnmergedResult = nil
	return nil
}
