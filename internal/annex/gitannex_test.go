package annex

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRepo initialises a git-annex repository in a temp dir, skipping the
// test when git-annex is not installed.
func newRepo(t *testing.T, name string) *GitAnnex {
	t.Helper()
	if _, err := exec.LookPath("git-annex"); err != nil {
		t.Skip("git-annex not installed")
	}
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.Mkdir(dir, 0755))

	g := NewGitAnnex(dir)
	require.NoError(t, g.Init(context.Background(), name))
	return g
}

func writeTracked(t *testing.T, g *GitAnnex, rel, content string) {
	t.Helper()
	full := filepath.Join(g.Dir(), rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	require.NoError(t, g.Track(context.Background(), rel, "add "+rel))
}

func TestGitAnnexTrackAndIdentity(t *testing.T) {
	g := newRepo(t, "local")
	ctx := context.Background()

	head, err := g.Head(ctx)
	require.NoError(t, err)
	assert.Empty(t, head, "fresh repository has no commit")

	writeTracked(t, g, "docs/a.txt", "test")

	info, err := os.Lstat(filepath.Join(g.Dir(), "docs/a.txt"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink, "tracked file is locked into a link")

	id, err := g.ObjectIdentity(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(4), KeySize(id), "identity of an annexed file is its key")

	after, err := g.Head(ctx)
	require.NoError(t, err)
	changes, err := g.Changes(ctx, head, after)
	require.NoError(t, err)
	assert.Equal(t, []Change{{Kind: Added, Path: "docs/a.txt"}}, changes)

	tracked, err := g.IsTracked(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.True(t, tracked)
}

func TestGitAnnexIgnoredFiles(t *testing.T) {
	g := newRepo(t, "local")
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(g.Dir(), ".gitignore"), []byte("*.tmp\n"), 0644))

	ignored, err := g.IsIgnored(ctx, "scratch.tmp")
	require.NoError(t, err)
	assert.True(t, ignored)

	ignored, err = g.IsIgnored(ctx, "notes.txt")
	require.NoError(t, err)
	assert.False(t, ignored)
}

func TestGitAnnexMergeLeavesPlaceholder(t *testing.T) {
	ctx := context.Background()
	peer := newRepo(t, "peer")
	writeTracked(t, peer, "foo", "test")

	local := newRepo(t, "local")
	require.NoError(t, local.AddRemote(ctx, "peer", peer.Dir()))

	remotes, err := local.Remotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"peer"}, remotes)

	pre, err := local.Head(ctx)
	require.NoError(t, err)
	require.NoError(t, local.MergeFromRemote(ctx, "peer"))
	post, err := local.Head(ctx)
	require.NoError(t, err)

	changes, err := local.Changes(ctx, pre, post)
	require.NoError(t, err)
	assert.Equal(t, []Change{{Kind: Added, Path: "foo"}}, changes)

	backing := filepath.Join(local.Dir(), "foo")
	target, err := os.Readlink(backing)
	require.NoError(t, err, "merged file is an annex link")
	assert.Contains(t, target, ".git/annex/objects/")
	_, err = os.Stat(backing)
	assert.True(t, os.IsNotExist(err), "content is not present before fetch")

	require.NoError(t, local.Fetch(ctx, "foo"))
	data, err := os.ReadFile(backing)
	require.NoError(t, err)
	assert.Equal(t, "test", string(data))
}

func TestGitAnnexMergeUnknownRemote(t *testing.T) {
	g := newRepo(t, "local")

	err := g.MergeFromRemote(context.Background(), "nowhere")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMergeFailed)
}

func TestGitAnnexBackingStoreError(t *testing.T) {
	g := newRepo(t, "local")

	_, err := g.run(context.Background(), "cat-file", "blob", strings.Repeat("0", 40))
	var bse *BackingStoreError
	require.ErrorAs(t, err, &bse)
	assert.Equal(t, []string{"git", "cat-file", "blob", strings.Repeat("0", 40)}, bse.Args)
	assert.NotEmpty(t, bse.Stderr)
}

func TestGitAnnexIndexWritesSurviveCancellation(t *testing.T) {
	g := newRepo(t, "local")
	require.NoError(t, os.WriteFile(filepath.Join(g.Dir(), "late.txt"), []byte("late"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, g.Track(ctx, "late.txt", "add late.txt"))

	tracked, err := g.IsTracked(context.Background(), "late.txt")
	require.NoError(t, err)
	assert.True(t, tracked)
	_, err = os.Stat(filepath.Join(g.Dir(), ".git", "index.lock"))
	assert.True(t, os.IsNotExist(err), "no stale index lock")
}
