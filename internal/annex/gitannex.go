package annex

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"sharebox/internal/logging"
)

var (
	logger = logging.GetLogger().WithPrefix("annex")
)

// GitAnnex implements Tool by running git and git-annex in the backing
// directory.
type GitAnnex struct {
	dir string
	git string

	// mu serialises commands that write the git index; concurrent writers
	// would otherwise fail on index.lock. Content retrieval does not take it.
	mu sync.Mutex
}

var _ Tool = (*GitAnnex)(nil)

// NewGitAnnex returns a Tool operating on the repository rooted at dir.
func NewGitAnnex(dir string) *GitAnnex {
	return &GitAnnex{dir: dir, git: "git"}
}

// Dir returns the repository root.
func (g *GitAnnex) Dir() string {
	return g.dir
}

// command creates an exec.Cmd running git in the repository.
func (g *GitAnnex) command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, g.git, args...)
	cmd.Dir = g.dir
	cmd.Env = append(os.Environ(),
		"LC_ALL=C",
		"GIT_TERMINAL_PROMPT=0",
		"GIT_MERGE_AUTOEDIT=no",
	)
	return cmd
}

// run runs git with args, returning stdout. Failures are *BackingStoreError.
func (g *GitAnnex) run(ctx context.Context, args ...string) (string, error) {
	cmd := g.command(ctx, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("git %s", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		logger.Debug("git %s failed: %v: %s", args[0], err, strings.TrimSpace(stderr.String()))
		return stdout.String(), &BackingStoreError{
			Args:   append([]string{g.git}, args...),
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return stdout.String(), nil
}

// lock takes the index writer lock. Commands run under the returned
// context are not killed when ctx is cancelled; a git interrupted mid-write
// leaves index.lock or a half-applied merge behind.
func (g *GitAnnex) lock(ctx context.Context) (context.Context, func()) {
	g.mu.Lock()
	return context.WithoutCancel(ctx), g.mu.Unlock
}

// exitCode returns the exit status carried by err, or -1.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Init implements Tool.
func (g *GitAnnex) Init(ctx context.Context, description string) error {
	ctx, unlock := g.lock(ctx)
	defer unlock()

	if _, err := os.Stat(filepath.Join(g.dir, ".git")); os.IsNotExist(err) {
		logger.Info("Initialising git repository in %s", g.dir)
		if _, err := g.run(ctx, "init", "-q"); err != nil {
			return errors.Wrap(err, "init repository")
		}
	}

	if out, err := g.run(ctx, "config", "--get", "user.email"); err != nil || strings.TrimSpace(out) == "" {
		host, _ := os.Hostname()
		if _, err := g.run(ctx, "config", "user.name", "sharebox"); err != nil {
			return err
		}
		if _, err := g.run(ctx, "config", "user.email", "sharebox@"+host); err != nil {
			return err
		}
	}

	if out, err := g.run(ctx, "config", "--get", "annex.uuid"); err != nil || strings.TrimSpace(out) == "" {
		logger.Info("Initialising annex %q", description)
		if _, err := g.run(ctx, "annex", "init", description); err != nil {
			return errors.Wrap(err, "init annex")
		}
	}
	return nil
}

// AddRemote implements Tool.
func (g *GitAnnex) AddRemote(ctx context.Context, name, location string) error {
	ctx, unlock := g.lock(ctx)
	defer unlock()

	_, err := g.run(ctx, "remote", "add", name, location)
	return errors.Wrapf(err, "add remote %s", name)
}

// Remotes implements Tool.
func (g *GitAnnex) Remotes(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "remote")
	if err != nil {
		return nil, errors.Wrap(err, "list remotes")
	}
	return splitLines(out), nil
}

// commitStaged commits the index if it differs from HEAD. Caller holds mu.
func (g *GitAnnex) commitStaged(ctx context.Context, message string) error {
	_, err := g.run(ctx, "diff", "--cached", "--quiet")
	if err == nil {
		return nil
	}
	if exitCode(err) != 1 {
		return err
	}
	_, err = g.run(ctx, "commit", "-q", "-m", message)
	return err
}

// Track implements Tool. The file is added to the annex, locked back into
// a link and committed.
func (g *GitAnnex) Track(ctx context.Context, path, message string) error {
	ctx, unlock := g.lock(ctx)
	defer unlock()

	if _, err := g.run(ctx, "annex", "add", "--", path); err != nil {
		return errors.Wrapf(err, "track %s", path)
	}
	if _, err := g.run(ctx, "annex", "lock", "--", path); err != nil {
		return errors.Wrapf(err, "lock %s", path)
	}
	return errors.Wrapf(g.commitStaged(ctx, message), "commit %s", path)
}

// Fetch implements Tool.
func (g *GitAnnex) Fetch(ctx context.Context, path string) error {
	_, err := g.run(ctx, "annex", "get", "--", path)
	return errors.Wrapf(err, "fetch %s", path)
}

// Unlock implements Tool.
func (g *GitAnnex) Unlock(ctx context.Context, path string) error {
	ctx, unlock := g.lock(ctx)
	defer unlock()

	_, err := g.run(ctx, "annex", "unlock", "--", path)
	return errors.Wrapf(err, "unlock %s", path)
}

// Remove implements Tool.
func (g *GitAnnex) Remove(ctx context.Context, path, message string) error {
	ctx, unlock := g.lock(ctx)
	defer unlock()

	if _, err := g.run(ctx, "rm", "-r", "-q", "--cached", "--ignore-unmatch", "--", path); err != nil {
		return errors.Wrapf(err, "remove %s", path)
	}
	return errors.Wrapf(g.commitStaged(ctx, message), "commit removal of %s", path)
}

// Move implements Tool. The working tree has already been renamed by the
// caller; only the index is updated, so an unlocked file being edited is
// not added with its unfinished content.
func (g *GitAnnex) Move(ctx context.Context, oldPath, newPath, message string) error {
	ctx, unlock := g.lock(ctx)
	defer unlock()

	out, err := g.run(ctx, "ls-files", "-s", "-z", "--", oldPath)
	if err != nil {
		return errors.Wrapf(err, "list %s", oldPath)
	}
	entries, err := parseStages(out)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	var links []string
	for _, e := range entries {
		dest := newPath + strings.TrimPrefix(e.path, oldPath)
		info := e.mode + "," + e.id + "," + dest
		if _, err := g.run(ctx, "update-index", "--add", "--cacheinfo", info); err != nil {
			return errors.Wrapf(err, "move %s", e.path)
		}
		if fi, err := os.Lstat(filepath.Join(g.dir, dest)); err == nil && fi.Mode()&os.ModeSymlink != 0 {
			links = append(links, dest)
		}
	}
	if _, err := g.run(ctx, "rm", "-r", "-q", "--cached", "--ignore-unmatch", "--", oldPath); err != nil {
		return errors.Wrapf(err, "unstage %s", oldPath)
	}

	// Relative link targets break when the depth changes; fix and restage.
	if len(links) > 0 {
		if _, err := g.run(ctx, append([]string{"annex", "fix", "--"}, links...)...); err != nil {
			return errors.Wrapf(err, "fix links under %s", newPath)
		}
		if _, err := g.run(ctx, append([]string{"add", "--"}, links...)...); err != nil {
			return errors.Wrapf(err, "stage links under %s", newPath)
		}
	}
	return errors.Wrapf(g.commitStaged(ctx, message), "commit move of %s", oldPath)
}

// IsTracked implements Tool.
func (g *GitAnnex) IsTracked(ctx context.Context, path string) (bool, error) {
	out, err := g.run(ctx, "ls-files", "-z", "--", path)
	if err != nil {
		return false, errors.Wrapf(err, "ls-files %s", path)
	}
	return len(splitNUL(out)) > 0, nil
}

// IsIgnored implements Tool.
func (g *GitAnnex) IsIgnored(ctx context.Context, path string) (bool, error) {
	_, err := g.run(ctx, "check-ignore", "-q", "--", path)
	switch {
	case err == nil:
		return true, nil
	case exitCode(err) == 1:
		return false, nil
	default:
		return false, errors.Wrapf(err, "check-ignore %s", path)
	}
}

// ObjectIdentity implements Tool. Annexed paths are identified by their
// key; other paths by their git blob id.
func (g *GitAnnex) ObjectIdentity(ctx context.Context, path string) (string, error) {
	out, err := g.run(ctx, "ls-files", "-s", "-z", "--", path)
	if err != nil {
		return "", errors.Wrapf(err, "identity of %s", path)
	}
	entries, err := parseStages(out)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.Errorf("%s is not tracked", path)
	}
	e := entries[0]
	if e.mode == symlinkMode {
		if key, err := g.blobKey(ctx, e.id); err == nil && key != "" {
			return key, nil
		}
	}
	return e.id, nil
}

// blobKey reads a symlink blob and returns the annex key it points at.
func (g *GitAnnex) blobKey(ctx context.Context, id string) (string, error) {
	out, err := g.run(ctx, "cat-file", "blob", id)
	if err != nil {
		return "", err
	}
	return KeyFromTarget(out), nil
}

// Head implements Tool.
func (g *GitAnnex) Head(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--verify", "-q", "HEAD")
	if err != nil {
		if exitCode(err) == 1 {
			return "", nil
		}
		return "", errors.Wrap(err, "resolve HEAD")
	}
	return strings.TrimSpace(out), nil
}

// MergeFromRemote implements Tool.
func (g *GitAnnex) MergeFromRemote(ctx context.Context, remote string) error {
	ctx, unlock := g.lock(ctx)
	defer unlock()

	if _, err := g.run(ctx, "fetch", "-q", remote); err != nil {
		return errors.Wrapf(ErrMergeFailed, "fetch %s: %v", remote, err)
	}

	out, err := g.run(ctx, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil {
		return errors.Wrap(err, "current branch")
	}
	ref := "refs/remotes/" + remote + "/" + strings.TrimSpace(out)
	if _, err := g.run(ctx, "rev-parse", "--verify", "-q", ref); err != nil {
		logger.Debug("Remote %s has no %s yet, nothing to merge", remote, ref)
		return nil
	}

	_, mergeErr := g.run(ctx, "merge", "-q", "--no-edit", "--allow-unrelated-histories", ref)
	if mergeErr == nil {
		return nil
	}

	out, err = g.run(ctx, "ls-files", "-u", "-z")
	if err == nil && out != "" {
		return errors.Wrapf(ErrMergeConflict, "merge %s", ref)
	}
	if _, err := os.Stat(filepath.Join(g.dir, ".git", "MERGE_HEAD")); err == nil {
		if _, err := g.run(ctx, "merge", "--abort"); err != nil {
			logger.Error("Could not abort failed merge of %s: %v", ref, err)
		}
	}
	return errors.Wrapf(ErrMergeFailed, "merge %s: %v", ref, mergeErr)
}

// Changes implements Tool.
func (g *GitAnnex) Changes(ctx context.Context, from, to string) ([]Change, error) {
	if from == to {
		return nil, nil
	}
	if from == "" {
		from = emptyTree
	}
	out, err := g.run(ctx, "diff-tree", "-r", "-z", "--no-renames", "--name-status", from, to)
	if err != nil {
		return nil, errors.Wrapf(err, "diff %s..%s", from, to)
	}
	return parseNameStatus(out)
}

// Unmerged implements Tool.
func (g *GitAnnex) Unmerged(ctx context.Context) ([]UnmergedPath, error) {
	out, err := g.run(ctx, "ls-files", "-u", "-z")
	if err != nil {
		return nil, errors.Wrap(err, "list unmerged")
	}
	entries, err := parseStages(out)
	if err != nil {
		return nil, err
	}
	paths := groupUnmerged(entries)
	for i := range paths {
		for _, side := range []*Side{&paths[i].Base, &paths[i].Ours, &paths[i].Theirs} {
			if side.Mode == symlinkMode {
				side.Key, _ = g.blobKey(ctx, side.ID)
			}
		}
	}
	return paths, nil
}

// Resolve implements Tool.
func (g *GitAnnex) Resolve(ctx context.Context, r Resolution) error {
	ctx, unlock := g.lock(ctx)
	defer unlock()

	out, err := g.run(ctx, "ls-files", "-u", "-z", "--", r.Path)
	if err != nil {
		return errors.Wrapf(err, "stages of %s", r.Path)
	}
	entries, err := parseStages(out)
	if err != nil {
		return err
	}
	unmerged := groupUnmerged(entries)
	if len(unmerged) == 0 {
		return errors.Errorf("%s is not conflicted", r.Path)
	}
	u := unmerged[0]

	keep, other, flag := u.Ours, u.Theirs, "--ours"
	if r.Keep == KeepTheirs {
		keep, other, flag = u.Theirs, u.Ours, "--theirs"
	}
	if !keep.Present() {
		return errors.Errorf("kept side of %s was deleted", r.Path)
	}

	if _, err := g.run(ctx, "checkout", flag, "--", r.Path); err != nil {
		return errors.Wrapf(err, "checkout %s %s", flag, r.Path)
	}
	if _, err := g.run(ctx, "add", "--", r.Path); err != nil {
		return errors.Wrapf(err, "stage %s", r.Path)
	}

	if r.VariantPath == "" || !other.Present() {
		return nil
	}
	if err := g.writeBlob(ctx, other, r.VariantPath); err != nil {
		return err
	}
	_, err = g.run(ctx, "add", "--", r.VariantPath)
	return errors.Wrapf(err, "stage %s", r.VariantPath)
}

// writeBlob materialises a blob at path in the working tree. Symlink blobs
// become symlinks; the variant lives next to the original so relative
// targets stay valid.
func (g *GitAnnex) writeBlob(ctx context.Context, side Side, path string) error {
	content, err := g.run(ctx, "cat-file", "blob", side.ID)
	if err != nil {
		return errors.Wrapf(err, "read blob %s", side.ID)
	}
	full := filepath.Join(g.dir, path)
	if side.Mode == symlinkMode {
		return errors.Wrapf(os.Symlink(content, full), "write variant %s", path)
	}
	return errors.Wrapf(os.WriteFile(full, []byte(content), 0644), "write variant %s", path)
}

// CommitMerge implements Tool.
func (g *GitAnnex) CommitMerge(ctx context.Context, message string) error {
	ctx, unlock := g.lock(ctx)
	defer unlock()

	_, err := g.run(ctx, "commit", "-q", "-m", message)
	return errors.Wrap(err, "commit merge")
}

// AbortMerge implements Tool.
func (g *GitAnnex) AbortMerge(ctx context.Context) error {
	ctx, unlock := g.lock(ctx)
	defer unlock()

	_, err := g.run(ctx, "merge", "--abort")
	return errors.Wrap(err, "abort merge")
}
