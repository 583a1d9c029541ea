package annex

import (
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ObjectsDir is the path fragment every annex link target contains.
const ObjectsDir = ".git/annex/objects/"

// symlinkMode is the git index mode of a symbolic link.
const symlinkMode = "120000"

// emptyTree is the id of git's empty tree, used to diff against an unborn HEAD.
const emptyTree = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// IsAnnexTarget reports whether a symlink target points into the annex
// object store.
func IsAnnexTarget(target string) bool {
	return strings.Contains(target, ObjectsDir) || strings.HasPrefix(target, "/annex/objects/")
}

// KeyFromTarget extracts the annex key from a link target
// (".git/annex/objects/Xx/Yy/KEY/KEY" → "KEY").
func KeyFromTarget(target string) string {
	if !IsAnnexTarget(target) {
		return ""
	}
	return path.Base(strings.TrimSpace(target))
}

// KeySize returns the size field of a key such as
// "SHA256E-s1048576--9f86d0....txt", or -1 when the key carries none.
func KeySize(key string) int64 {
	fields := strings.Split(key, "--")
	if len(fields) < 2 {
		return -1
	}
	for _, f := range strings.Split(fields[0], "-") {
		if len(f) > 1 && f[0] == 's' {
			if n, err := strconv.ParseInt(f[1:], 10, 64); err == nil {
				return n
			}
		}
	}
	return -1
}

// splitLines splits command output into non-empty trimmed lines.
func splitLines(out string) []string {
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// splitNUL splits -z output, dropping the trailing empty field.
func splitNUL(out string) []string {
	fields := strings.Split(out, "\x00")
	if n := len(fields); n > 0 && fields[n-1] == "" {
		fields = fields[:n-1]
	}
	return fields
}

// parseNameStatus parses `git diff-tree -r -z --name-status` output.
func parseNameStatus(out string) ([]Change, error) {
	fields := splitNUL(out)
	changes := make([]Change, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			return nil, errors.Errorf("truncated name-status output after %q", fields[i])
		}
		status, p := fields[i], fields[i+1]
		if status == "" {
			return nil, errors.Errorf("empty status for %q", p)
		}
		var kind ChangeKind
		switch status[0] {
		case 'A':
			kind = Added
		case 'D':
			kind = Deleted
		case 'M', 'T':
			kind = Modified
		default:
			return nil, errors.Errorf("unexpected status %q for %q", status, p)
		}
		changes = append(changes, Change{Kind: kind, Path: p})
	}
	return changes, nil
}

// stageEntry is one line of `git ls-files -s` / `git ls-files -u`.
type stageEntry struct {
	mode  string
	id    string
	stage int
	path  string
}

// parseStages parses `git ls-files -s -z` or `-u -z` output:
// "<mode> <object> <stage>\t<path>\0".
func parseStages(out string) ([]stageEntry, error) {
	var entries []stageEntry
	for _, rec := range splitNUL(out) {
		meta, p, ok := strings.Cut(rec, "\t")
		if !ok {
			return nil, errors.Errorf("malformed ls-files record %q", rec)
		}
		fields := strings.Fields(meta)
		if len(fields) != 3 {
			return nil, errors.Errorf("malformed ls-files record %q", rec)
		}
		stage, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, errors.Wrapf(err, "stage in %q", rec)
		}
		entries = append(entries, stageEntry{mode: fields[0], id: fields[1], stage: stage, path: p})
	}
	return entries, nil
}

// groupUnmerged folds stage entries into one UnmergedPath per path,
// preserving first-seen order.
func groupUnmerged(entries []stageEntry) []UnmergedPath {
	var order []string
	byPath := make(map[string]*UnmergedPath)
	for _, e := range entries {
		u, ok := byPath[e.path]
		if !ok {
			u = &UnmergedPath{Path: e.path}
			byPath[e.path] = u
			order = append(order, e.path)
		}
		side := Side{Mode: e.mode, ID: e.id}
		switch e.stage {
		case 1:
			u.Base = side
		case 2:
			u.Ours = side
		case 3:
			u.Theirs = side
		}
	}
	result := make([]UnmergedPath, 0, len(order))
	for _, p := range order {
		result = append(result, *byPath[p])
	}
	return result
}
