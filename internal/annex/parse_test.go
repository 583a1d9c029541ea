package annex

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFromTarget(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"../.git/annex/objects/pX/ZJ/SHA256E-s4--9f86d0.txt/SHA256E-s4--9f86d0.txt", "SHA256E-s4--9f86d0.txt"},
		{".git/annex/objects/a/b/K/K\n", "K"},
		{"/annex/objects/SHA256E-s10--abc", "SHA256E-s10--abc"},
		{"../elsewhere/file", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KeyFromTarget(tt.target), "target %q", tt.target)
	}
}

func TestKeySize(t *testing.T) {
	assert.Equal(t, int64(4), KeySize("SHA256E-s4--9f86d0.txt"))
	assert.Equal(t, int64(1048576), KeySize("SHA256E-s1048576-m1700000000--abc"))
	assert.Equal(t, int64(-1), KeySize("WORM--foo"))
	assert.Equal(t, int64(-1), KeySize("garbage"))
}

func TestKeySizeProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("size field is recovered from any SHA256E key", prop.ForAll(
		func(size int64, hash string) bool {
			key := "SHA256E-s" + strconv.FormatInt(size, 10) + "--" + hash
			return KeySize(key) == size
		},
		gen.Int64Range(0, 1<<40),
		gen.AlphaString(),
	))
	properties.TestingRun(t)
}

func TestParseNameStatus(t *testing.T) {
	out := "A\x00new file.txt\x00M\x00docs/readme\x00D\x00gone\x00T\x00swapped\x00"
	changes, err := parseNameStatus(out)
	require.NoError(t, err)
	assert.Equal(t, []Change{
		{Kind: Added, Path: "new file.txt"},
		{Kind: Modified, Path: "docs/readme"},
		{Kind: Deleted, Path: "gone"},
		{Kind: Modified, Path: "swapped"},
	}, changes)

	_, err = parseNameStatus("A\x00")
	assert.Error(t, err)
	_, err = parseNameStatus("X\x00what\x00")
	assert.Error(t, err)

	changes, err = parseNameStatus("")
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestParseStagesAndGroup(t *testing.T) {
	out := "120000 aaaa 1\tfoo\x00" +
		"120000 bbbb 2\tfoo\x00" +
		"120000 cccc 3\tfoo\x00" +
		"100644 dddd 1\tbar\x00" +
		"100644 eeee 2\tbar\x00"
	entries, err := parseStages(out)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	unmerged := groupUnmerged(entries)
	require.Len(t, unmerged, 2)

	foo := unmerged[0]
	assert.Equal(t, "foo", foo.Path)
	assert.Equal(t, "aaaa", foo.Base.ID)
	assert.Equal(t, "bbbb", foo.Ours.ID)
	assert.Equal(t, "cccc", foo.Theirs.ID)

	bar := unmerged[1]
	assert.Equal(t, "bar", bar.Path)
	assert.True(t, bar.Ours.Present())
	assert.False(t, bar.Theirs.Present(), "theirs deleted bar")

	_, err = parseStages("garbage\x00")
	assert.Error(t, err)
}

func TestBackingStoreError(t *testing.T) {
	err := &BackingStoreError{
		Args:   []string{"git", "annex", "get", "--", "foo"},
		Stderr: "  get foo (not available)\n",
		Err:    assert.AnError,
	}
	assert.Contains(t, err.Error(), "git annex get -- foo")
	assert.Contains(t, err.Error(), "not available")
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, IsBackingStoreError(err))
	assert.False(t, IsBackingStoreError(assert.AnError))
}
