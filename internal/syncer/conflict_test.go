package syncer

import (
	"errors"
	"path"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"sharebox/internal/annex"
)

func TestVariantName(t *testing.T) {
	tests := []struct {
		name string
		path string
		id   string
		want string
	}{
		{"annex key", "docs/report.pdf", "SHA256E-s1024--0123456789abcdef.pdf", "docs/report.variant-01234567.pdf"},
		{"git blob", "notes.txt", "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391", "notes.variant-e69de29b.txt"},
		{"no extension", "Makefile", "deadbeefcafe", "Makefile.variant-deadbeef"},
		{"dotfile", "dir/.profile", "abcdef0123", "dir/.profile.variant-abcdef01"},
		{"short id", "a/b.c", "abc", "a/b.variant-abc.c"},
		{"double extension", "pkg.tar.gz", "SHA256E-s9--feedfacefeedface.tar.gz", "pkg.tar.variant-feedface.gz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VariantName(tt.path, tt.id))
		})
	}
}

func TestVariantNameProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	names := gen.RegexMatch(`[a-z]{1,8}\.[a-z]{1,3}`)
	hashes := gen.RegexMatch(`[0-9a-f]{8,40}`)

	properties.Property("variant stays in the same directory and keeps the extension", prop.ForAll(
		func(dir, name, hash string) bool {
			p := path.Join(dir, name)
			v := VariantName(p, hash)
			return path.Dir(v) == path.Dir(p) &&
				path.Ext(v) == path.Ext(p) &&
				v != p &&
				strings.Contains(v, ".variant-"+hash[:8])
		},
		gen.RegexMatch(`[a-z]{1,5}(/[a-z]{1,5}){0,2}`),
		names,
		hashes,
	))

	properties.TestingRun(t)
}

func TestClassify(t *testing.T) {
	present := func(id string) annex.Side { return annex.Side{Mode: "100644", ID: id} }

	tests := []struct {
		name       string
		u          annex.UnmergedPath
		conflict   bool
		kind       ConflictKind
		kept       annex.Keep
		hasVariant bool
	}{
		{
			name:       "both modified",
			u:          annex.UnmergedPath{Path: "f", Base: present("0"), Ours: present("1"), Theirs: present("2")},
			conflict:   true,
			kind:       ModifyModify,
			kept:       annex.KeepOurs,
			hasVariant: true,
		},
		{
			name:     "same content on both sides",
			u:        annex.UnmergedPath{Path: "f", Ours: present("1"), Theirs: present("1")},
			conflict: false,
			kept:     annex.KeepOurs,
		},
		{
			name:     "same key, different link blobs",
			u:        annex.UnmergedPath{Path: "f", Ours: annex.Side{ID: "1", Key: "K"}, Theirs: annex.Side{ID: "2", Key: "K"}},
			conflict: false,
			kept:     annex.KeepOurs,
		},
		{
			name:     "deleted remotely",
			u:        annex.UnmergedPath{Path: "f", Base: present("0"), Ours: present("1")},
			conflict: true,
			kind:     ModifyDelete,
			kept:     annex.KeepOurs,
		},
		{
			name:     "deleted locally",
			u:        annex.UnmergedPath{Path: "f", Base: present("0"), Theirs: present("2")},
			conflict: true,
			kind:     ModifyDelete,
			kept:     annex.KeepTheirs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := classify(tt.u)
			assert.Equal(t, tt.conflict, ok)
			assert.Equal(t, tt.kept, c.Kept)
			assert.Equal(t, tt.hasVariant, c.Variant != "")
			if ok {
				assert.Equal(t, tt.kind, c.Kind)
			}
		})
	}
}

func TestConflictError(t *testing.T) {
	err := &ConflictError{Conflicts: []Conflict{
		{Path: "a.txt", Kind: ModifyModify, Variant: "a.variant-12345678.txt"},
		{Path: "b.txt", Kind: ModifyDelete},
	}}

	assert.True(t, errors.Is(err, ErrConflictDetected))
	assert.Equal(t, "conflict detected: a.txt, b.txt", err.Error())
	assert.Equal(t, "modify/modify a.txt (other variant at a.variant-12345678.txt)", err.Conflicts[0].String())
}
