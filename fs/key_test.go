package fs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nimbusfs/vfs/fs"
)

func TestCanonicalKeyCaseFolding(t *testing.T) {
	r := fs.NewResource("disk", "/Docs/Report.TXT")
	caseSensitive := fs.CanonicalKey(fs.PathCaseSensitive, r)
	caseInsensitive := fs.CanonicalKey(0, r)
	assert.Equal(t, "disk:///Docs/Report.TXT", caseSensitive)
	assert.Equal(t, "disk:///docs/report.txt", caseInsensitive)
}

func TestCanonicalKeyNormalizesUnicode(t *testing.T) {
	// composedPath spells the accented letter as a single composed rune
	// (U+00E9); decomposedPath spells it as "e" (U+0065) followed by a
	// combining acute accent (U+0301). Both render as the same glyph but
	// compare unequal as raw strings, so CanonicalKey must fold them to
	// the same NFC form.
	composedPath := "/café"
	decomposedPath := "/café"

	composed := fs.NewResource("disk", composedPath)
	decomposed := fs.NewResource("disk", decomposedPath)

	keyComposed := fs.CanonicalKey(fs.PathCaseSensitive, composed)
	keyDecomposed := fs.CanonicalKey(fs.PathCaseSensitive, decomposed)

	assert.NotEqual(t, composed.String(), decomposed.String())
	assert.Equal(t, keyComposed, keyDecomposed)
}
