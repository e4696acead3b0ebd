package svgpatterns

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const patternSVG = `<svg xmlns="http://www.w3.org/2000/svg" xmlns:inkscape="http://www.inkscape.org/namespaces/inkscape">
  <defs>
    <pattern id="book-1401" width="10" height="10"><path id="dot1" d="M0 0h1v1z"/></pattern>
    <pattern id="book-1402" width="10" height="10"><path id="dot2" d="M0 0h1v1z"/><path d="M1 1h1v1z"/></pattern>
  </defs>
</svg>`

func parse(t *testing.T, s string) *etree.Document {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(s))
	return doc
}

func patternIDs(defs *etree.Element) []string {
	var ids []string
	for _, p := range defs.SelectElements("pattern") {
		ids = append(ids, p.SelectAttrValue("id", ""))
	}
	return ids
}

func TestInjectDocument(t *testing.T) {
	cases := []struct {
		name   string
		target string
		expIDs []string
	}{
		{
			name:   "target without defs",
			target: `<svg xmlns="http://www.w3.org/2000/svg"><rect/></svg>`,
			expIDs: []string{"book-1401", "book-1402"},
		},
		{
			name: "old OID patterns are replaced, others kept",
			target: `<svg xmlns="http://www.w3.org/2000/svg" xmlns:ttt="http://tttool.entropia.de">
  <defs>
    <pattern id="stripes"/>
    <pattern id="book-1" ttt:oid="1" ttt:script="book"/>
  </defs>
</svg>`,
			expIDs: []string{"stripes", "book-1401", "book-1402"},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			dst := parse(t, c.target)
			patterns, err := InjectDocument(parse(t, patternSVG), dst)
			require.NoError(t, err)

			assert.Equal(t, []Pattern{
				{ID: "book-1401", Script: "book", OID: "1401"},
				{ID: "book-1402", Script: "book", OID: "1402"},
			}, patterns)

			root := dst.Root()
			assert.Equal(t, Namespace, root.SelectAttrValue("xmlns:ttt", ""))
			assert.Equal(t, "http://www.inkscape.org/namespaces/inkscape", root.SelectAttrValue("xmlns:inkscape", ""))

			defs := root.SelectElement("defs")
			require.NotNil(t, defs)
			assert.Equal(t, c.expIDs, patternIDs(defs))

			var injected *etree.Element
			for _, p := range defs.SelectElements("pattern") {
				if p.SelectAttrValue("id", "") == "book-1402" {
					injected = p
				}
			}
			require.NotNil(t, injected)
			assert.Equal(t, "1402", injected.SelectAttrValue("ttt:oid", ""))
			assert.Equal(t, "book", injected.SelectAttrValue("ttt:script", ""))

			paths := injected.SelectElements("path")
			require.Len(t, paths, 2)
			assert.Equal(t, "dot2oid", paths[0].SelectAttrValue("id", ""))
			assert.Nil(t, paths[1].SelectAttr("id"))
		})
	}
}

func TestInjectDocumentLeavesSourceAlone(t *testing.T) {
	src := parse(t, patternSVG)
	_, err := InjectDocument(src, parse(t, `<svg xmlns="http://www.w3.org/2000/svg"/>`))
	require.NoError(t, err)

	p := src.Root().SelectElement("defs").SelectElement("pattern")
	assert.Nil(t, p.SelectAttr("ttt:oid"))
	assert.Equal(t, "dot1", p.SelectElement("path").SelectAttrValue("id", ""))
}

func TestInjectDocumentBadID(t *testing.T) {
	for _, id := range []string{"nodash", "too-many-dashes", "-1", "book-"} {
		t.Run(id, func(t *testing.T) {
			src := parse(t, `<svg xmlns="http://www.w3.org/2000/svg"><defs><pattern id="`+id+`"/></defs></svg>`)
			dst := parse(t, `<svg xmlns="http://www.w3.org/2000/svg"><rect/></svg>`)

			_, err := InjectDocument(src, dst)
			require.ErrorIs(t, err, ErrBadPatternID)
			// target is untouched
			assert.Nil(t, dst.Root().SelectElement("defs"))
		})
	}
}

func TestInject(t *testing.T) {
	dir := t.TempDir()
	patternFile := filepath.Join(dir, "oids.svg")
	targetFile := filepath.Join(dir, "book.svg")
	require.NoError(t, os.WriteFile(patternFile, []byte(patternSVG), 0o644))
	require.NoError(t, os.WriteFile(targetFile, []byte(`<svg xmlns="http://www.w3.org/2000/svg"><rect/></svg>`), 0o644))

	patterns, err := Inject(patternFile, targetFile, targetFile)
	require.NoError(t, err)
	assert.Len(t, patterns, 2)

	// injecting again replaces instead of duplicating
	_, err = Inject(patternFile, targetFile, targetFile)
	require.NoError(t, err)

	out := etree.NewDocument()
	require.NoError(t, out.ReadFromFile(targetFile))
	assert.Equal(t, []string{"book-1401", "book-1402"}, patternIDs(out.Root().SelectElement("defs")))
}

func TestInjectMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Inject(filepath.Join(dir, "missing.svg"), filepath.Join(dir, "book.svg"), filepath.Join(dir, "out.svg"))
	require.Error(t, err)
}
