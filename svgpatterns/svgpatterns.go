// Package svgpatterns copies OID patterns from one SVG document into another.
//
// The source document is typically an OID table generated by tttool, where every <pattern> in <defs> has an
// id of the form SCRIPT-OID. The patterns are tagged with ttt:script and ttt:oid attributes when copied, which
// is how the browser UI finds the OID behind a clicked region.
package svgpatterns

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

const (
	// Namespace is the XML namespace of the ttt: attributes.
	Namespace = "http://tttool.entropia.de"

	prefix = "ttt"
)

// ErrBadPatternID is returned for pattern ids that are not of the form SCRIPT-OID.
var ErrBadPatternID = errors.New("pattern id must be of the form SCRIPT-OID")

// Pattern describes one injected pattern.
type Pattern struct {
	ID     string
	Script string
	OID    string
}

// Inject copies the patterns from patternFile into targetFile and writes the result to outFile, which may be targetFile itself.
// Patterns left in the target by an earlier injection are removed first.
func Inject(patternFile, targetFile, outFile string) ([]Pattern, error) {
	src := etree.NewDocument()
	err := src.ReadFromFile(patternFile)
	if err != nil {
		return nil, fmt.Errorf("reading pattern file: %w", err)
	}
	dst := etree.NewDocument()
	err = dst.ReadFromFile(targetFile)
	if err != nil {
		return nil, fmt.Errorf("reading target file: %w", err)
	}

	patterns, err := InjectDocument(src, dst)
	if err != nil {
		return nil, err
	}

	err = dst.WriteToFile(outFile)
	if err != nil {
		return nil, fmt.Errorf("writing %s: %w", outFile, err)
	}
	return patterns, nil
}

// InjectDocument copies the patterns from src into dst. src is not modified.
func InjectDocument(src, dst *etree.Document) ([]Pattern, error) {
	srcRoot := src.Root()
	if srcRoot == nil {
		return nil, errors.New("pattern document has no root element")
	}
	dstRoot := dst.Root()
	if dstRoot == nil {
		return nil, errors.New("target document has no root element")
	}

	var sources []*etree.Element
	for _, defs := range srcRoot.SelectElements("defs") {
		sources = append(sources, defs.SelectElements("pattern")...)
	}

	// validate everything before touching the target
	patterns := make([]Pattern, 0, len(sources))
	for _, p := range sources {
		id := p.SelectAttrValue("id", "")
		script, oid, err := splitID(id)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, Pattern{ID: id, Script: script, OID: oid})
	}

	defs := dstRoot.SelectElement("defs")
	if defs == nil {
		defs = dstRoot.CreateElement(qualify(dstRoot.Space, "defs"))
	} else {
		for _, old := range defs.SelectElements("pattern") {
			if old.SelectAttr(prefix+":oid") != nil {
				defs.RemoveChild(old)
			}
		}
	}

	declareNamespaces(srcRoot, dstRoot)

	for i, p := range sources {
		cp := p.Copy()
		cp.CreateAttr(prefix+":oid", patterns[i].OID)
		cp.CreateAttr(prefix+":script", patterns[i].Script)
		for _, path := range cp.SelectElements("path") {
			if id := path.SelectAttr("id"); id != nil {
				// keeps ids unique next to existing content
				id.Value += "oid"
			}
		}
		defs.AddChild(cp)
	}
	return patterns, nil
}

func splitID(id string) (script, oid string, err error) {
	parts := strings.Split(id, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadPatternID, id)
	}
	return parts[0], parts[1], nil
}

// declareNamespaces makes sure every prefix the copied patterns may use is declared on dst.
func declareNamespaces(src, dst *etree.Element) {
	if dst.SelectAttr("xmlns:"+prefix) == nil {
		dst.CreateAttr("xmlns:"+prefix, Namespace)
	}
	for _, a := range src.Attr {
		if a.Space != "xmlns" {
			continue
		}
		if dst.SelectAttr("xmlns:"+a.Key) == nil {
			dst.CreateAttr("xmlns:"+a.Key, a.Value)
		}
	}
}

func qualify(space, tag string) string {
	if space == "" {
		return tag
	}
	return space + ":" + tag
}
