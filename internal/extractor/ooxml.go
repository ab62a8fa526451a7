package extractor

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

const (
	nsWordML       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsPresentation = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsDrawingML    = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsRelationship = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

var errPartTooLarge = errors.New("package part exceeds size limit")

// openPart reads a single zip entry, bounded by limit.
func openPart(zr *zip.Reader, name string, limit int64) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(io.LimitReader(rc, limit+1))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if int64(len(data)) > limit {
			return nil, fmt.Errorf("%s: %w", name, errPartTooLarge)
		}
		return data, nil
	}
	return nil, fmt.Errorf("missing part %s", name)
}

func hasPart(zr *zip.Reader, name string) bool {
	for _, f := range zr.File {
		if f.Name == name {
			return true
		}
	}
	return false
}

// relationship is one entry of a .rels part.
type relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
	Mode   string `xml:"TargetMode,attr"`
}

type relationships struct {
	Items []relationship `xml:"Relationship"`
}

// readRels maps relationship ids to package paths resolved against baseDir.
func readRels(zr *zip.Reader, relsPath, baseDir string, limit int64) (map[string]string, error) {
	data, err := openPart(zr, relsPath, limit)
	if err != nil {
		return nil, err
	}
	var rels relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("parse %s: %w", relsPath, err)
	}

	out := make(map[string]string, len(rels.Items))
	for _, r := range rels.Items {
		if strings.EqualFold(r.Mode, "External") {
			continue
		}
		out[r.ID] = resolvePartPath(baseDir, r.Target)
	}
	return out, nil
}

func resolvePartPath(baseDir, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return path.Clean(path.Join(baseDir, target))
}

// elementStack tracks the open elements while streaming tokens.
type elementStack []xml.Name

func (s *elementStack) push(n xml.Name) { *s = append(*s, n) }

func (s *elementStack) pop() {
	if len(*s) > 0 {
		*s = (*s)[:len(*s)-1]
	}
}

// endsWith reports whether the innermost elements match names, outermost first.
// Each name is matched on local part within the given namespace.
func (s elementStack) endsWith(space string, names ...string) bool {
	if len(s) < len(names) {
		return false
	}
	off := len(s) - len(names)
	for i, n := range names {
		el := s[off+i]
		if el.Space != space || el.Local != n {
			return false
		}
	}
	return true
}
