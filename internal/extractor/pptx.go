package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	pptxPresentationPart = "ppt/presentation.xml"
	pptxPresentationRels = "ppt/_rels/presentation.xml.rels"
)

var slidePartPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// readPPTX returns one unit per top-level text shape, slides in presentation order.
func readPPTX(ctx context.Context, path string, limit int64) ([]string, error) {
	zf, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PPTX package: %w", err)
	}
	defer zf.Close()

	slides, err := slideOrder(&zf.Reader, limit)
	if err != nil {
		return nil, err
	}

	var units []string
	for _, name := range slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := openPart(&zf.Reader, name, limit)
		if err != nil {
			return nil, err
		}
		shapes, err := parseSlideShapes(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		units = append(units, shapes...)
	}
	return units, nil
}

type presentation struct {
	SlideIDs []struct {
		Attrs []xml.Attr `xml:",any,attr"`
	} `xml:"sldIdLst>sldId"`
}

// slideOrder follows sldIdLst through the presentation relationships and
// falls back to numeric slide part order when either part is absent.
func slideOrder(zr *zip.Reader, limit int64) ([]string, error) {
	if hasPart(zr, pptxPresentationPart) && hasPart(zr, pptxPresentationRels) {
		data, err := openPart(zr, pptxPresentationPart, limit)
		if err != nil {
			return nil, err
		}
		var pres presentation
		if err := xml.Unmarshal(data, &pres); err != nil {
			return nil, fmt.Errorf("parse %s: %w", pptxPresentationPart, err)
		}
		rels, err := readRels(zr, pptxPresentationRels, "ppt", limit)
		if err != nil {
			return nil, err
		}

		var order []string
		for _, sld := range pres.SlideIDs {
			for _, a := range sld.Attrs {
				if a.Name.Space == nsRelationship && a.Name.Local == "id" {
					target, ok := rels[a.Value]
					if !ok {
						return nil, fmt.Errorf("slide relationship %s not found", a.Value)
					}
					order = append(order, target)
				}
			}
		}
		return order, nil
	}

	type numbered struct {
		name string
		n    int
	}
	var found []numbered
	for _, f := range zr.File {
		m := slidePartPattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		found = append(found, numbered{name: f.Name, n: n})
	}
	if len(found) == 0 && !hasPart(zr, pptxPresentationPart) {
		return nil, errors.New("not a presentation package")
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	order := make([]string, len(found))
	for i, s := range found {
		order[i] = path.Clean(s.name)
	}
	return order, nil
}

// parseSlideShapes walks p:spTree. Only p:sp children carry text; a shape
// without a text body contributes an empty unit.
func parseSlideShapes(data []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		stack      elementStack
		shapes     []string
		paragraphs []string
		current    strings.Builder
		treeDepth  = -1
		inShape    bool
		inPara     bool
		paraDepth  int
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack.push(t.Name)
			depth := len(stack)

			switch {
			case treeDepth < 0 && stack.endsWith(nsPresentation, "sld", "cSld", "spTree") && depth == 3:
				treeDepth = depth
			case treeDepth > 0 && depth == treeDepth+1 && t.Name.Space == nsPresentation && t.Name.Local == "sp":
				inShape = true
				paragraphs = paragraphs[:0]
			case inShape && !inPara && t.Name.Space == nsDrawingML && t.Name.Local == "p" &&
				depth == treeDepth+3 && stack[depth-2].Space == nsPresentation && stack[depth-2].Local == "txBody":
				inPara = true
				paraDepth = depth
				current.Reset()
			case inPara && depth == paraDepth+1 && t.Name.Space == nsDrawingML && t.Name.Local == "br":
				current.WriteString("\v")
			}
		case xml.EndElement:
			depth := len(stack)
			stack.pop()

			switch {
			case inPara && depth == paraDepth:
				paragraphs = append(paragraphs, current.String())
				inPara = false
			case inShape && depth == treeDepth+1:
				shapes = append(shapes, strings.Join(paragraphs, "\n"))
				inShape = false
			case depth == treeDepth:
				treeDepth = -2
			}
		case xml.CharData:
			if !inPara || len(stack) != paraDepth+2 {
				continue
			}
			// a:p > a:r > a:t and a:p > a:fld > a:t
			last := stack[len(stack)-1]
			parent := stack[len(stack)-2]
			if last.Space == nsDrawingML && last.Local == "t" &&
				parent.Space == nsDrawingML && (parent.Local == "r" || parent.Local == "fld") {
				current.Write(t)
			}
		}
	}

	return shapes, nil
}
