package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxMainPart = "word/document.xml"

// readDOCX returns one unit per body paragraph in document order. Paragraphs
// nested in tables, text boxes or content controls are not body paragraphs.
func readDOCX(ctx context.Context, path string, limit int64) ([]string, error) {
	zf, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DOCX package: %w", err)
	}
	defer zf.Close()

	data, err := openPart(&zf.Reader, docxMainPart, limit)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return parseDocumentBody(data)
}

func parseDocumentBody(data []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		stack      elementStack
		paragraphs []string
		current    strings.Builder
		inPara     bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", docxMainPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !inPara && t.Name.Space == nsWordML && t.Name.Local == "p" && stack.endsWith(nsWordML, "document", "body") && len(stack) == 2 {
				inPara = true
				current.Reset()
			}
			stack.push(t.Name)
			if inPara && runChild(stack) {
				current.WriteString(runSpecialText(t))
			}
		case xml.EndElement:
			stack.pop()
			if inPara && len(stack) == 2 && t.Name.Space == nsWordML && t.Name.Local == "p" {
				paragraphs = append(paragraphs, current.String())
				inPara = false
			}
		case xml.CharData:
			if inPara && runText(stack) {
				current.Write(t)
			}
		}
	}

	return paragraphs, nil
}

// Runs count when they sit directly in the paragraph or in a hyperlink.
func inRun(stack elementStack, depth int) bool {
	// stack: document, body, p, [hyperlink,] r, child...
	rel := stack[3:]
	if len(rel) < depth {
		return false
	}
	switch len(rel) - depth {
	case 0:
		return rel[0].Space == nsWordML && rel[0].Local == "r"
	case 1:
		return rel[0].Space == nsWordML && rel[0].Local == "hyperlink" &&
			rel[1].Space == nsWordML && rel[1].Local == "r"
	}
	return false
}

// runText reports whether character data belongs to a w:t of a paragraph run.
func runText(stack elementStack) bool {
	if len(stack) < 5 {
		return false
	}
	last := stack[len(stack)-1]
	if last.Space != nsWordML || last.Local != "t" {
		return false
	}
	return inRun(stack, 2)
}

// runChild reports whether the element just opened is a direct run child.
func runChild(stack elementStack) bool {
	if len(stack) < 5 {
		return false
	}
	return inRun(stack, 2)
}

func runSpecialText(el xml.StartElement) string {
	if el.Name.Space != nsWordML {
		return ""
	}
	switch el.Name.Local {
	case "tab", "ptab":
		return "\t"
	case "cr":
		return "\n"
	case "br":
		for _, a := range el.Attr {
			if a.Name.Local == "type" && a.Value != "textWrapping" {
				return ""
			}
		}
		return "\n"
	case "noBreakHyphen":
		return "-"
	}
	return ""
}
