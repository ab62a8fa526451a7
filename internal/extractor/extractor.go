// Package extractor turns uploaded documents into plain text.
//
// Every supported format yields an ordered list of text units (PDF pages,
// DOCX body paragraphs, PPTX text shapes, or the whole TXT file) which are
// joined with a single newline. No trimming or normalisation is applied.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"multi-model-summarizer/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrExtractionFailed    = errors.New("extraction failed")
)

// UnsupportedFileTypeError names the rejected extension.
type UnsupportedFileTypeError struct {
	Ext string
}

func (e *UnsupportedFileTypeError) Error() string {
	if e.Ext == "" {
		return "unsupported file type: (no extension)"
	}
	return "unsupported file type: " + e.Ext
}

func (e *UnsupportedFileTypeError) Is(target error) bool {
	return target == ErrUnsupportedFileType
}

// ExtractionError wraps a failure while reading a supported format.
type ExtractionError struct {
	Format string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s text: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtractionFailed
}

// Format identifies the reader used for a document.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatPPTX Format = "pptx"
	FormatTXT  Format = "txt"
)

// Legacy .doc and .ppt names are routed to the OOXML readers.
var formatsByExt = map[string]Format{
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".doc":  FormatDOCX,
	".pptx": FormatPPTX,
	".ppt":  FormatPPTX,
	".txt":  FormatTXT,
}

// FormatFor resolves a file extension (case-insensitive, with dot).
func FormatFor(ext string) (Format, error) {
	ext = strings.ToLower(ext)
	f, ok := formatsByExt[ext]
	if !ok {
		return "", &UnsupportedFileTypeError{Ext: ext}
	}
	return f, nil
}

// Document is the result of an extraction.
type Document struct {
	Format Format
	Units  []string
	Text   string
}

type Extractor struct {
	log         *slog.Logger
	metrics     *telemetry.Metrics
	maxPartSize int64
}

// DefaultMaxPartSize caps the decompressed size of a single OOXML part.
const DefaultMaxPartSize = 64 << 20

func New(log *slog.Logger, metrics *telemetry.Metrics) *Extractor {
	return &Extractor{
		log:         log,
		metrics:     metrics,
		maxPartSize: DefaultMaxPartSize,
	}
}

// Extract returns the newline-joined text of the document at path.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	doc, err := e.ExtractDocument(ctx, path)
	if err != nil {
		return "", err
	}
	return doc.Text, nil
}

// ExtractDocument is Extract with the individual text units kept.
func (e *Extractor) ExtractDocument(ctx context.Context, path string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	format, err := FormatFor(ext)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer(telemetry.ServiceName).Start(ctx, "extractor.extract")
	defer span.End()
	span.SetAttributes(attribute.String("document.format", string(format)))

	start := time.Now()
	var units []string
	switch format {
	case FormatPDF:
		units, err = readPDF(ctx, path, e.log)
	case FormatDOCX:
		units, err = readDOCX(ctx, path, e.maxPartSize)
	case FormatPPTX:
		units, err = readPPTX(ctx, path, e.maxPartSize)
	case FormatTXT:
		units, err = readTXT(path)
	}
	elapsed := time.Since(start)
	e.metrics.RecordExtraction(ext, elapsed.Seconds(), err == nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return nil, &ExtractionError{Format: string(format), Err: err}
	}

	text := strings.Join(units, "\n")
	span.SetAttributes(
		attribute.Int("document.units", len(units)),
		attribute.Int("document.characters", len(text)),
	)
	e.log.DebugContext(ctx, "document extracted",
		"format", format,
		"units", len(units),
		"characters", len(text),
		"duration", elapsed,
	)

	return &Document{Format: format, Units: units, Text: text}, nil
}

// SupportedExtensions lists the extensions the upload form advertises.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".pptx", ".txt"}
}
