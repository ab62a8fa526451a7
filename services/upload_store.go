package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"multi-model-summarizer/internal/extractor"

	"github.com/google/uuid"
)

var (
	ErrFileTooLarge    = errors.New("file exceeds maximum upload size")
	ErrInvalidFilename = errors.New("invalid filename")
)

// uploadExtensions are the types the upload form accepts.
var uploadExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".pptx": true,
	".txt":  true,
}

// UploadStore keeps request-scoped copies of uploaded documents.
type UploadStore struct {
	dir     string
	tempDir string
	maxSize int64
	log     *slog.Logger
}

// StoredUpload describes one saved upload.
type StoredUpload struct {
	Path         string
	OriginalName string
	Ext          string
	Hash         string
	Size         int64
}

func NewUploadStore(dir string, maxSize int64, log *slog.Logger) (*UploadStore, error) {
	tempDir := filepath.Join(dir, ".tmp")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &UploadStore{dir: dir, tempDir: tempDir, maxSize: maxSize, log: log}, nil
}

// Dir returns the working directory.
func (s *UploadStore) Dir() string { return s.dir }

// ValidateFilename checks the client-supplied name and returns its
// lowercased extension.
func ValidateFilename(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("%w: filename is required", ErrInvalidFilename)
	}
	if len(filename) > 255 {
		return "", fmt.Errorf("%w: filename too long (max 255 characters)", ErrInvalidFilename)
	}
	if strings.ContainsRune(filename, 0) {
		return "", fmt.Errorf("%w: filename contains invalid characters", ErrInvalidFilename)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !uploadExtensions[ext] {
		return "", &extractor.UnsupportedFileTypeError{Ext: ext}
	}
	return ext, nil
}

// Save streams src into the working directory under a random name that
// keeps the original extension. Writes go through a temp file and rename.
func (s *UploadStore) Save(src io.Reader, originalName string) (*StoredUpload, error) {
	ext, err := ValidateFilename(originalName)
	if err != nil {
		return nil, err
	}

	tempPath := filepath.Join(s.tempDir, uuid.NewString()+".tmp")
	tempFile, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tempFile, hasher), io.LimitReader(src, s.maxSize+1))
	if err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	if written > s.maxSize {
		os.Remove(tempPath)
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.maxSize)
	}

	finalPath := filepath.Join(s.dir, uuid.NewString()+ext)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to move file to final location: %w", err)
	}

	return &StoredUpload{
		Path:         finalPath,
		OriginalName: filepath.Base(originalName),
		Ext:          ext,
		Hash:         hex.EncodeToString(hasher.Sum(nil)),
		Size:         written,
	}, nil
}

// Remove deletes a stored upload. Missing files are not an error.
func (s *UploadStore) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("failed to remove upload", "path", path, "error", err)
	}
}

// Sweep deletes uploads and stray temp files last modified before cutoff.
func (s *UploadStore) Sweep(cutoff time.Time) (int, error) {
	removed := 0
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if path != s.dir && path != s.tempDir {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
		return nil
	})
	return removed, err
}
