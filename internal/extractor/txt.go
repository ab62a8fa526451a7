package extractor

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"
)

var errInvalidUTF8 = errors.New("text file is not valid UTF-8")

// readTXT returns the whole file as a single unit.
func readTXT(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, errInvalidUTF8
	}
	return []string{string(data)}, nil
}
