// Package extract turns uploaded files into ordered plain-text blocks. One
// block corresponds to one page where the format has pages (PDF) and to the
// whole document otherwise.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FileType returns the lowercase extension of filename without the dot.
func FileType(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// Blocks extracts the text blocks of content based on the file extension.
func Blocks(filename string, content []byte) ([]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		return onePage(string(content)), nil
	case ".html", ".htm":
		text, err := extractHTML(content)
		if err != nil {
			return nil, fmt.Errorf("extract html %s: %w", filename, err)
		}
		return onePage(text), nil
	case ".pdf":
		pages, err := extractPDF(content)
		if err != nil {
			return nil, fmt.Errorf("extract pdf %s: %w", filename, err)
		}
		return pages, nil
	case ".docx":
		text, err := extractDOCX(content)
		if err != nil {
			return nil, fmt.Errorf("extract docx %s: %w", filename, err)
		}
		return onePage(text), nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", filepath.Ext(filename))
	}
}

func onePage(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []string{text}
}
