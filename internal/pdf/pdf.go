// Package pdf extracts page text from the strategy and news reports.
package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Loader returns the plain text of each page of a document.
type Loader interface {
	Load(path string) ([]string, error)
}

// FileLoader reads PDFs with ledongthuc/pdf. Plain .txt files are accepted as
// well, pages separated by form feeds, so reports can be fixed up by hand.
type FileLoader struct{}

func NewLoader() *FileLoader { return &FileLoader{} }

func (FileLoader) Load(path string) ([]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return strings.Split(string(data), "\f"), nil
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d of %s: %w", i, path, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// JoinPages concatenates page texts with newlines.
func JoinPages(pages []string) string {
	return strings.Join(pages, "\n")
}
