// Package pdf recovers acknowledgement text from local paper PDFs.
package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractText extracts all text from the first N pages of a PDF.
// maxPages <= 0 reads every page.
func ExtractText(filePath string, maxPages int) (string, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if maxPages <= 0 || maxPages > r.NumPage() {
		maxPages = r.NumPage()
	}

	var builder strings.Builder
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}

	return builder.String(), nil
}

var (
	ackHeading = regexp.MustCompile(`(?im)^[ \t]*(?:\d+\.?[ \t]*)?acknowledge?ments?\b[ \t.:]*`)
	// Headings that end an acknowledgement section.
	nextHeading = regexp.MustCompile(`(?im)^[ \t]*(?:\d+\.?[ \t]*)?(?:references|bibliography|literature cited|funding|author contributions|competing interests|conflicts? of interest|data availability|appendix|supplementary material)\b`)
)

// maxAcknowledgementLen bounds a section whose end heading was not found.
const maxAcknowledgementLen = 3000

// Acknowledgements returns the section of text after an
// "Acknowledg(e)ments" heading, up to the next known heading. It returns
// "" when the text has no such heading.
func Acknowledgements(text string) string {
	loc := ackHeading.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[1]:]
	if end := nextHeading.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	} else if len(rest) > maxAcknowledgementLen {
		rest = rest[:maxAcknowledgementLen]
	}
	return strings.Join(strings.Fields(rest), " ")
}

// ExtractAcknowledgements reads the PDF at path and returns its
// acknowledgement section.
func ExtractAcknowledgements(path string) (string, error) {
	text, err := ExtractText(path, 0)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return Acknowledgements(text), nil
}

// Locator resolves paper filenames to PDFs under a root directory.
type Locator struct {
	root string
}

// NewLocator returns a locator rooted at dir.
func NewLocator(dir string) *Locator {
	return &Locator{root: dir}
}

// ResolvePath returns the PDF for filename. A filename without a .pdf
// extension also matches filename + ".pdf".
func (l *Locator) ResolvePath(filename string) (string, error) {
	if l.root == "" {
		return "", fmt.Errorf("pdf_dir not configured")
	}
	if filename == "" {
		return "", fmt.Errorf("no PDF filename specified")
	}

	candidates := []string{filepath.Join(l.root, filename)}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		candidates = append(candidates, filepath.Join(l.root, filename+".pdf"))
	}
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("checking PDF: %w", err)
		}
	}
	return "", fmt.Errorf("PDF not found: %s", candidates[0])
}
