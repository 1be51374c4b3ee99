// Package pdfinfo inspects uploaded PDFs without converting them, backing
// the analyze endpoint the split/merge previews rely on.
package pdfinfo

import (
	"bufio"
	"bytes"

	"github.com/ledongthuc/pdf"

	"github.com/mani-django09/smallpdf.us-sub000/internal/errs"
)

type Report struct {
	PageCount int  `json:"pageCount"`
	HasText   bool `json:"hasText"`
	WordCount int  `json:"wordCount"`
}

func Analyze(path string) (*Report, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.CodeConversion, err, "failed to read PDF")
	}
	defer f.Close()

	report := &Report{PageCount: r.NumPage()}

	// Text extraction fails on scanned or image-only documents, that is a
	// normal outcome, not an error.
	reader, err := r.GetPlainText()
	if err != nil {
		return report, nil
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return report, nil
	}

	scanner := bufio.NewScanner(&buf)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		report.WordCount++
	}
	report.HasText = report.WordCount > 0
	return report, nil
}
