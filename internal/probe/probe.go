// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package probe inspects staged PDFs before conversion. Results are
// diagnostic only; a probe failure never stops a conversion.
package probe

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNotPDF reports that a file does not start with a PDF header.
var ErrNotPDF = errors.New("not a PDF file")

var pdfMagic = []byte("%PDF-")

// PDF counts pages with pdfcpu under relaxed validation, so slightly
// malformed files that converters accept are still measured.
type PDF struct {
	conf *model.Configuration
}

// New returns a PDF prober.
func New() *PDF {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDF{conf: conf}
}

// PageCount returns the number of pages in the PDF at path.
func (p *PDF) PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	head, err := bufio.NewReader(f).Peek(len(pdfMagic))
	if err != nil || !bytes.Equal(head, pdfMagic) {
		return 0, ErrNotPDF
	}
	if _, err := f.Seek(0, 0); err != nil {
		return 0, fmt.Errorf("rewinding %s: %w", path, err)
	}

	n, err := api.PageCount(f, p.conf)
	if err != nil {
		return 0, fmt.Errorf("counting pages: %w", err)
	}
	return n, nil
}
