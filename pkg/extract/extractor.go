// Copyright 2026 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package extract pulls text out of uploaded documents.
//
// A registry of native parsers handles PDF, DOCX, XLSX, and image
// files. PDFs whose extractable text falls below a per-page threshold
// on most pages are classified as scanned; the ingestion pipeline then
// routes them through OCR instead.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DocType classifies a document after detection.
type DocType string

const (
	// DocTypePDFText is a PDF with an extractable text layer.
	DocTypePDFText DocType = "PDF_TEXT"
	// DocTypePDFScanned is a PDF whose pages are images; needs OCR.
	DocTypePDFScanned DocType = "PDF_SCANNED"
	// DocTypeDOCX is a Word document.
	DocTypeDOCX DocType = "DOCX"
	// DocTypeXLSX is a spreadsheet.
	DocTypeXLSX DocType = "XLSX"
	// DocTypeImage is a standalone image; needs OCR.
	DocTypeImage DocType = "IMAGE"
)

// scannedCharsPerPage is the minimum extractable characters per page
// for a PDF page to count as text-bearing.
const scannedCharsPerPage = 100

// Result is the outcome of text extraction.
type Result struct {
	// Text is the consolidated extracted text. Empty for scanned PDFs
	// and images, which need OCR.
	Text string
	// PageTexts holds per-page text for PDFs, in page order.
	PageTexts []string
	// PageCount is the page count where the format has pages.
	PageCount int
	// DetectedType is the classification after inspection.
	DetectedType DocType
	// IsScanned reports that OCR is required to read the content.
	IsScanned bool
	// Method names how the text was obtained ("text", "docx", "xlsx";
	// "ocr" is filled in by the pipeline after OCR runs).
	Method string
}

// parser extracts text from one family of file formats.
type parser interface {
	CanParse(path string) bool
	Extensions() []string
	Parse(ctx context.Context, path string, size int64) (*Result, error)
}

// Service detects document types and extracts their text.
type Service struct {
	parsers []parser
}

// NewService creates the extraction service with the native parsers.
func NewService() *Service {
	return &Service{
		parsers: []parser{
			&pdfParser{},
			&docxParser{},
			&xlsxParser{},
			&imageParser{},
		},
	}
}

// SupportedExtensions lists every extension a parser accepts.
func (s *Service) SupportedExtensions() []string {
	var exts []string
	for _, p := range s.parsers {
		exts = append(exts, p.Extensions()...)
	}
	return exts
}

// Extract detects the document type of the file at path and extracts
// its text. Returns ErrUnsupportedType when no parser accepts the
// extension and *CorruptError when the file cannot be read.
func (s *Service) Extract(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}

	for _, p := range s.parsers {
		if p.CanParse(path) {
			return p.Parse(ctx, path, info.Size())
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
}

// hasExt reports whether path carries one of the given extensions.
func hasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// classifyPDF decides between PDF_TEXT and PDF_SCANNED: a PDF is
// scanned when the majority of its pages yield fewer extractable
// characters than the per-page threshold.
func classifyPDF(pageTexts []string) DocType {
	if len(pageTexts) == 0 {
		return DocTypePDFScanned
	}
	sparse := 0
	for _, text := range pageTexts {
		if len(strings.TrimSpace(text)) < scannedCharsPerPage {
			sparse++
		}
	}
	if sparse*2 > len(pageTexts) {
		return DocTypePDFScanned
	}
	return DocTypePDFText
}
