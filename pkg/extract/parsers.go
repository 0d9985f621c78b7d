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

package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// pdfParser extracts the text layer of PDF files.
type pdfParser struct{}

func (p *pdfParser) CanParse(path string) bool { return hasExt(path, ".pdf") }

func (p *pdfParser) Extensions() []string { return []string{".pdf"} }

func (p *pdfParser) Parse(ctx context.Context, path string, size int64) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	defer func() { _ = file.Close() }()

	reader, err := pdf.NewReader(file, size)
	if err != nil {
		return nil, &CorruptError{Path: path, Err: fmt.Errorf("failed to parse PDF: %w", err)}
	}

	totalPages := reader.NumPage()
	pageTexts := make([]string, 0, totalPages)

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			pageTexts = append(pageTexts, "")
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// A page that will not yield text counts as sparse for
			// scanned classification.
			pageTexts = append(pageTexts, "")
			continue
		}
		pageTexts = append(pageTexts, text)
	}

	detected := classifyPDF(pageTexts)
	result := &Result{
		PageTexts:    pageTexts,
		PageCount:    totalPages,
		DetectedType: detected,
	}

	if detected == DocTypePDFScanned {
		result.IsScanned = true
		return result, nil
	}

	var parts []string
	for _, text := range pageTexts {
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	result.Text = strings.Join(parts, "\n\n")
	result.Method = "text"
	return result, nil
}

// docxParser extracts paragraph text from Word documents.
type docxParser struct{}

func (p *docxParser) CanParse(path string) bool { return hasExt(path, ".docx") }

func (p *docxParser) Extensions() []string { return []string{".docx"} }

func (p *docxParser) Parse(ctx context.Context, path string, size int64) (*Result, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, &CorruptError{Path: path, Err: fmt.Errorf("failed to parse DOCX: %w", err)}
	}
	defer func() { _ = doc.Close() }()

	content := doc.Editable().GetContent()
	text := stripDocxTags(content)

	return &Result{
		Text:         text,
		PageCount:    0,
		DetectedType: DocTypeDOCX,
		Method:       "docx",
	}, nil
}

// stripDocxTags flattens the raw document XML into paragraph text in
// source order.
func stripDocxTags(content string) string {
	var out strings.Builder
	inTag := false
	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			out.WriteRune(r)
		}
	}
	// Collapse runs of blank lines left by structural tags.
	lines := strings.Split(out.String(), "\n")
	var kept []string
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, strings.TrimSpace(line))
		}
	}
	return strings.Join(kept, "\n")
}

// xlsxParser extracts cell text from spreadsheets, sheet by sheet.
type xlsxParser struct{}

func (p *xlsxParser) CanParse(path string) bool { return hasExt(path, ".xlsx") }

func (p *xlsxParser) Extensions() []string { return []string{".xlsx"} }

func (p *xlsxParser) Parse(ctx context.Context, path string, size int64) (*Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &CorruptError{Path: path, Err: fmt.Errorf("failed to parse XLSX: %w", err)}
	}
	defer func() { _ = f.Close() }()

	var parts []string
	for _, sheetName := range f.GetSheetList() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}

		var sheet strings.Builder
		sheet.WriteString(fmt.Sprintf("--- Sheet: %s ---\n", sheetName))
		for _, row := range rows {
			var cells []string
			for _, cell := range row {
				if text := strings.TrimSpace(cell); text != "" {
					cells = append(cells, text)
				}
			}
			if len(cells) > 0 {
				sheet.WriteString(strings.Join(cells, "\t"))
				sheet.WriteString("\n")
			}
		}
		parts = append(parts, strings.TrimSpace(sheet.String()))
	}

	return &Result{
		Text:         strings.Join(parts, "\n\n"),
		DetectedType: DocTypeXLSX,
		Method:       "xlsx",
	}, nil
}

// imageParser accepts standalone images. They carry no text layer, so
// the result is always flagged for OCR.
type imageParser struct{}

func (p *imageParser) CanParse(path string) bool {
	return hasExt(path, ".png", ".jpg", ".jpeg")
}

func (p *imageParser) Extensions() []string { return []string{".png", ".jpg", ".jpeg"} }

func (p *imageParser) Parse(ctx context.Context, path string, size int64) (*Result, error) {
	return &Result{
		PageCount:    1,
		DetectedType: DocTypeImage,
		IsScanned:    true,
	}, nil
}
