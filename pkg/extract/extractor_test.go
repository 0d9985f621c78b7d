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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPDF(t *testing.T) {
	dense := strings.Repeat("lorem ipsum dolor sit amet ", 10)

	tests := []struct {
		name  string
		pages []string
		want  DocType
	}{
		{"all text pages", []string{dense, dense, dense}, DocTypePDFText},
		{"all empty pages", []string{"", "", ""}, DocTypePDFScanned},
		{"no pages", nil, DocTypePDFScanned},
		{"majority sparse", []string{dense, "", ""}, DocTypePDFScanned},
		{"majority dense", []string{dense, dense, ""}, DocTypePDFText},
		{"short pages below threshold", []string{"abc", "def"}, DocTypePDFScanned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyPDF(tt.pages))
		})
	}
}

func TestExtractUnsupportedType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	svc := NewService()
	_, err := svc.Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestExtractMissingFile(t *testing.T) {
	svc := NewService()
	_, err := svc.Extract(context.Background(), "/nonexistent/file.pdf")

	var corrupt *CorruptError
	assert.ErrorAs(t, err, &corrupt)
}

func TestExtractCorruptPDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf"), 0o644))

	svc := NewService()
	_, err := svc.Extract(context.Background(), path)

	var corrupt *CorruptError
	assert.ErrorAs(t, err, &corrupt)
}

func TestExtractImageIsFlaggedForOCR(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0o644))

	svc := NewService()
	result, err := svc.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, DocTypeImage, result.DetectedType)
	assert.True(t, result.IsScanned)
	assert.Empty(t, result.Text)
}

func TestSupportedExtensions(t *testing.T) {
	svc := NewService()
	exts := svc.SupportedExtensions()

	for _, want := range []string{".pdf", ".docx", ".xlsx", ".png", ".jpg", ".jpeg"} {
		assert.Contains(t, exts, want)
	}
}

func TestStripDocxTags(t *testing.T) {
	content := "<w:p><w:r><w:t>First paragraph</w:t></w:r></w:p>\n<w:p><w:r><w:t>Second</w:t></w:r></w:p>"
	text := stripDocxTags(content)

	assert.Contains(t, text, "First paragraph")
	assert.Contains(t, text, "Second")
	assert.NotContains(t, text, "<")
}
