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

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// PdftoppmRenderer rasterizes PDF pages to PNG via the pdftoppm binary
// from poppler-utils.
type PdftoppmRenderer struct {
	bin string
}

// NewPdftoppmRenderer creates the renderer. bin defaults to "pdftoppm"
// resolved on PATH.
func NewPdftoppmRenderer(bin string) *PdftoppmRenderer {
	if bin == "" {
		bin = "pdftoppm"
	}
	return &PdftoppmRenderer{bin: bin}
}

// Available reports whether the pdftoppm binary resolves.
func (r *PdftoppmRenderer) Available() bool {
	_, err := exec.LookPath(r.bin)
	return err == nil
}

// RenderPDF writes page-<N>.png files into outDir and returns their
// paths in page order.
func (r *PdftoppmRenderer) RenderPDF(ctx context.Context, pdfPath, outDir string, dpi, pageLimit int) ([]string, error) {
	prefix := filepath.Join(outDir, "page")
	args := []string{"-png", "-r", strconv.Itoa(dpi)}
	if pageLimit > 0 {
		args = append(args, "-l", strconv.Itoa(pageLimit))
	}
	args = append(args, pdfPath, prefix)

	cmd := exec.CommandContext(ctx, r.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed on %s: %w: %s",
			pdfPath, err, strings.TrimSpace(stderr.String()))
	}

	pages, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("failed to list rendered pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages for %s", pdfPath)
	}

	// pdftoppm numbers pages with a width-padded suffix; sort by the
	// numeric page index to be safe.
	sort.Slice(pages, func(i, j int) bool {
		return pageNumber(pages[i]) < pageNumber(pages[j])
	})
	return pages, nil
}

func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return 0
	}
	n, _ := strconv.Atoi(base[idx+1:])
	return n
}

var _ Renderer = (*PdftoppmRenderer)(nil)
