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
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu      sync.Mutex
	results map[string]*RecognizeResult
	calls   []string
}

func (f *fakeEngine) Recognize(_ context.Context, imagePath, _ string) (*RecognizeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, imagePath)
	if res, ok := f.results[imagePath]; ok {
		return res, nil
	}
	return nil, fmt.Errorf("no result scripted for %s", imagePath)
}

func (f *fakeEngine) Available() bool { return true }

type fakeRenderer struct {
	pages []string
	err   error
}

func (f *fakeRenderer) RenderPDF(context.Context, string, string, int, int) ([]string, error) {
	return f.pages, f.err
}

func (f *fakeRenderer) Available() bool { return true }

func TestParseTSV(t *testing.T) {
	tsv := strings.Join([]string{
		"level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext",
		"1\t1\t0\t0\t0\t0\t0\t0\t100\t100\t-1\t",
		"5\t1\t1\t1\t1\t1\t10\t10\t20\t10\t96.5\tContrato",
		"5\t1\t1\t1\t1\t2\t35\t10\t20\t10\t91.0\tde",
		"5\t1\t1\t1\t2\t1\t10\t25\t20\t10\t88.2\ttrabalho",
		"5\t1\t1\t1\t2\t2\t35\t25\t20\t10\t70.0\t ",
	}, "\n")

	result := parseTSV(tsv)
	assert.Equal(t, "Contrato de\ntrabalho", result.Text)
	require.Len(t, result.Words, 3)
	assert.Equal(t, 96.5, result.Words[0].Conf)
}

func TestMeanConfidenceSkipsUndetected(t *testing.T) {
	words := []Word{
		{Text: "a", Conf: 80},
		{Text: "b", Conf: -1},
		{Text: "c", Conf: 60},
	}
	assert.Equal(t, 70.0, meanConfidence(words))
	assert.Equal(t, 0.0, meanConfidence(nil))
}

func TestProcessPDFAssemblesPagesInOrder(t *testing.T) {
	engine := &fakeEngine{results: map[string]*RecognizeResult{
		"page-1.png": {Text: "primeira pagina", Words: []Word{{Text: "primeira", Conf: 90}, {Text: "pagina", Conf: 92}}},
		"page-2.png": {Text: "segunda pagina", Words: []Word{{Text: "segunda", Conf: 20}, {Text: "pagina", Conf: 30}}},
		"page-3.png": {Text: "terceira pagina", Words: []Word{{Text: "terceira", Conf: 85}, {Text: "pagina", Conf: 87}}},
	}}
	renderer := &fakeRenderer{pages: []string{"page-1.png", "page-2.png", "page-3.png"}}

	proc := NewProcessor(engine, renderer, Options{MaxConcurrentPages: 2}, nil)
	var progressCalls int
	result, err := proc.ProcessPDF(context.Background(), "doc.pdf", func(done, total int) {
		progressCalls++
		assert.Equal(t, 3, total)
	})
	require.NoError(t, err)

	require.Len(t, result.Pages, 3)
	assert.Equal(t, "primeira pagina", result.Pages[0].Text)
	assert.Equal(t, "terceira pagina", result.Pages[2].Text)
	assert.Equal(t, 3, progressCalls)

	// Markers appear in page order regardless of recognition order.
	first := strings.Index(result.Text, "--- PAGE 1 ---")
	second := strings.Index(result.Text, "--- PAGE 2 ---")
	third := strings.Index(result.Text, "--- PAGE 3 ---")
	assert.True(t, first >= 0 && first < second && second < third)

	// Page 2 averages 25, under the default threshold of 50.
	assert.Equal(t, []int{2}, result.LowConfPages)
}

func TestProcessPDFRenderFailure(t *testing.T) {
	proc := NewProcessor(&fakeEngine{}, &fakeRenderer{err: fmt.Errorf("poppler exploded")}, Options{}, nil)
	_, err := proc.ProcessPDF(context.Background(), "doc.pdf", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to render")
}

func TestProcessImage(t *testing.T) {
	engine := &fakeEngine{results: map[string]*RecognizeResult{
		"scan.png": {Text: "decisao judicial", Words: []Word{{Text: "decisao", Conf: 95}, {Text: "judicial", Conf: 93}}},
	}}
	proc := NewProcessor(engine, &fakeRenderer{}, Options{}, nil)

	result, err := proc.ProcessImage(context.Background(), "scan.png")
	require.NoError(t, err)
	assert.Contains(t, result.Text, "--- PAGE 1 ---")
	assert.Contains(t, result.Text, "decisao judicial")
	assert.Empty(t, result.LowConfPages)
}

func TestPreprocessImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "page.png")

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			// Left half light, right half dark.
			if x < 4 {
				img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
			} else {
				img.Set(x, y, color.RGBA{R: 40, G: 40, B: 40, A: 255})
			}
		}
	}
	f, err := os.Create(src)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	out, err := PreprocessImage(src)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, ".clean.png"))

	cf, err := os.Open(out)
	require.NoError(t, err)
	defer cf.Close()
	cleaned, err := png.Decode(cf)
	require.NoError(t, err)

	// Binarization pushes the interior to pure black or white.
	gray, ok := cleaned.(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, uint8(255), gray.GrayAt(1, 4).Y)
	assert.Equal(t, uint8(0), gray.GrayAt(6, 4).Y)
}

func TestBinarize(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 2, 1))
	g.Pix[0] = 100
	g.Pix[1] = 200
	out := binarize(g, 128)
	assert.Equal(t, uint8(0), out.Pix[0])
	assert.Equal(t, uint8(255), out.Pix[1])
}

func TestPageNumberSorting(t *testing.T) {
	assert.Equal(t, 2, pageNumber("/tmp/x/page-2.png"))
	assert.Equal(t, 10, pageNumber("/tmp/x/page-10.png"))
	assert.Equal(t, 0, pageNumber("weird.png"))
}
