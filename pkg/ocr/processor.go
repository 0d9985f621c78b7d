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
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	defaultDPI               = 300
	defaultLanguage          = "por"
	defaultLowConfThreshold  = 50.0
	defaultMaxConcurrentPage = 4
)

// Options control a Processor run.
type Options struct {
	Language           string  // tesseract language pack
	DPI                int     // render resolution for PDF pages
	LowConfThreshold   float64 // pages under this mean confidence are flagged
	PageLimit          int     // 0 means all pages
	MaxConcurrentPages int
	Preprocess         bool // run the image cleanup pipeline before recognition
}

func (o *Options) setDefaults() {
	if o.Language == "" {
		o.Language = defaultLanguage
	}
	if o.DPI <= 0 {
		o.DPI = defaultDPI
	}
	if o.LowConfThreshold <= 0 {
		o.LowConfThreshold = defaultLowConfThreshold
	}
	if o.MaxConcurrentPages <= 0 {
		o.MaxConcurrentPages = defaultMaxConcurrentPage
	}
}

// PageResult is the recognition outcome of a single page.
type PageResult struct {
	Page       int // 1-based
	Text       string
	Confidence float64 // mean word confidence, 0 when no words detected
}

// Result is the outcome of a full document run. Text joins pages with
// "--- PAGE N ---" markers so downstream chunking can attribute pages.
type Result struct {
	Text         string
	Pages        []PageResult
	LowConfPages []int // 1-based indices of pages under the threshold
}

// ProgressFunc reports pages completed out of total.
type ProgressFunc func(done, total int)

// Processor turns scanned documents into text by rendering, cleaning
// and recognizing each page.
type Processor struct {
	engine   Engine
	renderer Renderer
	opts     Options
	logger   *slog.Logger
}

// NewProcessor wires an engine and renderer together.
func NewProcessor(engine Engine, renderer Renderer, opts Options, logger *slog.Logger) *Processor {
	opts.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{engine: engine, renderer: renderer, opts: opts, logger: logger}
}

// Available reports whether both the engine and renderer can run.
func (p *Processor) Available() bool {
	return p.engine.Available() && p.renderer.Available()
}

// ProcessPDF renders every page of a scanned PDF and recognizes them
// with bounded concurrency. Page order is preserved in the output.
func (p *Processor) ProcessPDF(ctx context.Context, pdfPath string, progress ProgressFunc) (*Result, error) {
	tmpDir, err := os.MkdirTemp("", "themis-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pagePaths, err := p.renderer.RenderPDF(ctx, pdfPath, tmpDir, p.opts.DPI, p.opts.PageLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", pdfPath, err)
	}

	total := len(pagePaths)
	pages := make([]PageResult, total)

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.MaxConcurrentPages)
	for i, path := range pagePaths {
		g.Go(func() error {
			res, err := p.recognizePage(gctx, path)
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			pages[i] = PageResult{Page: i + 1, Text: res.Text, Confidence: meanConfidence(res.Words)}

			mu.Lock()
			done++
			d := done
			mu.Unlock()
			if progress != nil {
				progress(d, total)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return p.assemble(pages), nil
}

// ProcessImage recognizes a single standalone image.
func (p *Processor) ProcessImage(ctx context.Context, imagePath string) (*Result, error) {
	res, err := p.recognizePage(ctx, imagePath)
	if err != nil {
		return nil, err
	}
	page := PageResult{Page: 1, Text: res.Text, Confidence: meanConfidence(res.Words)}
	return p.assemble([]PageResult{page}), nil
}

func (p *Processor) recognizePage(ctx context.Context, path string) (*RecognizeResult, error) {
	if p.opts.Preprocess {
		cleaned, err := PreprocessImage(path)
		if err != nil {
			// Recognition on the raw image is better than losing the page.
			p.logger.Warn("image preprocessing failed, using raw page",
				"path", path, "error", err)
		} else {
			path = cleaned
		}
	}
	return p.engine.Recognize(ctx, path, p.opts.Language)
}

func (p *Processor) assemble(pages []PageResult) *Result {
	var sb strings.Builder
	var low []int
	for _, pg := range pages {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "--- PAGE %d ---\n%s", pg.Page, pg.Text)
		if pg.Confidence < p.opts.LowConfThreshold {
			low = append(low, pg.Page)
			p.logger.Warn("low confidence OCR page",
				"page", pg.Page, "confidence", pg.Confidence)
		}
	}
	return &Result{Text: sb.String(), Pages: pages, LowConfPages: low}
}

// meanConfidence averages word confidences, skipping words the engine
// marked undetected (negative confidence).
func meanConfidence(words []Word) float64 {
	var sum float64
	var n int
	for _, w := range words {
		if w.Conf < 0 {
			continue
		}
		sum += w.Conf
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
