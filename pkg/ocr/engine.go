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

// Package ocr turns scanned PDFs and images into text.
//
// The pipeline per page: render at the configured DPI, preprocess the
// image (grayscale, contrast, binarize, denoise, sharpen), recognize,
// and compute the mean word confidence. The default engine shells out
// to tesseract; the default renderer shells out to pdftoppm. Both sit
// behind interfaces so tests run without the binaries.
package ocr

import "context"

// Word is one recognized word with its confidence in [0, 100].
// Undetected markers carry a negative confidence and are ignored in
// page statistics.
type Word struct {
	Text string
	Conf float64
}

// RecognizeResult is the outcome of recognizing one image.
type RecognizeResult struct {
	Text  string
	Words []Word
}

// Engine recognizes text in a single image file.
type Engine interface {
	Recognize(ctx context.Context, imagePath, language string) (*RecognizeResult, error)
	// Available reports whether the engine can run (binary present).
	Available() bool
}

// Renderer rasterizes PDF pages to image files.
type Renderer interface {
	// RenderPDF writes one image per page into outDir and returns the
	// image paths in page order. pageLimit of 0 renders every page.
	RenderPDF(ctx context.Context, pdfPath, outDir string, dpi, pageLimit int) ([]string, error)
	// Available reports whether the renderer can run (binary present).
	Available() bool
}
