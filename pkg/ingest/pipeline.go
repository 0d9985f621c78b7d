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

// Package ingest turns an uploaded file into searchable chunks:
// extract (with OCR fallback for scans), chunk, embed, persist.
// Progress is published to the upload job table throughout; any
// failure lands on the job as ERROR with a taxonomy tag.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/kadirpekel/themis/pkg/embedder"
	"github.com/kadirpekel/themis/pkg/extract"
	"github.com/kadirpekel/themis/pkg/jobs"
	"github.com/kadirpekel/themis/pkg/llm"
	"github.com/kadirpekel/themis/pkg/observability"
	"github.com/kadirpekel/themis/pkg/ocr"
	"github.com/kadirpekel/themis/pkg/rag"
	"github.com/kadirpekel/themis/pkg/vector"
)

// stageRange maps a macro-stage onto the progress bar. OCR runs
// squeeze the surrounding stages to make room for recognition.
type stageRange struct{ from, to int }

var (
	plainRanges = map[string]stageRange{
		"save":    {0, 10},
		"detect":  {10, 15},
		"extract": {15, 35},
		"chunk":   {35, 50},
		"embed":   {55, 70},
		"persist": {75, 95},
	}
	ocrRanges = map[string]stageRange{
		"save":    {0, 10},
		"detect":  {10, 15},
		"extract": {15, 30},
		"ocr":     {30, 60},
		"chunk":   {60, 70},
		"embed":   {75, 85},
		"persist": {90, 97},
	}
)

// pageMarker matches the page separators the OCR processor (and this
// pipeline, for text PDFs) embeds in consolidated text.
var pageMarker = regexp.MustCompile(`--- PAGE (\d+) ---`)

// Extractor is the slice of the extraction service the pipeline needs.
type Extractor interface {
	Extract(ctx context.Context, path string) (*extract.Result, error)
}

// Recognizer is the slice of the OCR processor the pipeline needs.
type Recognizer interface {
	ProcessPDF(ctx context.Context, pdfPath string, progress ocr.ProgressFunc) (*ocr.Result, error)
	ProcessImage(ctx context.Context, imagePath string) (*ocr.Result, error)
	Available() bool
}

// Pipeline wires the ingestion collaborators.
type Pipeline struct {
	extractor  Extractor
	recognizer Recognizer // nil when OCR is not configured
	chunker    *rag.RecursiveChunker
	embedder   embedder.Embedder
	store      vector.Provider
	uploads    *jobs.UploadStore
	logger     *slog.Logger
}

// New builds a pipeline. recognizer may be nil; scanned input then
// fails with a clear error instead of silently producing empty text.
func New(extractor Extractor, recognizer Recognizer, chunker *rag.RecursiveChunker, emb embedder.Embedder, store vector.Provider, uploads *jobs.UploadStore, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor:  extractor,
		recognizer: recognizer,
		chunker:    chunker,
		embedder:   emb,
		store:      store,
		uploads:    uploads,
		logger:     logger,
	}
}

// Run ingests one saved upload. It is a background procedure: every
// outcome, success or failure, is recorded on the upload job and no
// error escapes.
func (p *Pipeline) Run(ctx context.Context, uploadID, documentID, path, originalName string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("ingestion panicked", "upload_id", uploadID, "panic", r)
			_ = p.uploads.RecordError(uploadID, "internal error during ingestion", "internal", fmt.Sprint(r))
		}
	}()

	result, err := p.run(ctx, uploadID, documentID, path, originalName)
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		method, pages := "unknown", 0
		if result != nil {
			method, pages = result.Method, result.PageCount
		}
		metrics.RecordIngestion(ctx, method, pages, err)
	}
	if err != nil {
		message, tag := classify(err)
		p.logger.Warn("ingestion failed", "upload_id", uploadID, "tag", tag, "error", err)
		_ = p.uploads.RecordError(uploadID, message, tag, err.Error())
		return
	}
	_ = p.uploads.RecordResult(uploadID, result)
}

func (p *Pipeline) run(ctx context.Context, uploadID, documentID, path, originalName string) (*jobs.UploadResult, error) {
	_ = p.uploads.MarkSaving(uploadID)
	p.update(uploadID, "Saving file on server", plainRanges["save"].to)

	// Detect and extract. Whether OCR runs decides the progress map.
	p.update(uploadID, "Detecting document type", plainRanges["detect"].to)
	extracted, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return nil, err
	}

	ranges := plainRanges
	if extracted.IsScanned {
		ranges = ocrRanges
	}
	p.update(uploadID, "Extracting text", ranges["extract"].to)

	text := extracted.Text
	method := extracted.Method
	pageCount := extracted.PageCount
	var ocrAvgConf *float64
	var lowConfPages []int

	if extracted.IsScanned {
		ocrResult, err := p.recognize(ctx, uploadID, path, extracted, ranges["ocr"])
		if err != nil {
			return nil, err
		}
		text = ocrResult.Text
		method = "ocr"
		if pageCount == 0 {
			pageCount = len(ocrResult.Pages)
		}
		avg := meanPageConfidence(ocrResult.Pages)
		ocrAvgConf = &avg
		lowConfPages = ocrResult.LowConfPages
	} else if len(extracted.PageTexts) > 0 {
		// Text PDFs get the same page markers OCR output carries, so
		// chunk page attribution works for both paths.
		text = markPages(extracted.PageTexts)
	}

	if strings.TrimSpace(pageMarker.ReplaceAllString(text, "")) == "" {
		return nil, &emptyDocumentError{name: originalName}
	}

	chunks := p.chunker.Chunk(text)
	p.update(uploadID, fmt.Sprintf("Text split into %d chunks", len(chunks)), ranges["chunk"].to)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	p.update(uploadID, fmt.Sprintf("Embedding %d chunks", len(chunks)), ranges["embed"].from)
	embeddings, err := p.embedBatched(ctx, uploadID, texts, ranges["embed"])
	if err != nil {
		return nil, err
	}

	p.update(uploadID, "Storing in vector store", ranges["persist"].from)
	stored := attributePages(documentID, chunks)
	if err := p.store.UpsertDocument(ctx, documentID, stored, embeddings); err != nil {
		return nil, err
	}
	p.update(uploadID, "Storing in vector store", ranges["persist"].to)

	return &jobs.UploadResult{
		DocumentID:         documentID,
		FileName:           originalName,
		DocumentType:       string(extracted.DetectedType),
		Method:             method,
		PageCount:          pageCount,
		ChunkCount:         len(chunks),
		TextLength:         len(text),
		OCRAvgConfidence:   ocrAvgConf,
		LowConfidencePages: lowConfPages,
	}, nil
}

func (p *Pipeline) recognize(ctx context.Context, uploadID, path string, extracted *extract.Result, r stageRange) (*ocr.Result, error) {
	if p.recognizer == nil || !p.recognizer.Available() {
		return nil, errOCRUnavailable
	}

	if extracted.DetectedType == extract.DocTypeImage {
		p.update(uploadID, "OCR running (1 page detected)", r.from)
		return p.recognizer.ProcessImage(ctx, path)
	}

	label := fmt.Sprintf("OCR running (%d pages detected)", extracted.PageCount)
	p.update(uploadID, label, r.from)
	return p.recognizer.ProcessPDF(ctx, path, func(done, total int) {
		p.update(uploadID, label, interpolate(r, done, total))
	})
}

// embedBatched embeds in slices of embedBatchSize so big documents get
// mid-stage progress updates.
const embedBatchSize = 20

func (p *Pipeline) embedBatched(ctx context.Context, uploadID string, texts []string, r stageRange) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := p.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
		p.update(uploadID, fmt.Sprintf("Embedding %d chunks", len(texts)), interpolate(r, end, len(texts)))
	}
	return out, nil
}

func (p *Pipeline) update(uploadID, stage string, percent int) {
	if err := p.uploads.UpdateStage(uploadID, stage, percent); err != nil {
		p.logger.Warn("failed to update upload stage", "upload_id", uploadID, "error", err)
	}
}

// interpolate maps done/total onto a stage range.
func interpolate(r stageRange, done, total int) int {
	if total <= 0 {
		return r.to
	}
	return r.from + (r.to-r.from)*done/total
}

func markPages(pageTexts []string) string {
	var sb strings.Builder
	for i, page := range pageTexts {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "--- PAGE %d ---\n%s", i+1, page)
	}
	return sb.String()
}

// attributePages converts chunker output to stored chunks, assigning
// each chunk the page of the last marker seen at or before it. Chunks
// before any marker get page 0 (unknown).
func attributePages(documentID string, chunks []rag.Chunk) []vector.Chunk {
	out := make([]vector.Chunk, len(chunks))
	page := 0
	for i, c := range chunks {
		if markers := pageMarker.FindAllStringSubmatch(c.Text, -1); len(markers) > 0 {
			page, _ = strconv.Atoi(markers[len(markers)-1][1])
		}
		out[i] = vector.Chunk{
			ID:         vector.ChunkID(documentID, i),
			DocumentID: documentID,
			Index:      i,
			Page:       page,
			Text:       c.Text,
			Tokens:     c.Tokens,
		}
	}
	return out
}

func meanPageConfidence(pages []ocr.PageResult) float64 {
	if len(pages) == 0 {
		return 0
	}
	var sum float64
	for _, pg := range pages {
		sum += pg.Confidence
	}
	return sum / float64(len(pages))
}

// errOCRUnavailable fails scanned input when no OCR engine is wired.
var errOCRUnavailable = errors.New("document requires OCR but no OCR engine is available")

type emptyDocumentError struct{ name string }

func (e *emptyDocumentError) Error() string {
	return fmt.Sprintf("no extractable text in %s", e.name)
}

// classify maps a pipeline error to a user message and taxonomy tag.
func classify(err error) (message, tag string) {
	var corrupt *extract.CorruptError
	var empty *emptyDocumentError
	var rateLimited *llm.RateLimitError
	var timedOut *llm.TimeoutError
	var upstream *llm.UpstreamError
	switch {
	case errors.Is(err, extract.ErrUnsupportedType):
		return "unsupported document type", "unsupported_type"
	case errors.As(err, &corrupt):
		return "the file could not be read; it may be corrupt", "corrupt_input"
	case errors.Is(err, errOCRUnavailable):
		return "the document is scanned and OCR is not available", "ocr_unavailable"
	case errors.As(err, &empty):
		return "the document contains no extractable text", "empty_document"
	case errors.As(err, &rateLimited):
		return "embedding service is rate limiting requests", "rate_limit"
	case errors.As(err, &timedOut):
		return "embedding service timed out", "timeout"
	case errors.As(err, &upstream):
		return "embedding service rejected the request", "upstream"
	default:
		return "ingestion failed: " + err.Error(), "internal"
	}
}
