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
	"strconv"
	"strings"
)

// TesseractEngine runs the tesseract binary with TSV output, which
// carries per-word confidences.
type TesseractEngine struct {
	bin string
}

// NewTesseractEngine creates the engine. bin defaults to "tesseract"
// resolved on PATH.
func NewTesseractEngine(bin string) *TesseractEngine {
	if bin == "" {
		bin = "tesseract"
	}
	return &TesseractEngine{bin: bin}
}

// Available reports whether the tesseract binary resolves.
func (e *TesseractEngine) Available() bool {
	_, err := exec.LookPath(e.bin)
	return err == nil
}

// Recognize runs tesseract over one image and parses the TSV output.
func (e *TesseractEngine) Recognize(ctx context.Context, imagePath, language string) (*RecognizeResult, error) {
	args := []string{imagePath, "stdout"}
	if language != "" {
		args = append(args, "-l", language)
	}
	args = append(args, "tsv")

	cmd := exec.CommandContext(ctx, e.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tesseract failed on %s: %w: %s",
			imagePath, err, strings.TrimSpace(stderr.String()))
	}

	return parseTSV(stdout.String()), nil
}

// parseTSV extracts words and confidences from tesseract TSV output.
// Columns: level page block par line word left top width height conf text.
// Level 5 rows are words; line breaks follow the line number column.
func parseTSV(output string) *RecognizeResult {
	result := &RecognizeResult{}
	var text strings.Builder

	lastLine := -1
	for _, row := range strings.Split(output, "\n") {
		cols := strings.Split(row, "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}

		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil {
			continue
		}
		wordText := strings.TrimSpace(cols[11])
		if wordText == "" {
			continue
		}

		result.Words = append(result.Words, Word{Text: wordText, Conf: conf})

		lineNum, _ := strconv.Atoi(cols[4])
		if text.Len() > 0 {
			if lineNum != lastLine {
				text.WriteString("\n")
			} else {
				text.WriteString(" ")
			}
		}
		text.WriteString(wordText)
		lastLine = lineNum
	}

	result.Text = text.String()
	return result
}

var _ Engine = (*TesseractEngine)(nil)
