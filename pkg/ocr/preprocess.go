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
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PreprocessImage runs the cleanup pipeline on a scanned page image and
// writes the result as PNG next to the input. Returns the path of the
// cleaned image.
//
// Pipeline: grayscale, contrast stretch, binarize at mid threshold,
// 3x3 median denoise, sharpen.
func PreprocessImage(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open image %s: %w", path, err)
	}
	defer f.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		img, err = png.Decode(f)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(f)
	default:
		img, _, err = image.Decode(f)
	}
	if err != nil {
		return "", fmt.Errorf("failed to decode image %s: %w", path, err)
	}

	gray := toGray(img)
	gray = stretchContrast(gray)
	gray = binarize(gray, 128)
	gray = medianDenoise(gray)
	gray = sharpen(gray)

	out := strings.TrimSuffix(path, filepath.Ext(path)) + ".clean.png"
	of, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", out, err)
	}
	defer of.Close()
	if err := png.Encode(of, gray); err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", out, err)
	}
	return out, nil
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	g := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return g
}

// stretchContrast remaps the observed intensity range to the full
// 0..255 span. A flat image is returned unchanged.
func stretchContrast(g *image.Gray) *image.Gray {
	lo, hi := uint8(255), uint8(0)
	for _, v := range g.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo {
		return g
	}
	out := image.NewGray(g.Bounds())
	span := int(hi) - int(lo)
	for i, v := range g.Pix {
		out.Pix[i] = uint8((int(v) - int(lo)) * 255 / span)
	}
	return out
}

func binarize(g *image.Gray, threshold uint8) *image.Gray {
	out := image.NewGray(g.Bounds())
	for i, v := range g.Pix {
		if v >= threshold {
			out.Pix[i] = 255
		} else {
			out.Pix[i] = 0
		}
	}
	return out
}

// medianDenoise applies a 3x3 median filter. Border pixels are copied
// unchanged.
func medianDenoise(g *image.Gray) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(b)
	copy(out.Pix, g.Pix)
	w, h := b.Dx(), b.Dy()
	window := make([]int, 0, 9)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			window = window[:0]
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					window = append(window, int(g.Pix[(y+dy)*g.Stride+(x+dx)]))
				}
			}
			sort.Ints(window)
			out.Pix[y*out.Stride+x] = uint8(window[4])
		}
	}
	return out
}

// sharpen applies an unsharp-style 3x3 kernel (center 5, cross -1).
// Border pixels are copied unchanged.
func sharpen(g *image.Gray) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(b)
	copy(out.Pix, g.Pix)
	w, h := b.Dx(), b.Dy()
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			c := int(g.Pix[y*g.Stride+x])
			sum := 5*c -
				int(g.Pix[(y-1)*g.Stride+x]) -
				int(g.Pix[(y+1)*g.Stride+x]) -
				int(g.Pix[y*g.Stride+x-1]) -
				int(g.Pix[y*g.Stride+x+1])
			if sum < 0 {
				sum = 0
			}
			if sum > 255 {
				sum = 255
			}
			out.Pix[y*out.Stride+x] = uint8(sum)
		}
	}
	return out
}
