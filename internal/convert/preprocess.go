package convert

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	// Decoders for the image formats timetables are usually shared in.
	_ "image/gif"
	_ "image/jpeg"
)

// Options tunes Preprocess.
type Options struct {
	// Scale is the integer nearest-neighbour upscale factor. Values < 1 mean 1.
	Scale int
	// Threshold is the luminance cut in 0..1: pixels at or below it become
	// black, the rest white.
	Threshold float64
}

// DefaultOptions doubles the size and cuts at 70% luminance.
func DefaultOptions() Options {
	return Options{Scale: 2, Threshold: 0.7}
}

// Preprocess converts img into a black/white image suitable for OCR:
//
//   - grayscale via Rec.601 luma Y = 0.299R + 0.587G + 0.114B
//   - upscale by opts.Scale with nearest-neighbour sampling
//   - binary threshold at opts.Threshold
//
// Transparent pixels (alpha < 128) are treated as white.
func Preprocess(img image.Image, opts Options) *image.Gray {
	scale := opts.Scale
	if scale < 1 {
		scale = 1
	}
	cut := opts.Threshold
	if cut <= 0 || cut > 1 {
		cut = DefaultOptions().Threshold
	}
	cutY := cut * 255

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w*scale, h*scale))

	for sy := 0; sy < h; sy++ {
		for sx := 0; sx < w; sx++ {
			v := binarize(img.At(b.Min.X+sx, b.Min.Y+sy), cutY)

			// Fill the scale x scale block directly in Pix.
			for dy := 0; dy < scale; dy++ {
				row := (sy*scale + dy) * out.Stride
				for dx := 0; dx < scale; dx++ {
					out.Pix[row+sx*scale+dx] = v
				}
			}
		}
	}

	return out
}

func binarize(c color.Color, cutY float64) uint8 {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)

	// Mostly transparent pixels show the page background.
	if n.A < 128 {
		return 0xFF
	}

	r, g, bb := float64(n.R), float64(n.G), float64(n.B)
	y := 0.299*r + 0.587*g + 0.114*bb
	if y <= cutY {
		return 0x00
	}
	return 0xFF
}

// PreprocessedPath returns the sibling path the cleaned image is written to:
// "<dir>/preprocessed_<name>.png".
func PreprocessedPath(inputPath string) string {
	dir, name := filepath.Split(inputPath)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(dir, "preprocessed_"+base+".png")
}

// PreprocessFile decodes inputPath, preprocesses it and writes the result as
// PNG to PreprocessedPath(inputPath). It returns the output path.
func PreprocessFile(inputPath string, opts Options) (string, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return "", fmt.Errorf("convert: open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("convert: decode image %s: %w", inputPath, err)
	}

	outPath := PreprocessedPath(inputPath)
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("convert: create %s: %w", outPath, err)
	}

	if err := png.Encode(out, Preprocess(img, opts)); err != nil {
		out.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("convert: encode png: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("convert: close %s: %w", outPath, err)
	}

	return outPath, nil
}
