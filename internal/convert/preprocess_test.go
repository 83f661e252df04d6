package convert

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checker() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 255})       // black
	img.SetNRGBA(1, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255}) // white
	img.SetNRGBA(0, 1, color.NRGBA{R: 150, G: 150, B: 150, A: 255}) // mid gray -> black at 0.7
	img.SetNRGBA(1, 1, color.NRGBA{R: 0, G: 0, B: 0, A: 0})         // transparent -> white
	return img
}

func TestPreprocessScalesAndThresholds(t *testing.T) {
	out := Preprocess(checker(), DefaultOptions())

	require.Equal(t, image.Rect(0, 0, 4, 4), out.Bounds())

	want := [][]uint8{
		{0x00, 0x00, 0xFF, 0xFF},
		{0x00, 0x00, 0xFF, 0xFF},
		{0x00, 0x00, 0xFF, 0xFF},
		{0x00, 0x00, 0xFF, 0xFF},
	}
	for y, row := range want {
		for x, v := range row {
			assert.Equal(t, v, out.GrayAt(x, y).Y, "pixel %d,%d", x, y)
		}
	}
}

func TestPreprocessLowThresholdKeepsMidGrayWhite(t *testing.T) {
	out := Preprocess(checker(), Options{Scale: 1, Threshold: 0.3})

	require.Equal(t, image.Rect(0, 0, 2, 2), out.Bounds())
	assert.Equal(t, uint8(0x00), out.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(0xFF), out.GrayAt(0, 1).Y)
}

func TestPreprocessedPath(t *testing.T) {
	assert.Equal(t, filepath.Join("dir", "preprocessed_shot.png"), PreprocessedPath(filepath.Join("dir", "shot.jpg")))
	assert.Equal(t, "preprocessed_shot.png", PreprocessedPath("shot.png"))
}

func TestPreprocessFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "timetable.png")

	f, err := os.Create(in)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, checker()))
	require.NoError(t, f.Close())

	outPath, err := PreprocessFile(in, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "preprocessed_timetable.png"), outPath)

	g, err := os.Open(outPath)
	require.NoError(t, err)
	defer g.Close()
	img, err := png.Decode(g)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())
}

func TestPreprocessFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := PreprocessFile(filepath.Join(dir, "missing.png"), DefaultOptions())
	assert.Error(t, err)

	bogus := filepath.Join(dir, "bogus.png")
	require.NoError(t, os.WriteFile(bogus, []byte("not an image"), 0o644))
	_, err = PreprocessFile(bogus, DefaultOptions())
	assert.Error(t, err)
}
