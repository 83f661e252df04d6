package ocr

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icalgen/internal/convert"
)

func TestTesseractCommand(t *testing.T) {
	tess := &Tesseract{Languages: "eng+fra", TessdataDir: "./tessdata"}
	name, args := tess.command("in.png")

	assert.Equal(t, "tesseract", name)
	assert.Equal(t, []string{"in.png", "stdout", "-l", "eng+fra", "--tessdata-dir", "./tessdata"}, args)

	name, args = (&Tesseract{Command: "/opt/bin/tesseract"}).command("x.png")
	assert.Equal(t, "/opt/bin/tesseract", name)
	assert.Equal(t, []string{"x.png", "stdout"}, args)
}

func TestTesseractMissingBinary(t *testing.T) {
	tess := &Tesseract{Command: filepath.Join(t.TempDir(), "no-such-tesseract")}
	_, err := tess.ExtractText(context.Background(), "whatever.png")
	assert.Error(t, err)
}

func TestTesseractEmptyPath(t *testing.T) {
	_, err := (&Tesseract{}).ExtractText(context.Background(), "")
	assert.Error(t, err)
}

func TestTesseractPreprocessFailsOnBadImage(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))

	opts := convert.DefaultOptions()
	tess := &Tesseract{Preprocess: &opts}
	_, err := tess.ExtractText(context.Background(), bad)
	assert.ErrorContains(t, err, "convert")
}

func TestStatic(t *testing.T) {
	text, err := Static{Text: "Lundi\n8:00"}.ExtractText(context.Background(), "ignored")
	require.NoError(t, err)
	assert.Equal(t, "Lundi\n8:00", text)
}

func TestTextFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "ocr.txt")
	require.NoError(t, os.WriteFile(p, []byte("Mardi\n9:00\nMAT265\n"), 0o644))

	text, err := TextFile{}.ExtractText(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "Mardi\n9:00\nMAT265\n", text)

	_, err = TextFile{}.ExtractText(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
