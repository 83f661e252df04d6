// Package ocr turns a timetable image into a block of text.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"icalgen/internal/convert"
	appLog "icalgen/internal/log"
)

// TextExtractor returns the text recognized in an image. The text has no
// structural guarantees beyond being newline-separated.
type TextExtractor interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
}

// Tesseract runs the tesseract CLI on an optionally preprocessed copy of the
// image.
type Tesseract struct {
	// Command is the executable; "tesseract" if empty.
	Command string
	// Languages is passed as -l, e.g. "eng+fra".
	Languages string
	// TessdataDir, if set, is passed as --tessdata-dir.
	TessdataDir string
	// Timeout bounds one run; zero means no extra bound beyond ctx.
	Timeout time.Duration

	// Preprocess, if non-nil, is applied first and the cleaned PNG is the
	// one handed to tesseract.
	Preprocess *convert.Options
	// KeepPreprocessed leaves the cleaned PNG on disk.
	KeepPreprocessed bool
}

// ExtractText implements TextExtractor.
func (t *Tesseract) ExtractText(ctx context.Context, imagePath string) (string, error) {
	if imagePath == "" {
		return "", errors.New("ocr: image path is empty")
	}

	input := imagePath
	if t.Preprocess != nil {
		cleaned, err := convert.PreprocessFile(imagePath, *t.Preprocess)
		if err != nil {
			return "", err
		}
		if !t.KeepPreprocessed {
			defer os.Remove(cleaned)
		}
		input = cleaned
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	name, args := t.command(input)
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	appLog.Debug("ocr start", "command", name, "languages", t.Languages, "preprocessed", t.Preprocess != nil)

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("ocr: %s failed: %w: %s", name, err, msg)
		}
		return "", fmt.Errorf("ocr: %s failed: %w", name, err)
	}

	text := stdout.String()
	appLog.Info("ocr completed", "chars", len(text))
	return text, nil
}

// command builds `tesseract <image> stdout [-l langs] [--tessdata-dir dir]`.
func (t *Tesseract) command(input string) (string, []string) {
	name := t.Command
	if name == "" {
		name = "tesseract"
	}
	args := []string{input, "stdout"}
	if t.Languages != "" {
		args = append(args, "-l", t.Languages)
	}
	if t.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.TessdataDir)
	}
	return name, args
}

// Static always returns the same text. It stands in for OCR when the text is
// already known.
type Static struct {
	Text string
}

// ExtractText implements TextExtractor.
func (s Static) ExtractText(_ context.Context, _ string) (string, error) {
	return s.Text, nil
}

// TextFile treats the "image" path as a file that already holds OCR output.
type TextFile struct{}

// ExtractText implements TextExtractor.
func (TextFile) ExtractText(_ context.Context, path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("ocr: read text: %w", err)
	}
	return string(b), nil
}
