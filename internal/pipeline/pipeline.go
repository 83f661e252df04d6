// Package pipeline wires the conversion end to end:
// image -> OCR text -> weekly slots -> dated events -> calendar document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"icalgen/internal/capture"
	"icalgen/internal/config"
	"icalgen/internal/convert"
	"icalgen/internal/ics"
	appLog "icalgen/internal/log"
	"icalgen/internal/model"
	"icalgen/internal/ocr"
	"icalgen/internal/schedule"
	"icalgen/internal/source"
)

// DefaultOutput is the file name used when the caller gives none.
const DefaultOutput = "schedule.ics"

var (
	// ErrNoImage means no image, page or text was supplied.
	ErrNoImage = errors.New("please select a screenshot first")
	// ErrNoRange means a date bound is missing.
	ErrNoRange = errors.New("start and end dates are required")
)

// Request is one conversion. Exactly one of Image, PageURL or Text is used,
// in that priority order.
type Request struct {
	// Image is a local path or an http(s) URL of a timetable image.
	Image string
	// PageURL is a web page to screenshot before OCR.
	PageURL string
	// Text is already-extracted timetable text; OCR is skipped.
	Text string

	Start time.Time
	End   time.Time

	// Output is the destination path; DefaultOutput if empty.
	Output string
}

// Result is what a conversion produced.
type Result struct {
	Slots    []model.WeeklySlot
	Events   []model.DatedEvent
	Document string
	Output   string
}

// ScreenshotFunc captures a web page to a PNG file.
type ScreenshotFunc func(ctx context.Context, opts capture.Options) error

// Converter runs conversions. All fields except Parser, Encoder and Writer
// are optional; New fills everything from config.
type Converter struct {
	Parser    *schedule.Parser
	Encoder   *ics.Encoder
	Writer    ics.DocumentWriter
	Extractor ocr.TextExtractor

	Fetcher        *source.Fetcher
	Screenshot     ScreenshotFunc
	CaptureOptions capture.Options

	Location *time.Location
	Summary  string
}

// New builds a Converter from configuration using tesseract for OCR and the
// local filesystem for output.
func New(cfg *config.Config) (*Converter, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("pipeline: timezone %q: %w", cfg.Timezone, err)
	}

	tess := &ocr.Tesseract{
		Command:     cfg.OCR.Command,
		Languages:   cfg.OCR.Languages,
		TessdataDir: cfg.OCR.TessdataDir,
		Timeout:     time.Duration(cfg.OCR.TimeoutSeconds) * time.Second,
	}
	if cfg.Preprocess.Enabled {
		tess.Preprocess = &convert.Options{Scale: cfg.Preprocess.Scale, Threshold: cfg.Preprocess.Threshold}
		tess.KeepPreprocessed = cfg.Preprocess.KeepFile
	}

	return &Converter{
		Parser:     schedule.NewParser(cfg.Dictionary(), cfg.SlotDuration()),
		Encoder:    ics.NewEncoder(),
		Writer:     ics.FileWriter{},
		Extractor:  tess,
		Fetcher:    source.NewFetcher(cfg.CacheDir),
		Screenshot: capture.Screenshot,
		CaptureOptions: capture.Options{
			Width:   cfg.Capture.Width,
			Height:  cfg.Capture.Height,
			Timeout: time.Duration(cfg.Capture.TimeoutSeconds) * time.Second,
		},
		Location: loc,
		Summary:  cfg.Summary,
	}, nil
}

// Convert runs the pure core on text: parse, expand over [start, end], encode.
func (c *Converter) Convert(text string, start, end time.Time) Result {
	slots := c.Parser.Parse(text)
	expanded := ics.ExpandOccurrences(slots, ics.ExpandConfig{
		Location:   c.Location,
		RangeStart: start,
		RangeEnd:   end,
		Summary:    c.Summary,
	})

	return Result{
		Slots:    slots,
		Events:   expanded.Events,
		Document: c.Encoder.Encode(expanded.Events),
	}
}

// Run performs a full conversion and writes the document to req.Output.
func (c *Converter) Run(ctx context.Context, req Request) (Result, error) {
	if req.Image == "" && req.PageURL == "" && req.Text == "" {
		return Result{}, ErrNoImage
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return Result{}, ErrNoRange
	}
	if req.Output == "" {
		req.Output = DefaultOutput
	}

	text, err := c.Text(ctx, req)
	if err != nil {
		return Result{}, err
	}

	res := c.Convert(text, req.Start, req.End)
	res.Output = req.Output

	if err := c.Writer.WriteDocument(ctx, req.Output, []byte(res.Document)); err != nil {
		appLog.Error("calendar write failed", err, "output", req.Output)
		return res, fmt.Errorf("write calendar: %w", err)
	}

	appLog.Info("calendar generated",
		"output", req.Output,
		"slot_count", len(res.Slots),
		"event_count", len(res.Events),
		"range_start", req.Start.Format(time.DateOnly),
		"range_end", req.End.Format(time.DateOnly),
	)
	return res, nil
}

// Text obtains the timetable text for req without parsing it.
func (c *Converter) Text(ctx context.Context, req Request) (string, error) {
	switch {
	case req.Image != "":
		return c.imageText(ctx, req.Image)
	case req.PageURL != "":
		return c.pageText(ctx, req.PageURL)
	case req.Text != "":
		return req.Text, nil
	default:
		return "", ErrNoImage
	}
}

func (c *Converter) imageText(ctx context.Context, ref string) (string, error) {
	if c.Extractor == nil {
		return "", errors.New("pipeline: no text extractor configured")
	}
	path := ref
	if c.Fetcher != nil {
		resolved, err := c.Fetcher.Resolve(ctx, ref)
		if err != nil {
			return "", err
		}
		path = resolved
	} else if source.IsRemote(ref) {
		return "", errors.New("pipeline: remote images need a fetcher")
	}
	return c.Extractor.ExtractText(ctx, path)
}

func (c *Converter) pageText(ctx context.Context, pageURL string) (string, error) {
	if c.Screenshot == nil {
		return "", errors.New("pipeline: page capture is not configured")
	}

	dir, err := os.MkdirTemp("", "icalgen-capture-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	opts := c.CaptureOptions
	opts.URL = pageURL
	opts.OutputPath = filepath.Join(dir, "page.png")
	if err := c.Screenshot(ctx, opts); err != nil {
		return "", err
	}

	return c.imageText(ctx, opts.OutputPath)
}
