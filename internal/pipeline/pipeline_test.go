package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icalgen/internal/capture"
	"icalgen/internal/config"
	"icalgen/internal/ics"
	"icalgen/internal/model"
	"icalgen/internal/ocr"
	"icalgen/internal/schedule"
	"icalgen/internal/source"
)

const timetable = "Horaire Automne\nLundi\n8:00\nMAT265\nELE216\nMercredi\n13:30\nLOG121\n"

type memoryWriter struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func (w *memoryWriter) WriteDocument(_ context.Context, dest string, doc []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.docs == nil {
		w.docs = map[string][]byte{}
	}
	w.docs[dest] = append([]byte(nil), doc...)
	return nil
}

type failingWriter struct{ err error }

func (w failingWriter) WriteDocument(context.Context, string, []byte) error { return w.err }

type recordingExtractor struct {
	text  string
	paths []string
}

func (e *recordingExtractor) ExtractText(_ context.Context, path string) (string, error) {
	e.paths = append(e.paths, path)
	return e.text, nil
}

func newConverter(w ics.DocumentWriter, ex ocr.TextExtractor) *Converter {
	return &Converter{
		Parser:    schedule.NewParser(nil, 0),
		Encoder:   ics.NewEncoder(),
		Writer:    w,
		Extractor: ex,
		Location:  time.UTC,
	}
}

func day(d int) time.Time { return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC) }

func TestRunFromImage(t *testing.T) {
	img := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(img, []byte("png"), 0o644))

	w := &memoryWriter{}
	ex := &recordingExtractor{text: timetable}
	c := newConverter(w, ex)
	c.Fetcher = source.NewFetcher(t.TempDir())

	res, err := c.Run(context.Background(), Request{Image: img, Start: day(1), End: day(14), Output: "out.ics"})
	require.NoError(t, err)

	assert.Equal(t, []string{img}, ex.paths)
	require.Len(t, res.Slots, 3)
	// Two Monday slots on Jan 1 and 8, one Wednesday slot on Jan 3 and 10.
	assert.Len(t, res.Events, 6)
	assert.Equal(t, "out.ics", res.Output)

	doc, ok := w.docs["out.ics"]
	require.True(t, ok)
	assert.Equal(t, res.Document, string(doc))

	decoded, err := ics.DecodeString(string(doc), time.UTC)
	require.NoError(t, err)
	assert.Len(t, decoded, 6)
	for _, ev := range decoded {
		assert.Equal(t, model.DefaultSummary, ev.Summary)
	}
}

func TestRunFromText(t *testing.T) {
	w := &memoryWriter{}
	c := newConverter(w, nil)

	res, err := c.Run(context.Background(), Request{Text: timetable, Start: day(1), End: day(7)})
	require.NoError(t, err)
	assert.Equal(t, DefaultOutput, res.Output)
	assert.Len(t, res.Events, 3)
	assert.Contains(t, w.docs, DefaultOutput)
}

func TestRunRequiresInput(t *testing.T) {
	w := &memoryWriter{}
	c := newConverter(w, &recordingExtractor{})

	_, err := c.Run(context.Background(), Request{Start: day(1), End: day(7)})
	assert.ErrorIs(t, err, ErrNoImage)
	assert.Empty(t, w.docs)

	_, err = c.Run(context.Background(), Request{Text: timetable, End: day(7)})
	assert.ErrorIs(t, err, ErrNoRange)
}

func TestRunPropagatesWriteError(t *testing.T) {
	boom := errors.New("permission denied")
	c := newConverter(failingWriter{err: boom}, nil)

	_, err := c.Run(context.Background(), Request{Text: timetable, Start: day(1), End: day(7)})
	assert.ErrorIs(t, err, boom)
}

func TestRunInvertedRangeWritesEmptyCalendar(t *testing.T) {
	w := &memoryWriter{}
	c := newConverter(w, nil)

	res, err := c.Run(context.Background(), Request{Text: timetable, Start: day(14), End: day(1)})
	require.NoError(t, err)
	assert.Len(t, res.Slots, 3)
	assert.Empty(t, res.Events)
	assert.Contains(t, string(w.docs[DefaultOutput]), "BEGIN:VCALENDAR")
}

func TestRunFromPage(t *testing.T) {
	w := &memoryWriter{}
	ex := &recordingExtractor{text: timetable}
	c := newConverter(w, ex)
	c.Fetcher = source.NewFetcher(t.TempDir())

	var gotURL string
	c.Screenshot = func(_ context.Context, opts capture.Options) error {
		gotURL = opts.URL
		return os.WriteFile(opts.OutputPath, []byte("png"), 0o644)
	}

	res, err := c.Run(context.Background(), Request{PageURL: "https://example.com/horaire", Start: day(1), End: day(7)})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/horaire", gotURL)
	require.Len(t, ex.paths, 1)
	assert.Equal(t, "page.png", filepath.Base(ex.paths[0]))
	assert.Len(t, res.Events, 3)

	// The capture directory is removed afterwards.
	_, statErr := os.Stat(ex.paths[0])
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunScreenshotError(t *testing.T) {
	c := newConverter(&memoryWriter{}, &recordingExtractor{})
	c.Screenshot = func(context.Context, capture.Options) error { return errors.New("no chrome") }

	_, err := c.Run(context.Background(), Request{PageURL: "https://example.com", Start: day(1), End: day(7)})
	assert.ErrorContains(t, err, "no chrome")
}

func TestConvertIsDeterministicExceptIdentity(t *testing.T) {
	c := newConverter(&memoryWriter{}, nil)

	a := c.Convert(timetable, day(1), day(31))
	b := c.Convert(timetable, day(1), day(31))
	assert.Equal(t, a.Slots, b.Slots)
	assert.Equal(t, a.Events, b.Events)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.Summary = "Cours"
	cfg.SlotMinutes = 60

	c, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, c.Location)

	res := c.Convert("Lundi\n8:00\nMAT265", day(1), day(1))
	require.Len(t, res.Events, 1)
	assert.Equal(t, "Cours", res.Events[0].Summary)
	assert.Equal(t, 9, res.Events[0].End.Hour())

	tess, ok := c.Extractor.(*ocr.Tesseract)
	require.True(t, ok)
	assert.Equal(t, "eng+fra", tess.Languages)
	assert.NotNil(t, tess.Preprocess)
}

func TestNewRejectsBadTimezone(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timezone = "Nowhere/Town"
	_, err := New(cfg)
	assert.Error(t, err)
}
