// Package source resolves where a timetable image comes from: a local file,
// or an http(s) URL downloaded into a disk cache.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	appLog "icalgen/internal/log"
)

// maxImageBytes bounds a single download.
const maxImageBytes = 32 << 20

// FetchResult contains the outcome of fetching a single image URL.
type FetchResult struct {
	URL       string
	Path      string // local file holding the image
	FromCache bool   // true if we reused the cached body
}

// cacheEntry holds HTTP cache metadata for a single image URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	FileName     string    `json:"file_name"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads images with HTTP caching (ETag / Last-Modified) and a
// disk-backed cache.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a new image Fetcher.
//
// cacheDir is the base directory where per-URL cache subdirectories and
// metadata will be stored.
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/image-cache"
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		cacheDir: cacheDir,
	}
}

// IsRemote reports whether ref is an http(s) URL.
func IsRemote(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Resolve returns a local path for ref. Local paths must exist; URLs are
// fetched through the cache.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", errors.New("source: image reference is empty")
	}
	if !IsRemote(ref) {
		if _, err := os.Stat(ref); err != nil {
			return "", fmt.Errorf("source: %w", err)
		}
		return ref, nil
	}
	res, err := f.FetchOne(ctx, ref)
	if err != nil {
		return "", err
	}
	return res.Path, nil
}

// FetchOne fetches a single image URL, honoring ETag and Last-Modified.
// It uses a disk cache under f.cacheDir keyed by a hash of the URL.
func (f *Fetcher) FetchOne(ctx context.Context, rawURL string) (FetchResult, error) {
	if rawURL == "" {
		return FetchResult{}, errors.New("source: URL is empty")
	}

	cachePath := f.cachePathForURL(rawURL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedFile := ""
	if meta.FileName != "" {
		p := filepath.Join(cachePath, meta.FileName)
		if _, err := os.Stat(p); err == nil {
			cachedFile = p
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return FetchResult{}, err
	}

	// Conditional headers from cache metadata.
	if cachedFile != "" {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Info("image fetch start", "url", redactURL(rawURL))

	resp, err := f.client.Do(req)
	if err != nil {
		// Network error; if we have a cached body, fall back to it.
		if cachedFile != "" {
			appLog.Error("image fetch network error, using cached body", err, "url", redactURL(rawURL))
			return FetchResult{URL: rawURL, Path: cachedFile, FromCache: true}, nil
		}
		return FetchResult{}, fmt.Errorf("source: fetch: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
		if readErr != nil {
			return FetchResult{}, readErr
		}
		if len(body) > maxImageBytes {
			return FetchResult{}, fmt.Errorf("source: image larger than %d bytes", maxImageBytes)
		}

		newMeta := cacheEntry{
			URL:          rawURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			FileName:     "body" + imageExt(rawURL, resp.Header.Get("Content-Type")),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			return FetchResult{}, err
		}

		appLog.Info("image fetch success", "url", redactURL(rawURL), "status", resp.StatusCode, "bytes", len(body))
		return FetchResult{URL: rawURL, Path: filepath.Join(cachePath, newMeta.FileName)}, nil

	case http.StatusNotModified:
		if cachedFile == "" {
			return FetchResult{}, errors.New("source: received 304 Not Modified but no cached body available")
		}
		appLog.Info("image fetch not modified; using cache", "url", redactURL(rawURL))
		return FetchResult{URL: rawURL, Path: cachedFile, FromCache: true}, nil

	default:
		if cachedFile != "" {
			appLog.Error("image fetch non-OK, using cached body", errors.New(resp.Status), "url", redactURL(rawURL), "status", resp.StatusCode)
			return FetchResult{URL: rawURL, Path: cachedFile, FromCache: true}, nil
		}
		return FetchResult{}, fmt.Errorf("source: fetch %s: %s", redactURL(rawURL), resp.Status)
	}
}

func (f *Fetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	// Use first 16 hex chars as directory name.
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, meta.FileName), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// imageExt picks a file extension so decoders and tesseract see a familiar
// suffix.
func imageExt(rawURL, contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/png"):
		return ".png"
	case strings.HasPrefix(contentType, "image/jpeg"):
		return ".jpg"
	case strings.HasPrefix(contentType, "image/gif"):
		return ".gif"
	}
	if u, err := url.Parse(rawURL); err == nil {
		switch ext := strings.ToLower(path.Ext(u.Path)); ext {
		case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff":
			return ext
		}
	}
	return ".img"
}

// redactURL hides everything after the host for logging purposes.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "image://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
