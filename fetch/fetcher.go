// Package fetch downloads the latest article dump of a wikipedia and keeps
// it next to older local copies.
package fetch

import (
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tliron/commonlog"
)

const (
	DefaultMirrorURL = "https://dumps.wikimedia.org"
	EnvMirrorURL     = "WIKIDUMP_MIRROR_URL"
)

var log = commonlog.GetLogger("wikidump.fetch")

// ErrNoDump is returned when neither a local nor a remote dump is usable.
var ErrNoDump = errors.New("no dump available")

type Fetcher struct {
	BaseURL    string
	httpClient *http.Client
}

func NewFetcher() *Fetcher {
	baseURL := os.Getenv(EnvMirrorURL)
	if baseURL == "" {
		baseURL = DefaultMirrorURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &Fetcher{
		BaseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// DumpURL is the location of the latest compressed article dump of lang.
func (f *Fetcher) DumpURL(lang string) string {
	return fmt.Sprintf("%s/%swiki/latest/%swiki-latest-pages-articles.xml.bz2", f.BaseURL, lang, lang)
}

// LastModified asks the mirror when the latest dump of lang was published.
func (f *Fetcher) LastModified(ctx context.Context, lang string) (time.Time, error) {
	url := f.DumpURL(lang)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("check dump: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("check dump: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("check dump: HTTP %d for %s", resp.StatusCode, url)
	}
	header := resp.Header.Get("Last-Modified")
	if header == "" {
		return time.Time{}, fmt.Errorf("check dump: no Last-Modified header for %s", url)
	}
	t, err := http.ParseTime(header)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse Last-Modified %q: %w", header, err)
	}
	return t.UTC(), nil
}

// FileName is the name of the decompressed dump of lang published at t.
func FileName(lang string, t time.Time) string {
	return fmt.Sprintf("%swiki-latest-pages-articles.%d.xml", lang, t.Unix())
}

// parseFileName returns the publication time encoded in a dump file name.
func parseFileName(lang, name string) (time.Time, bool) {
	prefix := lang + "wiki-latest-pages-articles."
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".xml") {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".xml"), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0).UTC(), true
}

// Download fetches the latest dump of lang, decompresses it into dir and
// returns the path of the result. The file is named after modTime, see
// FileName.
func (f *Fetcher) Download(ctx context.Context, lang, dir string, modTime time.Time) (string, error) {
	url := f.DumpURL(lang)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("download dump: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download dump: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download dump: HTTP %d for %s", resp.StatusCode, url)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	destPath := filepath.Join(dir, FileName(lang, modTime))

	file, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(file.Name())

	log.Infof("downloading %s to %s", url, destPath)
	n, err := io.Copy(file, bzip2.NewReader(resp.Body))
	if err != nil {
		file.Close()
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(file.Name(), destPath); err != nil {
		return "", fmt.Errorf("rename file: %w", err)
	}
	log.Infof("wrote %d bytes to %s", n, destPath)
	return destPath, nil
}

// LatestLocal returns the newest dump of lang in dir and its publication
// time. It returns os.ErrNotExist when there is none.
func LatestLocal(dir, lang string) (string, time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("list dumps: %w", err)
	}
	var (
		latest     string
		latestTime time.Time
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		t, ok := parseFileName(lang, e.Name())
		if !ok {
			continue
		}
		if latest == "" || t.After(latestTime) {
			latest, latestTime = e.Name(), t
		}
	}
	if latest == "" {
		return "", time.Time{}, fmt.Errorf("list dumps in %s: %w", dir, os.ErrNotExist)
	}
	return filepath.Join(dir, latest), latestTime, nil
}

// Ensure returns the path of an up to date dump of lang in dir. With
// checkNew false a local dump is used without asking the mirror. Otherwise
// the mirror's dump is downloaded when it is newer than the newest local
// one.
func (f *Fetcher) Ensure(ctx context.Context, lang, dir string, checkNew bool) (string, error) {
	local, localTime, err := LatestLocal(dir, lang)
	switch {
	case err == nil && !checkNew:
		return local, nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return "", err
	case err != nil:
		log.Info("no local dump found, loading the latest version", "lang", lang, "dir", dir)
	}

	remoteTime, err := f.LastModified(ctx, lang)
	if err != nil {
		if local != "" {
			log.Warningf("using local dump %s: %v", local, err)
			return local, nil
		}
		return "", fmt.Errorf("%w: %w", ErrNoDump, err)
	}
	if local != "" && !remoteTime.After(localTime) {
		log.Debugf("local dump %s is up to date", local)
		return local, nil
	}
	return f.Download(ctx, lang, dir, remoteTime)
}
