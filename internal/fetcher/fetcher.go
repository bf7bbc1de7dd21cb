// Package fetcher resolves document references (local paths, HTTP(S) and
// FTP URLs, zip bundles) into local workbook files.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dpgf-extract/internal/config"
)

// Fetcher downloads remote files.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Document is a resolved local workbook. Name is the original file name,
// which lot identification relies on.
type Document struct {
	Path string
	Name string
}

// Resolved is the outcome of Source.Resolve. Cleanup removes any temporary
// files and is always safe to call.
type Resolved struct {
	Documents []Document
	dir       string
}

// Cleanup removes temporary files created during resolution.
func (r *Resolved) Cleanup() {
	if r == nil || r.dir == "" {
		return
	}
	if err := os.RemoveAll(r.dir); err != nil {
		zap.L().Warn("fetcher: cleanup failed", zap.String("dir", r.dir), zap.Error(err))
	}
}

// Source dispatches references to the right fetcher.
type Source struct {
	HTTP Fetcher
	FTP  Fetcher
	// TempDir is where downloads and expanded bundles go. Default: os.TempDir().
	TempDir string
}

// NewSource builds a Source from configuration.
func NewSource(cfg config.FetchConfig) *Source {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	return &Source{
		HTTP: NewHTTPFetcher(HTTPOptions{UserAgent: cfg.UserAgent, Timeout: timeout}),
		FTP:  NewFTPFetcher(FTPOptions{Timeout: timeout}),
	}
}

// IsRemote reports whether ref is an http(s) or ftp URL.
func IsRemote(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
		return true
	}
	return false
}

// Resolve turns ref into local workbook documents. Remote references are
// downloaded first; zip bundles are expanded to the workbooks they contain.
// A local workbook path is returned as is.
func (s *Source) Resolve(ctx context.Context, ref string) (*Resolved, error) {
	res := &Resolved{}
	local, name := ref, filepath.Base(ref)

	if IsRemote(ref) {
		dir, err := res.tempDir(s.TempDir)
		if err != nil {
			return res, err
		}
		local, name, err = s.download(ctx, ref, dir)
		if err != nil {
			return res, err
		}
	} else if _, err := os.Stat(ref); err != nil {
		return res, eris.Wrapf(err, "fetcher: stat %s", ref)
	}

	if !IsZip(name) {
		res.Documents = []Document{{Path: local, Name: name}}
		return res, nil
	}

	dir, err := res.tempDir(s.TempDir)
	if err != nil {
		return res, err
	}
	paths, err := ExtractWorkbooks(local, filepath.Join(dir, "bundle"))
	if err != nil {
		return res, err
	}
	for _, p := range paths {
		res.Documents = append(res.Documents, Document{Path: p, Name: filepath.Base(p)})
	}
	zap.L().Info("fetcher: bundle expanded",
		zap.String("bundle", name),
		zap.Int("workbooks", len(paths)),
	)
	return res, nil
}

func (r *Resolved) tempDir(base string) (string, error) {
	if r.dir != "" {
		return r.dir, nil
	}
	dir, err := os.MkdirTemp(base, "dpgf-*")
	if err != nil {
		return "", eris.Wrap(err, "fetcher: create temp dir")
	}
	r.dir = dir
	return dir, nil
}

func (s *Source) download(ctx context.Context, ref, dir string) (string, string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", "", eris.Wrap(err, "fetcher: parse url")
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "document.xlsx"
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}

	f := s.HTTP
	if strings.EqualFold(u.Scheme, "ftp") {
		f = s.FTP
	}
	if f == nil {
		return "", "", eris.Errorf("fetcher: no fetcher for scheme %q", u.Scheme)
	}

	dest := filepath.Join(dir, filepath.Base(name))
	n, err := f.DownloadToFile(ctx, ref, dest)
	if err != nil {
		return "", "", err
	}
	zap.L().Debug("fetcher: downloaded",
		zap.String("url", u.Redacted()),
		zap.Int64("bytes", n),
	)
	return dest, name, nil
}
