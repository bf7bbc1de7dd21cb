package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dpgf-extract/internal/workbook"
)

// maxZipDepth bounds nested archive expansion.
const maxZipDepth = 2

// IsZip reports whether name has a .zip extension.
func IsZip(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".zip")
}

// ExtractWorkbooks expands the spreadsheet files of a tender bundle into
// destDir and returns their paths in archive order. Nested archives are
// expanded one level deep. Office lock files and resource forks are skipped.
func ExtractWorkbooks(zipPath, destDir string) ([]string, error) {
	return extractWorkbooks(zipPath, destDir, 0)
}

func extractWorkbooks(zipPath, destDir string, depth int) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var out []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() || skipEntry(f.Name) {
			continue
		}
		switch {
		case workbook.Supported(f.Name):
			p, err := extractZIPEntry(f, destDir)
			if err != nil {
				return out, err
			}
			out = append(out, p)
		case IsZip(f.Name) && depth+1 < maxZipDepth:
			p, err := extractZIPEntry(f, destDir)
			if err != nil {
				return out, err
			}
			nested, err := extractWorkbooks(p, strings.TrimSuffix(p, filepath.Ext(p)), depth+1)
			if err != nil {
				zap.L().Warn("zip: nested archive skipped", zap.String("entry", f.Name), zap.Error(err))
				continue
			}
			out = append(out, nested...)
		}
	}
	return out, nil
}

func skipEntry(name string) bool {
	base := path.Base(name)
	return strings.HasPrefix(name, "__MACOSX/") ||
		strings.HasPrefix(base, "~$") ||
		strings.HasPrefix(base, "._")
}

// extractZIPEntry extracts a single zip.File to the destination directory.
func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrap(err, "zip: write file")
	}
	return destPath, nil
}
