// Package archive unpacks release archives fetched for a formula.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
)

// ErrUnsafePath is returned for entries that would land outside the destination
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Extract unpacks the archive at path into dest and returns the directory that
// holds the archive contents. Source tarballs usually wrap everything in a
// single top-level directory (repo-1.2.3/); in that case the returned root is
// that directory, as Homebrew does before running the install step.
func Extract(ctx context.Context, path, dest string) (string, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return "", fmt.Errorf("failed to detect archive format: %w", err)
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", err
	}

	logrus.Debugf("Extracting %s archive %s into %s", format, path, dest)

	var count int
	switch format {
	case FormatZip:
		count, err = extractZip(ctx, path, dest)
	case FormatTarGz, FormatTarXz, FormatTarZst, FormatTar:
		count, err = extractTarFile(ctx, path, dest, format)
	default:
		return "", fmt.Errorf("unsupported archive format: %s", filepath.Base(path))
	}
	if err != nil {
		return "", err
	}

	logrus.Debugf("Extracted %d entries from %s", count, filepath.Base(path))
	return contentRoot(dest)
}

func extractTarFile(ctx context.Context, path, dest string, format Format) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	// Detect compression from format
	var r io.Reader
	switch format {
	case FormatTarGz:
		gr, err := gzip.NewReader(f)
		if err != nil {
			return 0, err
		}
		defer gr.Close()
		r = gr
	case FormatTarXz:
		xr, err := xz.NewReader(f)
		if err != nil {
			return 0, err
		}
		r = xr
	case FormatTarZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return 0, err
		}
		defer zr.Close()
		r = zr
	default:
		r = f
	}

	return extractTar(ctx, tar.NewReader(r), dest)
}

func extractTar(ctx context.Context, tr *tar.Reader, dest string) (int, error) {
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, err
		}

		if header.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		target, err := safeJoin(dest, header.Name)
		if err != nil {
			return count, err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, dirMode(header.FileInfo().Mode())); err != nil {
				return count, err
			}
		case tar.TypeReg:
			if err := writeEntry(target, header.FileInfo().Mode(), tr); err != nil {
				return count, err
			}
		case tar.TypeSymlink:
			if err := symlinkEntry(dest, target, header.Linkname); err != nil {
				return count, err
			}
		case tar.TypeLink:
			linked, err := safeJoin(dest, header.Linkname)
			if err != nil {
				return count, err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return count, err
			}
			if err := os.Link(linked, target); err != nil {
				return count, err
			}
		default:
			logrus.Debugf("Skipping unsupported tar entry %s (type %c)", header.Name, header.Typeflag)
			continue
		}
		count++
	}
	return count, nil
}

func extractZip(ctx context.Context, path, dest string) (int, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return 0, err
	}
	defer zr.Close()

	count := 0
	for _, file := range zr.File {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		target, err := safeJoin(dest, file.Name)
		if err != nil {
			return count, err
		}

		mode := file.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, dirMode(mode)); err != nil {
				return count, err
			}
		case mode&fs.ModeSymlink != 0:
			rc, err := file.Open()
			if err != nil {
				return count, err
			}
			link, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return count, err
			}
			if err := symlinkEntry(dest, target, string(link)); err != nil {
				return count, err
			}
		default:
			rc, err := file.Open()
			if err != nil {
				return count, err
			}
			err = writeEntry(target, mode, rc)
			rc.Close()
			if err != nil {
				return count, err
			}
		}
		count++
	}
	return count, nil
}

// safeJoin resolves an archive entry name under dest, rejecting traversal
func safeJoin(dest, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}

	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func symlinkEntry(dest, target, linkname string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("%w: symlink %s -> %s", ErrUnsafePath, target, linkname)
	}
	resolved := filepath.Join(filepath.Dir(target), filepath.FromSlash(linkname))
	rel, err := filepath.Rel(dest, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: symlink %s -> %s", ErrUnsafePath, target, linkname)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	return os.Symlink(linkname, target)
}

func writeEntry(target string, mode fs.FileMode, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	perm := mode.Perm()
	if perm == 0 {
		perm = 0644
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func dirMode(mode fs.FileMode) fs.FileMode {
	// Directories must stay traversable for the install step
	return mode.Perm() | 0700
}

// contentRoot returns the single top-level directory of dest, or dest itself
func contentRoot(dest string) (string, error) {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dest, entries[0].Name()), nil
	}
	return dest, nil
}
