// Package installer plays the package manager's part for a formula: it
// downloads the archive, checks its digest, unpacks it and runs the
// formula's install step.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ralt/brewrelease/internal/archive"
	"github.com/ralt/brewrelease/internal/fetch"
	"github.com/ralt/brewrelease/internal/formula"
	"github.com/ralt/brewrelease/internal/models"
	"github.com/ralt/brewrelease/internal/utils"
)

// Installer installs formulas into a binary directory
type Installer struct {
	fetcher  fetch.Fetcher
	cacheDir string
	binDir   string
}

// NewInstaller creates a new installer. Archives are kept in cacheDir and
// reused while their digest still matches.
func NewInstaller(fetcher fetch.Fetcher, cacheDir, binDir string) *Installer {
	if fetcher == nil {
		fetcher = fetch.NewHTTPFetcher(nil)
	}
	return &Installer{
		fetcher:  fetcher,
		cacheDir: cacheDir,
		binDir:   binDir,
	}
}

// Install runs download, verify, extract and copy for f, strictly in that
// order. A digest mismatch aborts before anything is extracted or copied.
func (i *Installer) Install(ctx context.Context, f formula.Formula) error {
	if err := formula.ValidateStructure(f); err != nil {
		return models.NewError(models.ErrInvalidFormula, f.Name, err)
	}

	if err := utils.EnsureDir(i.cacheDir); err != nil {
		return models.NewError(models.ErrFetch, f.Name, fmt.Errorf("failed to create cache dir: %w", err))
	}

	// Step 1: Fetch archive (or reuse a verified cached copy)
	archivePath, err := i.fetchVerified(ctx, f)
	if err != nil {
		return err
	}

	// Step 2: Extract into a scratch directory
	workDir, err := os.MkdirTemp(i.cacheDir, f.Name+"-build-")
	if err != nil {
		return models.NewError(models.ErrExtract, f.Name, err)
	}
	defer os.RemoveAll(workDir)

	root, err := archive.Extract(ctx, archivePath, workDir)
	if err != nil {
		return models.NewError(models.ErrExtract, f.Name, fmt.Errorf("failed to extract %s: %w", filepath.Base(archivePath), err))
	}

	// Step 3: Run the install step
	logrus.Infof("Installing %s %s", f.Name, f.Version)
	if err := f.Install(ctx, root, i.binDir); err != nil {
		return err
	}

	return nil
}

func (i *Installer) fetchVerified(ctx context.Context, f formula.Formula) (string, error) {
	archivePath := filepath.Join(i.cacheDir, cacheName(f))

	if _, err := os.Stat(archivePath); err == nil {
		if err := utils.VerifyFile(archivePath, f.SHA256); err == nil {
			logrus.Debugf("Using cached archive %s", archivePath)
			return archivePath, nil
		}
		logrus.Warnf("Cached archive %s is stale, downloading again", archivePath)
	}

	logrus.Infof("Downloading %s", f.SourceURL)
	if _, err := i.fetcher.Fetch(ctx, f.SourceURL, archivePath); err != nil {
		return "", models.NewError(models.ErrFetch, f.Name, err)
	}

	if err := utils.VerifyFile(archivePath, f.SHA256); err != nil {
		// Never keep an archive that failed verification
		os.Remove(archivePath)
		if errors.Is(err, models.ErrChecksumMismatch) {
			return "", models.NewError(models.ErrIntegrity, f.Name, err)
		}
		return "", models.NewError(models.ErrFetch, f.Name, err)
	}

	return archivePath, nil
}

// cacheName follows Homebrew's <name>--<version>--<basename> download naming
func cacheName(f formula.Formula) string {
	version := f.Version
	if version == "" {
		version = formula.InferVersion(f.Name, f.SourceURL)
	}
	return fmt.Sprintf("%s--%s--%s", f.Name, version, path.Base(f.SourceURL))
}
