package formula

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ralt/brewrelease/internal/models"
	"github.com/ralt/brewrelease/internal/utils"
)

// ExecutableMode is the permission given to installed commands
const ExecutableMode fs.FileMode = 0755

// Install copies the mapped source file from an extracted and verified
// archive into binDir under its installed name. The copy goes through a
// temporary file and a rename, so binDir is left untouched on failure.
func (f Formula) Install(ctx context.Context, srcRoot, binDir string) error {
	if err := ValidateMapping(f.Mapping.SourcePath, f.Mapping.InstalledName); err != nil {
		return models.NewError(models.ErrInvalidFormula, f.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	src := filepath.Join(srcRoot, filepath.FromSlash(f.Mapping.SourcePath))
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.NewError(models.ErrMissingSource, f.Name,
				fmt.Errorf("%w: %s", models.ErrSourceNotFound, f.Mapping.SourcePath))
		}
		return models.NewError(models.ErrMissingSource, f.Name, err)
	}
	if !info.Mode().IsRegular() {
		return models.NewError(models.ErrMissingSource, f.Name,
			fmt.Errorf("%w: %s is not a regular file", models.ErrSourceNotFound, f.Mapping.SourcePath))
	}

	binInfo, err := os.Stat(binDir)
	if err != nil || !binInfo.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", binDir)
		}
		return models.NewError(models.ErrPermission, f.Name, fmt.Errorf("%w: %v", models.ErrInstallDirNotWritable, err))
	}

	dst := filepath.Join(binDir, f.Mapping.InstalledName)
	logrus.Debugf("Installing %s -> %s", src, dst)

	err = utils.AtomicWriteFrom(dst, ExecutableMode, func(w io.Writer) error {
		in, err := os.Open(src)
		if err != nil {
			return err
		}
		defer in.Close()

		_, err = io.Copy(w, in)
		return err
	})
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return models.NewError(models.ErrPermission, f.Name, fmt.Errorf("%w: %v", models.ErrInstallDirNotWritable, err))
		}
		return models.NewError(models.ErrPermission, f.Name, fmt.Errorf("install %s: %w", dst, err))
	}

	logrus.Infof("Installed %s into %s", f.Mapping.InstalledName, binDir)
	return nil
}
