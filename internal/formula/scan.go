package formula

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Scan returns the formula files among paths. Directories are walked
// recursively and every *.rb file inside them is included; files are
// returned as given.
func Scan(ctx context.Context, paths ...string) ([]string, error) {
	var found []string

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			found = append(found, p)
			continue
		}

		var inDir []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			// Check context cancellation
			if err := ctx.Err(); err != nil {
				return err
			}

			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) == ".rb" {
				inDir = append(inDir, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", p, err)
		}

		sort.Strings(inDir)
		logrus.Debugf("Found %d formulas in %s", len(inDir), p)
		found = append(found, inDir...)
	}

	return found, nil
}
