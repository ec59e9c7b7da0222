package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ralt/brewrelease/internal/fetch"
	"github.com/ralt/brewrelease/internal/formula"
	"github.com/ralt/brewrelease/internal/installer"
	"github.com/ralt/brewrelease/internal/models"
)

// NewInstallCmd creates the install command
func NewInstallCmd() *cobra.Command {
	var binDir, cacheDir string

	cmd := &cobra.Command{
		Use:   "install PATH...",
		Short: "Install formulas into a bin directory",
		Long: `Downloads each formula's source archive, verifies its SHA-256, unpacks it
and installs the declared executable into --bin-dir. Nothing is installed
when the digest does not match.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if binDir == "" {
				return invalidConfig("bin-dir is required")
			}
			if cacheDir == "" {
				dir, err := defaultCacheDir()
				if err != nil {
					return err
				}
				cacheDir = dir
			}

			paths, err := formula.Scan(cmd.Context(), args...)
			if err != nil {
				return models.NewError(models.ErrMissingSource, "", err)
			}

			inst := installer.NewInstaller(fetch.NewHTTPFetcher(nil), cacheDir, binDir)
			for _, path := range paths {
				f, err := formula.ParseFile(path)
				if err != nil {
					return models.NewError(models.ErrInvalidFormula, filepath.Base(path), err)
				}

				if err := inst.Install(cmd.Context(), f); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&binDir, "bin-dir", "b", "", "Directory executables are installed into")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Download cache (defaults to the user cache directory)")

	return cmd
}

func defaultCacheDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", invalidConfig("cache-dir is required: %v", err)
	}
	return filepath.Join(dir, "brewrelease"), nil
}
