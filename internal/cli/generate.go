package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ralt/brewrelease/internal/fetch"
	"github.com/ralt/brewrelease/internal/formula"
	"github.com/ralt/brewrelease/internal/github"
	"github.com/ralt/brewrelease/internal/models"
	"github.com/ralt/brewrelease/internal/release"
	"github.com/ralt/brewrelease/internal/utils"
)

type generateOptions struct {
	name        string
	description string
	homepage    string
	license     string
	url         string
	sha256      string
	archive     string
	install     string
	test        string
	output      string
}

// NewGenerateCmd creates the generate command
func NewGenerateCmd() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render a formula from flags",
		Long: `Renders a Homebrew formula without talking to GitHub. The digest is
taken from --sha256, computed from a local --archive, or computed by
downloading --url.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, &opts, fetch.NewHTTPFetcher(nil))
		},
	}

	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "Formula name (required)")
	cmd.Flags().StringVarP(&opts.description, "description", "d", "", "Short description")
	cmd.Flags().StringVar(&opts.homepage, "homepage", "", "Project homepage")
	cmd.Flags().StringVar(&opts.license, "license", "", "SPDX license expression")
	cmd.Flags().StringVarP(&opts.url, "url", "u", "", "Source archive URL (required)")
	cmd.Flags().StringVar(&opts.sha256, "sha256", "", "SHA-256 of the source archive")
	cmd.Flags().StringVar(&opts.archive, "archive", "", "Local copy of the source archive to hash")
	cmd.Flags().StringVarP(&opts.install, "install", "i", "", `Install mapping, e.g. "src/tool.sh => tool" (required)`)
	cmd.Flags().StringVar(&opts.test, "test", "", "Ruby test block body")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (defaults to stdout)")

	return cmd
}

func runGenerate(cmd *cobra.Command, opts *generateOptions, fetcher fetch.Fetcher) error {
	if opts.name == "" {
		return invalidConfig("name is required")
	}
	if opts.url == "" {
		return invalidConfig("url is required")
	}

	mapping, err := release.ParseInstall(opts.install)
	if err != nil {
		return models.NewError(models.ErrInvalidConfig, opts.name, err)
	}

	sum, err := resolveChecksum(cmd.Context(), opts, fetcher)
	if err != nil {
		return err
	}

	f, err := release.Generate(release.Input{
		Repository: github.Repository{
			Name:        opts.name,
			Description: opts.description,
			License:     opts.license,
			Homepage:    opts.homepage,
		},
		Version:   formula.InferVersion(opts.name, opts.url),
		SourceURL: opts.url,
		SHA256:    sum,
		Install:   mapping,
		Test:      opts.test,
	})
	if err != nil {
		return err
	}

	content := formula.Render(f)
	if opts.output == "" {
		_, err = cmd.OutOrStdout().Write(content)
		return err
	}

	if err := utils.WriteFile(opts.output, content, 0644); err != nil {
		return models.NewError(models.ErrPublish, f.Name, err)
	}
	logrus.Infof("Wrote %s", opts.output)
	return nil
}

func resolveChecksum(ctx context.Context, opts *generateOptions, fetcher fetch.Fetcher) (string, error) {
	switch {
	case opts.sha256 != "":
		return opts.sha256, nil
	case opts.archive != "":
		sum, err := utils.CalculateChecksum(opts.archive)
		if err != nil {
			return "", models.NewError(models.ErrMissingSource, opts.name, err)
		}
		return sum.SHA256, nil
	}

	dir, err := os.MkdirTemp("", "brewrelease-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	archivePath := filepath.Join(dir, "source")
	logrus.Infof("Downloading %s", opts.url)
	if _, err := fetcher.Fetch(ctx, opts.url, archivePath); err != nil {
		return "", models.NewError(models.ErrFetch, opts.name, err)
	}

	sum, err := utils.CalculateChecksum(archivePath)
	if err != nil {
		return "", models.NewError(models.ErrFetch, opts.name, err)
	}
	return sum.SHA256, nil
}

func invalidConfig(format string, args ...any) error {
	return models.NewError(models.ErrInvalidConfig, "", fmt.Errorf(format, args...))
}
