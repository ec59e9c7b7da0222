package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ralt/brewrelease/internal/fetch"
	"github.com/ralt/brewrelease/internal/github"
	"github.com/ralt/brewrelease/internal/models"
	"github.com/ralt/brewrelease/internal/release"
	"github.com/ralt/brewrelease/internal/signer"
	"github.com/ralt/brewrelease/internal/tap"
)

type releaseFlags struct {
	config  string
	install string
	values  models.ReleaseConfig
}

// NewReleaseCmd creates the release command
func NewReleaseCmd() *cobra.Command {
	return newReleaseCmd(&releaseFlags{})
}

func newReleaseCmd(flags *releaseFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Publish a formula for the latest GitHub release",
		Long: `Looks up the latest release of a GitHub repository, hashes its source
archive, renders the formula and commits it to a Homebrew tap.

Every flag falls back to the matching INPUT_* environment variable so the
command can run as a GitHub Action step, then to the --config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveReleaseConfig(cmd, flags, os.Getenv)
			if err != nil {
				return err
			}

			logrus.Info("Starting Homebrew release...")
			logrus.Debugf("Configuration: owner=%s repo=%s tap=%s folder=%s", cfg.Owner, cfg.Repo, cfg.Tap, cfg.FormulaFolder)

			return runRelease(cmd, cfg)
		},
	}

	v := &flags.values
	cmd.Flags().StringVarP(&flags.config, "config", "c", "", "YAML configuration file")

	// Source repository
	cmd.Flags().StringVar(&v.Owner, "owner", "", "Repository owner")
	cmd.Flags().StringVar(&v.Repo, "repo", "", "Repository name")
	cmd.Flags().StringVar(&v.GitHubToken, "github-token", "", "GitHub token used for the API and tap pushes")
	cmd.Flags().StringVar(&v.APIBaseURL, "api-url", "", "GitHub API base URL (GitHub Enterprise)")

	// Formula content
	cmd.Flags().StringVarP(&flags.install, "install", "i", "", `Install mapping, e.g. "src/tool.sh => tool"`)
	cmd.Flags().StringVar(&v.Test, "test", "", "Ruby test block body")

	// Tap
	cmd.Flags().StringVar(&v.Tap, "homebrew-tap", "", "Tap repository name, e.g. homebrew-formulas")
	cmd.Flags().StringVar(&v.FormulaFolder, "formula-folder", "", "Folder of the tap holding formulas (default Formula)")
	cmd.Flags().StringVar(&v.TapURL, "tap-url", "", "Clone URL of the tap (defaults to the GitHub URL)")
	cmd.Flags().StringVar(&v.CommitAuthor, "commit-author", "", "Commit author name (defaults to owner)")
	cmd.Flags().StringVar(&v.CommitEmail, "commit-email", "", "Commit author email")
	cmd.Flags().BoolVar(&v.SkipPublish, "skip-publish", false, "Only write the formula locally")
	cmd.Flags().BoolVarP(&v.Force, "force", "f", false, "Publish even if the tap has the same or a newer version")

	// Signing
	cmd.Flags().StringVarP(&v.GPGKeyPath, "gpg-key", "k", "", "Path to GPG private key")
	cmd.Flags().StringVarP(&v.GPGPassphrase, "gpg-passphrase", "p", "", "GPG key passphrase")

	// Output
	cmd.Flags().StringVarP(&v.OutputDir, "output-dir", "o", "", "Directory the formula is written to (default .)")
	cmd.Flags().StringVar(&v.CacheDir, "cache-dir", "", "Keep downloaded archives in this directory")
	cmd.Flags().BoolVar(&v.WriteSBOM, "sbom", false, "Write an SPDX document next to the formula")

	return cmd
}

// resolveReleaseConfig merges defaults, the config file, the environment and
// flags, in increasing order of precedence.
func resolveReleaseConfig(cmd *cobra.Command, flags *releaseFlags, getenv func(string) string) (*models.ReleaseConfig, error) {
	cfg := &models.ReleaseConfig{}
	if flags.config != "" {
		loaded, err := loadConfigFile(flags.config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	debug, err := applyEnv(cfg, getenv)
	if err != nil {
		return nil, err
	}
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	v := flags.values
	overrides := map[string]func(){
		"owner":          func() { cfg.Owner = v.Owner },
		"repo":           func() { cfg.Repo = v.Repo },
		"github-token":   func() { cfg.GitHubToken = v.GitHubToken },
		"api-url":        func() { cfg.APIBaseURL = v.APIBaseURL },
		"test":           func() { cfg.Test = v.Test },
		"homebrew-tap":   func() { cfg.Tap = v.Tap },
		"formula-folder": func() { cfg.FormulaFolder = v.FormulaFolder },
		"tap-url":        func() { cfg.TapURL = v.TapURL },
		"commit-author":  func() { cfg.CommitAuthor = v.CommitAuthor },
		"commit-email":   func() { cfg.CommitEmail = v.CommitEmail },
		"skip-publish":   func() { cfg.SkipPublish = v.SkipPublish },
		"force":          func() { cfg.Force = v.Force },
		"gpg-key":        func() { cfg.GPGKeyPath = v.GPGKeyPath },
		"gpg-passphrase": func() { cfg.GPGPassphrase = v.GPGPassphrase },
		"output-dir":     func() { cfg.OutputDir = v.OutputDir },
		"cache-dir":      func() { cfg.CacheDir = v.CacheDir },
		"sbom":           func() { cfg.WriteSBOM = v.WriteSBOM },
	}
	for name, apply := range overrides {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}

	if cmd.Flags().Changed("install") {
		m, err := release.ParseInstall(flags.install)
		if err != nil {
			return nil, models.NewError(models.ErrInvalidConfig, "", err)
		}
		cfg.Install = m
	}

	applyDefaults(cfg)
	return cfg, nil
}

func runRelease(cmd *cobra.Command, cfg *models.ReleaseConfig) error {
	client, err := github.NewClient(nil, cfg.GitHubToken, cfg.APIBaseURL)
	if err != nil {
		return models.NewError(models.ErrInvalidConfig, "", err)
	}

	var opts []release.Option

	// Initialize signer
	var gpgSigner *signer.GPGSigner
	if cfg.GPGKeyPath != "" {
		gpgSigner, err = signer.NewGPGSigner(cfg.GPGKeyPath, cfg.GPGPassphrase)
		if err != nil {
			return models.NewError(models.ErrSigning, "", fmt.Errorf("failed to initialize GPG signer: %w", err))
		}
		logrus.Info("GPG signer initialized")
		opts = append(opts, release.WithSigner(gpgSigner))
	}

	if !cfg.SkipPublish {
		tapOpts := tap.Options{
			URL:         cfg.TapURL,
			Token:       cfg.GitHubToken,
			AuthorName:  cfg.CommitAuthor,
			AuthorEmail: cfg.CommitEmail,
			Depth:       tap.DefaultDepth,
		}
		if tapOpts.URL == "" && cfg.Tap != "" {
			tapOpts.URL = tap.TapURL(cfg.Owner, cfg.Tap)
		}
		if gpgSigner != nil {
			tapOpts.Signer = gpgSigner
		}

		if err := release.CheckConfig(cfg, true); err != nil {
			return err
		}
		publisher, err := tap.NewPublisher(tapOpts)
		if err != nil {
			return models.NewError(models.ErrInvalidConfig, "", err)
		}
		opts = append(opts, release.WithPublisher(publisher))
	} else {
		logrus.Info("Skipping publish, the formula is only written locally")
	}

	if created, ok := sourceDateEpoch(os.Getenv("SOURCE_DATE_EPOCH")); ok {
		opts = append(opts, release.WithClock(func() time.Time { return created }))
	}

	res, err := release.NewReleaser(client, fetch.NewHTTPFetcher(nil), opts...).Run(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	logrus.Infof("Formula: %s", res.FormulaPath)
	if res.SBOMPath != "" {
		logrus.Infof("SBOM: %s", res.SBOMPath)
	}
	if res.Published {
		logrus.Infof("Tap commit: %s", res.Commit)
	}
	return nil
}

// sourceDateEpoch parses a reproducible-builds timestamp
func sourceDateEpoch(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		logrus.Warnf("Ignoring invalid SOURCE_DATE_EPOCH %q", v)
		return time.Time{}, false
	}
	return time.Unix(secs, 0).UTC(), true
}
