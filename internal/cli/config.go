package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ralt/brewrelease/internal/models"
	"github.com/ralt/brewrelease/internal/release"
)

// DefaultCommitEmail is used when no commit email is configured anywhere
const DefaultCommitEmail = "homebrew-releaser@example.com"

// Environment variables set by the GitHub Action runner for each input
const (
	envGitHubToken   = "INPUT_GITHUB_TOKEN"
	envOwner         = "INPUT_OWNER"
	envOwnerEmail    = "INPUT_OWNER_EMAIL"
	envRepo          = "INPUT_REPO"
	envInstall       = "INPUT_INSTALL"
	envTest          = "INPUT_TEST"
	envHomebrewTap   = "INPUT_HOMEBREW_TAP"
	envFormulaFolder = "INPUT_HOMEBREW_FORMULA_FOLDER"
	envSkipCommit    = "INPUT_SKIP_COMMIT"
	envDebug         = "INPUT_DEBUG"
)

// loadConfigFile reads a YAML release configuration
func loadConfigFile(path string) (*models.ReleaseConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewError(models.ErrInvalidConfig, "", fmt.Errorf("failed to read config: %w", err))
	}

	var cfg models.ReleaseConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, models.NewError(models.ErrInvalidConfig, "", fmt.Errorf("failed to parse config %s: %w", path, err))
	}
	return &cfg, nil
}

// applyEnv fills cfg from the action inputs present in the environment
func applyEnv(cfg *models.ReleaseConfig, getenv func(string) string) (debug bool, err error) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&cfg.GitHubToken, envGitHubToken)
	set(&cfg.Owner, envOwner)
	set(&cfg.CommitEmail, envOwnerEmail)
	set(&cfg.Repo, envRepo)
	set(&cfg.Test, envTest)
	set(&cfg.Tap, envHomebrewTap)
	set(&cfg.FormulaFolder, envFormulaFolder)

	if v := strings.TrimSpace(getenv(envInstall)); v != "" {
		m, err := release.ParseInstall(v)
		if err != nil {
			return false, models.NewError(models.ErrInvalidConfig, "", fmt.Errorf("%s: %w", envInstall, err))
		}
		cfg.Install = m
	}

	if v := getenv(envSkipCommit); v != "" {
		skip, err := strconv.ParseBool(v)
		if err != nil {
			return false, models.NewError(models.ErrInvalidConfig, "", fmt.Errorf("%s: %w", envSkipCommit, err))
		}
		cfg.SkipPublish = skip
	}

	if v := getenv(envDebug); v != "" {
		debug, _ = strconv.ParseBool(v)
	}
	return debug, nil
}

// applyDefaults fills whatever is still empty after flags, env and file
func applyDefaults(cfg *models.ReleaseConfig) {
	if cfg.CommitAuthor == "" {
		cfg.CommitAuthor = cfg.Owner
	}
	if cfg.CommitEmail == "" {
		cfg.CommitEmail = DefaultCommitEmail
	}
	if cfg.FormulaFolder == "" {
		cfg.FormulaFolder = "Formula"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
}
