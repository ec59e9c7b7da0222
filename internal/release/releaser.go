// Package release turns a tagged GitHub release into a Homebrew formula and
// publishes it to a tap.
package release

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ralt/brewrelease/internal/fetch"
	"github.com/ralt/brewrelease/internal/formula"
	"github.com/ralt/brewrelease/internal/github"
	"github.com/ralt/brewrelease/internal/models"
	"github.com/ralt/brewrelease/internal/sbom"
	"github.com/ralt/brewrelease/internal/signer"
	"github.com/ralt/brewrelease/internal/tap"
	"github.com/ralt/brewrelease/internal/utils"
)

// Source provides repository metadata and the release to package
type Source interface {
	Repository(ctx context.Context, owner, repo string) (*github.Repository, error)
	LatestRelease(ctx context.Context, owner, repo string) (*github.Release, error)
}

// Result describes what a release run produced
type Result struct {
	Formula       formula.Formula
	FormulaPath   string
	SignaturePath string
	SBOMPath      string
	Published     bool
	Commit        string
}

// PublicKeyFile is written next to signed formulas so signatures can be checked
const PublicKeyFile = "signing-key.asc"

// Releaser runs the whole release pipeline
type Releaser struct {
	source    Source
	fetcher   fetch.Fetcher
	publisher *tap.Publisher
	signer    signer.Signer
	now       func() time.Time
}

// Option customises a Releaser
type Option func(*Releaser)

// WithPublisher publishes formulas to a tap
func WithPublisher(p *tap.Publisher) Option {
	return func(r *Releaser) {
		r.publisher = p
	}
}

// WithSigner writes a detached signature next to each formula
func WithSigner(s signer.Signer) Option {
	return func(r *Releaser) {
		r.signer = s
	}
}

// WithClock sets the time used in generated SBOM documents
func WithClock(now func() time.Time) Option {
	return func(r *Releaser) {
		r.now = now
	}
}

// NewReleaser creates a new releaser
func NewReleaser(source Source, fetcher fetch.Fetcher, opts ...Option) *Releaser {
	if fetcher == nil {
		fetcher = fetch.NewHTTPFetcher(nil)
	}
	r := &Releaser{
		source:  source,
		fetcher: fetcher,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CheckConfig validates the configuration a release run needs
func CheckConfig(cfg *models.ReleaseConfig, publish bool) error {
	missing := func(flag string) error {
		return models.NewError(models.ErrInvalidConfig, "", fmt.Errorf("%s is required", flag))
	}

	if cfg.Owner == "" {
		return missing("owner")
	}
	if cfg.Repo == "" {
		return missing("repo")
	}
	if cfg.Install.SourcePath == "" || cfg.Install.InstalledName == "" {
		return missing("install")
	}
	if err := formula.ValidateMapping(cfg.Install.SourcePath, cfg.Install.InstalledName); err != nil {
		return models.NewError(models.ErrInvalidConfig, "", err)
	}
	if cfg.OutputDir == "" {
		return missing("output-dir")
	}

	if publish {
		if cfg.Tap == "" && cfg.TapURL == "" {
			return missing("homebrew-tap")
		}
		if cfg.FormulaFolder == "" {
			return missing("formula-folder")
		}
		if cfg.CommitEmail == "" {
			return missing("commit-email")
		}
		if cfg.TapURL == "" && cfg.GitHubToken == "" {
			return missing("github-token")
		}
	}
	return nil
}

// Run releases the latest version of cfg.Repo
func (r *Releaser) Run(ctx context.Context, cfg *models.ReleaseConfig) (*Result, error) {
	if err := CheckConfig(cfg, r.publisher != nil); err != nil {
		return nil, err
	}

	// Step 1: Look up repository and latest release
	var (
		repo *github.Repository
		rel  *github.Release
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		repo, err = r.source.Repository(gctx, cfg.Owner, cfg.Repo)
		return err
	})
	g.Go(func() error {
		var err error
		rel, err = r.source.LatestRelease(gctx, cfg.Owner, cfg.Repo)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, models.NewError(models.ErrFetch, cfg.Repo, err)
	}

	version := rel.Version()
	if _, err := semver.NewVersion(version); err != nil {
		logrus.Warnf("Release %s is not a semantic version, tap versions will only be compared for equality", version)
	}
	logrus.Infof("Releasing %s/%s %s", cfg.Owner, cfg.Repo, version)

	// Step 2: Download the archive and compute its checksum
	archiveURL := github.ArchiveURL(cfg.Owner, cfg.Repo, version)
	sum, err := r.checksum(ctx, cfg, archiveURL)
	if err != nil {
		return nil, err
	}

	// Step 3: Generate the formula
	f, err := Generate(Input{
		Repository: *repo,
		Version:    version,
		SourceURL:  archiveURL,
		SHA256:     sum,
		Install:    cfg.Install,
		Test:       cfg.Test,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Formula: f}
	content := formula.Render(f)

	// Step 4: Write output files
	if err := r.writeOutputs(cfg, f, content, res); err != nil {
		return nil, err
	}

	// Step 5: Publish to the tap
	if r.publisher != nil {
		if err := r.publish(ctx, cfg, f, content, res); err != nil {
			return nil, err
		}
	}

	if res.Published {
		logrus.Infof("Successfully released %s of %s to %s!", version, cfg.Repo, cfg.Tap)
	}
	return res, nil
}

func (r *Releaser) checksum(ctx context.Context, cfg *models.ReleaseConfig, archiveURL string) (string, error) {
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		dir, err := os.MkdirTemp("", "brewrelease-")
		if err != nil {
			return "", models.NewError(models.ErrFetch, cfg.Repo, err)
		}
		defer os.RemoveAll(dir)
		cacheDir = dir
	}

	archivePath := filepath.Join(cacheDir, filepath.Base(archiveURL))
	logrus.Infof("Downloading %s", archiveURL)
	if _, err := r.fetcher.Fetch(ctx, archiveURL, archivePath); err != nil {
		return "", models.NewError(models.ErrFetch, cfg.Repo, err)
	}

	sum, err := utils.CalculateChecksum(archivePath)
	if err != nil {
		return "", models.NewError(models.ErrFetch, cfg.Repo, fmt.Errorf("failed to hash archive: %w", err))
	}

	logrus.Debugf("Archive %s: %d bytes, sha256 %s", filepath.Base(archivePath), sum.Size, sum.SHA256)
	return sum.SHA256, nil
}

func (r *Releaser) writeOutputs(cfg *models.ReleaseConfig, f formula.Formula, content []byte, res *Result) error {
	res.FormulaPath = filepath.Join(cfg.OutputDir, f.Name+".rb")
	if err := utils.WriteFile(res.FormulaPath, content, 0644); err != nil {
		return models.NewError(models.ErrPublish, f.Name, fmt.Errorf("failed to write formula: %w", err))
	}
	logrus.Infof("Generated formula %s (%s)", res.FormulaPath, formula.ClassName(f.Name))

	if r.signer != nil {
		sig, err := r.signer.SignDetached(content)
		if err != nil {
			return models.NewError(models.ErrSigning, f.Name, err)
		}
		res.SignaturePath = res.FormulaPath + ".asc"
		if err := utils.WriteFile(res.SignaturePath, sig, 0644); err != nil {
			return models.NewError(models.ErrPublish, f.Name, fmt.Errorf("failed to write signature: %w", err))
		}

		pub, err := r.signer.GetPublicKey()
		if err != nil {
			return models.NewError(models.ErrSigning, f.Name, err)
		}
		if err := utils.WriteFile(filepath.Join(cfg.OutputDir, PublicKeyFile), pub, 0644); err != nil {
			return models.NewError(models.ErrPublish, f.Name, fmt.Errorf("failed to write public key: %w", err))
		}
	}

	if cfg.WriteSBOM {
		res.SBOMPath = filepath.Join(cfg.OutputDir, f.Name+".spdx.json")
		out, err := os.Create(res.SBOMPath)
		if err != nil {
			return models.NewError(models.ErrPublish, f.Name, err)
		}

		if err := sbom.Write(out, sbom.Document(f, r.now())); err != nil {
			out.Close()
			return models.NewError(models.ErrPublish, f.Name, fmt.Errorf("failed to write SBOM: %w", err))
		}
		if err := out.Close(); err != nil {
			return models.NewError(models.ErrPublish, f.Name, fmt.Errorf("failed to write SBOM: %w", err))
		}
	}
	return nil
}

func (r *Releaser) publish(ctx context.Context, cfg *models.ReleaseConfig, f formula.Formula, content []byte, res *Result) error {
	co, err := r.publisher.Checkout(ctx)
	if err != nil {
		return models.NewError(models.ErrPublish, f.Name, err)
	}

	existing, found, err := co.ReadFormula(cfg.FormulaFolder, f.Name)
	if err != nil {
		logrus.Warnf("Ignoring unreadable published formula: %v", err)
	}
	if found && err == nil && !cfg.Force && !IsNewer(f.Version, existing.Version) {
		logrus.Infof("Tap already has %s %s, skipping publish (use --force to override)", f.Name, existing.Version)
		return nil
	}

	if err := co.WriteFile(tap.FormulaPath(cfg.FormulaFolder, f.Name), content); err != nil {
		return models.NewError(models.ErrPublish, f.Name, err)
	}

	hash, committed, err := co.Commit(tap.CommitMessage(cfg.Repo, f.Version))
	if err != nil {
		return models.NewError(models.ErrPublish, f.Name, err)
	}
	if !committed {
		return nil
	}

	if err := co.Push(ctx); err != nil {
		return models.NewError(models.ErrPublish, f.Name, err)
	}

	res.Published = true
	res.Commit = hash.String()
	return nil
}
