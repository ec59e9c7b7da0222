// Package tap publishes generated formulas to a Homebrew tap repository.
package tap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/sirupsen/logrus"

	"github.com/ralt/brewrelease/internal/formula"
	"github.com/ralt/brewrelease/internal/signer"
)

// DefaultDepth matches the shallow clone the release workflow has always used
const DefaultDepth = 5

// Options configures a Publisher
type Options struct {
	// URL of the tap repository (https URL or local path)
	URL string

	// Token authenticates https pushes; empty for anonymous or local taps
	Token string

	// Commit identity
	AuthorName  string
	AuthorEmail string

	// Signer signs commits when set
	Signer signer.CommitSigner

	// Depth of the clone; 0 clones the full history
	Depth int
}

// Publisher clones a tap into memory and pushes formula updates back
type Publisher struct {
	opts Options
	auth transport.AuthMethod
	now  func() time.Time
}

// NewPublisher creates a new tap publisher
func NewPublisher(opts Options) (*Publisher, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("tap url is required")
	}
	if opts.AuthorName == "" || opts.AuthorEmail == "" {
		return nil, fmt.Errorf("commit author name and email are required")
	}

	p := &Publisher{opts: opts, now: time.Now}
	if opts.Token != "" {
		p.auth = &githttp.BasicAuth{
			Username: opts.AuthorName,
			Password: opts.Token,
		}
	}
	return p, nil
}

// TapURL returns the GitHub URL of a tap repository
func TapURL(owner, tap string) string {
	return fmt.Sprintf("https://github.com/%s/%s.git", owner, tap)
}

// CommitMessage is the message used for every formula update
func CommitMessage(repo, version string) string {
	return fmt.Sprintf("Brew formula update for %s version %s", repo, version)
}

// Checkout clones the tap. An empty tap repository is initialised locally
// so that the first formula can be pushed to it.
func (p *Publisher) Checkout(ctx context.Context) (*Checkout, error) {
	fs := memfs.New()

	logrus.Infof("Cloning tap %s", p.opts.URL)
	repo, err := git.CloneContext(ctx, memory.NewStorage(), fs, &git.CloneOptions{
		URL:   p.opts.URL,
		Auth:  p.auth,
		Depth: p.opts.Depth,
	})
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		logrus.Warnf("Tap %s is empty, starting a new history", p.opts.URL)
		fs = memfs.New()
		repo, err = git.Init(memory.NewStorage(), fs)
		if err == nil {
			_, err = repo.CreateRemote(&config.RemoteConfig{
				Name: git.DefaultRemoteName,
				URLs: []string{p.opts.URL},
			})
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to clone tap %s: %w", p.opts.URL, err)
	}

	return &Checkout{publisher: p, repo: repo, fs: fs}, nil
}

// Checkout is an in-memory working copy of the tap
type Checkout struct {
	publisher *Publisher
	repo      *git.Repository
	fs        billy.Filesystem
}

// FormulaPath is the location of a formula inside the tap
func FormulaPath(folder, name string) string {
	return path.Join(folder, name+".rb")
}

// ReadFormula returns the formula currently published under folder/name.rb.
// The boolean is false when the tap has no such formula yet.
func (c *Checkout) ReadFormula(folder, name string) (formula.Formula, bool, error) {
	f, err := c.fs.Open(FormulaPath(folder, name))
	if errors.Is(err, os.ErrNotExist) {
		return formula.Formula{}, false, nil
	}
	if err != nil {
		return formula.Formula{}, false, err
	}
	defer f.Close()

	parsed, err := formula.Parse(name, f)
	if err != nil {
		return formula.Formula{}, true, fmt.Errorf("failed to parse published formula %s: %w", name, err)
	}
	return parsed, true, nil
}

// ReadFile returns the raw bytes of a file in the tap
func (c *Checkout) ReadFile(p string) ([]byte, error) {
	f, err := c.fs.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile stores content at p and stages it
func (c *Checkout) WriteFile(p string, content []byte) error {
	if err := c.fs.MkdirAll(path.Dir(p), 0755); err != nil {
		return err
	}
	if err := util.WriteFile(c.fs, p, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}

	wt, err := c.repo.Worktree()
	if err != nil {
		return err
	}
	if _, err := wt.Add(p); err != nil {
		return fmt.Errorf("failed to stage %s: %w", p, err)
	}
	return nil
}

// Commit records the staged changes. It returns false without creating a
// commit when the staged content matches what is already published.
func (c *Checkout) Commit(message string) (plumbing.Hash, bool, error) {
	wt, err := c.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, false, err
	}

	status, err := wt.Status()
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	if status.IsClean() {
		logrus.Info("Tap already up to date, nothing to commit")
		return plumbing.ZeroHash, false, nil
	}

	opts := &git.CommitOptions{
		Author: &object.Signature{
			Name:  c.publisher.opts.AuthorName,
			Email: c.publisher.opts.AuthorEmail,
			When:  c.publisher.now(),
		},
	}
	if c.publisher.opts.Signer != nil {
		opts.SignKey = c.publisher.opts.Signer.Entity()
	}

	hash, err := wt.Commit(message, opts)
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("failed to commit: %w", err)
	}

	logrus.Infof("Committed %s: %s", hash.String()[:7], message)
	return hash, true, nil
}

// Push sends local commits to the tap
func (c *Checkout) Push(ctx context.Context) error {
	err := c.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: git.DefaultRemoteName,
		Auth:       c.publisher.auth,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to push to %s: %w", c.publisher.opts.URL, err)
	}

	logrus.Infof("Pushed formula update to %s", c.publisher.opts.URL)
	return nil
}
