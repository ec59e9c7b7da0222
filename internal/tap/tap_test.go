package tap

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralt/brewrelease/internal/signer"
)

const kioskRuby = `# This file was generated by brewrelease. DO NOT EDIT.
class SecureBrowserKiosk < Formula
  desc "Lock a browser into kiosk mode"
  homepage "https://github.com/example/secure-browser-kiosk"
  url "https://github.com/example/secure-browser-kiosk/archive/v0.1.0.tar.gz"
  sha256 "0000000000000000000000000000000000000000000000000000000000000000"
  license "MIT"

  def install
    bin.install "src/secure-browser-kiosk.sh" => "secure-browser-kiosk"
  end
end
`

func newBareTap(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "homebrew-formulas.git")
	_, err := git.PlainInit(dir, true)
	require.NoError(t, err)
	return dir
}

func headCommit(t *testing.T, dir string) *object.Commit {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	ref, err := repo.Head()
	require.NoError(t, err)
	commit, err := repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	return commit
}

func newPublisher(t *testing.T, url string, s signer.CommitSigner) *Publisher {
	t.Helper()
	p, err := NewPublisher(Options{
		URL:         url,
		AuthorName:  "Justintime50",
		AuthorEmail: "user@example.com",
		Signer:      s,
	})
	require.NoError(t, err)
	p.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return p
}

func publish(t *testing.T, p *Publisher, content string) bool {
	t.Helper()
	ctx := context.Background()

	co, err := p.Checkout(ctx)
	require.NoError(t, err)
	require.NoError(t, co.WriteFile(FormulaPath("Formula", "secure-browser-kiosk"), []byte(content)))

	_, committed, err := co.Commit(CommitMessage("secure-browser-kiosk", "v0.1.0"))
	require.NoError(t, err)
	if committed {
		require.NoError(t, co.Push(ctx))
	}
	return committed
}

func TestPublishToEmptyTap(t *testing.T) {
	bare := newBareTap(t)
	p := newPublisher(t, bare, nil)

	assert.True(t, publish(t, p, kioskRuby))

	commit := headCommit(t, bare)
	assert.Equal(t, "Brew formula update for secure-browser-kiosk version v0.1.0", commit.Message)
	assert.Equal(t, "Justintime50", commit.Author.Name)
	assert.Equal(t, "user@example.com", commit.Author.Email)

	file, err := commit.File("Formula/secure-browser-kiosk.rb")
	require.NoError(t, err)
	contents, err := file.Contents()
	require.NoError(t, err)
	assert.Equal(t, kioskRuby, contents)
}

func TestPublishSameContentIsNoop(t *testing.T) {
	bare := newBareTap(t)
	p := newPublisher(t, bare, nil)

	require.True(t, publish(t, p, kioskRuby))
	first := headCommit(t, bare).Hash

	assert.False(t, publish(t, p, kioskRuby))
	assert.Equal(t, first, headCommit(t, bare).Hash)
}

func TestReadFormula(t *testing.T) {
	bare := newBareTap(t)
	p := newPublisher(t, bare, nil)

	co, err := p.Checkout(context.Background())
	require.NoError(t, err)
	_, found, err := co.ReadFormula("Formula", "secure-browser-kiosk")
	require.NoError(t, err)
	assert.False(t, found)

	require.True(t, publish(t, p, kioskRuby))

	co, err = p.Checkout(context.Background())
	require.NoError(t, err)
	f, found, err := co.ReadFormula("Formula", "secure-browser-kiosk")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v0.1.0", f.Version)
	assert.Equal(t, "secure-browser-kiosk", f.Mapping.InstalledName)
}

func TestSignedCommit(t *testing.T) {
	entity, err := openpgp.NewEntity("Formula Bot", "", "bot@example.com", nil)
	require.NoError(t, err)

	bare := newBareTap(t)
	p := newPublisher(t, bare, signer.NewGPGSignerFromEntity(entity))
	require.True(t, publish(t, p, kioskRuby))

	commit := headCommit(t, bare)
	require.NotEmpty(t, commit.PGPSignature)

	var pub bytes.Buffer
	w, err := armor.Encode(&pub, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.Serialize(w))
	require.NoError(t, w.Close())

	_, err = commit.Verify(pub.String())
	assert.NoError(t, err)
}

func TestNewPublisherValidation(t *testing.T) {
	_, err := NewPublisher(Options{AuthorName: "a", AuthorEmail: "b"})
	assert.ErrorContains(t, err, "tap url is required")

	_, err = NewPublisher(Options{URL: "x"})
	assert.ErrorContains(t, err, "author")
}

func TestTapURL(t *testing.T) {
	assert.Equal(t, "https://github.com/Justintime50/homebrew-formulas.git", TapURL("Justintime50", "homebrew-formulas"))
}

func kioskRubyVersion(version string) string {
	return strings.ReplaceAll(kioskRuby, "v0.1.0", version)
}

func TestShallowCheckoutPublishes(t *testing.T) {
	bare := newBareTap(t)
	full := newPublisher(t, bare, nil)

	// More history than a shallow clone fetches
	for i := 1; i <= DefaultDepth+2; i++ {
		require.True(t, publish(t, full, kioskRubyVersion(fmt.Sprintf("v0.1.%d", i))))
	}

	shallow, err := NewPublisher(Options{
		URL:         bare,
		AuthorName:  "Justintime50",
		AuthorEmail: "user@example.com",
		Depth:       DefaultDepth,
	})
	require.NoError(t, err)

	ctx := context.Background()
	co, err := shallow.Checkout(ctx)
	require.NoError(t, err)

	shallows, err := co.repo.Storer.Shallow()
	require.NoError(t, err)
	assert.NotEmpty(t, shallows)

	path := FormulaPath("Formula", "secure-browser-kiosk")
	current, err := co.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, kioskRubyVersion(fmt.Sprintf("v0.1.%d", DefaultDepth+2)), string(current))

	next := kioskRubyVersion("v0.2.0")
	require.NoError(t, co.WriteFile(path, []byte(next)))
	_, committed, err := co.Commit(CommitMessage("secure-browser-kiosk", "v0.2.0"))
	require.NoError(t, err)
	require.True(t, committed)
	require.NoError(t, co.Push(ctx))

	head := headCommit(t, bare)
	file, err := head.File("Formula/secure-browser-kiosk.rb")
	require.NoError(t, err)
	contents, err := file.Contents()
	require.NoError(t, err)
	assert.Equal(t, next, contents)

	// The remote keeps its full history under the new commit
	repo, err := git.PlainOpen(bare)
	require.NoError(t, err)
	iter, err := repo.Log(&git.LogOptions{From: head.Hash})
	require.NoError(t, err)
	count := 0
	require.NoError(t, iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	}))
	assert.Equal(t, DefaultDepth+3, count)
}

func TestReadFileMissing(t *testing.T) {
	co, err := newPublisher(t, newBareTap(t), nil).Checkout(context.Background())
	require.NoError(t, err)

	_, err = co.ReadFile("Formula/missing.rb")
	assert.Error(t, err)
}
