package cli

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralt/brewrelease/internal/models"
)

const zeroSum = "0000000000000000000000000000000000000000000000000000000000000000"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func kioskArchive(t *testing.T) (string, string) {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	require.NoError(t, tw.WriteHeader(&tar.Header{Typeflag: tar.TypeDir, Name: "secure-browser-kiosk-0.1.0/src/", Mode: 0755}))
	body := "#!/bin/sh\necho kiosk\n"
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     "secure-browser-kiosk-0.1.0/src/secure-browser-kiosk.sh",
		Mode:     0644,
		Size:     int64(len(body)),
	}))
	_, err := tw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())

	path := filepath.Join(t.TempDir(), "v0.1.0.tar.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	sum := sha256.Sum256(buf.Bytes())
	return path, hex.EncodeToString(sum[:])
}

func generateArgs(extra ...string) []string {
	args := []string{
		"generate",
		"--name", "secure-browser-kiosk",
		"--description", "A browser kiosk.",
		"--homepage", "https://github.com/Justintime50/secure-browser-kiosk",
		"--license", "MIT",
		"--url", "https://github.com/Justintime50/secure-browser-kiosk/archive/v0.1.0.tar.gz",
		"--install", "src/secure-browser-kiosk.sh => secure-browser-kiosk",
	}
	return append(args, extra...)
}

func TestGenerateToStdout(t *testing.T) {
	out, err := execute(t, generateArgs("--sha256", zeroSum)...)
	require.NoError(t, err)

	assert.Contains(t, out, "class SecureBrowserKiosk < Formula")
	assert.Contains(t, out, `desc "Browser kiosk"`)
	assert.Contains(t, out, `sha256 "`+zeroSum+`"`)
	assert.Contains(t, out, `bin.install "src/secure-browser-kiosk.sh" => "secure-browser-kiosk"`)

	again, err := execute(t, generateArgs("--sha256", zeroSum)...)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestGenerateHashesArchive(t *testing.T) {
	archive, sum := kioskArchive(t)
	output := filepath.Join(t.TempDir(), "secure-browser-kiosk.rb")

	_, err := execute(t, generateArgs("--archive", archive, "--output", output)...)
	require.NoError(t, err)

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(content), `sha256 "`+sum+`"`)
}

func TestGenerateDownloadsURL(t *testing.T) {
	archive, sum := kioskArchive(t)

	out, err := execute(t,
		"generate",
		"--name", "secure-browser-kiosk",
		"--description", "Browser kiosk",
		"--homepage", "https://example.com",
		"--license", "MIT",
		"--url", "file://"+filepath.ToSlash(archive),
		"--install", "src/secure-browser-kiosk.sh",
	)
	require.NoError(t, err)
	assert.Contains(t, out, `sha256 "`+sum+`"`)
}

func TestGenerateErrors(t *testing.T) {
	_, err := execute(t, "generate", "--url", "https://example.com/a.tar.gz")
	assert.True(t, models.IsType(err, models.ErrInvalidConfig))

	_, err = execute(t, generateArgs("--sha256", "abc")...)
	assert.True(t, models.IsType(err, models.ErrInvalidFormula))
	assert.ErrorContains(t, err, "sha256")
}

func TestChecksum(t *testing.T) {
	archive, sum := kioskArchive(t)

	out, err := execute(t, "checksum", archive)
	require.NoError(t, err)
	assert.Equal(t, sum+"  "+archive+"\n", out)

	out, err = execute(t, "checksum", "--verify", strings.ToUpper(sum), archive)
	require.NoError(t, err)
	assert.Contains(t, out, "OK")

	_, err = execute(t, "checksum", "--verify", zeroSum, archive)
	assert.True(t, models.IsType(err, models.ErrIntegrity))
	assert.ErrorIs(t, err, models.ErrChecksumMismatch)
}

func TestValidate(t *testing.T) {
	good := filepath.Join("..", "formula", "testdata", "with-test.rb")

	bad := filepath.Join(t.TempDir(), "bad-formula.rb")
	require.NoError(t, os.WriteFile(bad, []byte(`class BadFormula < Formula
  desc "A tool."
  homepage "https://example.com"
  url "https://example.com/v1.0.0.tar.gz"
  sha256 "abc"
  license "MIT"

  def install
    bin.install "tool" => "tool"
  end
end
`), 0644))

	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "with-test.rb: OK")

	out, err = execute(t, "validate", good, bad)
	require.Error(t, err)
	assert.Contains(t, out, "bad-formula.rb: FAIL")
	assert.Contains(t, out, "article")
	assert.Contains(t, out, "sha256")
	assert.ErrorContains(t, err, "1 of 2")
}

func writeKioskFormula(t *testing.T, archive, sum string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secure-browser-kiosk.rb")
	_, err := execute(t,
		"generate",
		"--name", "secure-browser-kiosk",
		"--description", "Browser kiosk",
		"--homepage", "https://example.com",
		"--license", "MIT",
		"--url", "file://"+filepath.ToSlash(archive),
		"--sha256", sum,
		"--install", "src/secure-browser-kiosk.sh => secure-browser-kiosk",
		"--output", path,
	)
	require.NoError(t, err)
	return path
}

func TestInstall(t *testing.T) {
	archive, sum := kioskArchive(t)
	path := writeKioskFormula(t, archive, sum)
	binDir := t.TempDir()
	hook := logtest.NewGlobal()
	defer hook.Reset()

	_, err := execute(t, "install", "--bin-dir", binDir, "--cache-dir", t.TempDir(), path)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(binDir, "secure-browser-kiosk"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	installing := 0
	for _, entry := range hook.AllEntries() {
		if strings.HasPrefix(entry.Message, "Installing ") {
			installing++
		}
	}
	assert.Equal(t, 1, installing)
}

func TestInstallChecksumMismatch(t *testing.T) {
	archive, _ := kioskArchive(t)
	path := writeKioskFormula(t, archive, zeroSum)
	binDir := t.TempDir()

	_, err := execute(t, "install", "--bin-dir", binDir, "--cache-dir", t.TempDir(), path)
	require.Error(t, err)
	assert.True(t, models.IsType(err, models.ErrIntegrity))

	entries, err := os.ReadDir(binDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInstallRequiresBinDir(t *testing.T) {
	_, err := execute(t, "install", "x.rb")
	assert.True(t, models.IsType(err, models.ErrInvalidConfig))
}

func TestResolveReleaseConfigPrecedence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "brewrelease.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`owner: from-file
repo: secure-browser-kiosk
homebrew_tap: homebrew-file
formula_folder: Formula
install: "src/secure-browser-kiosk.sh => secure-browser-kiosk"
test: system "true"
sbom: true
`), 0644))

	env := map[string]string{
		"INPUT_OWNER":        "from-env",
		"INPUT_HOMEBREW_TAP": "homebrew-env",
		"INPUT_GITHUB_TOKEN": "secret",
		"INPUT_SKIP_COMMIT":  "true",
	}

	flags := &releaseFlags{}
	cmd := newReleaseCmd(flags)
	require.NoError(t, cmd.ParseFlags([]string{"--config", file, "--homebrew-tap", "homebrew-flag", "--output-dir", "out"}))

	cfg, err := resolveReleaseConfig(cmd, flags, func(k string) string { return env[k] })
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Owner)
	assert.Equal(t, "secure-browser-kiosk", cfg.Repo)
	assert.Equal(t, "homebrew-flag", cfg.Tap)
	assert.Equal(t, "secret", cfg.GitHubToken)
	assert.Equal(t, "Formula", cfg.FormulaFolder)
	assert.Equal(t, "src/secure-browser-kiosk.sh", cfg.Install.SourcePath)
	assert.Equal(t, "secure-browser-kiosk", cfg.Install.InstalledName)
	assert.Equal(t, `system "true"`, cfg.Test)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.True(t, cfg.SkipPublish)
	assert.True(t, cfg.WriteSBOM)

	// Defaults
	assert.Equal(t, "from-env", cfg.CommitAuthor)
	assert.Equal(t, DefaultCommitEmail, cfg.CommitEmail)
}

func TestResolveReleaseConfigInstallMapping(t *testing.T) {
	flags := &releaseFlags{}
	cmd := newReleaseCmd(flags)
	require.NoError(t, cmd.ParseFlags(nil))

	env := map[string]string{"INPUT_INSTALL": "bin/tool"}
	cfg, err := resolveReleaseConfig(cmd, flags, func(k string) string { return env[k] })
	require.NoError(t, err)
	assert.Equal(t, models.InstallMapping{SourcePath: "bin/tool", InstalledName: "tool"}, cfg.Install)

	env["INPUT_INSTALL"] = "../escape => tool"
	_, err = resolveReleaseConfig(cmd, flags, func(k string) string { return env[k] })
	assert.True(t, models.IsType(err, models.ErrInvalidConfig))
}

func TestLoadConfigFileMappingForm(t *testing.T) {
	file := filepath.Join(t.TempDir(), "brewrelease.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`owner: Justintime50
install:
  source_path: src/kiosk.sh
  installed_name: kiosk
`), 0644))

	cfg, err := loadConfigFile(file)
	require.NoError(t, err)
	assert.Equal(t, "src/kiosk.sh", cfg.Install.SourcePath)
	assert.Equal(t, "kiosk", cfg.Install.InstalledName)

	_, err = loadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, models.IsType(err, models.ErrInvalidConfig))
}

func TestSourceDateEpoch(t *testing.T) {
	ts, ok := sourceDateEpoch("1704164645")
	require.True(t, ok)
	assert.Equal(t, "2024-01-02T03:04:05Z", ts.Format("2006-01-02T15:04:05Z"))

	_, ok = sourceDateEpoch("")
	assert.False(t, ok)
	_, ok = sourceDateEpoch("yesterday")
	assert.False(t, ok)
}

func TestValidateDirectory(t *testing.T) {
	out, err := execute(t, "validate", filepath.Join("..", "formula", "testdata"))
	require.NoError(t, err)
	assert.Contains(t, out, "test-formula-template-no-article-description.rb: OK")
	assert.Contains(t, out, "with-test.rb: OK")
}
