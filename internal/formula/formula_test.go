package formula

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralt/brewrelease/internal/models"
)

const zeroSHA = "0000000000000000000000000000000000000000000000000000000000000000"

func kioskFormula() Formula {
	return Formula{
		Name:        "test-formula-template-no-article-description",
		Description: "Release scripts, binaries, and executables to github",
		Homepage:    "https://github.com/Justintime50/test-formula-template-no-article-description",
		SourceURL:   "https://github.com/Justintime50/test-formula-template-no-article-description/archive/v0.1.0.tar.gz",
		SHA256:      zeroSHA,
		License:     "MIT",
		Version:     "v0.1.0",
		Mapping: models.InstallMapping{
			SourcePath:    "src/secure-browser-kiosk.sh",
			InstalledName: "secure-browser-kiosk",
		},
	}
}

func TestClassName(t *testing.T) {
	tests := map[string]string{
		"test-formula-template-no-article-description": "TestFormulaTemplateNoArticleDescription",
		"secure-browser-kiosk":                          "SecureBrowserKiosk",
		"my_tool":                                       "MyTool",
		"foo.bar":                                       "FooBar",
		"HTTPie":                                        "Httpie",
		"v2ray":                                         "V2ray",
		"foo+bar":                                       "Fooxbar",
		"foo@1.2":                                       "FooAT12",
	}

	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ClassName(in))
		})
	}
}

func TestNormalizeDescription(t *testing.T) {
	tests := []struct {
		name string
		desc string
		want string
	}{
		{"tool", "Release scripts to github", "Release scripts to github"},
		{"tool", "A tool that does things.", "Tool that does things"},
		{"tool", "an   example\n tool", "Example tool"},
		{"tool", "The best tool...", "Best tool"},
		{"tool", "", ""},
		{
			"secure-browser-kiosk",
			"Lock a browser into kiosk mode on shared machines so that visitors cannot escape it",
			"Lock a browser into kiosk mode on shared machines so that",
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got := NormalizeDescription(tt.name, tt.desc)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), MaxDescriptionLength-(len(tt.name)+2))
		})
	}
}

func TestInferVersion(t *testing.T) {
	assert.Equal(t, "v0.1.0", InferVersion("kiosk", "https://github.com/o/kiosk/archive/v0.1.0.tar.gz"))
	assert.Equal(t, "1.2.3", InferVersion("kiosk", "https://example.com/kiosk-1.2.3.tar.xz"))
	assert.Equal(t, "2.0", InferVersion("", "file:///tmp/2.0.zip"))
}

func TestRenderMatchesGolden(t *testing.T) {
	want, err := os.ReadFile(filepath.Join("testdata", "test-formula-template-no-article-description.rb"))
	require.NoError(t, err)

	assert.Equal(t, string(want), string(Render(kioskFormula())))
}

func TestRenderIsDeterministic(t *testing.T) {
	f := kioskFormula()
	f.Test = "system \"#{bin}/secure-browser-kiosk\", \"--version\""

	first := Render(f)
	second := Render(kioskFormula())
	assert.NotEqual(t, first, second)
	assert.Equal(t, first, Render(f))
}

func TestRenderEscapesStrings(t *testing.T) {
	f := kioskFormula()
	f.Description = `Say "hi" to #{name}`

	out := string(Render(f))
	assert.Contains(t, out, `desc "Say \"hi\" to \#{name}"`)

	parsed, err := Parse(f.Name, bytesReader(out))
	require.NoError(t, err)
	assert.Equal(t, f.Description, parsed.Description)
}

func TestParseRoundTrip(t *testing.T) {
	f := kioskFormula()
	f.Test = "assert_match \"usage\", shell_output(\"#{bin}/secure-browser-kiosk -h\")\nsystem \"true\""

	parsed, err := Parse(f.Name, bytesReader(string(Render(f))))
	require.NoError(t, err)
	assert.Equal(t, f, parsed)
}

func TestParseFile(t *testing.T) {
	f, err := ParseFile(filepath.Join("testdata", "with-test.rb"))
	require.NoError(t, err)

	assert.Equal(t, "with-test", f.Name)
	assert.Equal(t, `Tool with a "quoted" word`, f.Description)
	assert.Equal(t, "https://example.com/with-test", f.Homepage)
	assert.Equal(t, "Apache-2.0 OR MIT", f.License)
	assert.Equal(t, "v1.2.3", f.Version)
	assert.Equal(t, models.InstallMapping{SourcePath: "bin/with-test.sh", InstalledName: "with-test"}, f.Mapping)
	assert.Equal(t, "assert_match \"usage\", shell_output(\"#{bin}/with-test --help\")\nsystem \"true\"", f.Test)
	assert.NoError(t, Validate(f))
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("tool", bytesReader("puts 1\n"))
	assert.ErrorContains(t, err, "no Formula class")

	_, err = Parse("other", bytesReader("class Tool < Formula\nend\n"))
	assert.ErrorContains(t, err, "does not match")

	_, err = Parse("tool", bytesReader("class Tool < Formula\n  test do\n    system \"true\"\n"))
	assert.ErrorContains(t, err, "unterminated test block")
}

func bytesReader(s string) io.Reader {
	return strings.NewReader(s)
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"Formula/b.rb", "Formula/a.rb", "Formula/README.md", ".git/hooks/x.rb", "top.rb"} {
		full := filepath.Join(dir, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, nil, 0644))
	}
	single := filepath.Join(t.TempDir(), "single.rb")
	require.NoError(t, os.WriteFile(single, nil, 0644))

	found, err := Scan(context.Background(), single, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		single,
		filepath.Join(dir, "Formula", "a.rb"),
		filepath.Join(dir, "Formula", "b.rb"),
		filepath.Join(dir, "top.rb"),
	}, found)

	_, err = Scan(context.Background(), filepath.Join(dir, "missing"))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Scan(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}
