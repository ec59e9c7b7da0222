// Package formula models a Homebrew formula for a single released script or
// binary: where its archive lives, how to verify it, and which file becomes
// the installed command.
package formula

import (
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ralt/brewrelease/internal/models"
)

// GeneratorName is written into the header of every rendered formula
const GeneratorName = "brewrelease"

// MaxDescriptionLength is the longest desc `brew audit --strict` accepts
const MaxDescriptionLength = 80

// Formula is the declarative recipe for one release of a package.
// Values are never mutated once built; regeneration replaces the whole record.
type Formula struct {
	Name        string `json:"name"`
	Description string `json:"desc"`
	Homepage    string `json:"homepage"`
	License     string `json:"license"`

	// Version is informational. It is not rendered since Homebrew infers it
	// from the archive URL.
	Version string `json:"version,omitempty"`

	SourceURL string `json:"url"`
	SHA256    string `json:"sha256"`

	Mapping models.InstallMapping `json:"install"`

	// Test is the optional body of the `test do` block
	Test string `json:"test,omitempty"`
}

var _ models.Installable = Formula{}

var (
	classSeparators = regexp.MustCompile(`[-_.\s]+`)
	versionedSuffix = regexp.MustCompile(`(.)@(\d)`)
	articlePrefix   = regexp.MustCompile(`(?i)^(a|an|the)\s+`)
)

// ClassName converts a formula name to the Ruby class Homebrew expects,
// e.g. "secure-browser-kiosk" becomes "SecureBrowserKiosk" and
// "foo@1.2" becomes "FooAT12".
func ClassName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "+", "x")

	// A Caser keeps state between calls
	caser := cases.Title(language.Und)
	words := classSeparators.Split(name, -1)
	for i, word := range words {
		words[i] = caser.String(word)
	}

	return versionedSuffix.ReplaceAllString(strings.Join(words, ""), "${1}AT${2}")
}

// NormalizeDescription shapes a free-form repository description into a
// desc line that passes `brew audit --strict`: no leading article, capital
// first letter, no trailing period, and short enough to sit next to the
// formula name within the length limit.
func NormalizeDescription(name, desc string) string {
	desc = strings.Join(strings.Fields(desc), " ")
	desc = articlePrefix.ReplaceAllString(desc, "")
	desc = strings.TrimRight(desc, ".")

	limit := MaxDescriptionLength - (len(name) + 2)
	if limit < 1 {
		limit = 1
	}
	runes := []rune(desc)
	if len(runes) > limit {
		runes = runes[:limit]
	}
	desc = strings.TrimRight(strings.TrimSpace(string(runes)), ".")

	if desc == "" {
		return desc
	}
	first := []rune(desc)[0:1]
	return strings.ToUpper(string(first)) + desc[len(string(first)):]
}

// InferVersion extracts the version Homebrew would derive from an archive URL,
// e.g. ".../archive/v0.1.0.tar.gz" gives "v0.1.0".
func InferVersion(name, sourceURL string) string {
	base := path.Base(sourceURL)
	for _, ext := range []string{".tar.gz", ".tgz", ".tar.xz", ".tar.zst", ".tar", ".zip"} {
		if strings.HasSuffix(base, ext) {
			base = strings.TrimSuffix(base, ext)
			break
		}
	}
	if name != "" {
		base = strings.TrimPrefix(base, name+"-")
	}
	return base
}
