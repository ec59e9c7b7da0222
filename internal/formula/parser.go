package formula

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const rubyString = `"((?:[^"\\]|\\.)*)"`

// Regex patterns
var (
	classRe    = regexp.MustCompile(`^class\s+(\w+)\s+<\s+Formula$`)
	descRe     = regexp.MustCompile(`^desc\s+` + rubyString)
	homepageRe = regexp.MustCompile(`^homepage\s+` + rubyString)
	urlRe      = regexp.MustCompile(`^url\s+` + rubyString)
	sha256Re   = regexp.MustCompile(`^sha256\s+` + rubyString)
	licenseRe  = regexp.MustCompile(`^license\s+` + rubyString)
	versionRe  = regexp.MustCompile(`^version\s+` + rubyString)
	installRe  = regexp.MustCompile(`^bin\.install\s+` + rubyString + `\s*=>\s*` + rubyString)
)

var rubyUnescaper = strings.NewReplacer(`\\`, `\`, `\"`, `"`, `\#{`, `#{`)

// ParseFile reads a Formula/<name>.rb file. The formula name is taken from
// the file name, as Homebrew does.
func ParseFile(path string) (Formula, error) {
	f, err := os.Open(path)
	if err != nil {
		return Formula{}, err
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), ".rb")
	return Parse(name, f)
}

// Parse reads a formula previously produced by Render (or written by hand in
// the same shape) back into a Formula.
func Parse(name string, r io.Reader) (Formula, error) {
	f := Formula{Name: name}

	var (
		className string
		inTest    bool
		testLines []string
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		if inTest {
			// The test block closes on an `end` at its own indentation
			if line == "end" && strings.HasPrefix(raw, "  end") && !strings.HasPrefix(raw, "   ") {
				inTest = false
				continue
			}
			testLines = append(testLines, line)
			continue
		}

		if matches := classRe.FindStringSubmatch(line); len(matches) > 1 {
			className = matches[1]
			continue
		}
		if line == "test do" {
			inTest = true
			continue
		}
		if matches := descRe.FindStringSubmatch(line); len(matches) > 1 {
			f.Description = unquote(matches[1])
		}
		if matches := homepageRe.FindStringSubmatch(line); len(matches) > 1 {
			f.Homepage = unquote(matches[1])
		}
		if matches := urlRe.FindStringSubmatch(line); len(matches) > 1 {
			f.SourceURL = unquote(matches[1])
		}
		if matches := sha256Re.FindStringSubmatch(line); len(matches) > 1 {
			f.SHA256 = unquote(matches[1])
		}
		if matches := licenseRe.FindStringSubmatch(line); len(matches) > 1 {
			f.License = unquote(matches[1])
		}
		if matches := versionRe.FindStringSubmatch(line); len(matches) > 1 {
			f.Version = unquote(matches[1])
		}
		if matches := installRe.FindStringSubmatch(line); len(matches) > 2 {
			f.Mapping.SourcePath = unquote(matches[1])
			f.Mapping.InstalledName = unquote(matches[2])
		}
	}
	if err := scanner.Err(); err != nil {
		return Formula{}, err
	}

	if className == "" {
		return Formula{}, fmt.Errorf("no Formula class found")
	}
	if inTest {
		return Formula{}, fmt.Errorf("unterminated test block in %s", className)
	}
	if f.Name == "" {
		return Formula{}, fmt.Errorf("formula name is required to parse %s", className)
	}
	if want := ClassName(f.Name); want != className {
		return Formula{}, fmt.Errorf("class %s does not match formula name %q (expected %s)", className, f.Name, want)
	}

	f.Test = strings.TrimSpace(strings.Join(testLines, "\n"))
	if f.Version == "" {
		f.Version = InferVersion(f.Name, f.SourceURL)
	}

	return f, nil
}

func unquote(s string) string {
	return rubyUnescaper.Replace(s)
}
