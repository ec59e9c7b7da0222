package formula

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/github/go-spdx/v2/spdxexp"

	"github.com/ralt/brewrelease/internal/utils"
)

var nameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._+@-]*$`)

// Validate checks every invariant of f and reports all violations at once.
// On top of ValidateStructure it applies the style rules generated formulas
// follow: description wording and length, and an SPDX license.
func Validate(f Formula) error {
	errs := structureErrors(f)
	errs = append(errs, validateDescription(f.Description)...)
	if err := validateLicense(f.License); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateStructure checks only what installing f depends on, so formulas
// written by hand for any tap can be installed.
func ValidateStructure(f Formula) error {
	errs := structureErrors(f)
	if strings.TrimSpace(f.Description) == "" {
		errs = append(errs, errors.New("desc must not be empty"))
	}
	return errors.Join(errs...)
}

func structureErrors(f Formula) []error {
	var errs []error

	if !nameRe.MatchString(f.Name) {
		errs = append(errs, fmt.Errorf("name %q is not a valid formula name", f.Name))
	}

	if err := validateURL("homepage", f.Homepage); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("url", f.SourceURL); err != nil {
		errs = append(errs, err)
	}

	if !utils.IsHexDigest(f.SHA256, utils.SHA256HexLength) {
		errs = append(errs, fmt.Errorf("sha256 must be %d hex characters, got %q", utils.SHA256HexLength, f.SHA256))
	}

	if err := ValidateMapping(f.Mapping.SourcePath, f.Mapping.InstalledName); err != nil {
		errs = append(errs, err)
	}

	return errs
}

func validateDescription(desc string) []error {
	var errs []error
	if strings.TrimSpace(desc) == "" {
		return append(errs, errors.New("desc must not be empty"))
	}
	if n := len([]rune(desc)); n > MaxDescriptionLength {
		errs = append(errs, fmt.Errorf("desc is %d characters, limit is %d", n, MaxDescriptionLength))
	}
	if articlePrefix.MatchString(desc) {
		errs = append(errs, fmt.Errorf("desc %q must not start with an article", desc))
	}
	if strings.HasSuffix(desc, ".") {
		errs = append(errs, fmt.Errorf("desc %q must not end with a period", desc))
	}
	return errs
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s %q: %w", field, raw, err)
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return fmt.Errorf("%s %q has no host", field, raw)
		}
	case "file":
		if u.Path == "" {
			return fmt.Errorf("%s %q has no path", field, raw)
		}
	default:
		return fmt.Errorf("%s %q must be an absolute http, https or file URL", field, raw)
	}
	return nil
}

func validateLicense(license string) error {
	if license == "" {
		return errors.New("license must not be empty")
	}
	if ok, invalid := spdxexp.ValidateLicenses([]string{license}); !ok {
		return fmt.Errorf("license %q is not a valid SPDX expression (%s)", license, strings.Join(invalid, ", "))
	}
	return nil
}

// ValidateMapping checks that source is a relative path that stays inside the
// archive and that name is a bare file name.
func ValidateMapping(source, name string) error {
	var errs []error

	switch {
	case source == "":
		errs = append(errs, errors.New("install source path must not be empty"))
	case path.IsAbs(source) || strings.HasPrefix(source, `\`):
		errs = append(errs, fmt.Errorf("install source path %q must be relative", source))
	default:
		clean := path.Clean(source)
		if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
			errs = append(errs, fmt.Errorf("install source path %q escapes the archive", source))
		}
	}

	switch {
	case name == "":
		errs = append(errs, errors.New("installed name must not be empty"))
	case strings.ContainsAny(name, `/\`) || name == "." || name == "..":
		errs = append(errs, fmt.Errorf("installed name %q must be a simple file name", name))
	}

	return errors.Join(errs...)
}
