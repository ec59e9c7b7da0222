package release

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/ralt/brewrelease/internal/formula"
	"github.com/ralt/brewrelease/internal/github"
	"github.com/ralt/brewrelease/internal/models"
)

// Input is everything a formula is generated from
type Input struct {
	Repository github.Repository
	Version    string
	SourceURL  string
	SHA256     string
	Install    models.InstallMapping
	Test       string
}

// Generate builds the formula for a tagged release. It has no side effects:
// the same input always produces the same formula, field for field.
func Generate(in Input) (formula.Formula, error) {
	// Formula names are lower case; the GitHub repository may not be
	name := strings.ToLower(in.Repository.Name)
	f := formula.Formula{
		Name:        name,
		Description: formula.NormalizeDescription(name, in.Repository.Description),
		Homepage:    in.Repository.Homepage,
		License:     in.Repository.License,
		Version:     in.Version,
		SourceURL:   in.SourceURL,
		SHA256:      strings.ToLower(in.SHA256),
		Mapping: models.InstallMapping{
			SourcePath:    strings.TrimSpace(in.Install.SourcePath),
			InstalledName: strings.TrimSpace(in.Install.InstalledName),
		},
		Test: strings.TrimSpace(in.Test),
	}
	if f.Homepage == "" && in.Repository.Owner != "" {
		f.Homepage = github.HomepageURL(in.Repository.Owner, in.Repository.Name)
	}

	if err := formula.Validate(f); err != nil {
		return formula.Formula{}, models.NewError(models.ErrInvalidFormula, name, err)
	}
	return f, nil
}

// ParseInstall reads an install mapping written as "source => name" or
// "source:name" and checks it. A bare source installs under its base name
// without extension.
func ParseInstall(s string) (models.InstallMapping, error) {
	m, err := models.ParseInstallMapping(s)
	if err != nil {
		return models.InstallMapping{}, err
	}
	if err := formula.ValidateMapping(m.SourcePath, m.InstalledName); err != nil {
		return models.InstallMapping{}, err
	}
	return m, nil
}

// IsNewer reports whether candidate is a strictly newer version than
// published. Versions that are not semver compare as different strings, so a
// changed unparsable version is always treated as newer.
func IsNewer(candidate, published string) bool {
	if published == "" {
		return true
	}

	cv, cerr := semver.NewVersion(candidate)
	pv, perr := semver.NewVersion(published)
	if cerr != nil || perr != nil {
		return candidate != published
	}
	return cv.GreaterThan(pv)
}
