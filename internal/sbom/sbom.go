// Package sbom describes a released archive as an SPDX document that can be
// published next to its formula.
package sbom

import (
	"fmt"
	"io"
	"strings"
	"time"

	spdxjson "github.com/spdx/tools-golang/json"
	v2common "github.com/spdx/tools-golang/spdx/v2/common"
	"github.com/spdx/tools-golang/spdx/v2/v2_3"

	"github.com/ralt/brewrelease/internal/formula"
)

// Namespace prefixes every document namespace
const Namespace = "https://brewrelease.dev/spdx"

// Document builds an SPDX 2.3 document for the archive a formula points at.
// created is passed in so the same release always yields the same document.
func Document(f formula.Formula, created time.Time) *v2_3.Document {
	version := f.Version
	if version == "" {
		version = formula.InferVersion(f.Name, f.SourceURL)
	}

	pkgID := v2common.ElementID("Package-" + sanitizeID(f.Name))
	pkg := &v2_3.Package{
		PackageName:             f.Name,
		PackageSPDXIdentifier:   pkgID,
		PackageVersion:          version,
		PackageDownloadLocation: f.SourceURL,
		FilesAnalyzed:           false,
		PackageChecksums: []v2common.Checksum{
			{Algorithm: v2common.SHA256, Value: strings.ToLower(f.SHA256)},
		},
		PackageHomePage:         f.Homepage,
		PackageLicenseConcluded: "NOASSERTION",
		PackageLicenseDeclared:  f.License,
		PackageCopyrightText:    "NOASSERTION",
		PackageSummary:          f.Description,
		PrimaryPackagePurpose:   "SOURCE",
	}

	return &v2_3.Document{
		SPDXVersion:       v2_3.Version,
		DataLicense:       v2_3.DataLicense,
		SPDXIdentifier:    "DOCUMENT",
		DocumentName:      fmt.Sprintf("%s-%s", f.Name, version),
		DocumentNamespace: fmt.Sprintf("%s/%s-%s-%s", Namespace, f.Name, version, strings.ToLower(f.SHA256)),
		CreationInfo: &v2_3.CreationInfo{
			Creators: []v2common.Creator{
				{Creator: formula.GeneratorName, CreatorType: "Tool"},
			},
			Created: created.UTC().Format("2006-01-02T15:04:05Z"),
		},
		Packages: []*v2_3.Package{pkg},
		Relationships: []*v2_3.Relationship{
			{
				RefA:         v2common.MakeDocElementID("", "DOCUMENT"),
				RefB:         v2common.MakeDocElementID("", string(pkgID)),
				Relationship: "DESCRIBES",
			},
		},
	}
}

// Write encodes doc as SPDX JSON
func Write(w io.Writer, doc *v2_3.Document) error {
	return spdxjson.Write(doc, w)
}

// sanitizeID keeps only the characters SPDX allows in element ids
func sanitizeID(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '-'
		}
	}, s)
}
