package formula

import (
	"fmt"
	"strings"
)

var rubyEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `#{`, `\#{`)

// quote renders s as a Ruby double quoted string literal
func quote(s string) string {
	return `"` + rubyEscaper.Replace(s) + `"`
}

// Render creates the Ruby formula file. The output depends only on f, so
// rendering the same release twice gives identical bytes.
func Render(f Formula) []byte {
	var formula strings.Builder

	formula.WriteString("# typed: false\n")
	formula.WriteString("# frozen_string_literal: true\n")
	formula.WriteString("\n")
	fmt.Fprintf(&formula, "# This file was generated by %s. DO NOT EDIT.\n", GeneratorName)

	fmt.Fprintf(&formula, "class %s < Formula\n", ClassName(f.Name))
	fmt.Fprintf(&formula, "  desc %s\n", quote(f.Description))
	fmt.Fprintf(&formula, "  homepage %s\n", quote(f.Homepage))
	fmt.Fprintf(&formula, "  url %s\n", quote(f.SourceURL))
	fmt.Fprintf(&formula, "  sha256 %s\n", quote(strings.ToLower(f.SHA256)))
	fmt.Fprintf(&formula, "  license %s\n", quote(f.License))
	formula.WriteString("\n")

	formula.WriteString("  def install\n")
	fmt.Fprintf(&formula, "    bin.install %s => %s\n", quote(f.Mapping.SourcePath), quote(f.Mapping.InstalledName))
	formula.WriteString("  end\n")

	if test := strings.TrimSpace(f.Test); test != "" {
		formula.WriteString("\n")
		formula.WriteString("  test do\n")
		for _, line := range strings.Split(test, "\n") {
			line = strings.TrimRight(line, " \t\r")
			if line == "" {
				formula.WriteString("\n")
				continue
			}
			fmt.Fprintf(&formula, "    %s\n", strings.TrimSpace(line))
		}
		formula.WriteString("  end\n")
	}

	formula.WriteString("end\n")

	return []byte(formula.String())
}
