package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ralt/brewrelease/internal/formula"
	"github.com/ralt/brewrelease/internal/models"
)

// NewValidateCmd creates the validate command
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate PATH...",
		Short: "Check formula files",
		Long: `Parses and checks formula files, reporting every violation. Directories
such as a tap checkout are searched for *.rb files.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := formula.Scan(cmd.Context(), args...)
			if err != nil {
				return models.NewError(models.ErrMissingSource, "", err)
			}

			failed := 0
			for _, path := range paths {
				f, err := formula.ParseFile(path)
				if err == nil {
					err = formula.Validate(f)
				}
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: FAIL\n%v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", path)
			}

			if failed > 0 {
				return models.NewError(models.ErrInvalidFormula, "", fmt.Errorf("%d of %d formulas are invalid", failed, len(paths)))
			}
			return nil
		},
	}
}
