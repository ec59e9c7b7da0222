package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ralt/brewrelease/internal/models"
	"github.com/ralt/brewrelease/internal/utils"
)

// NewChecksumCmd creates the checksum command
func NewChecksumCmd() *cobra.Command {
	var verify string

	cmd := &cobra.Command{
		Use:   "checksum FILE...",
		Short: "Print the SHA-256 of files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if verify != "" {
				if len(args) != 1 {
					return invalidConfig("--verify takes exactly one file")
				}
				if err := utils.VerifyFile(args[0], verify); err != nil {
					return models.NewError(models.ErrIntegrity, "", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", args[0])
				return nil
			}

			for _, path := range args {
				sum, err := utils.CalculateChecksum(path)
				if err != nil {
					return models.NewError(models.ErrMissingSource, "", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum.SHA256, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&verify, "verify", "", "Expected SHA-256; fail unless the file matches")

	return cmd
}
