package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "brewrelease",
		Short: "Generate and publish Homebrew formulas for GitHub releases",
		Long: `Brewrelease turns the latest release of a GitHub repository into a
Homebrew formula and publishes it to a tap.

Commands:
  - release:  full pipeline from GitHub release to tap commit
  - generate: render a formula from flags
  - install:  install a formula's executable into a bin directory
  - validate: check formula files
  - checksum: print SHA-256 digests`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	rootCmd.AddCommand(NewGenerateCmd())
	rootCmd.AddCommand(NewReleaseCmd())
	rootCmd.AddCommand(NewInstallCmd())
	rootCmd.AddCommand(NewValidateCmd())
	rootCmd.AddCommand(NewChecksumCmd())

	return rootCmd
}
