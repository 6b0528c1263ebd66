package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eigenix/walletd/internal/version"
)

// releaseRepo is where walletd releases are published.
const releaseRepo = "eigenix/walletd"

var checkLatest bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print walletd version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Printf("walletd %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)

		if !checkLatest {
			return nil
		}

		release, err := version.NewClient(releaseRepo).LatestRelease(cmd.Context())
		if err != nil {
			return err
		}
		if version.IsNewer(release.TagName) {
			fmt.Printf("newer release available: %s (published %s)\n",
				release.TagName, release.PublishedAt.Format("2006-01-02"))
		} else {
			fmt.Println("up to date")
		}
		return nil
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	versionCmd.Flags().BoolVar(&checkLatest, "check", false, "check GitHub for a newer release")
	rootCmd.AddCommand(versionCmd)
}
