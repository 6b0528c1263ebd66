package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eigenix/walletd/internal/config"
	"github.com/eigenix/walletd/internal/fileutil"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and bootstrap walletd configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after file, environment, and flag overrides
have been applied. Secrets are redacted.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		shown := *cfg
		if shown.Monero.Password != "" {
			shown.Monero.Password = "<redacted>"
		}

		data, err := yaml.Marshal(&shown)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path := DefaultConfigPath
		if len(args) == 1 {
			path = args[0]
		}

		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("refusing to overwrite existing config at %s", path)
		}

		data, err := yaml.Marshal(config.Defaults())
		if err != nil {
			return err
		}
		if err := fileutil.WriteAtomic(path, data, 0o600); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
