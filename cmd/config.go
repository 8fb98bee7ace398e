package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"retrace/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect retrace configuration",
}

var configSampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Print a commented retrace.toml with every default",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprint(cmd.OutOrStdout(), config.Sample())
		return err
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration after files, environment and flags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if cfg.File != "" {
			fmt.Fprintf(out, "# loaded from %s\n", cfg.File)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}

func init() {
	configCmd.AddCommand(configSampleCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
