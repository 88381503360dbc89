package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crmlink/crmlink/internal/config"
	"github.com/crmlink/crmlink/internal/output"
)

var configShowOutput string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(configShowOutput)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatYAML {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		settings := config.Effective()

		if format == output.FormatJSON {
			rendered, err := output.RenderJSON(settings)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return nil
		}

		rendered, err := config.RenderYAML(settings)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), rendered)
		return nil
	},
}

func init() {
	configShowCmd.Flags().StringVar(&configShowOutput, "output-format", "yaml", "Output format: yaml|json")
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
