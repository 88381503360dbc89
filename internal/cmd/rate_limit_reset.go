package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/crmlink/crmlink/internal/output"
)

var rateLimitResetOutput string

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset <client-key>",
	Short: "Clear the rate limit window for one client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitResetOutput)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		key := args[0]
		var response map[string]any
		path := "/admin/rate-limits/" + url.PathEscape(key)
		if err := adminRequest(cmd.Context(), "DELETE", path, &response); err != nil {
			return err
		}

		if format == output.FormatJSON {
			rendered, err := output.RenderJSON(response)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Reset rate limit window for %s\n", key)
		return nil
	},
}

func init() {
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetOutput, "output-format", string(output.FormatTable), "Output format: table|json")
}
