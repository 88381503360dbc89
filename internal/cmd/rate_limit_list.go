package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crmlink/crmlink/internal/output"
	"github.com/crmlink/crmlink/internal/server"
)

var rateLimitListOutput string

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active rate limit windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitListOutput)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		var response server.RateLimitListResponse
		if err := adminRequest(cmd.Context(), "GET", "/admin/rate-limits", &response); err != nil {
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

		fmt.Fprintln(cmd.OutOrStdout(), output.RateLimitTable(response.Limit, response.Window, response.Windows))
		return nil
	},
}

func init() {
	rateLimitListCmd.Flags().StringVar(&rateLimitListOutput, "output-format", string(output.FormatTable), "Output format: table|json")
}
