package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/crmlink/crmlink/internal/errors"
)

var (
	rateLimitServer string
	rateLimitToken  string
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect and reset the running server's rate limit windows",
}

func init() {
	rateLimitCmd.PersistentFlags().StringVar(&rateLimitServer, "server", "http://localhost:8080", "Base URL of the running crmlink server")
	rateLimitCmd.PersistentFlags().StringVar(&rateLimitToken, "token", "", "Admin token (defaults to CRMLINK_ADMIN_TOKEN)")
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}

func adminToken() (string, error) {
	token := strings.TrimSpace(rateLimitToken)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("CRMLINK_ADMIN_TOKEN"))
	}
	if token == "" {
		return "", fmt.Errorf("admin token required: pass --token or set CRMLINK_ADMIN_TOKEN")
	}
	return token, nil
}

// adminRequest calls the server's admin API and decodes the JSON body into out.
func adminRequest(ctx context.Context, method, path string, out any) error {
	token, err := adminToken()
	if err != nil {
		return err
	}

	url := strings.TrimRight(rateLimitServer, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var failure apperrors.HTTPErrorResponse
		if err := json.Unmarshal(body, &failure); err == nil && failure.Error.Message != "" {
			return fmt.Errorf("%s %s: %s (%s)", method, path, failure.Error.Message, failure.Error.Code)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
