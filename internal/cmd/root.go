package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/crmlink/crmlink/internal/config"
	"github.com/crmlink/crmlink/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "crmlink",
	Short: "HubSpot CRM integration service",
	Long: `crmlink bridges REST clients and the HubSpot CRM API: it manages the
OAuth token lifecycle, retries upstream calls, and rate limits inbound
traffic.

Use the subcommands to perform specific operations.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Disable global telemetry early so config loading cannot emit metrics
	// to stdout. Server mode initializes proper telemetry later.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig initializes the CLI logger and loads the layered configuration.
func initConfig() {
	observability.InitCLILogger("crmlink", verbose)

	if _, err := config.Load(cfgFile); err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to load configuration", err)
	}

	if verbose && viper.ConfigFileUsed() != "" {
		observability.CLILogger.Debug("Using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}
