// Package cli implements the api-maker command tree.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	dataDir    string
	appVersion string // set in Execute, used by serve for telemetry
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api-maker",
		Short: "Serve a CRUD API compiled from an annotated OpenAPI document",
		Long: `api-maker turns an annotated OpenAPI 3 document into a running CRUD service.

It parses the document's schemas (with their x-am-* vendor extensions) into a
typed model, compiles each request into a single parameterized SQL statement
against Postgres, MySQL, or Oracle, and serves the result over HTTP and MCP.
It can also emit the expanded gateway OpenAPI document for deployment tooling.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./api-maker.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for bookkeeping state (default: ~/.api-maker)")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newGatewayCmd())
	cmd.AddCommand(newInvokeCmd())
	cmd.AddCommand(newAuditCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("api-maker")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.api-maker")
	}

	viper.SetEnvPrefix("API_MAKER")
	viper.AutomaticEnv()
	viper.BindEnv("spec", "API_SPEC")
	viper.BindEnv("secrets", "SECRETS")
	viper.ReadInConfig() // Ignore error - config file is optional
}
