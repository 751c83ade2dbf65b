// Package cmd provides the anchorplay command-line interface.
//
// Configuration System:
//
//	Settings are resolved with the following precedence:
//	1. Command-line flags (--store, --port, --log-level, ...)
//	2. Environment variables with the ANCHORPLAY_ prefix
//	3. The configuration file: --config, then ANCHORPLAY_CONFIG_FILE,
//	   then .anchorplay.yml in the working directory
//	4. Built-in defaults
//
// Environment Variables:
//
//	ANCHORPLAY_CONFIG_FILE: Path to a custom configuration file
//	ANCHORPLAY_STORE_ROOT: Template store directory
//	ANCHORPLAY_SERVER_PORT: Server port
//	ANCHORPLAY_CACHE_LIST_TTL: Listing cache lifetime, e.g. 30s
//	And every other key following the ANCHORPLAY_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "ANCHORPLAY"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "anchorplay",
	Short: "Serve and inspect Solana playground templates",
	Long: `anchorplay loads the learning templates of the Solana playground from a
template store: program source, metadata, line explanations, program maps,
function specs and precomputed execution traces.

Quick Start:
  anchorplay list                       List templates in the store
  anchorplay show hello-solana          Print a loaded template
  anchorplay validate                   Check every template in the store
  anchorplay explain counter --lines 3-7
  anchorplay serve                      Serve templates over HTTP`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .anchorplay.yml, can also use ANCHORPLAY_CONFIG_FILE env var)")
	flags.StringP("store", "s", "", "template store directory (default ./templates)")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")

	viper.BindPFlag("store.root", flags.Lookup("store"))
	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("log.format", flags.Lookup("log-format"))
}

// initConfig selects the configuration file and enables environment
// overrides. A missing configuration file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(envPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".anchorplay")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Warning: cannot read config file:", err)
	}
}
