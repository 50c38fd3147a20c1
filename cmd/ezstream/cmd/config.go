package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/truongvando/ezstream-sub000/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing ezstream configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  ezstream config dump > config.yaml

Configuration can be set via:
  - Config file (.ezstream.yaml, /etc/ezstream/.ezstream.yaml)
  - Environment variables (EZSTREAM_SERVER_PORT, EZSTREAM_DATABASE_DSN, etc.)
  - Command-line flags (for some options)

Environment variables use the EZSTREAM_ prefix and underscores for nesting.
Example: server.port -> EZSTREAM_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	// A fresh viper instance keeps the dump at pure defaults, untouched by
	// whatever config file or environment the current shell carries.
	v := viper.New()
	config.SetDefaults(v)

	yamlData, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Println("# ezstream Configuration File")
	fmt.Println("# ============================")
	fmt.Println("#")
	fmt.Println("# All values shown below are defaults.")
	fmt.Println("# Duration values accept Go syntax: 30s, 5m, 1h")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   EZSTREAM_SERVER_HOST, EZSTREAM_SERVER_PORT")
	fmt.Println("#   EZSTREAM_DATABASE_DRIVER, EZSTREAM_DATABASE_DSN")
	fmt.Println("#   EZSTREAM_STORAGE_BASE_DIR")
	fmt.Println("#   EZSTREAM_LOGGING_LEVEL, EZSTREAM_LOGGING_FORMAT")
	fmt.Println("#   etc.")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}
