package commands

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/tecpap/lineplan/config"
	"github.com/tecpap/lineplan/errors"
)

// ConfigCmd manages the lineplan configuration
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage lineplan configuration",
	Long: `Manage the TOML configuration. Files merge in precedence order
/etc/lineplan < ~/.lineplan < project lineplan.toml < LINEPLAN_* env.

Examples:
  lineplan config init                     # Write ~/.lineplan/lineplan.toml
  lineplan config init --path lineplan.toml
  lineplan config show                     # Print the effective configuration`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long:  "Write a lineplan.toml with every value at its default. An existing file is rotated to .back1 first.",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  "Print the merged configuration as TOML, after defaults, config files, and environment overrides.",
	RunE:  runConfigShow,
}

var configInitPath string

func init() {
	ConfigCmd.AddCommand(configInitCmd)
	ConfigCmd.AddCommand(configShowCmd)
	configInitCmd.Flags().StringVar(&configInitPath, "path", "", "Where to write the file (default: user config)")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configInitPath
	if path == "" {
		path = config.UserConfigPath()
	}
	if path == "" {
		return errors.New("cannot determine the user config path: pass --path")
	}

	if _, err := os.Stat(path); err == nil {
		pterm.Info.Printf("Rotating existing %s to %s.back1\n", path, path)
	}

	if err := config.WriteDefault(path); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}

	pterm.Success.Printf("Default configuration written to %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		pterm.Warning.Printf("Configuration is invalid: %v\n", err)
	}

	data, err := config.AsTOML(cfg)
	if err != nil {
		return err
	}

	if path := config.FindConfigPath(); path != "" {
		fmt.Printf("# merged from %s (plus defaults and LINEPLAN_* env)\n", path)
	} else {
		fmt.Println("# no config file found: defaults and LINEPLAN_* env only")
	}
	fmt.Print(string(data))
	return nil
}
