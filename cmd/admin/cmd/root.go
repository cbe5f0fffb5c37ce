package cmd

import (
	"github.com/spf13/cobra"
)

var version string

// rootCmd is the base command for the configurator operator CLI.
var rootCmd = &cobra.Command{
	Use:   "configurator-admin",
	Short: "Operator tooling for the welding equipment configurator",
	Long: `configurator-admin supports the operations around a running
configurator deployment that don't belong on the conversational API:

  - validating an Applicability Table YAML file before rollout
  - dumping an archived session's final cart for support
  - re-rendering an archived session's finalization summary read-only
`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(validateTableCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(versionCmd)
}

// SetVersion records the build version shown by the version subcommand.
func SetVersion(v string) {
	version = v
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("configurator-admin version " + version)
	},
}
