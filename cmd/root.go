package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "i3pm-daemon",
	Short: "Project-scoped window manager daemon for i3/Sway",
	Long: `i3pm-daemon tracks windows across i3/Sway workspaces and scopes them to
a notion of "project": switching the active project hides every window
that doesn't belong to it, launches new windows into the right
workspace, and exposes a JSON-RPC control plane over a Unix socket for
editors, scripts, and shells to drive it.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/i3pm-daemon/daemon.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"enable debug logging (also: I3PM_DEBUG=1)")
}

// newViper returns a fresh viper instance for one subcommand's config load,
// so repeated Execute() calls in tests don't leak bindings between runs.
func newViper() *viper.Viper {
	return viper.New()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
