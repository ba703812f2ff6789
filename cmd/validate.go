package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vpittamp/i3pm-daemon/internal/configstore"
	"github.com/vpittamp/i3pm-daemon/internal/recovery"
	"github.com/vpittamp/i3pm-daemon/internal/settings"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the recovery controller's consistency pass without starting the daemon",
	Long: `Run the same config-directory and data-directory consistency pass the
daemon runs at startup, with no WM connection and no window index rebuild,
and print the result as JSON. Exits 0 when healthy, 1 when only warnings
were found, and 2 when errors were found.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, _ []string) error {
	s, err := settings.Load(newViper(), cfgFile)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	store := configstore.New(s.ConfigDir, s.DataDir)
	result := recovery.ValidateAll(context.Background(), recovery.Deps{Store: store})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	os.Exit(result.ExitCode())
	return nil
}
