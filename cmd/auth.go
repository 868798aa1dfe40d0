package cmd

import (
	"fmt"

	"github.com/harrisonrobin/taskplan/pkg/auth"
	"github.com/harrisonrobin/taskplan/pkg/config"
	"github.com/harrisonrobin/taskplan/pkg/logging"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize access to Google Calendar, replacing any saved token.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		log := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
		if err := auth.Reauthenticate(cmd.Context(), log); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Authentication successful! Token saved to %s\n", auth.TokenFile)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Change persistent settings.",
}

var setCalendarCmd = &cobra.Command{
	Use:   "set-calendar <name>",
	Short: "Set the calendar that bookings are written to.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetCalendar(cfgFile, args[0]); err != nil {
			return fmt.Errorf("error saving config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Default calendar set to: %s\n", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(setCalendarCmd)
	rootCmd.AddCommand(authCmd, configCmd)
}
