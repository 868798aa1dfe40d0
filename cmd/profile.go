package cmd

import (
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update the goals used as scheduling context.",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the profile as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.profiles.Get(cmd.Context())
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), p)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update profile fields. Fields not given keep their current value.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.profiles.Get(cmd.Context())
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		for name, field := range map[string]*string{
			"username": &p.Username,
			"about":    &p.About,
			"short":    &p.ShortTermGoals,
			"medium":   &p.MediumTermGoals,
			"long":     &p.LongTermGoals,
		} {
			if flags.Changed(name) {
				v, _ := flags.GetString(name)
				*field = v
			}
		}

		saved, err := a.profiles.Put(cmd.Context(), p)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), saved)
	},
}

func init() {
	profileSetCmd.Flags().String("username", "", "display name")
	profileSetCmd.Flags().String("about", "", "a few words about you")
	profileSetCmd.Flags().String("short", "", "short term goals")
	profileSetCmd.Flags().String("medium", "", "medium term goals")
	profileSetCmd.Flags().String("long", "", "long term goals")

	profileCmd.AddCommand(profileShowCmd, profileSetCmd)
	rootCmd.AddCommand(profileCmd)
}
