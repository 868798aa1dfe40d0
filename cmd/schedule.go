package cmd

import (
	"fmt"
	"time"

	"github.com/harrisonrobin/taskplan/pkg/freetime"
	"github.com/harrisonrobin/taskplan/pkg/reasoning"
	"github.com/harrisonrobin/taskplan/pkg/reconcile"
	"github.com/harrisonrobin/taskplan/pkg/request"
	"github.com/harrisonrobin/taskplan/pkg/scheduler"
	"github.com/harrisonrobin/taskplan/pkg/tasks"
	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Reschedule all tasks into free calendar time.",
	Long: `schedule deletes the bookings of the previous run, computes free time on
every visible calendar, and asks the language model for a new plan. Entries of
the plan that do not fit are skipped and logged.

Runs are not coordinated with each other; do not start two at once. If the
target calendar cannot be reached before the run starts, nothing is changed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		if a.cfg.PrimaryEmail == "" {
			a.log.Warn().Msg("primary_email is not set, every calendar event counts as busy")
		}
		client, calendarID, err := a.calendar(ctx)
		if err != nil {
			return err
		}
		gen, err := reasoning.NewOpenAIGenerator(ctx, a.cfg.LLM)
		if err != nil {
			return err
		}

		s := scheduler.New(scheduler.Deps{
			Tasks:      a.tasks,
			Calendar:   client,
			CalendarID: calendarID,
			FreeBusy: freetime.NewCalculator(client, freetime.Options{
				PrimaryEmail: a.cfg.PrimaryEmail,
				Location:     a.loc,
				Blackout:     freetime.Blackout{StartHour: a.cfg.Blackout.StartHour, EndHour: a.cfg.Blackout.EndHour},
				Slot:         time.Duration(a.cfg.SlotMinutes) * time.Minute,
			}, a.log),
			Profiles: a.profiles,
			Builder:  request.NewBuilder(a.loc, a.log),
			Planner:  reasoning.NewAdapter(gen, a.cfg.LLM.MaxOutputTokens, a.log),
			Applier:  reconcile.New(a.tasks, client, calendarID, a.log),
			Horizon:  a.cfg.Horizon(),
		}, a.log)

		out, err := s.RescheduleAll(ctx)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Booked %d task(s)", len(out.Booked))
		if out.Skipped > 0 {
			fmt.Fprintf(w, ", skipped %d plan entries (see log)", out.Skipped)
		}
		fmt.Fprintln(w)
		for _, b := range out.Booked {
			fmt.Fprintf(w, "  %s %s  %s\n", b.Start.In(a.loc).Format("Mon 2006-01-02"), b.TimeSlot, b.Task.Name)
		}
		if out.Summary != "" {
			fmt.Fprintf(w, "\nToday: %s\n", out.Summary)
		}
		if out.Reasoning != "" {
			fmt.Fprintf(w, "\n%s\n", mutedStyle.Render(out.Reasoning))
		}
		return nil
	},
}

var todayJSON bool

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "List tasks scheduled for today.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		date, list, err := tasks.NewService(a.tasks, nil, "", a.loc, a.log).Today(cmd.Context())
		if err != nil {
			return err
		}
		if todayJSON {
			return writeJSON(cmd.OutOrStdout(), map[string]any{"date": date, "tasks": list})
		}
		fmt.Fprintln(cmd.OutOrStdout(), headerStyle.Render(date))
		writeTodayTable(cmd.OutOrStdout(), list)
		return nil
	},
}

func init() {
	todayCmd.Flags().BoolVar(&todayJSON, "json", false, "print JSON")
	rootCmd.AddCommand(scheduleCmd, todayCmd)
}
