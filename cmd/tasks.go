package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/harrisonrobin/taskplan/pkg/model"
	"github.com/harrisonrobin/taskplan/pkg/tasks"
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage tasks.",
}

var (
	addName        string
	addDue         string
	addPriority    string
	addEstimate    string
	addDescription string
	listJSON       bool
)

// taskService builds the service. Calendar access is optional: without it,
// deleting a booked task leaves the event in place.
func taskService(cmd *cobra.Command, a *app, needCalendar bool) *tasks.Service {
	if !needCalendar {
		return tasks.NewService(a.tasks, nil, "", a.loc, a.log)
	}
	client, calendarID, err := a.calendar(cmd.Context())
	if err != nil {
		a.log.Warn().Err(err).Msg("calendar unavailable")
		return tasks.NewService(a.tasks, nil, "", a.loc, a.log)
	}
	return tasks.NewService(a.tasks, client, calendarID, a.loc, a.log)
}

var tasksAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a task.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		t, err := taskService(cmd, a, false).Add(cmd.Context(), model.Task{
			Name:          addName,
			DueDate:       addDue,
			Priority:      model.Priority(addPriority),
			EstimatedTime: addEstimate,
			Description:   addDescription,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.ID)
		return nil
	},
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tasks.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := taskService(cmd, a, false).List(cmd.Context())
		if err != nil {
			return err
		}
		if listJSON {
			return writeJSON(cmd.OutOrStdout(), list)
		}
		writeTaskTable(cmd.OutOrStdout(), list)
		return nil
	},
}

var tasksDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task and its calendar booking.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := taskService(cmd, a, true).Delete(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("delete task %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Task %s deleted\n", args[0])
		return nil
	},
}

var tasksImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import tasks from a JSON array or a stream of JSON objects on stdin.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := taskService(cmd, a, false).Import(cmd.Context(), os.Stdin)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d tasks, skipped %d\n", len(res.Created), res.Skipped)
		return nil
	},
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	tasksAddCmd.Flags().StringVarP(&addName, "name", "n", "", "task name")
	tasksAddCmd.Flags().StringVarP(&addDue, "due", "d", "", "due date (YYYY-MM-DD)")
	tasksAddCmd.Flags().StringVarP(&addPriority, "priority", "p", string(model.PriorityMedium), "High, Medium or Low")
	tasksAddCmd.Flags().StringVarP(&addEstimate, "estimate", "e", "", "estimated time (\"1.5\", \"90m\" or \"PT1H30M\")")
	tasksAddCmd.Flags().StringVar(&addDescription, "description", "", "notes")
	_ = tasksAddCmd.MarkFlagRequired("name")
	_ = tasksAddCmd.MarkFlagRequired("due")

	tasksListCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON")

	tasksCmd.AddCommand(tasksAddCmd, tasksListCmd, tasksDeleteCmd, tasksImportCmd)
	rootCmd.AddCommand(tasksCmd)
}
