package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/harrisonrobin/taskplan/pkg/model"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	priorityColors = map[model.Priority]lipgloss.Color{
		model.PriorityHigh:   lipgloss.Color("160"),
		model.PriorityMedium: lipgloss.Color("214"),
		model.PriorityLow:    lipgloss.Color("34"),
	}
)

func priorityStyle(p model.Priority) lipgloss.Style {
	if c, ok := priorityColors[model.ParsePriority(string(p))]; ok {
		return cellStyle.Foreground(c)
	}
	return cellStyle
}

// renderTable draws list with the given columns. The priority column, if
// present, is colored per tier.
func renderTable(w io.Writer, headers []string, list []model.Task, row func(model.Task) []string, priorityCol int) {
	if len(list) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No tasks."))
		return
	}
	rows := make([][]string, 0, len(list))
	for _, t := range list {
		rows = append(rows, row(t))
	}
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(r, c int) lipgloss.Style {
			if r == table.HeaderRow {
				return headerStyle
			}
			if c == priorityCol && r >= 0 && r < len(list) {
				return priorityStyle(list[r].Priority)
			}
			return cellStyle
		})
	fmt.Fprintln(w, tbl)
}

func writeTaskTable(w io.Writer, list []model.Task) {
	renderTable(w, []string{"ID", "NAME", "DUE", "PRIORITY", "ESTIMATE", "SCHEDULED"}, list, func(t model.Task) []string {
		scheduled := ""
		if t.ScheduledDate != "" {
			scheduled = t.ScheduledDate + " " + t.TimeSlot
		}
		return []string{t.ID, t.Name, t.DueDate, string(t.Priority), t.EstimatedTime, scheduled}
	}, 3)
}

func writeTodayTable(w io.Writer, list []model.Task) {
	renderTable(w, []string{"TIME", "NAME", "PRIORITY", "DUE"}, list, func(t model.Task) []string {
		return []string{t.TimeSlot, t.Name, string(t.Priority), t.DueDate}
	}, 2)
}
