// Package priority orders tasks deterministically before scheduling.
package priority

import (
	"sort"
	"time"

	"github.com/harrisonrobin/taskplan/pkg/model"
)

// Prioritize returns a new slice ordered by due date ascending, then priority
// descending; equal keys keep their input order. A task whose dueDate does not
// parse fails the whole call with *model.MalformedTaskError. The input slice is
// not modified.
func Prioritize(tasks []model.Task) ([]model.Task, error) {
	type keyed struct {
		task model.Task
		due  time.Time
		rank int
	}
	items := make([]keyed, len(tasks))
	for i, t := range tasks {
		due, err := t.Due()
		if err != nil {
			return nil, err
		}
		items[i] = keyed{task: t, due: due, rank: model.ParsePriority(string(t.Priority)).Rank()}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].due.Equal(items[j].due) {
			return items[i].due.Before(items[j].due)
		}
		return items[i].rank > items[j].rank
	})

	out := make([]model.Task, len(items))
	for i, it := range items {
		out[i] = it.task
	}
	return out, nil
}
