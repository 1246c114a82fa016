package ledger

import (
	"fmt"
	"slices"
	"strings"
)

func indexTask(tasks []Task, id string) int {
	return slices.IndexFunc(tasks, func(t Task) bool { return t.ID == id })
}

// AddTask appends a new task. A blank frequency means daily.
func (s *Store) AddTask(in TaskInput) (Task, error) {
	if err := in.Validate(); err != nil {
		return Task{}, err
	}
	if in.Frequency == "" {
		in.Frequency = FrequencyDaily
	}
	var out Task
	err := s.mutate(func(st *State) error {
		out = Task{
			ID:          s.newID(),
			Category:    strings.TrimSpace(in.Category),
			Name:        strings.TrimSpace(in.Name),
			Points:      in.Points,
			Description: strings.TrimSpace(in.Description),
			Frequency:   in.Frequency,
		}
		st.Tasks = append(st.Tasks, out)
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	s.log.Info("task added", "id", out.ID, "name", out.Name, "points", out.Points)
	return out, nil
}

// UpdateTask merges patch into the task with id.
func (s *Store) UpdateTask(id string, patch TaskPatch) (Task, error) {
	var out Task
	err := s.mutate(func(st *State) error {
		i := indexTask(st.Tasks, id)
		if i < 0 {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		t, err := patch.apply(st.Tasks[i])
		if err != nil {
			return err
		}
		st.Tasks[i] = t
		out = t
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	s.log.Info("task updated", "id", id)
	return out, nil
}

// DeleteTask removes the task with id. History entries that reference it are kept.
func (s *Store) DeleteTask(id string) error {
	err := s.mutate(func(st *State) error {
		i := indexTask(st.Tasks, id)
		if i < 0 {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		st.Tasks = slices.Delete(st.Tasks, i, i+1)
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("task deleted", "id", id)
	return nil
}

// CompleteTask records a completion of the task with id and credits its points.
// A task may be completed any number of times.
func (s *Store) CompleteTask(id string) (HistoryEntry, error) {
	var entry HistoryEntry
	err := s.mutate(func(st *State) error {
		i := indexTask(st.Tasks, id)
		if i < 0 {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		t := st.Tasks[i]
		entry = HistoryEntry{
			ID:       s.newID(),
			Type:     EntryTask,
			TaskID:   t.ID,
			TaskName: t.Name,
			Points:   t.Points,
			Date:     s.timestamp(),
		}
		st.History = append(st.History, entry)
		st.Points += t.Points
		return nil
	})
	if err != nil {
		return HistoryEntry{}, err
	}
	s.log.Info("task completed", "id", id, "points", entry.Points)
	return entry, nil
}

// TaskFilter selects tasks by frequency and category. Zero values match all.
type TaskFilter struct {
	Frequency Frequency
	Category  string
}

func (f TaskFilter) match(t Task) bool {
	if f.Frequency != "" && t.Frequency != f.Frequency {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	return true
}

// Tasks returns the tasks matching f in insertion order.
func (s *Store) Tasks(f TaskFilter) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.state.Tasks))
	for _, t := range s.state.Tasks {
		if f.match(t) {
			out = append(out, t)
		}
	}
	return out
}

// TaskCategories returns the distinct task categories in first-seen order.
func (s *Store) TaskCategories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, t := range s.state.Tasks {
		if !slices.Contains(out, t.Category) {
			out = append(out, t.Category)
		}
	}
	return out
}
