package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// snapshotDoc is the export/import wire format.
type snapshotDoc struct {
	Tasks      []Task         `json:"tasks"`
	Rewards    []Reward       `json:"rewards"`
	Points     int            `json:"points"`
	History    []HistoryEntry `json:"history"`
	Currency   string         `json:"currency"`
	ExportDate *time.Time     `json:"exportDate,omitempty"`
}

// ExportSnapshot serialises the whole ledger as indented JSON.
func (s *Store) ExportSnapshot() ([]byte, error) {
	s.mu.Lock()
	st := copyState(s.state)
	s.mu.Unlock()

	exported := s.timestamp()
	doc := snapshotDoc{
		Tasks:      st.Tasks,
		Rewards:    st.Rewards,
		Points:     st.Points,
		History:    st.History,
		Currency:   st.Currency,
		ExportDate: &exported,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// ImportSnapshot replaces tasks, rewards, points and history with the contents
// of data. Missing collections become empty and a missing balance becomes 0; a
// missing or blank currency keeps the current label. The balance is taken as
// given even when it disagrees with the history. On any error the state is
// unchanged.
func (s *Store) ImportSnapshot(data []byte) error {
	st, err := parseSnapshot(data)
	if err != nil {
		return err
	}
	err = s.mutate(func(cur *State) error {
		if st.Currency == "" {
			st.Currency = cur.Currency
		}
		*cur = st
		return nil
	})
	if err != nil {
		return err
	}
	if hb := HistoryBalance(st.History); hb != st.Points {
		s.log.Warn("imported balance does not match history", "points", st.Points, "history_balance", hb)
	}
	s.log.Info("snapshot imported",
		"tasks", len(st.Tasks), "rewards", len(st.Rewards),
		"history", len(st.History), "points", st.Points)
	return nil
}

func parseSnapshot(data []byte) (State, error) {
	var doc *snapshotDoc
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if doc == nil {
		return State{}, fmt.Errorf("%w: snapshot is null", ErrMalformedInput)
	}

	st := State{
		Tasks:    nonNil(doc.Tasks),
		Rewards:  nonNil(doc.Rewards),
		Points:   doc.Points,
		History:  nonNil(doc.History),
		Currency: strings.TrimSpace(doc.Currency),
	}
	for i, t := range st.Tasks {
		if t.Frequency == "" {
			st.Tasks[i].Frequency = FrequencyDaily
		} else if !t.Frequency.IsValid() {
			return State{}, fmt.Errorf("%w: task %q has unknown frequency %q", ErrMalformedInput, t.Name, t.Frequency)
		}
		if t.Points < 0 {
			return State{}, fmt.Errorf("%w: task %q has negative points", ErrMalformedInput, t.Name)
		}
	}
	for _, r := range st.Rewards {
		if r.Cost < 0 {
			return State{}, fmt.Errorf("%w: reward %q has negative cost", ErrMalformedInput, r.Name)
		}
	}
	for _, h := range st.History {
		if h.Type != EntryTask && h.Type != EntryReward {
			return State{}, fmt.Errorf("%w: history entry %q has unknown type %q", ErrMalformedInput, h.ID, h.Type)
		}
	}
	if st.Points < 0 {
		return State{}, fmt.Errorf("%w: negative balance %d", ErrMalformedInput, st.Points)
	}
	return st, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Reset clears every collection, zeroes the balance and restores the default
// currency label.
func (s *Store) Reset() error {
	err := s.mutate(func(st *State) error {
		*st = State{
			Tasks:    []Task{},
			Rewards:  []Reward{},
			History:  []HistoryEntry{},
			Currency: s.defaultCurrency,
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("ledger reset")
	return nil
}

// SetCurrency changes the display label of the point unit.
func (s *Store) SetCurrency(label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return fmt.Errorf("%w: currency label is required", ErrInvalidInput)
	}
	err := s.mutate(func(st *State) error {
		st.Currency = label
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("currency changed", "currency", label)
	return nil
}
