package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultCurrency is the display label used when none is configured.
const DefaultCurrency = "学习币"

type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyAsNeeded Frequency = "as_needed"
)

func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyAsNeeded:
		return true
	}
	return false
}

// ParseFrequency accepts the canonical names plus "as-needed"; blank means daily.
func ParseFrequency(s string) (Frequency, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FrequencyDaily, nil
	}
	f := Frequency(strings.ReplaceAll(s, "-", "_"))
	if !f.IsValid() {
		return "", fmt.Errorf("%w: unknown frequency %q (use daily, weekly, as_needed)", ErrInvalidInput, s)
	}
	return f, nil
}

type Task struct {
	ID          string    `json:"id" yaml:"id"`
	Category    string    `json:"category" yaml:"category"`
	Name        string    `json:"name" yaml:"name"`
	Points      int       `json:"points" yaml:"points"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Frequency   Frequency `json:"frequency" yaml:"frequency"`
}

type Reward struct {
	ID          string `json:"id" yaml:"id"`
	Category    string `json:"category" yaml:"category"`
	Name        string `json:"name" yaml:"name"`
	Cost        int    `json:"cost" yaml:"cost"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type EntryType string

const (
	EntryTask   EntryType = "task"
	EntryReward EntryType = "reward"
)

// HistoryEntry records one point-affecting event. Names and amounts are copied
// from the task or reward at the time of the event, so entries stay valid after
// the item is edited or deleted.
type HistoryEntry struct {
	ID         string    `json:"id"`
	Type       EntryType `json:"type"`
	TaskID     string    `json:"taskId,omitempty"`
	TaskName   string    `json:"taskName,omitempty"`
	Points     int       `json:"points,omitempty"`
	RewardID   string    `json:"rewardId,omitempty"`
	RewardName string    `json:"rewardName,omitempty"`
	Cost       int       `json:"cost,omitempty"`
	Date       time.Time `json:"date"`
}

type taskEntryJSON struct {
	ID       string    `json:"id"`
	Type     EntryType `json:"type"`
	TaskID   string    `json:"taskId"`
	TaskName string    `json:"taskName"`
	Points   int       `json:"points"`
	Date     time.Time `json:"date"`
}

type rewardEntryJSON struct {
	ID         string    `json:"id"`
	Type       EntryType `json:"type"`
	RewardID   string    `json:"rewardId"`
	RewardName string    `json:"rewardName"`
	Cost       int       `json:"cost"`
	Date       time.Time `json:"date"`
}

// MarshalJSON writes only the fields of the entry's variant, amounts included
// when zero.
func (h HistoryEntry) MarshalJSON() ([]byte, error) {
	switch h.Type {
	case EntryTask:
		return json.Marshal(taskEntryJSON{ID: h.ID, Type: h.Type, TaskID: h.TaskID, TaskName: h.TaskName, Points: h.Points, Date: h.Date})
	case EntryReward:
		return json.Marshal(rewardEntryJSON{ID: h.ID, Type: h.Type, RewardID: h.RewardID, RewardName: h.RewardName, Cost: h.Cost, Date: h.Date})
	}
	type plain HistoryEntry
	return json.Marshal(plain(h))
}

// Delta is the entry's effect on the balance.
func (h HistoryEntry) Delta() int {
	switch h.Type {
	case EntryTask:
		return h.Points
	case EntryReward:
		return -h.Cost
	}
	return 0
}

// Label returns the denormalized name of the task or reward.
func (h HistoryEntry) Label() string {
	if h.Type == EntryReward {
		return h.RewardName
	}
	return h.TaskName
}

// State is a point-in-time copy of everything the store owns.
type State struct {
	Tasks    []Task
	Rewards  []Reward
	Points   int
	History  []HistoryEntry
	Currency string
}

// HistoryBalance sums the balance implied by history.
func HistoryBalance(history []HistoryEntry) int {
	total := 0
	for _, h := range history {
		total += h.Delta()
	}
	return total
}

type TaskInput struct {
	Category    string
	Name        string
	Points      int
	Description string
	Frequency   Frequency
}

func (in TaskInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: task name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Category) == "" {
		return fmt.Errorf("%w: task category is required", ErrInvalidInput)
	}
	if in.Points < 0 {
		return fmt.Errorf("%w: task points must not be negative", ErrInvalidInput)
	}
	if in.Frequency != "" && !in.Frequency.IsValid() {
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidInput, in.Frequency)
	}
	return nil
}

// TaskPatch holds the fields to change; nil fields are left as they are.
type TaskPatch struct {
	Category    *string
	Name        *string
	Points      *int
	Description *string
	Frequency   *Frequency
}

func (p TaskPatch) apply(t Task) (Task, error) {
	if p.Category != nil {
		t.Category = strings.TrimSpace(*p.Category)
	}
	if p.Name != nil {
		t.Name = strings.TrimSpace(*p.Name)
	}
	if p.Points != nil {
		t.Points = *p.Points
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Frequency != nil {
		t.Frequency = *p.Frequency
	}
	in := TaskInput{Category: t.Category, Name: t.Name, Points: t.Points, Frequency: t.Frequency}
	if err := in.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

type RewardInput struct {
	Category    string
	Name        string
	Cost        int
	Description string
}

func (in RewardInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: reward name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Category) == "" {
		return fmt.Errorf("%w: reward category is required", ErrInvalidInput)
	}
	if in.Cost < 0 {
		return fmt.Errorf("%w: reward cost must not be negative", ErrInvalidInput)
	}
	return nil
}

type RewardPatch struct {
	Category    *string
	Name        *string
	Cost        *int
	Description *string
}

func (p RewardPatch) apply(r Reward) (Reward, error) {
	if p.Category != nil {
		r.Category = strings.TrimSpace(*p.Category)
	}
	if p.Name != nil {
		r.Name = strings.TrimSpace(*p.Name)
	}
	if p.Cost != nil {
		r.Cost = *p.Cost
	}
	if p.Description != nil {
		r.Description = strings.TrimSpace(*p.Description)
	}
	in := RewardInput{Category: r.Category, Name: r.Name, Cost: r.Cost}
	if err := in.Validate(); err != nil {
		return Reward{}, err
	}
	return r, nil
}
