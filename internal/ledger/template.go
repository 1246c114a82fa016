package ledger

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed template.yaml
var builtinTemplate string

// Catalogue is a preset set of tasks and rewards.
type Catalogue struct {
	Tasks   []Task   `yaml:"tasks"`
	Rewards []Reward `yaml:"rewards"`
}

var loadBuiltin = sync.OnceValues(func() (Catalogue, error) {
	return LoadCatalogue(strings.NewReader(builtinTemplate))
})

// BuiltinCatalogue returns a copy of the embedded study catalogue.
func BuiltinCatalogue() Catalogue {
	c, err := loadBuiltin()
	if err != nil {
		panic(fmt.Sprintf("ledger: builtin catalogue: %v", err))
	}
	return Catalogue{Tasks: slices.Clone(c.Tasks), Rewards: slices.Clone(c.Rewards)}
}

// LoadCatalogue reads a YAML catalogue and validates every item. Items without
// an id are given one on import.
func LoadCatalogue(r io.Reader) (Catalogue, error) {
	var c Catalogue
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return Catalogue{}, fmt.Errorf("%w: catalogue is empty", ErrMalformedInput)
		}
		return Catalogue{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	for i, t := range c.Tasks {
		in := TaskInput{Category: t.Category, Name: t.Name, Points: t.Points, Frequency: t.Frequency}
		if err := in.Validate(); err != nil {
			return Catalogue{}, fmt.Errorf("%w: task %d: %v", ErrMalformedInput, i+1, err)
		}
		if t.Frequency == "" {
			c.Tasks[i].Frequency = FrequencyDaily
		}
	}
	for i, r := range c.Rewards {
		in := RewardInput{Category: r.Category, Name: r.Name, Cost: r.Cost}
		if err := in.Validate(); err != nil {
			return Catalogue{}, fmt.Errorf("%w: reward %d: %v", ErrMalformedInput, i+1, err)
		}
	}
	c.Tasks = nonNil(c.Tasks)
	c.Rewards = nonNil(c.Rewards)
	return c, nil
}

// ImportTemplate replaces tasks and rewards with the built-in catalogue. The
// balance, history and currency are not touched.
func (s *Store) ImportTemplate() error {
	return s.ImportCatalogue(BuiltinCatalogue())
}

// ImportCatalogue replaces tasks and rewards with c.
func (s *Store) ImportCatalogue(c Catalogue) error {
	tasks := slices.Clone(nonNil(c.Tasks))
	rewards := slices.Clone(nonNil(c.Rewards))
	for i := range tasks {
		if tasks[i].ID == "" {
			tasks[i].ID = s.newID()
		}
		if tasks[i].Frequency == "" {
			tasks[i].Frequency = FrequencyDaily
		}
	}
	for i := range rewards {
		if rewards[i].ID == "" {
			rewards[i].ID = s.newID()
		}
	}
	err := s.mutate(func(st *State) error {
		st.Tasks = tasks
		st.Rewards = rewards
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("catalogue imported", "tasks", len(tasks), "rewards", len(rewards))
	return nil
}
