package ledger

import (
	"fmt"
	"slices"
	"strings"
)

func indexReward(rewards []Reward, id string) int {
	return slices.IndexFunc(rewards, func(r Reward) bool { return r.ID == id })
}

func (s *Store) AddReward(in RewardInput) (Reward, error) {
	if err := in.Validate(); err != nil {
		return Reward{}, err
	}
	var out Reward
	err := s.mutate(func(st *State) error {
		out = Reward{
			ID:          s.newID(),
			Category:    strings.TrimSpace(in.Category),
			Name:        strings.TrimSpace(in.Name),
			Cost:        in.Cost,
			Description: strings.TrimSpace(in.Description),
		}
		st.Rewards = append(st.Rewards, out)
		return nil
	})
	if err != nil {
		return Reward{}, err
	}
	s.log.Info("reward added", "id", out.ID, "name", out.Name, "cost", out.Cost)
	return out, nil
}

func (s *Store) UpdateReward(id string, patch RewardPatch) (Reward, error) {
	var out Reward
	err := s.mutate(func(st *State) error {
		i := indexReward(st.Rewards, id)
		if i < 0 {
			return fmt.Errorf("reward %s: %w", id, ErrNotFound)
		}
		r, err := patch.apply(st.Rewards[i])
		if err != nil {
			return err
		}
		st.Rewards[i] = r
		out = r
		return nil
	})
	if err != nil {
		return Reward{}, err
	}
	s.log.Info("reward updated", "id", id)
	return out, nil
}

func (s *Store) DeleteReward(id string) error {
	err := s.mutate(func(st *State) error {
		i := indexReward(st.Rewards, id)
		if i < 0 {
			return fmt.Errorf("reward %s: %w", id, ErrNotFound)
		}
		st.Rewards = slices.Delete(st.Rewards, i, i+1)
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("reward deleted", "id", id)
	return nil
}

// RedeemReward spends the reward's cost. The balance check and the debit happen
// under the same lock, so concurrent redemptions cannot overdraw.
func (s *Store) RedeemReward(id string) (HistoryEntry, error) {
	var entry HistoryEntry
	err := s.mutate(func(st *State) error {
		i := indexReward(st.Rewards, id)
		if i < 0 {
			return fmt.Errorf("reward %s: %w", id, ErrNotFound)
		}
		r := st.Rewards[i]
		if st.Points < r.Cost {
			return &InsufficientBalanceError{Reward: r.Name, Balance: st.Points, Cost: r.Cost}
		}
		entry = HistoryEntry{
			ID:         s.newID(),
			Type:       EntryReward,
			RewardID:   r.ID,
			RewardName: r.Name,
			Cost:       r.Cost,
			Date:       s.timestamp(),
		}
		st.History = append(st.History, entry)
		st.Points -= r.Cost
		return nil
	})
	if err != nil {
		return HistoryEntry{}, err
	}
	s.log.Info("reward redeemed", "id", id, "cost", entry.Cost)
	return entry, nil
}

// RewardFilter selects rewards. Availability compares cost with the balance at
// the time of the call.
type RewardFilter struct {
	Availability Availability
	Category     string
}

type Availability string

const (
	AvailabilityAll         Availability = ""
	AvailabilityAvailable   Availability = "available"
	AvailabilityUnavailable Availability = "unavailable"
)

// ParseRewardFilter maps the user-facing filter names: all, available,
// unavailable, or anything else as a category.
func ParseRewardFilter(s string) RewardFilter {
	switch v := strings.TrimSpace(s); strings.ToLower(v) {
	case "", "all":
		return RewardFilter{}
	case string(AvailabilityAvailable):
		return RewardFilter{Availability: AvailabilityAvailable}
	case string(AvailabilityUnavailable):
		return RewardFilter{Availability: AvailabilityUnavailable}
	default:
		return RewardFilter{Category: v}
	}
}

func (f RewardFilter) match(r Reward, points int) bool {
	switch f.Availability {
	case AvailabilityAvailable:
		if r.Cost > points {
			return false
		}
	case AvailabilityUnavailable:
		if r.Cost <= points {
			return false
		}
	}
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	return true
}

func (s *Store) Rewards(f RewardFilter) []Reward {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reward, 0, len(s.state.Rewards))
	for _, r := range s.state.Rewards {
		if f.match(r, s.state.Points) {
			out = append(out, r)
		}
	}
	return out
}

// RewardCategories returns the distinct reward categories in first-seen order.
func (s *Store) RewardCategories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, r := range s.state.Rewards {
		if !slices.Contains(out, r.Category) {
			out = append(out, r.Category)
		}
	}
	return out
}
