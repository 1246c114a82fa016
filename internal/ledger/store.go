// Package ledger holds the study ledger: tasks, rewards, the point balance,
// the currency label and the append-only history that explains the balance.
//
// A Store applies every operation to its in-memory state under one mutex and
// then hands the new state to a background persister. Callers observe the
// change immediately; Flush waits until it has reached the backend.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"studyledger/internal/storage"
)

// Backend keys.
const (
	KeyTasks    = "tasks"
	KeyRewards  = "rewards"
	KeyPoints   = "points"
	KeyHistory  = "history"
	KeyCurrency = "currency"
)

const persistTimeout = 30 * time.Second

type Store struct {
	backend         storage.Backend
	log             *slog.Logger
	now             func() time.Time
	newID           func() string
	defaultCurrency string

	mu          sync.Mutex
	state       State
	closed      bool
	version     uint64
	persisted   uint64
	persistErr  error
	persistedCh chan struct{}

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock replaces time.Now for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the UUIDv7 generator used for new ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithDefaultCurrency sets the label used when none is stored and after Reset.
func WithDefaultCurrency(label string) Option {
	return func(s *Store) {
		if l := strings.TrimSpace(label); l != "" {
			s.defaultCurrency = l
		}
	}
}

// Open loads the ledger from backend and starts the persister. Keys that are
// missing or cannot be decoded fall back to their defaults. The store does not
// take ownership of backend.
func Open(ctx context.Context, backend storage.Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend:         backend,
		log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:             time.Now,
		newID:           newUUID,
		defaultCurrency: DefaultCurrency,
		persistedCh:     make(chan struct{}),
		wake:            make(chan struct{}, 1),
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.state = st

	go s.persistLoop()
	return s, nil
}

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (s *Store) load(ctx context.Context) (State, error) {
	st := State{
		Tasks:    []Task{},
		Rewards:  []Reward{},
		History:  []HistoryEntry{},
		Currency: s.defaultCurrency,
	}

	get := func(key string) (string, bool) {
		v, ok, err := s.backend.Get(ctx, key)
		if err != nil {
			s.log.Warn("load key failed, using default", "key", key, "err", err)
			return "", false
		}
		return v, ok
	}
	decode := func(key string, dst any) {
		raw, ok := get(key)
		if !ok {
			return
		}
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			s.log.Warn("decode key failed, using default", "key", key, "err", err)
		}
	}

	var tasks []Task
	decode(KeyTasks, &tasks)
	var rewards []Reward
	decode(KeyRewards, &rewards)
	var history []HistoryEntry
	decode(KeyHistory, &history)

	if raw, ok := get(KeyPoints); ok {
		if p, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			st.Points = p
		} else {
			s.log.Warn("decode key failed, using default", "key", KeyPoints, "err", err)
		}
	}
	if raw, ok := get(KeyCurrency); ok && strings.TrimSpace(raw) != "" {
		st.Currency = raw
	}
	if err := ctx.Err(); err != nil {
		return State{}, err
	}

	if tasks != nil {
		st.Tasks = normalizeTasks(tasks)
	}
	if rewards != nil {
		st.Rewards = rewards
	}
	if history != nil {
		st.History = history
	}
	if hb := HistoryBalance(st.History); hb != st.Points {
		s.log.Warn("stored balance does not match history", "points", st.Points, "history_balance", hb)
	}

	s.log.Debug("ledger loaded",
		"tasks", len(st.Tasks), "rewards", len(st.Rewards),
		"history", len(st.History), "points", st.Points)
	return st, nil
}

func normalizeTasks(tasks []Task) []Task {
	for i := range tasks {
		if tasks[i].Frequency == "" {
			tasks[i].Frequency = FrequencyDaily
		}
	}
	return tasks
}

// mutate runs fn against the live state under the lock and schedules a
// persist when fn succeeds. fn must leave the state untouched on error.
func (s *Store) mutate(fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := fn(&s.state); err != nil {
		return err
	}
	s.version++
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *Store) persistLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.wake:
			s.persistOnce()
		case <-s.stop:
			s.persistOnce()
			return
		}
	}
}

// persistOnce writes the latest state if anything changed since the last pass.
// Intermediate versions are coalesced; the written state always includes every
// mutation up to the version recorded.
func (s *Store) persistOnce() {
	s.mu.Lock()
	if s.persisted >= s.version {
		s.mu.Unlock()
		return
	}
	snap := copyState(s.state)
	v := s.version
	s.mu.Unlock()

	values, err := encodeState(snap)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		err = storage.SetAll(ctx, s.backend, values)
		cancel()
	}
	if err != nil {
		s.log.Error("persist ledger failed", "version", v, "err", err)
	} else {
		s.log.Debug("ledger persisted", "version", v)
	}

	s.mu.Lock()
	s.persisted = v
	s.persistErr = err
	close(s.persistedCh)
	s.persistedCh = make(chan struct{})
	s.mu.Unlock()
}

func encodeState(st State) (map[string]string, error) {
	values := make(map[string]string, 5)
	for key, v := range map[string]any{
		KeyTasks:   st.Tasks,
		KeyRewards: st.Rewards,
		KeyHistory: st.History,
		KeyPoints:  st.Points,
	} {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		values[key] = string(data)
	}
	values[KeyCurrency] = st.Currency
	return values, nil
}

// Flush blocks until every mutation made before the call has been written, or
// ctx is done. It returns the error of the most recent persist attempt.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	target := s.version
	for s.persisted < target {
		ch := s.persistedCh
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
	}
	err := s.persistErr
	s.mu.Unlock()
	return err
}

// Close writes any pending state and stops the persister. Later mutations
// return ErrClosed. The backend stays open.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stop)
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistErr
}

func copyState(st State) State {
	return State{
		Tasks:    append(make([]Task, 0, len(st.Tasks)), st.Tasks...),
		Rewards:  append(make([]Reward, 0, len(st.Rewards)), st.Rewards...),
		Points:   st.Points,
		History:  append(make([]HistoryEntry, 0, len(st.History)), st.History...),
		Currency: st.Currency,
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyState(s.state)
}

func (s *Store) Points() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Points
}

func (s *Store) Currency() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Currency
}

// History returns the history log, oldest first.
func (s *Store) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.History)
}

// Task returns the task with id.
func (s *Store) Task(id string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexTask(s.state.Tasks, id)
	if i < 0 {
		return Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return s.state.Tasks[i], nil
}

// Reward returns the reward with id.
func (s *Store) Reward(id string) (Reward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexReward(s.state.Rewards, id)
	if i < 0 {
		return Reward{}, fmt.Errorf("reward %s: %w", id, ErrNotFound)
	}
	return s.state.Rewards[i], nil
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}
