package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyledger/internal/storage"
)

var fixedNow = time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC) // a Wednesday

func testOptions() []Option {
	var n atomic.Int64
	return []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%d", n.Add(1)) }),
	}
}

func newTestStore(t *testing.T, backend storage.Backend, opts ...Option) *Store {
	t.Helper()
	if backend == nil {
		backend = storage.NewMemory()
	}
	s, err := Open(context.Background(), backend, append(testOptions(), opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func mustAddTask(t *testing.T, s *Store, name string, points int) Task {
	t.Helper()
	task, err := s.AddTask(TaskInput{Category: "Reading", Name: name, Points: points})
	require.NoError(t, err)
	return task
}

func mustAddReward(t *testing.T, s *Store, name string, cost int) Reward {
	t.Helper()
	r, err := s.AddReward(RewardInput{Category: "Toys", Name: name, Cost: cost})
	require.NoError(t, err)
	return r
}

// earn brings the balance up by points through a throwaway task.
func earn(t *testing.T, s *Store, points int) {
	t.Helper()
	task := mustAddTask(t, s, "bonus", points)
	_, err := s.CompleteTask(task.ID)
	require.NoError(t, err)
	require.NoError(t, s.DeleteTask(task.ID))
}

func assertBalanceInvariant(t *testing.T, s *Store) {
	t.Helper()
	st := s.Snapshot()
	assert.Equal(t, HistoryBalance(st.History), st.Points, "points must equal history balance")
	assert.GreaterOrEqual(t, st.Points, 0)
}

func TestOpen_EmptyBackendDefaults(t *testing.T) {
	s := newTestStore(t, nil)

	st := s.Snapshot()
	assert.Empty(t, st.Tasks)
	assert.Empty(t, st.Rewards)
	assert.Empty(t, st.History)
	assert.Equal(t, 0, st.Points)
	assert.Equal(t, DefaultCurrency, st.Currency)
}

func TestOpen_ConfiguredDefaultCurrency(t *testing.T) {
	s := newTestStore(t, nil, WithDefaultCurrency("stars"))
	assert.Equal(t, "stars", s.Currency())
}

func TestScenario_CompleteTaskAwardsPoints(t *testing.T) {
	s := newTestStore(t, nil)

	task, err := s.AddTask(TaskInput{Name: "Read 30m", Category: "Reading", Points: 5, Frequency: FrequencyDaily})
	require.NoError(t, err)

	entry, err := s.CompleteTask(task.ID)
	require.NoError(t, err)

	assert.Equal(t, 5, s.Points())
	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, EntryTask, history[0].Type)
	assert.Equal(t, 5, history[0].Points)
	assert.Equal(t, "Read 30m", history[0].TaskName)
	assert.Equal(t, task.ID, history[0].TaskID)
	assert.Equal(t, fixedNow, history[0].Date)
	assert.Equal(t, entry, history[0])
	assertBalanceInvariant(t, s)
}

func TestScenario_RedeemRejectedWhenBalanceTooLow(t *testing.T) {
	s := newTestStore(t, nil)
	task := mustAddTask(t, s, "Read", 5)
	_, err := s.CompleteTask(task.ID)
	require.NoError(t, err)
	historyBefore := s.History()

	reward := mustAddReward(t, s, "Toy", 10)
	_, err = s.RedeemReward(reward.ID)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	var ib *InsufficientBalanceError
	require.True(t, errors.As(err, &ib))
	assert.Equal(t, 5, ib.Balance)
	assert.Equal(t, 10, ib.Cost)
	assert.Equal(t, 5, s.Points())
	assert.Equal(t, historyBefore, s.History())
	for _, h := range s.History() {
		assert.NotEqual(t, EntryReward, h.Type)
	}
}

func TestScenario_RedeemExactBalance(t *testing.T) {
	s := newTestStore(t, nil)
	earn(t, s, 10)
	reward := mustAddReward(t, s, "Movie", 10)

	entry, err := s.RedeemReward(reward.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, s.Points())
	assert.Equal(t, EntryReward, entry.Type)
	assert.Equal(t, 10, entry.Cost)
	assert.Equal(t, "Movie", entry.RewardName)

	var redemptions []HistoryEntry
	for _, h := range s.History() {
		if h.Type == EntryReward {
			redemptions = append(redemptions, h)
		}
	}
	require.Len(t, redemptions, 1)
	assert.Equal(t, 10, redemptions[0].Cost)
	assertBalanceInvariant(t, s)
}

func TestScenario_ResetClearsEverything(t *testing.T) {
	s := newTestStore(t, nil, WithDefaultCurrency("coins"))
	earn(t, s, 20)
	mustAddTask(t, s, "Read", 5)
	mustAddReward(t, s, "Toy", 5)
	require.NoError(t, s.SetCurrency("stars"))

	require.NoError(t, s.Reset())

	st := s.Snapshot()
	assert.Empty(t, st.Tasks)
	assert.Empty(t, st.Rewards)
	assert.Empty(t, st.History)
	assert.Equal(t, 0, st.Points)
	assert.Equal(t, "coins", st.Currency)
}

func TestCompleteTask_RepeatedCompletionsAllCount(t *testing.T) {
	s := newTestStore(t, nil)
	task := mustAddTask(t, s, "Read", 5)

	for range 5 {
		_, err := s.CompleteTask(task.ID)
		require.NoError(t, err)
	}

	assert.Equal(t, 25, s.Points())
	assert.Len(t, s.History(), 5)
}

func TestCompleteTask_NotFound(t *testing.T) {
	s := newTestStore(t, nil)

	_, err := s.CompleteTask("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, s.Points())
	assert.Empty(t, s.History())
}

func TestDeleteTask_KeepsHistory(t *testing.T) {
	s := newTestStore(t, nil)
	task := mustAddTask(t, s, "Read 30m", 5)
	_, err := s.CompleteTask(task.ID)
	require.NoError(t, err)

	require.NoError(t, s.DeleteTask(task.ID))

	assert.Empty(t, s.Tasks(TaskFilter{}))
	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, "Read 30m", history[0].TaskName)
	assert.Equal(t, 5, history[0].Points)
	assert.Equal(t, 5, s.Points())
}

func TestUpdateTask_DoesNotRewriteHistory(t *testing.T) {
	s := newTestStore(t, nil)
	task := mustAddTask(t, s, "Read", 5)
	_, err := s.CompleteTask(task.ID)
	require.NoError(t, err)

	name := "Read 60m"
	points := 12
	updated, err := s.UpdateTask(task.ID, TaskPatch{Name: &name, Points: &points})
	require.NoError(t, err)

	assert.Equal(t, "Read 60m", updated.Name)
	assert.Equal(t, 12, updated.Points)
	assert.Equal(t, "Reading", updated.Category)
	assert.Equal(t, FrequencyDaily, updated.Frequency)
	assert.Equal(t, "Read", s.History()[0].TaskName)
	assert.Equal(t, 5, s.History()[0].Points)
}

func TestUpdateTask_Errors(t *testing.T) {
	s := newTestStore(t, nil)
	task := mustAddTask(t, s, "Read", 5)

	name := "x"
	_, err := s.UpdateTask("missing", TaskPatch{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)

	empty := "  "
	_, err = s.UpdateTask(task.ID, TaskPatch{Name: &empty})
	assert.ErrorIs(t, err, ErrInvalidInput)

	negative := -1
	_, err = s.UpdateTask(task.ID, TaskPatch{Points: &negative})
	assert.ErrorIs(t, err, ErrInvalidInput)

	got, err := s.Task(task.ID)
	require.NoError(t, err)
	assert.Equal(t, task, got)
}

func TestAddTask_Validation(t *testing.T) {
	s := newTestStore(t, nil)

	tests := []struct {
		name string
		in   TaskInput
	}{
		{"missing name", TaskInput{Category: "c", Points: 1}},
		{"missing category", TaskInput{Name: "n", Points: 1}},
		{"negative points", TaskInput{Name: "n", Category: "c", Points: -1}},
		{"unknown frequency", TaskInput{Name: "n", Category: "c", Points: 1, Frequency: "monthly"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddTask(tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Empty(t, s.Tasks(TaskFilter{}))
}

func TestAddTask_DefaultsFrequencyAndTrims(t *testing.T) {
	s := newTestStore(t, nil)

	task, err := s.AddTask(TaskInput{Name: "  Read ", Category: " Reading ", Points: 0})
	require.NoError(t, err)

	assert.Equal(t, "id-1", task.ID)
	assert.Equal(t, "Read", task.Name)
	assert.Equal(t, "Reading", task.Category)
	assert.Equal(t, FrequencyDaily, task.Frequency)
}

func TestRewardCRUD(t *testing.T) {
	s := newTestStore(t, nil)
	r := mustAddReward(t, s, "Toy", 30)

	cost := 40
	desc := "small toy"
	updated, err := s.UpdateReward(r.ID, RewardPatch{Cost: &cost, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, 40, updated.Cost)
	assert.Equal(t, "small toy", updated.Description)
	assert.Equal(t, "Toy", updated.Name)

	_, err = s.UpdateReward("missing", RewardPatch{Cost: &cost})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteReward(r.ID))
	assert.ErrorIs(t, s.DeleteReward(r.ID), ErrNotFound)
	_, err = s.Reward(r.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.RedeemReward(r.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRewardAfterRedeem_KeepsHistory(t *testing.T) {
	s := newTestStore(t, nil)
	earn(t, s, 50)
	r := mustAddReward(t, s, "Toy", 30)
	_, err := s.RedeemReward(r.ID)
	require.NoError(t, err)

	require.NoError(t, s.DeleteReward(r.ID))

	history := s.History()
	last := history[len(history)-1]
	assert.Equal(t, "Toy", last.RewardName)
	assert.Equal(t, 30, last.Cost)
	assert.Equal(t, 20, s.Points())
}

func TestRedeemReward_ConcurrentNeverOverdraws(t *testing.T) {
	s := newTestStore(t, nil)
	earn(t, s, 10)
	r := mustAddReward(t, s, "Sticker", 3)

	var wg sync.WaitGroup
	var ok atomic.Int64
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.RedeemReward(r.ID); err == nil {
				ok.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrInsufficientBalance)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(3), ok.Load())
	assert.Equal(t, 1, s.Points())
	assertBalanceInvariant(t, s)
}

func TestBalanceInvariant_RandomOperations(t *testing.T) {
	s := newTestStore(t, nil)
	rng := rand.New(rand.NewPCG(1, 2))

	var tasks []Task
	var rewards []Reward
	for i := range 5 {
		tasks = append(tasks, mustAddTask(t, s, fmt.Sprintf("task %d", i), rng.IntN(20)))
		rewards = append(rewards, mustAddReward(t, s, fmt.Sprintf("reward %d", i), rng.IntN(40)))
	}

	for range 500 {
		switch rng.IntN(4) {
		case 0, 1:
			_, err := s.CompleteTask(tasks[rng.IntN(len(tasks))].ID)
			require.NoError(t, err)
		case 2:
			_, err := s.RedeemReward(rewards[rng.IntN(len(rewards))].ID)
			if err != nil {
				require.ErrorIs(t, err, ErrInsufficientBalance)
			}
		case 3:
			i := rng.IntN(len(tasks))
			p := rng.IntN(20)
			_, err := s.UpdateTask(tasks[i].ID, TaskPatch{Points: &p})
			require.NoError(t, err)
		}
		assertBalanceInvariant(t, s)
	}
}

func TestSetCurrency(t *testing.T) {
	s := newTestStore(t, nil)

	require.NoError(t, s.SetCurrency("  study coins "))
	assert.Equal(t, "study coins", s.Currency())

	assert.ErrorIs(t, s.SetCurrency("   "), ErrInvalidInput)
	assert.Equal(t, "study coins", s.Currency())
}

func TestPersistence_ReopenRestoresState(t *testing.T) {
	ctx := context.Background()
	for name, open := range map[string]func(t *testing.T) storage.Backend{
		"memory": func(t *testing.T) storage.Backend { return storage.NewMemory() },
		"sqlite": func(t *testing.T) storage.Backend {
			b, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = b.Close() })
			return b
		},
		"file": func(t *testing.T) storage.Backend {
			b, err := storage.OpenFile(filepath.Join(t.TempDir(), "data"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = b.Close() })
			return b
		},
	} {
		t.Run(name, func(t *testing.T) {
			backend := open(t)
			s, err := Open(ctx, backend, testOptions()...)
			require.NoError(t, err)

			task := mustAddTask(t, s, "Read", 7)
			_, err = s.CompleteTask(task.ID)
			require.NoError(t, err)
			mustAddReward(t, s, "Toy", 3)
			require.NoError(t, s.SetCurrency("stars"))
			want := s.Snapshot()

			require.NoError(t, s.Flush(ctx))
			require.NoError(t, s.Close(ctx))

			reopened, err := Open(ctx, backend)
			require.NoError(t, err)
			defer reopened.Close(ctx)

			assert.Equal(t, want, reopened.Snapshot())
		})
	}
}

func TestPersistence_StoredEncoding(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	s := newTestStore(t, backend)
	earn(t, s, 4)
	require.NoError(t, s.SetCurrency("stars"))
	require.NoError(t, s.Flush(ctx))

	points, ok, err := backend.Get(ctx, KeyPoints)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "4", points)

	currency, _, err := backend.Get(ctx, KeyCurrency)
	require.NoError(t, err)
	assert.Equal(t, "stars", currency)

	tasks, _, err := backend.Get(ctx, KeyTasks)
	require.NoError(t, err)
	assert.Equal(t, "[]", tasks)
}

func TestOpen_CorruptKeysFallBackToDefaults(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	require.NoError(t, storage.SetAll(ctx, backend, map[string]string{
		KeyTasks:    "{not json",
		KeyRewards:  `[{"id":"r1","category":"Toys","name":"Kite","cost":8}]`,
		KeyPoints:   "abc",
		KeyHistory:  "null",
		KeyCurrency: "",
	}))

	s := newTestStore(t, backend)
	st := s.Snapshot()

	assert.Empty(t, st.Tasks)
	assert.NotNil(t, st.Tasks)
	require.Len(t, st.Rewards, 1)
	assert.Equal(t, "Kite", st.Rewards[0].Name)
	assert.Equal(t, 0, st.Points)
	assert.NotNil(t, st.History)
	assert.Equal(t, DefaultCurrency, st.Currency)
}

func TestOpen_LegacyTaskWithoutFrequency(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	require.NoError(t, backend.Set(ctx, KeyTasks, `[{"id":"1","category":"c","name":"n","points":3}]`))

	s := newTestStore(t, backend)
	tasks := s.Tasks(TaskFilter{})
	require.Len(t, tasks, 1)
	assert.Equal(t, FrequencyDaily, tasks[0].Frequency)
}

// failingBackend rejects every write.
type failingBackend struct {
	mem *storage.Memory
	err error
}

func (f *failingBackend) Get(ctx context.Context, key string) (string, bool, error) {
	return f.mem.Get(ctx, key)
}

func (f *failingBackend) Set(context.Context, string, string) error { return f.err }

func (f *failingBackend) Close() error { return nil }

func TestFlush_ReportsPersistFailureWithoutRollback(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	s := newTestStore(t, &failingBackend{mem: storage.NewMemory(), err: boom})

	task := mustAddTask(t, s, "Read", 5)
	_, err := s.CompleteTask(task.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Flush(ctx), boom)
	assert.Equal(t, 5, s.Points())
}

func TestFlush_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newTestStore(t, &blockingBackend{release: make(chan struct{})})
	mustAddTask(t, s, "Read", 5)

	assert.ErrorIs(t, s.Flush(ctx), context.Canceled)
	s.backend.(*blockingBackend).open()
}

// blockingBackend holds every write until open is called.
type blockingBackend struct {
	release chan struct{}
	once    sync.Once
}

func (b *blockingBackend) open() { b.once.Do(func() { close(b.release) }) }

func (b *blockingBackend) Get(context.Context, string) (string, bool, error) { return "", false, nil }

func (b *blockingBackend) Set(ctx context.Context, _, _ string) error {
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *blockingBackend) Close() error { return nil }

func TestClose_RejectsLaterMutations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	mustAddTask(t, s, "Read", 5)

	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))

	_, err := s.AddTask(TaskInput{Name: "n", Category: "c"})
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, s.Flush(ctx))
	assert.Len(t, s.Tasks(TaskFilter{}), 1)
}

func TestOpen_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Open(ctx, storage.NewMemory())
	assert.ErrorIs(t, err, context.Canceled)
}
