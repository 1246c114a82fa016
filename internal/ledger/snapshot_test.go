package ledger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populated(t *testing.T) *Store {
	t.Helper()
	s := newTestStore(t, nil)
	read := mustAddTask(t, s, "Read", 20)
	_, err := s.AddTask(TaskInput{Category: "Sport", Name: "Run", Points: 5, Frequency: FrequencyWeekly, Description: "outdoors"})
	require.NoError(t, err)
	toy := mustAddReward(t, s, "Toy", 15)
	_, err = s.CompleteTask(read.ID)
	require.NoError(t, err)
	_, err = s.RedeemReward(toy.ID)
	require.NoError(t, err)
	require.NoError(t, s.SetCurrency("stars"))
	return s
}

func TestExportSnapshot_Format(t *testing.T) {
	s := populated(t)

	data, err := s.ExportSnapshot()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	for _, key := range []string{"tasks", "rewards", "points", "history", "currency", "exportDate"} {
		assert.Contains(t, doc, key)
	}
	assert.Equal(t, float64(5), doc["points"])
	assert.Equal(t, "stars", doc["currency"])
	assert.Equal(t, "2025-03-12T09:30:00Z", doc["exportDate"])

	history := doc["history"].([]any)
	require.Len(t, history, 2)
	first := history[0].(map[string]any)
	assert.Equal(t, "task", first["type"])
	assert.Equal(t, "Read", first["taskName"])
	second := history[1].(map[string]any)
	assert.Equal(t, "reward", second["type"])
	assert.Equal(t, "Toy", second["rewardName"])
	assert.Equal(t, float64(15), second["cost"])
}

func TestExportImport_RoundTrip(t *testing.T) {
	src := populated(t)
	want := src.Snapshot()

	data, err := src.ExportSnapshot()
	require.NoError(t, err)

	dst := newTestStore(t, nil)
	require.NoError(t, dst.ImportSnapshot(data))
	assert.Equal(t, want, dst.Snapshot())

	// Importing into the same store is a no-op.
	require.NoError(t, src.ImportSnapshot(data))
	assert.Equal(t, want, src.Snapshot())
}

func TestImportSnapshot_Overwrites(t *testing.T) {
	s := populated(t)

	err := s.ImportSnapshot([]byte(`{"tasks":[{"id":"t9","category":"Math","name":"Drill","points":4}],"points":0}`))
	require.NoError(t, err)

	st := s.Snapshot()
	require.Len(t, st.Tasks, 1)
	assert.Equal(t, FrequencyDaily, st.Tasks[0].Frequency)
	assert.Empty(t, st.Rewards)
	assert.Empty(t, st.History)
	assert.Equal(t, 0, st.Points)
	assert.Equal(t, "stars", st.Currency, "missing currency keeps the current label")
}

func TestImportSnapshot_EmptyObject(t *testing.T) {
	s := populated(t)

	require.NoError(t, s.ImportSnapshot([]byte(`{}`)))

	st := s.Snapshot()
	assert.NotNil(t, st.Tasks)
	assert.Empty(t, st.Tasks)
	assert.Empty(t, st.Rewards)
	assert.Empty(t, st.History)
	assert.Equal(t, 0, st.Points)
	assert.Equal(t, "stars", st.Currency)
}

func TestImportSnapshot_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `tasks: []`},
		{"truncated", `{"tasks": [`},
		{"null", `null`},
		{"array", `[]`},
		{"string", `"hello"`},
		{"wrong type", `{"points": "ten"}`},
		{"negative balance", `{"points": -5}`},
		{"unknown entry type", `{"points": 0, "history": [{"id":"h1","type":"bonus","date":"2025-01-01T00:00:00Z"}]}`},
		{"unknown frequency", `{"tasks": [{"id":"1","name":"n","category":"c","points":1,"frequency":"hourly"}]}`},
		{"negative cost", `{"rewards": [{"id":"1","name":"n","category":"c","cost":-1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := populated(t)
			before := s.Snapshot()

			err := s.ImportSnapshot([]byte(tt.data))

			assert.ErrorIs(t, err, ErrMalformedInput)
			assert.Equal(t, before, s.Snapshot())
		})
	}
}

func TestImportSnapshot_BalanceMatchingHistory(t *testing.T) {
	s := newTestStore(t, nil)
	data := `{
		"points": 7,
		"currency": "coins",
		"history": [
			{"id":"h1","type":"task","taskId":"1","taskName":"Read","points":10,"date":"2025-03-01T08:00:00Z"},
			{"id":"h2","type":"reward","rewardId":"2","rewardName":"Gum","cost":3,"date":"2025-03-02T08:00:00Z"}
		]
	}`

	require.NoError(t, s.ImportSnapshot([]byte(data)))

	assert.Equal(t, 7, s.Points())
	assert.Equal(t, "coins", s.Currency())
	assert.Len(t, s.History(), 2)
	assertBalanceInvariant(t, s)
}

func TestImportSnapshot_KeepsBalanceThatDisagreesWithHistory(t *testing.T) {
	var logs bytes.Buffer
	s := newTestStore(t, nil, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	// Balance carried over without any history, as older exports have.
	require.NoError(t, s.ImportSnapshot([]byte(`{"points": 30, "history": [], "tasks": [], "rewards": []}`)))
	assert.Equal(t, 30, s.Points())
	assert.Empty(t, s.History())
	assert.Contains(t, logs.String(), "imported balance does not match history")

	// Missing balance defaults to zero even when history says otherwise.
	data := `{"history": [{"id":"h1","type":"task","taskId":"1","taskName":"Read","points":5,"date":"2025-03-01T08:00:00Z"}]}`
	require.NoError(t, s.ImportSnapshot([]byte(data)))
	assert.Equal(t, 0, s.Points())
	assert.Len(t, s.History(), 1)
}

func TestHistoryEntry_ZeroAmountsAreWritten(t *testing.T) {
	s := newTestStore(t, nil)
	free := mustAddTask(t, s, "free", 0)
	gift := mustAddReward(t, s, "gift", 0)
	_, err := s.CompleteTask(free.ID)
	require.NoError(t, err)
	_, err = s.RedeemReward(gift.ID)
	require.NoError(t, err)

	data, err := s.ExportSnapshot()
	require.NoError(t, err)

	var doc struct {
		History []map[string]any `json:"history"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.History, 2)

	task, reward := doc.History[0], doc.History[1]
	assert.EqualValues(t, 0, task["points"])
	assert.NotContains(t, task, "cost")
	assert.NotContains(t, task, "rewardId")
	assert.EqualValues(t, 0, reward["cost"])
	assert.NotContains(t, reward, "points")
	assert.NotContains(t, reward, "taskName")

	require.NoError(t, s.ImportSnapshot(data))
	assert.Len(t, s.History(), 2)
}

func TestExportSnapshot_IsPureRead(t *testing.T) {
	s := populated(t)
	before := s.Snapshot()

	_, err := s.ExportSnapshot()
	require.NoError(t, err)

	assert.Equal(t, before, s.Snapshot())
}

func TestExportSnapshot_EmptyCollectionsAreArrays(t *testing.T) {
	s := newTestStore(t, nil)

	data, err := s.ExportSnapshot()
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(data), `"tasks": []`), string(data))
	assert.True(t, strings.Contains(string(data), `"history": []`), string(data))
}
