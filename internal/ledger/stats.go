package ledger

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// DefaultTrendWeeks is the number of weeks in the trend when none is given.
const DefaultTrendWeeks = 12

// Bucket aggregates history entries sharing a category or an item.
type Bucket struct {
	Key    string
	Name   string
	Count  int
	Points int
}

// WeekStat aggregates history entries of one Sunday-to-Saturday week.
type WeekStat struct {
	Start     time.Time
	Label     string
	Earned    int
	Spent     int
	Completed int
	Redeemed  int
}

type Stats struct {
	TasksCompleted  int
	PointsEarned    int
	RewardsRedeemed int
	PointsSpent     int

	TaskCategories   []Bucket
	TaskItems        []Bucket
	RewardCategories []Bucket
	RewardItems      []Bucket

	// Weeks is ordered oldest first and ends with the week containing now.
	Weeks []WeekStat
}

// Stats summarises the history as of now.
func (s *Store) Stats(now time.Time, weeks int) Stats {
	return ComputeStats(s.Snapshot(), now, weeks)
}

// ComputeStats summarises st.History. Categories come from the current tasks
// and rewards; entries whose item no longer exists count under an empty
// category with their recorded name.
func ComputeStats(st State, now time.Time, weeks int) Stats {
	if weeks <= 0 {
		weeks = DefaultTrendWeeks
	}
	taskCat := make(map[string]string, len(st.Tasks))
	for _, t := range st.Tasks {
		taskCat[t.ID] = t.Category
	}
	rewardCat := make(map[string]string, len(st.Rewards))
	for _, r := range st.Rewards {
		rewardCat[r.ID] = r.Category
	}

	var out Stats
	tc := newBucketSet()
	ti := newBucketSet()
	rc := newBucketSet()
	ri := newBucketSet()
	for _, h := range st.History {
		switch h.Type {
		case EntryTask:
			out.TasksCompleted++
			out.PointsEarned += h.Points
			cat := taskCat[h.TaskID]
			tc.add(cat, cat, h.Points)
			ti.add(h.TaskID, h.TaskName, h.Points)
		case EntryReward:
			out.RewardsRedeemed++
			out.PointsSpent += h.Cost
			cat := rewardCat[h.RewardID]
			rc.add(cat, cat, h.Cost)
			ri.add(h.RewardID, h.RewardName, h.Cost)
		}
	}
	out.TaskCategories = tc.sorted()
	out.TaskItems = ti.sorted()
	out.RewardCategories = rc.sorted()
	out.RewardItems = ri.sorted()
	out.Weeks = weeklyTrend(st.History, now, weeks)
	return out
}

type bucketSet struct {
	byKey map[string]*Bucket
	order []string
}

func newBucketSet() *bucketSet {
	return &bucketSet{byKey: map[string]*Bucket{}}
}

func (b *bucketSet) add(key, name string, points int) {
	bk, ok := b.byKey[key]
	if !ok {
		bk = &Bucket{Key: key, Name: name}
		b.byKey[key] = bk
		b.order = append(b.order, key)
	}
	bk.Count++
	bk.Points += points
}

// sorted orders by points, then count, then first appearance.
func (b *bucketSet) sorted() []Bucket {
	out := make([]Bucket, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, *b.byKey[k])
	}
	slices.SortStableFunc(out, func(x, y Bucket) int {
		if c := cmp.Compare(y.Points, x.Points); c != 0 {
			return c
		}
		return cmp.Compare(y.Count, x.Count)
	})
	return out
}

// WeekStart returns midnight of the Sunday on or before t, in t's location.
func WeekStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d-int(t.Weekday()), 0, 0, 0, 0, t.Location())
}

func weeklyTrend(history []HistoryEntry, now time.Time, weeks int) []WeekStat {
	current := WeekStart(now)
	out := make([]WeekStat, weeks)
	for i := range out {
		start := current.AddDate(0, 0, -7*(weeks-1-i))
		out[i] = WeekStat{
			Start: start,
			Label: fmt.Sprintf("%d/%d", int(start.Month()), start.Day()),
		}
	}
	for _, h := range history {
		for i := range out {
			start := out[i].Start
			end := start.AddDate(0, 0, 7)
			if h.Date.Before(start) || !h.Date.Before(end) {
				continue
			}
			switch h.Type {
			case EntryTask:
				out[i].Earned += h.Points
				out[i].Completed++
			case EntryReward:
				out[i].Spent += h.Cost
				out[i].Redeemed++
			}
			break
		}
	}
	return out
}
