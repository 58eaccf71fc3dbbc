package counter

import (
	"fmt"
	"io/ioutil"
	"sort"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(newNullLogger(), prometheus.NewRegistry())
}

func TestStore_AddTeam(t *testing.T) {
	testCases := []struct {
		desc    string
		preAdd  bool
		want    bool
		wantLen int
	}{
		{
			desc:    "Non existing team, creates it",
			preAdd:  false,
			want:    true,
			wantLen: 1,
		},
		{
			desc:    "Existing team, reports failure",
			preAdd:  true,
			want:    false,
			wantLen: 1,
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			store := newTestStore()
			if tC.preAdd {
				store.AddTeam("alpha")
			}

			got := store.AddTeam("alpha")

			assert.Equal(t, tC.want, got)
			assert.Equal(t, tC.wantLen, store.TeamCount())
		})
	}
}

func TestStore_AddTeam_DuplicateKeepsState(t *testing.T) {
	store := newTestStore()
	require.True(t, store.AddTeam("alpha"))
	require.True(t, store.AddCounter("alpha", "c1"))
	require.True(t, store.IncrementCounter("alpha", "c1", 10))

	assert.False(t, store.AddTeam("alpha"))

	total, ok := store.GetTotalSteps("alpha")
	assert.True(t, ok)
	assert.Equal(t, int64(10), total)
}

func TestStore_AddCounter(t *testing.T) {
	testCases := []struct {
		desc       string
		addTeam    bool
		preCounter bool
		want       bool
	}{
		{
			desc:    "Missing team, creates nothing",
			addTeam: false,
			want:    false,
		},
		{
			desc:    "Existing team, creates counter",
			addTeam: true,
			want:    true,
		},
		{
			desc:       "Existing counter, reports failure",
			addTeam:    true,
			preCounter: true,
			want:       false,
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			store := newTestStore()
			if tC.addTeam {
				store.AddTeam("alpha")
			}
			if tC.preCounter {
				store.AddCounter("alpha", "c1")
				store.IncrementCounter("alpha", "c1", 5)
			}

			got := store.AddCounter("alpha", "c1")
			assert.Equal(t, tC.want, got)

			if !tC.addTeam {
				assert.False(t, store.HasTeam("alpha"))
				return
			}

			counters, ok := store.ListCounters("alpha")
			require.True(t, ok)
			require.Len(t, counters, 1)
			if tC.preCounter {
				assert.Equal(t, int64(5), counters[0].Steps)
			}
		})
	}
}

func TestStore_IncrementCounter(t *testing.T) {
	testCases := []struct {
		desc      string
		team      string
		counter   string
		steps     int64
		want      bool
		wantTotal int64
	}{
		{
			desc:      "Existing counter, adds steps",
			team:      "alpha",
			counter:   "c1",
			steps:     42,
			want:      true,
			wantTotal: 42,
		},
		{
			desc:      "Missing counter, leaves total unchanged",
			team:      "alpha",
			counter:   "c2",
			steps:     42,
			want:      false,
			wantTotal: 0,
		},
		{
			desc:      "Missing team, reports failure",
			team:      "beta",
			counter:   "c1",
			steps:     42,
			want:      false,
			wantTotal: 0,
		},
		{
			desc:      "Negative steps are added arithmetically",
			team:      "alpha",
			counter:   "c1",
			steps:     -3,
			want:      true,
			wantTotal: -3,
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			store := newTestStore()
			store.AddTeam("alpha")
			store.AddCounter("alpha", "c1")

			got := store.IncrementCounter(tC.team, tC.counter, tC.steps)
			assert.Equal(t, tC.want, got)

			total, ok := store.GetTotalSteps("alpha")
			assert.True(t, ok)
			assert.Equal(t, tC.wantTotal, total)
		})
	}
}

func TestStore_IncrementCounter_ConcurrentIncrement(t *testing.T) {
	// arrange
	store := newTestStore()
	store.AddTeam("alpha")
	store.AddCounter("alpha", "c1")

	// act
	wg := sync.WaitGroup{}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				store.IncrementCounter("alpha", "c1", 1)
			}
		}()
	}
	wg.Wait()

	// assert
	total, ok := store.GetTotalSteps("alpha")
	assert.True(t, ok)
	assert.Equal(t, int64(20*500), total)
}

func TestStore_IncrementCounter_ConcurrentCounters(t *testing.T) {
	store := newTestStore()
	store.AddTeam("alpha")
	for i := 0; i < 10; i++ {
		store.AddCounter("alpha", fmt.Sprintf("c%d", i))
	}

	wg := sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				store.IncrementCounter("alpha", id, 2)
			}
		}(fmt.Sprintf("c%d", i))
	}
	wg.Wait()

	counters, ok := store.ListCounters("alpha")
	require.True(t, ok)
	require.Len(t, counters, 10)
	for _, c := range counters {
		assert.Equal(t, int64(2000), c.Steps, c.Counter)
	}
}

func TestStore_DeleteTeam(t *testing.T) {
	store := newTestStore()
	store.AddTeam("alpha")
	store.AddCounter("alpha", "c1")
	store.IncrementCounter("alpha", "c1", 7)

	store.DeleteTeam("alpha")

	_, ok := store.GetTotalSteps("alpha")
	assert.False(t, ok)

	counters, ok := store.ListCounters("alpha")
	assert.False(t, ok)
	assert.Nil(t, counters)

	assert.False(t, store.IncrementCounter("alpha", "c1", 1))
	assert.False(t, store.AddCounter("alpha", "c1"))

	// deleting twice is a no-op
	store.DeleteTeam("alpha")
	assert.Equal(t, 0, store.TeamCount())

	// re-adding starts empty
	assert.True(t, store.AddTeam("alpha"))
	total, ok := store.GetTotalSteps("alpha")
	assert.True(t, ok)
	assert.Equal(t, int64(0), total)
}

func TestStore_DeleteCounter_ResetsOnReAdd(t *testing.T) {
	store := newTestStore()
	store.AddTeam("alpha")
	store.AddCounter("alpha", "c1")
	store.IncrementCounter("alpha", "c1", 9)

	store.DeleteCounter("alpha", "c1")
	store.DeleteCounter("alpha", "c1")
	store.DeleteCounter("missing", "c1")

	assert.True(t, store.AddCounter("alpha", "c1"))
	counters, ok := store.ListCounters("alpha")
	require.True(t, ok)
	assert.Equal(t, []CounterSteps{{Counter: "c1", Steps: 0}}, counters)
}

func TestStore_Scenario(t *testing.T) {
	store := newTestStore()

	assert.True(t, store.AddTeam("alpha"))
	assert.True(t, store.AddCounter("alpha", "c1"))
	assert.True(t, store.IncrementCounter("alpha", "c1", 50))
	assert.True(t, store.IncrementCounter("alpha", "c1", 25))

	total, ok := store.GetTotalSteps("alpha")
	assert.True(t, ok)
	assert.Equal(t, int64(75), total)

	counters, ok := store.ListCounters("alpha")
	assert.True(t, ok)
	assert.Equal(t, []CounterSteps{{Counter: "c1", Steps: 75}}, counters)

	store.DeleteCounter("alpha", "c1")

	total, ok = store.GetTotalSteps("alpha")
	assert.True(t, ok)
	assert.Equal(t, int64(0), total)

	counters, ok = store.ListCounters("alpha")
	assert.True(t, ok)
	assert.NotNil(t, counters)
	assert.Empty(t, counters)
}

func TestStore_ListTeams(t *testing.T) {
	store := newTestStore()

	teams := store.ListTeams()
	assert.NotNil(t, teams)
	assert.Empty(t, teams)

	store.AddTeam("a")
	store.AddTeam("b")

	teams = store.ListTeams()
	sort.Slice(teams, func(i, j int) bool { return teams[i].Team < teams[j].Team })
	assert.Equal(t, []TeamSteps{{Team: "a", TotalSteps: 0}, {Team: "b", TotalSteps: 0}}, teams)

	store.AddCounter("b", "c1")
	store.AddCounter("b", "c2")
	store.IncrementCounter("b", "c1", 3)
	store.IncrementCounter("b", "c2", 4)

	teams = store.ListTeams()
	sort.Slice(teams, func(i, j int) bool { return teams[i].Team < teams[j].Team })
	assert.Equal(t, []TeamSteps{{Team: "a", TotalSteps: 0}, {Team: "b", TotalSteps: 7}}, teams)
}

func TestStore_ConcurrentStructuralChanges(t *testing.T) {
	store := newTestStore()
	store.AddTeam("stable")
	store.AddCounter("stable", "c1")

	stop := make(chan struct{})
	wg := sync.WaitGroup{}

	// churn teams and counters while other goroutines read and increment
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			id := fmt.Sprintf("t%d", i%8)
			store.AddTeam(id)
			store.AddCounter(id, "c1")
			store.IncrementCounter(id, "c1", 1)
			store.DeleteCounter(id, "c1")
			store.DeleteTeam(id)
		}
		close(stop)
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				seen := make(map[string]bool)
				for _, ts := range store.ListTeams() {
					assert.False(t, seen[ts.Team], "team listed twice")
					seen[ts.Team] = true
				}
				store.ListCounters("t1")
				store.GetTotalSteps("t2")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 5000; j++ {
			store.IncrementCounter("stable", "c1", 1)
		}
	}()

	wg.Wait()

	total, ok := store.GetTotalSteps("stable")
	assert.True(t, ok)
	assert.Equal(t, int64(5000), total)
	assert.Equal(t, 1, store.TeamCount())
}

func newNullLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	return logger
}
