package counter

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/fasthash/fnv1a"
	"github.com/sirupsen/logrus"
)

const defaultShardCount uint64 = 64

// CounterSteps is a snapshot of a single counter.
type CounterSteps struct {
	Counter string `json:"counter"`
	Steps   int64  `json:"steps"`
}

// TeamSteps is a snapshot of a team and the sum of its counters.
type TeamSteps struct {
	Team       string `json:"team"`
	TotalSteps int64  `json:"totalSteps"`
}

type counter struct {
	steps int64
}

type team struct {
	mux      sync.RWMutex
	counters map[string]*counter
	// deleted is set once the team has been unlinked from its shard, so callers
	// still holding the pointer fail instead of writing into a detached team.
	deleted bool
}

func (t *team) total() (int64, bool) {
	t.mux.RLock()
	defer t.mux.RUnlock()

	if t.deleted {
		return 0, false
	}

	var sum int64
	for _, c := range t.counters {
		sum += atomic.LoadInt64(&c.steps)
	}
	return sum, true
}

type storeMetrics struct {
	teams           prometheus.Gauge
	counters        prometheus.Gauge
	countersCreated prometheus.Counter
}

func newStoreMetrics(r prometheus.Registerer) *storeMetrics {
	var m storeMetrics

	m.teams = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stepcounter_teams",
		Help: "Number of live teams",
	})

	m.counters = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stepcounter_counters",
		Help: "Number of live counters across all teams",
	})

	m.countersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stepcounter_counters_created_total",
		Help: "Total number of counters created",
	})

	r.MustRegister(m.teams, m.counters, m.countersCreated)
	return &m
}

// Store keeps the step totals of every counter, grouped by team.
//
// Teams are spread over shards guarded by their own RWMutex, every team guards
// its counter map with another RWMutex, and counter values are only touched
// through sync/atomic. Increments only ever take read locks, so concurrent
// increments on different counters of the same team do not serialize.
// No lock is held while acquiring another one.
type Store struct {
	shardCount     uint64
	shardedTeams   []map[string]*team
	shardedMutexes []*sync.RWMutex

	logger  *logrus.Logger
	metrics *storeMetrics
}

// NewStore creates an empty store
func NewStore(logger *logrus.Logger, registerer prometheus.Registerer) *Store {
	shards := defaultShardCount

	s := &Store{
		shardCount:     shards,
		shardedTeams:   make([]map[string]*team, shards),
		shardedMutexes: make([]*sync.RWMutex, shards),
		logger:         logger,
		metrics:        newStoreMetrics(registerer),
	}

	for i := uint64(0); i < shards; i++ {
		s.shardedTeams[i] = make(map[string]*team)
		s.shardedMutexes[i] = &sync.RWMutex{}
	}

	return s
}

func (s *Store) shard(teamID string) uint64 {
	return fnv1a.HashString64(teamID) % s.shardCount
}

func (s *Store) getTeam(teamID string) *team {
	shard := s.shard(teamID)
	mux := s.shardedMutexes[shard]
	mux.RLock()
	defer mux.RUnlock()

	return s.shardedTeams[shard][teamID]
}

// AddTeam creates an empty team. It returns false if the team already exists.
func (s *Store) AddTeam(teamID string) bool {
	shard := s.shard(teamID)
	mux := s.shardedMutexes[shard]
	mux.Lock()
	defer mux.Unlock()

	if _, ok := s.shardedTeams[shard][teamID]; ok {
		return false
	}

	s.shardedTeams[shard][teamID] = &team{counters: make(map[string]*counter)}
	s.metrics.teams.Inc()
	return true
}

// DeleteTeam removes a team together with all of its counters.
// Deleting a missing team is a no-op.
func (s *Store) DeleteTeam(teamID string) {
	shard := s.shard(teamID)
	mux := s.shardedMutexes[shard]
	mux.Lock()
	t, ok := s.shardedTeams[shard][teamID]
	if ok {
		delete(s.shardedTeams[shard], teamID)
	}
	mux.Unlock()

	if !ok {
		return
	}

	t.mux.Lock()
	t.deleted = true
	removed := len(t.counters)
	t.counters = nil
	t.mux.Unlock()

	s.metrics.teams.Dec()
	s.metrics.counters.Sub(float64(removed))
	s.logger.WithField("team", teamID).Debugf("team deleted with %d counters", removed)
}

// HasTeam reports whether the team exists.
func (s *Store) HasTeam(teamID string) bool {
	return s.getTeam(teamID) != nil
}

// TeamCount returns the number of live teams.
func (s *Store) TeamCount() int {
	count := 0
	for i := uint64(0); i < s.shardCount; i++ {
		mux := s.shardedMutexes[i]
		mux.RLock()
		count += len(s.shardedTeams[i])
		mux.RUnlock()
	}
	return count
}

// AddCounter creates a counter with zero steps under an existing team.
// It returns false if the team does not exist or the counter already exists.
func (s *Store) AddCounter(teamID, counterID string) bool {
	t := s.getTeam(teamID)
	if t == nil {
		return false
	}

	t.mux.Lock()
	defer t.mux.Unlock()

	if t.deleted {
		return false
	}

	if _, ok := t.counters[counterID]; ok {
		return false
	}

	t.counters[counterID] = &counter{}
	s.metrics.counters.Inc()
	s.metrics.countersCreated.Inc()
	return true
}

// DeleteCounter removes a counter from a team. Missing teams or counters are ignored.
func (s *Store) DeleteCounter(teamID, counterID string) {
	t := s.getTeam(teamID)
	if t == nil {
		return
	}

	t.mux.Lock()
	defer t.mux.Unlock()

	if t.deleted {
		return
	}

	if _, ok := t.counters[counterID]; ok {
		delete(t.counters, counterID)
		s.metrics.counters.Dec()
	}
}

// IncrementCounter atomically adds steps to a counter. It returns false, without
// changing anything, if the team or the counter does not exist.
func (s *Store) IncrementCounter(teamID, counterID string, steps int64) bool {
	t := s.getTeam(teamID)
	if t == nil {
		return false
	}

	t.mux.RLock()
	defer t.mux.RUnlock()

	if t.deleted {
		return false
	}

	c, ok := t.counters[counterID]
	if !ok {
		return false
	}

	atomic.AddInt64(&c.steps, steps)
	return true
}

// GetTotalSteps returns the sum of the steps of every counter in the team.
// The boolean is false if the team does not exist.
func (s *Store) GetTotalSteps(teamID string) (int64, bool) {
	t := s.getTeam(teamID)
	if t == nil {
		return 0, false
	}

	return t.total()
}

// ListCounters returns a snapshot of the counters of a team in no particular order.
// The boolean is false if the team does not exist; an existing team without
// counters yields an empty slice.
func (s *Store) ListCounters(teamID string) ([]CounterSteps, bool) {
	t := s.getTeam(teamID)
	if t == nil {
		return nil, false
	}

	t.mux.RLock()
	defer t.mux.RUnlock()

	if t.deleted {
		return nil, false
	}

	counters := make([]CounterSteps, 0, len(t.counters))
	for id, c := range t.counters {
		counters = append(counters, CounterSteps{
			Counter: id,
			Steps:   atomic.LoadInt64(&c.steps),
		})
	}
	return counters, true
}

// ListTeams returns every team with its total steps in no particular order.
func (s *Store) ListTeams() []TeamSteps {
	type teamRef struct {
		id string
		t  *team
	}

	teams := make([]TeamSteps, 0)
	for i := uint64(0); i < s.shardCount; i++ {
		mux := s.shardedMutexes[i]
		mux.RLock()
		refs := make([]teamRef, 0, len(s.shardedTeams[i]))
		for id, t := range s.shardedTeams[i] {
			refs = append(refs, teamRef{id, t})
		}
		mux.RUnlock()

		// totals are computed outside of the shard lock, a team deleted in
		// between is skipped
		for _, ref := range refs {
			total, ok := ref.t.total()
			if !ok {
				continue
			}
			teams = append(teams, TeamSteps{Team: ref.id, TotalSteps: total})
		}
	}

	return teams
}
