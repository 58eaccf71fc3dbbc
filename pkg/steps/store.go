package steps

import "github.com/samueltorres/stepcounter/pkg/counter"

// CounterStore is the in-memory step store the service delegates to.
type CounterStore interface {
	AddTeam(teamID string) bool
	DeleteTeam(teamID string)
	HasTeam(teamID string) bool
	AddCounter(teamID, counterID string) bool
	DeleteCounter(teamID, counterID string)
	IncrementCounter(teamID, counterID string, steps int64) bool
	GetTotalSteps(teamID string) (int64, bool)
	ListCounters(teamID string) ([]counter.CounterSteps, bool)
	ListTeams() []counter.TeamSteps
}

var _ CounterStore = (*counter.Store)(nil)
