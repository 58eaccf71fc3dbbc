package steps

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samueltorres/stepcounter/pkg/counter"
	"github.com/sirupsen/logrus"
)

var (
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
	ErrInvalidID     = errors.New("invalid identifier")
	ErrInvalidSteps  = errors.New("invalid steps")
)

type metrics struct {
	increments *prometheus.CounterVec
	steps      prometheus.Counter
}

func newMetrics(r prometheus.Registerer) *metrics {
	var m metrics

	m.increments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stepcounter_increments_total",
		Help: "Total increment requests by result",
	}, []string{"result"})

	m.steps = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stepcounter_steps_total",
		Help: "Total steps added across all counters",
	})

	r.MustRegister(m.increments, m.steps)
	return &m
}

// StepService validates identifiers and step values before handing them to the
// store, and turns the store's boolean results into sentinel errors.
type StepService struct {
	store    CounterStore
	idFormat IDFormat
	logger   *logrus.Logger
	metrics  *metrics
}

func NewStepService(
	store CounterStore,
	idFormat IDFormat,
	logger *logrus.Logger,
	registerer prometheus.Registerer) *StepService {

	return &StepService{
		store:    store,
		idFormat: idFormat,
		logger:   logger,
		metrics:  newMetrics(registerer),
	}
}

func (s *StepService) normalize(teamID string) (string, error) {
	id, err := s.idFormat.Normalize(teamID)
	if err != nil {
		return "", errors.WithMessage(err, "team")
	}
	return id, nil
}

func (s *StepService) normalizePair(teamID, counterID string) (string, string, error) {
	team, err := s.normalize(teamID)
	if err != nil {
		return "", "", err
	}

	c, err := s.idFormat.Normalize(counterID)
	if err != nil {
		return "", "", errors.WithMessage(err, "counter")
	}
	return team, c, nil
}

// AddTeam creates a team, failing with ErrAlreadyExists if it is already present.
func (s *StepService) AddTeam(teamID string) error {
	team, err := s.normalize(teamID)
	if err != nil {
		return err
	}

	if !s.store.AddTeam(team) {
		return errors.Wrapf(ErrAlreadyExists, "team %s", team)
	}

	s.logger.WithField("team", team).Debug("team added")
	return nil
}

// DeleteTeam removes a team and its counters. Missing teams are not an error.
func (s *StepService) DeleteTeam(teamID string) error {
	team, err := s.normalize(teamID)
	if err != nil {
		return err
	}

	s.store.DeleteTeam(team)
	return nil
}

// AddCounter creates a counter in an existing team. It fails with ErrNotFound
// when the team is missing and ErrAlreadyExists when the counter is present.
func (s *StepService) AddCounter(teamID, counterID string) error {
	team, c, err := s.normalizePair(teamID, counterID)
	if err != nil {
		return err
	}

	if s.store.AddCounter(team, c) {
		s.logger.WithFields(logrus.Fields{"team": team, "counter": c}).Debug("counter added")
		return nil
	}

	// the store does not say why the add failed
	if !s.store.HasTeam(team) {
		return errors.Wrapf(ErrNotFound, "team %s", team)
	}
	return errors.Wrapf(ErrAlreadyExists, "counter %s in team %s", c, team)
}

// DeleteCounter removes a counter. Missing teams or counters are not an error.
func (s *StepService) DeleteCounter(teamID, counterID string) error {
	team, c, err := s.normalizePair(teamID, counterID)
	if err != nil {
		return err
	}

	s.store.DeleteCounter(team, c)
	return nil
}

// IncrementCounter adds a non-negative number of steps to a counter.
func (s *StepService) IncrementCounter(teamID, counterID string, steps int64) (err error) {
	defer func() {
		switch {
		case err == nil:
			s.metrics.increments.WithLabelValues("ok").Inc()
			s.metrics.steps.Add(float64(steps))
		case errors.Is(err, ErrNotFound):
			s.metrics.increments.WithLabelValues("not_found").Inc()
		default:
			s.metrics.increments.WithLabelValues("invalid").Inc()
		}
	}()

	team, c, err := s.normalizePair(teamID, counterID)
	if err != nil {
		return err
	}

	if steps < 0 {
		return errors.Wrapf(ErrInvalidSteps, "steps must not be negative, got %d", steps)
	}

	if !s.store.IncrementCounter(team, c, steps) {
		return errors.Wrapf(ErrNotFound, "counter %s in team %s", c, team)
	}

	return nil
}

// GetTotalSteps returns the sum of the team's counters.
func (s *StepService) GetTotalSteps(teamID string) (int64, error) {
	team, err := s.normalize(teamID)
	if err != nil {
		return 0, err
	}

	total, ok := s.store.GetTotalSteps(team)
	if !ok {
		return 0, errors.Wrapf(ErrNotFound, "team %s", team)
	}
	return total, nil
}

// ListCounters returns the counters of a team.
func (s *StepService) ListCounters(teamID string) ([]counter.CounterSteps, error) {
	team, err := s.normalize(teamID)
	if err != nil {
		return nil, err
	}

	counters, ok := s.store.ListCounters(team)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "team %s", team)
	}
	return counters, nil
}

// ListTeams returns every team with its total steps.
func (s *StepService) ListTeams() []counter.TeamSteps {
	return s.store.ListTeams()
}
