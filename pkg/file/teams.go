package file

import (
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/samueltorres/stepcounter/pkg/steps"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// TeamsConfig is the layout of the teams file.
type TeamsConfig struct {
	Teams []TeamConfig `mapstructure:"teams"`
}

type TeamConfig struct {
	ID       string   `mapstructure:"id"`
	Counters []string `mapstructure:"counters"`
}

// StepService is the part of steps.StepService the teams file needs.
type StepService interface {
	AddTeam(teamID string) error
	AddCounter(teamID, counterID string) error
}

// TeamFileService seeds teams and counters from a file. Entries that already
// exist are left alone and nothing is ever removed, so steps survive reloads.
type TeamFileService struct {
	viper   *viper.Viper
	service StepService
	logger  *logrus.Logger
}

func NewTeamFileService(file string, service StepService, logger *logrus.Logger) (*TeamFileService, error) {
	v := viper.New()
	v.SetConfigFile(file)
	err := v.ReadInConfig()
	if err != nil {
		return nil, errors.Wrap(err, "error reading in teams file")
	}

	fs := &TeamFileService{
		viper:   v,
		service: service,
		logger:  logger,
	}

	err = fs.loadTeams()
	if err != nil {
		return nil, errors.Wrap(err, "error loading teams")
	}

	return fs, nil
}

// Watch re-applies the file every time it changes on disk.
func (fs *TeamFileService) Watch() {
	fs.viper.WatchConfig()
	fs.viper.OnConfigChange(func(e fsnotify.Event) {
		fs.logger.WithField("file", e.Name).Info("teams file changed")
		if err := fs.loadTeams(); err != nil {
			fs.logger.Error(err)
		}
	})
}

func (fs *TeamFileService) loadTeams() error {
	var teamsConfig TeamsConfig
	err := fs.viper.Unmarshal(&teamsConfig)
	if err != nil {
		return errors.Wrap(err, "error on teams config unmarshal")
	}

	err = validateTeams(teamsConfig)
	if err != nil {
		return errors.Wrap(err, "teams file is invalid")
	}

	teams, counters, err := fs.apply(teamsConfig)
	if err != nil {
		return err
	}

	fs.logger.Infof("teams file applied, %d teams and %d counters created", teams, counters)
	return nil
}

func (fs *TeamFileService) apply(tc TeamsConfig) (teams int, counters int, err error) {
	for _, t := range tc.Teams {
		err = fs.service.AddTeam(t.ID)
		switch {
		case err == nil:
			teams++
		case errors.Is(err, steps.ErrAlreadyExists):
		default:
			return teams, counters, errors.Wrapf(err, "could not add team %s", t.ID)
		}

		for _, c := range t.Counters {
			err = fs.service.AddCounter(t.ID, c)
			switch {
			case err == nil:
				counters++
			case errors.Is(err, steps.ErrAlreadyExists):
			default:
				return teams, counters, errors.Wrapf(err, "could not add counter %s to team %s", c, t.ID)
			}
		}
	}

	return teams, counters, nil
}

func validateTeams(tc TeamsConfig) error {
	teamMap := make(map[string]bool, len(tc.Teams))

	for i, t := range tc.Teams {
		if t.ID == "" {
			return errors.Errorf("invalid team id (%d)", i)
		}

		if _, exists := teamMap[t.ID]; exists {
			return errors.Errorf("duplicated team id (%s)", t.ID)
		}
		teamMap[t.ID] = true

		counterMap := make(map[string]bool, len(t.Counters))
		for j, c := range t.Counters {
			if c == "" {
				return errors.Errorf("invalid counter id - team (%s) counter (%d)", t.ID, j)
			}

			if _, exists := counterMap[c]; exists {
				return errors.Errorf("duplicated counter id - team (%s) counter (%s)", t.ID, c)
			}
			counterMap[c] = true
		}
	}

	return nil
}
