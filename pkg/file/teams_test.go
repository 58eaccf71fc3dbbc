package file

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samueltorres/stepcounter/pkg/counter"
	"github.com/samueltorres/stepcounter/pkg/steps"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTeamFileService(t *testing.T) {
	testCases := []struct {
		desc      string
		file      string
		wantTeams []counter.TeamSteps
		wantErr   bool
	}{
		{
			desc: "valid file seeds teams",
			file: "testdata/teams.yaml",
			wantTeams: []counter.TeamSteps{
				{Team: "alpha"},
				{Team: "beta"},
				{Team: "gamma"},
			},
		},
		{
			desc:    "duplicated team",
			file:    "testdata/duplicated.yaml",
			wantErr: true,
		},
		{
			desc:    "duplicated counter",
			file:    "testdata/duplicated_counter.yaml",
			wantErr: true,
		},
		{
			desc:    "missing file",
			file:    "testdata/missing.yaml",
			wantErr: true,
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			store, service := newTestService()

			_, err := NewTeamFileService(tC.file, service, newNullLogger())

			if tC.wantErr {
				assert.Error(t, err)
				assert.Equal(t, 0, store.TeamCount())
				return
			}
			require.NoError(t, err)

			teams := store.ListTeams()
			sort.Slice(teams, func(i, j int) bool { return teams[i].Team < teams[j].Team })
			assert.Equal(t, tC.wantTeams, teams)

			counters, ok := store.ListCounters("alpha")
			assert.True(t, ok)
			assert.Len(t, counters, 2)
		})
	}
}

func TestTeamFileService_ReloadKeepsSteps(t *testing.T) {
	dir, err := ioutil.TempDir("", "teams")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "teams.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte("teams:\n  - id: alpha\n    counters: [c1]\n"), 0644))

	store, service := newTestService()
	fs, err := NewTeamFileService(path, service, newNullLogger())
	require.NoError(t, err)

	require.True(t, store.IncrementCounter("alpha", "c1", 30))

	require.NoError(t, ioutil.WriteFile(path, []byte("teams:\n  - id: alpha\n    counters: [c1, c2]\n  - id: beta\n"), 0644))
	require.NoError(t, fs.viper.ReadInConfig())
	require.NoError(t, fs.loadTeams())

	total, ok := store.GetTotalSteps("alpha")
	assert.True(t, ok)
	assert.Equal(t, int64(30), total)

	counters, ok := store.ListCounters("alpha")
	assert.True(t, ok)
	assert.Len(t, counters, 2)
	assert.True(t, store.HasTeam("beta"))
}

func TestTeamFileService_InvalidIDForFormat(t *testing.T) {
	store := counter.NewStore(newNullLogger(), prometheus.NewRegistry())
	service := steps.NewStepService(store, steps.IDFormatUUID, newNullLogger(), prometheus.NewRegistry())

	_, err := NewTeamFileService("testdata/teams.yaml", service, newNullLogger())
	assert.Error(t, err)
}

func newTestService() (*counter.Store, *steps.StepService) {
	store := counter.NewStore(newNullLogger(), prometheus.NewRegistry())
	return store, steps.NewStepService(store, steps.IDFormatString, newNullLogger(), prometheus.NewRegistry())
}

func newNullLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	return logger
}
