package scheduler

import (
	"context"
	"testing"

	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func noop(context.Context) {}

func TestScheduler_SyncSchedules(t *testing.T) {
	tests := map[string]struct {
		expectErr            bool
		existingJobs         []Job
		newJobs              []Job
		expectedScheduleRefs map[string]string
		expectKeptEntry      string
	}{
		"GivenExistingSchedule_WhenReplacingScheduleOfSameJob_ThenReplaceTheSchedule": {
			existingJobs: []Job{
				{Name: "capture/42", Schedule: "1 * * * *"},
			},
			newJobs: []Job{
				{Name: "capture/42", Schedule: "* * * * *"},
			},
			expectedScheduleRefs: map[string]string{"capture/42": "* * * * *"},
		},
		"GivenInexistentSchedule_WhenAddingWithNewSchedule_ThenAddSchedule": {
			newJobs: []Job{
				{Name: "capture/42", Schedule: "* * * * *"},
			},
			expectedScheduleRefs: map[string]string{"capture/42": "* * * * *"},
		},
		"GivenExistingSchedule_WhenAddingAnotherJob_ThenKeepUnchangedEntry": {
			existingJobs: []Job{
				{Name: "capture/42", Schedule: "1 * * * *"},
			},
			newJobs: []Job{
				{Name: "capture/42", Schedule: "1 * * * *"},
				{Name: "capture/43", Schedule: "@daily"},
			},
			expectedScheduleRefs: map[string]string{"capture/42": "1 * * * *", "capture/43": "@daily"},
			expectKeptEntry:      "capture/42",
		},
		"GivenExistingSchedules_WhenSyncingSchedules_ThenRemoveInexistentSchedule": {
			existingJobs: []Job{
				{Name: "capture/42", Schedule: "1 * * * *"},
				{Name: "capture/43", Schedule: "* * * * *"},
			},
			newJobs: []Job{
				{Name: "capture/42", Schedule: "1 * * * *"},
			},
			expectedScheduleRefs: map[string]string{"capture/42": "1 * * * *"},
		},
		"GivenInvalidSchedule_WhenSyncing_ThenError": {
			newJobs: []Job{
				{Name: "capture/42", Schedule: "every day"},
			},
			expectErr: true,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s := New(zapr.NewLogger(zaptest.NewLogger(t)), nil)
			for i := range tt.existingJobs {
				tt.existingJobs[i].Run = noop
			}
			for i := range tt.newJobs {
				tt.newJobs[i].Run = noop
			}
			require.NoError(t, s.SyncSchedules(tt.existingJobs))
			before := s.registeredSchedules[tt.expectKeptEntry]

			err := s.SyncSchedules(tt.newJobs)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			require.Len(t, s.registeredSchedules, len(tt.expectedScheduleRefs))
			for jobName, schedule := range tt.expectedScheduleRefs {
				assert.Equal(t, schedule, s.registeredSchedules[jobName].Schedule)
			}
			assert.Len(t, s.cron.Entries(), len(tt.expectedScheduleRefs))
			assert.Equal(t, float64(len(tt.expectedScheduleRefs)), testutil.ToFloat64(s.scheduleGauge))
			if tt.expectKeptEntry != "" {
				assert.Equal(t, before.EntryID, s.registeredSchedules[tt.expectKeptEntry].EntryID)
			}
		})
	}
}

func TestScheduler_RemoveSchedule(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(zapr.NewLogger(zaptest.NewLogger(t)), reg)
	require.NoError(t, s.SyncSchedules([]Job{{Name: "capture/42", Schedule: "@hourly", Run: noop}}))

	s.RemoveSchedule("capture/42")
	s.RemoveSchedule("capture/unknown")

	assert.Empty(t, s.registeredSchedules)
	assert.Empty(t, s.cron.Entries())
	assert.Equal(t, float64(0), testutil.ToFloat64(s.scheduleGauge))
}

func TestScheduler_CallbackPassesSchedulerContext(t *testing.T) {
	s := New(zapr.NewLogger(zaptest.NewLogger(t)), nil)
	var got context.Context
	s.getScheduleCallback(Job{Name: "capture/42", Run: func(ctx context.Context) { got = ctx }})()

	require.NotNil(t, got)
	assert.NoError(t, got.Err())
	s.cancel()
	assert.ErrorIs(t, got.Err(), context.Canceled)
	assert.Equal(t, float64(1), testutil.ToFloat64(s.runCounter.WithLabelValues("capture/42")))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("*/5 * * * *"))
	assert.NoError(t, Validate("@daily"))
	assert.Error(t, Validate("every day"))
}
