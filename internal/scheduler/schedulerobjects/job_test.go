package schedulerobjects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobState(t *testing.T) {
	tests := map[string]struct {
		input    string
		expected JobState
		err      bool
	}{
		"name":            {input: "Queued", expected: JobStateQueued},
		"lower case name": {input: "suspended", expected: JobStateSuspended},
		"code":            {input: "R", expected: JobStateRunning},
		"padded code":     {input: " h ", expected: JobStateHeld},
		"exiting":         {input: "E", expected: JobStateExiting},
		"finished":        {input: "finished", expected: JobStateFinished},
		"unknown":         {input: "sleeping", err: true},
		"empty":           {input: "", err: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			state, err := ParseJobState(tc.input)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, state)
		})
	}
}

func TestJobStateString(t *testing.T) {
	assert.Equal(t, "Suspended", JobStateSuspended.String())
	assert.Equal(t, "Unknown", JobState(42).String())
	assert.True(t, JobStateFinished.IsTerminal())
	assert.False(t, JobStateHeld.IsTerminal())
}

func TestJob_Accessors(t *testing.T) {
	job := &Job{
		Id:          "1.server",
		Queue:       "workq",
		Reservation: "R1",
		Resources:   map[string]string{SelectResource: "1:ncpus=1", PlaceResource: "excl"},
	}
	assert.Equal(t, "1.server", job.GetId())
	assert.Equal(t, "workq", job.GetQueue())
	assert.True(t, job.InReservation())

	sel, ok := job.Select()
	assert.True(t, ok)
	assert.Equal(t, "1:ncpus=1", sel)
	place, ok := job.Place()
	assert.True(t, ok)
	assert.Equal(t, "excl", place)

	_, ok = (&Job{}).Select()
	assert.False(t, ok)
	assert.False(t, (&Job{}).InReservation())
}

func TestJob_DeepCopy(t *testing.T) {
	job := &Job{Id: "a", Resources: map[string]string{"ncpus": "1"}}
	copied := job.DeepCopy()
	assert.Equal(t, job, copied)

	copied.Resources["ncpus"] = "2"
	assert.Equal(t, "1", job.Resources["ncpus"])

	var nilJob *Job
	assert.Nil(t, nilJob.DeepCopy())
}
