package equivclass

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/jobclass/internal/scheduler/calendar"
	"github.com/armadaproject/jobclass/internal/scheduler/limits"
	"github.com/armadaproject/jobclass/internal/scheduler/resources"
	"github.com/armadaproject/jobclass/internal/scheduler/schedulerobjects"
)

const testDefaultQueue = "workq"

var (
	testResourcesLine = []string{"ncpus", "mem", "arch", "host", "vnode", "aoe"}
	// Monday 2026-10-19, 10:00.
	testNow = time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)
)

func testRegistry(t *testing.T) *resources.Registry {
	registry, err := resources.NewRegistry(nil, 0)
	require.NoError(t, err)
	return registry
}

func testClassifier(t *testing.T, observer ClassCountObserver) *Classifier {
	return NewClassifier(testRegistry(t), testResourcesLine, testDefaultQueue, nil, observer)
}

func testQueues() []*schedulerobjects.Queue {
	return []*schedulerobjects.Queue{{Name: testDefaultQueue}}
}

func mustParseLimit(t *testing.T, scope limits.Scope, queue, attribute, value string) []limits.Limit {
	ls, err := limits.ParseAttribute(scope, queue, attribute, value)
	require.NoError(t, err)
	return ls
}

func queuedJob(id string, resourceRequest map[string]string) *schedulerobjects.Job {
	return &schedulerobjects.Job{
		Id:        id,
		User:      "user1",
		Group:     "group1",
		Project:   "project1",
		Queue:     testDefaultQueue,
		State:     schedulerobjects.JobStateQueued,
		Resources: resourceRequest,
	}
}

func withUser(job *schedulerobjects.Job, user string) *schedulerobjects.Job {
	job.User = user
	return job
}

func withState(job *schedulerobjects.Job, state schedulerobjects.JobState) *schedulerobjects.Job {
	job.State = state
	return job
}

func withReservation(job *schedulerobjects.Job, reservation string) *schedulerobjects.Job {
	job.Reservation = reservation
	return job
}

func withQueue(job *schedulerobjects.Job, queue string) *schedulerobjects.Job {
	job.Queue = queue
	return job
}

func selectJob(id, spec string) *schedulerobjects.Job {
	return queuedJob(id, map[string]string{schedulerobjects.SelectResource: spec})
}

func TestClassify(t *testing.T) {
	tests := map[string]struct {
		jobs          []*schedulerobjects.Job
		queues        []*schedulerobjects.Queue
		serverLimits  []limits.Limit
		fairshare     bool
		expectedCount int
		// Groups of job ids expected to share a class.
		expectedClasses [][]string
	}{
		"running job joins the queued jobs it matches": {
			jobs: []*schedulerobjects.Job{
				withState(selectJob("eat", "1:ncpus=8"), schedulerobjects.JobStateRunning),
				selectJob("a1", "1:ncpus=8"), selectJob("a2", "1:ncpus=8"), selectJob("a3", "1:ncpus=8"),
				selectJob("b1", "1:ncpus=4"), selectJob("b2", "1:ncpus=4"), selectJob("b3", "1:ncpus=4"),
			},
			expectedCount:   2,
			expectedClasses: [][]string{{"eat", "a1", "a2", "a3"}, {"b1", "b2", "b3"}},
		},
		"running queued and held jobs share a class": {
			jobs: []*schedulerobjects.Job{
				withState(selectJob("r", "ncpus=1"), schedulerobjects.JobStateRunning),
				selectJob("q", "ncpus=1"),
				withState(selectJob("h", "ncpus=1"), schedulerobjects.JobStateHeld),
			},
			expectedCount:   1,
			expectedClasses: [][]string{{"r", "q", "h"}},
		},
		"resource not on resources line is ignored": {
			jobs: []*schedulerobjects.Job{
				queuedJob("a", map[string]string{"ncpus": "1", "foo": "bar"}),
				queuedJob("b", map[string]string{"ncpus": "1", "foo": "baz"}),
				queuedJob("c", map[string]string{"ncpus": "1"}),
			},
			expectedCount:   1,
			expectedClasses: [][]string{{"a", "b", "c"}},
		},
		"resource on resources line distinguishes": {
			jobs: []*schedulerobjects.Job{
				queuedJob("a", map[string]string{"arch": "linux"}),
				queuedJob("b", map[string]string{"arch": "aix"}),
				queuedJob("c", map[string]string{"mem": "1gb"}),
				queuedJob("d", map[string]string{"mem": "1024mb"}),
			},
			expectedCount:   3,
			expectedClasses: [][]string{{"a"}, {"b"}, {"c", "d"}},
		},
		"select resource not on resources line is ignored": {
			jobs: []*schedulerobjects.Job{
				selectJob("a", "1:ncpus=1:foo=4"),
				selectJob("b", "1:ncpus=1:foo=8"),
				selectJob("c", "ncpus=1"),
			},
			expectedCount:   1,
			expectedClasses: [][]string{{"a", "b", "c"}},
		},
		"select resource on resources line distinguishes": {
			jobs: []*schedulerobjects.Job{
				selectJob("a", "1:ncpus=1:arch=linux"),
				selectJob("b", "1:ncpus=1:arch=aix"),
				selectJob("c", "1:arch=linux:ncpus=1"),
			},
			expectedCount:   2,
			expectedClasses: [][]string{{"a", "c"}, {"b"}},
		},
		"equivalent select statements": {
			jobs: []*schedulerobjects.Job{
				selectJob("a", "ncpus=2:mem=1gb"),
				selectJob("b", "1:mem=1024mb:ncpus=2"),
				selectJob("c", "2:ncpus=2:mem=1gb"),
			},
			expectedCount:   2,
			expectedClasses: [][]string{{"a", "b"}, {"c"}},
		},
		"place statement distinguishes": {
			jobs: []*schedulerobjects.Job{
				queuedJob("a", map[string]string{"select": "ncpus=1", "place": "scatter"}),
				queuedJob("b", map[string]string{"select": "ncpus=1", "place": "pack"}),
				queuedJob("c", map[string]string{"select": "ncpus=1", "place": "scatter"}),
				queuedJob("d", map[string]string{"select": "ncpus=1"}),
			},
			expectedCount:   3,
			expectedClasses: [][]string{{"a", "c"}, {"b"}, {"d"}},
		},
		"job with no resources": {
			jobs: []*schedulerobjects.Job{
				queuedJob("a", nil),
				queuedJob("b", map[string]string{}),
			},
			expectedCount:   1,
			expectedClasses: [][]string{{"a", "b"}},
		},
		"users collapse without limits": {
			jobs: []*schedulerobjects.Job{
				withUser(selectJob("a", "ncpus=1"), "alice"),
				withUser(selectJob("b", "ncpus=1"), "bob"),
			},
			expectedCount:   1,
			expectedClasses: [][]string{{"a", "b"}},
		},
		"server user limit splits users": {
			jobs: []*schedulerobjects.Job{
				withUser(selectJob("a", "ncpus=1"), "alice"),
				withUser(selectJob("b", "ncpus=1"), "bob"),
				withUser(selectJob("c", "ncpus=1"), "alice"),
			},
			serverLimits:    []limits.Limit{{Entity: limits.EntityUser, EntityName: limits.GenericEntity, Value: "2"}},
			expectedCount:   2,
			expectedClasses: [][]string{{"a", "c"}, {"b"}},
		},
		"overall server limit does not split users": {
			jobs: []*schedulerobjects.Job{
				withUser(selectJob("a", "ncpus=1"), "alice"),
				withUser(selectJob("b", "ncpus=1"), "bob"),
			},
			serverLimits:    []limits.Limit{{Entity: limits.EntityOverall, EntityName: limits.AllEntities, Value: "10"}},
			expectedCount:   1,
			expectedClasses: [][]string{{"a", "b"}},
		},
		"fairshare collapses users despite limits": {
			jobs: []*schedulerobjects.Job{
				withUser(selectJob("a", "ncpus=1"), "alice"),
				withUser(selectJob("b", "ncpus=1"), "bob"),
			},
			serverLimits:    []limits.Limit{{Entity: limits.EntityUser, EntityName: limits.GenericEntity, Value: "2"}},
			fairshare:       true,
			expectedCount:   1,
			expectedClasses: [][]string{{"a", "b"}},
		},
		"reservations isolate": {
			jobs: []*schedulerobjects.Job{
				withReservation(selectJob("r1a", "ncpus=1"), "R1"),
				withReservation(selectJob("r1b", "ncpus=1"), "R1"),
				withReservation(selectJob("r2", "ncpus=1"), "R2"),
				selectJob("none", "ncpus=1"),
			},
			expectedCount:   3,
			expectedClasses: [][]string{{"r1a", "r1b"}, {"r2"}, {"none"}},
		},
		"suspended jobs are singletons": {
			jobs: []*schedulerobjects.Job{
				selectJob("a", "ncpus=1"),
				withState(selectJob("s1", "ncpus=1"), schedulerobjects.JobStateSuspended),
				withState(selectJob("s2", "ncpus=1"), schedulerobjects.JobStateSuspended),
				selectJob("b", "ncpus=1"),
			},
			expectedCount:   3,
			expectedClasses: [][]string{{"a", "b"}, {"s1"}, {"s2"}},
		},
		"time limit signatures": {
			jobs: []*schedulerobjects.Job{
				queuedJob("cput", map[string]string{"cput": "01:00:00"}),
				queuedJob("cput2", map[string]string{"cput": "3600"}),
				queuedJob("walltime", map[string]string{"walltime": "01:00:00"}),
				queuedJob("minmax", map[string]string{"min_walltime": "01:00:00", "max_walltime": "01:00:00"}),
			},
			expectedCount:   3,
			expectedClasses: [][]string{{"cput", "cput2"}, {"walltime"}, {"minmax"}},
		},
		"plain queues collapse": {
			jobs: []*schedulerobjects.Job{
				withQueue(selectJob("a", "ncpus=1"), "workq"),
				withQueue(selectJob("b", "ncpus=1"), "other"),
			},
			queues:          []*schedulerobjects.Queue{{Name: "workq"}, {Name: "other"}},
			expectedCount:   1,
			expectedClasses: [][]string{{"a", "b"}},
		},
		"queue with nodes distinguishes": {
			jobs: []*schedulerobjects.Job{
				withQueue(selectJob("a", "ncpus=1"), "workq"),
				withQueue(selectJob("b", "ncpus=1"), "bound"),
			},
			queues:          []*schedulerobjects.Queue{{Name: "workq"}, {Name: "bound", Nodes: []string{"n1"}}},
			expectedCount:   2,
			expectedClasses: [][]string{{"a"}, {"b"}},
		},
		"route queue jobs are classified apart": {
			jobs: []*schedulerobjects.Job{
				withQueue(selectJob("a", "ncpus=1"), "workq"),
				withQueue(selectJob("b", "ncpus=1"), "routeq"),
				withQueue(selectJob("c", "ncpus=1"), "routeq"),
			},
			queues:          []*schedulerobjects.Queue{{Name: "workq"}, {Name: "routeq", Type: schedulerobjects.QueueTypeRoute}},
			expectedCount:   2,
			expectedClasses: [][]string{{"a"}, {"b", "c"}},
		},
		"only terminal jobs are skipped": {
			jobs: []*schedulerobjects.Job{
				withState(selectJob("r", "ncpus=1"), schedulerobjects.JobStateRunning),
				withState(selectJob("h", "ncpus=1"), schedulerobjects.JobStateHeld),
				withState(selectJob("e", "ncpus=1"), schedulerobjects.JobStateExiting),
				withState(selectJob("f", "ncpus=1"), schedulerobjects.JobStateFinished),
				selectJob("q", "ncpus=1"),
			},
			expectedCount:   1,
			expectedClasses: [][]string{{"r", "h", "e", "q"}},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			queues := tc.queues
			if queues == nil {
				queues = testQueues()
			}
			dims := limits.Resolve(tc.serverLimits, queueLimits(queues), tc.fairshare)
			result, err := testClassifier(t, nil).Classify(tc.jobs, queues, dims, testNow)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedCount, result.Count())

			classes := result.Classes()
			require.Equal(t, len(tc.expectedClasses), len(classes))
			for i, expected := range tc.expectedClasses {
				assert.Equal(t, expected, classes[i].JobIds, "class %d", i)
				for _, id := range expected {
					class, ok := result.ClassOf(id)
					require.True(t, ok)
					assert.Equal(t, classes[i].Key, class.Key)
				}
			}
		})
	}
}

func queueLimits(queues []*schedulerobjects.Queue) map[string][]limits.Limit {
	rv := make(map[string][]limits.Limit, len(queues))
	for _, q := range queues {
		rv[q.Name] = q.Limits
	}
	return rv
}

func TestClassify_LimitSensitivity(t *testing.T) {
	jobs := []*schedulerobjects.Job{
		withUser(selectJob("a", "ncpus=1"), "alice"),
		withUser(selectJob("b", "ncpus=1"), "bob"),
	}
	tests := map[string]struct {
		scope     limits.Scope
		attribute string
		value     string
	}{
		"server hard":           {scope: limits.ScopeServer, attribute: "max_run", value: "[u:PBS_GENERIC=2]"},
		"server soft":           {scope: limits.ScopeServer, attribute: "max_run_soft", value: "[u:alice=2]"},
		"server resource":       {scope: limits.ScopeServer, attribute: "max_run_res.ncpus", value: "[u:PBS_GENERIC=8]"},
		"queue hard":            {scope: limits.ScopeQueue, attribute: "max_run", value: "[u:PBS_GENERIC=2]"},
		"queue soft resource":   {scope: limits.ScopeQueue, attribute: "max_run_res_soft.mem", value: "[u:PBS_GENERIC=1gb]"},
		"old style server user": {scope: limits.ScopeServer, attribute: "max_user_run", value: "4"},
		"old style queue user":  {scope: limits.ScopeQueue, attribute: "max_user_res_soft.ncpus", value: "4"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			classifier := testClassifier(t, nil)
			queue := ""
			if tc.scope == limits.ScopeQueue {
				queue = testDefaultQueue
			}
			parsed := mustParseLimit(t, tc.scope, queue, tc.attribute, tc.value)
			queues := testQueues()
			var serverLimits []limits.Limit
			if tc.scope == limits.ScopeServer {
				serverLimits = parsed
			} else {
				queues[0].Limits = parsed
			}

			// Enabled: owners split.
			result, err := classifier.Classify(jobs, queues, limits.Resolve(serverLimits, queueLimits(queues), false), testNow)
			require.NoError(t, err)
			assert.Equal(t, 2, result.Count())

			// Disabled: owners merge again.
			queues = testQueues()
			result, err = classifier.Classify(jobs, queues, limits.Resolve(nil, queueLimits(queues), false), testNow)
			require.NoError(t, err)
			assert.Equal(t, 1, result.Count())
		})
	}
}

func TestClassify_PrimetimeQueue(t *testing.T) {
	cal, err := calendar.New(calendar.Config{
		Days: map[string]calendar.DayConfig{"weekday": {Prime: "0800", NonPrime: "1700"}},
	})
	require.NoError(t, err)
	classifier := NewClassifier(testRegistry(t), testResourcesLine, testDefaultQueue, cal, nil)
	queues := []*schedulerobjects.Queue{
		{Name: testDefaultQueue},
		{Name: "p_q", Window: schedulerobjects.WindowPrimetime},
	}
	jobs := []*schedulerobjects.Job{
		selectJob("a", "ncpus=1"),
		withQueue(selectJob("b", "ncpus=1"), "p_q"),
	}
	dims := limits.Resolve(nil, nil, false)

	result, err := classifier.Classify(jobs, queues, dims, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count())

	// Outside primetime the queue cannot run jobs; its jobs are still classified, apart from runnable ones.
	evening := testNow.Add(10 * time.Hour)
	result, err = classifier.Classify(jobs, queues, dims, evening)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count())
	assert.Equal(t, 2, result.NumJobs())
	assert.Empty(t, result.Skipped())
	class, ok := result.ClassOf("b")
	require.True(t, ok)
	assert.Equal(t, "p_q", class.Attributes[AttributeQueue])
}

func TestClassify_SkippedByState(t *testing.T) {
	jobs := []*schedulerobjects.Job{
		withState(selectJob("r", "ncpus=1"), schedulerobjects.JobStateRunning),
		withState(selectJob("f1", "ncpus=1"), schedulerobjects.JobStateFinished),
		withState(selectJob("f2", "ncpus=2"), schedulerobjects.JobStateFinished),
	}
	result, err := testClassifier(t, nil).Classify(jobs, testQueues(), limits.Resolve(nil, nil, false), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NumJobs())
	assert.Equal(t, map[string]int{"Finished": 2}, result.Skipped())
	_, ok := result.ClassOf("f1")
	assert.False(t, ok)
}

func TestClassify_DuplicateJobId(t *testing.T) {
	jobs := []*schedulerobjects.Job{selectJob("a", "ncpus=1"), selectJob("a", "ncpus=2")}
	result, err := testClassifier(t, nil).Classify(jobs, testQueues(), limits.Resolve(nil, nil, false), testNow)
	assert.ErrorIs(t, err, ErrDuplicateJob)
	assert.Nil(t, result)
}

func TestClassify_Observer(t *testing.T) {
	tests := map[string]struct {
		jobs     []*schedulerobjects.Job
		expected []int
	}{
		"empty job set": {
			jobs:     nil,
			expected: nil,
		},
		"only terminal jobs": {
			jobs:     []*schedulerobjects.Job{withState(selectJob("a", "ncpus=1"), schedulerobjects.JobStateFinished)},
			expected: nil,
		},
		"only running jobs": {
			jobs:     []*schedulerobjects.Job{withState(selectJob("a", "ncpus=1"), schedulerobjects.JobStateRunning)},
			expected: []int{1},
		},
		"one class": {
			jobs:     []*schedulerobjects.Job{selectJob("a", "ncpus=1"), selectJob("b", "ncpus=1")},
			expected: []int{1},
		},
		"two classes": {
			jobs:     []*schedulerobjects.Job{selectJob("a", "ncpus=1"), selectJob("b", "ncpus=2")},
			expected: []int{2},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var observed []int
			classifier := testClassifier(t, ClassCountObserverFunc(func(count int) {
				observed = append(observed, count)
			}))
			_, err := classifier.Classify(tc.jobs, testQueues(), limits.Resolve(nil, nil, false), testNow)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, observed)
		})
	}
}

func TestClassify_NoStateAcrossCycles(t *testing.T) {
	classifier := testClassifier(t, nil)
	dims := limits.Resolve(nil, nil, false)
	first, err := classifier.Classify([]*schedulerobjects.Job{selectJob("a", "ncpus=1")}, testQueues(), dims, testNow)
	require.NoError(t, err)
	second, err := classifier.Classify([]*schedulerobjects.Job{selectJob("b", "ncpus=1")}, testQueues(), dims, testNow)
	require.NoError(t, err)

	_, ok := second.ClassOf("a")
	assert.False(t, ok)
	assert.Equal(t, 1, first.NumJobs())
	assert.Equal(t, 1, second.NumJobs())
	assert.Equal(t, first.Classes()[0].Key, second.Classes()[0].Key)
}

func TestKeyOf(t *testing.T) {
	a := Attributes{"select": "1:ncpus=1", "queue": "*", "reservation": ""}
	b := Attributes{"reservation": "", "queue": "*", "select": "1:ncpus=1"}
	assert.Equal(t, KeyOf(a), KeyOf(b))

	// Separators inside values cannot forge another bag.
	c := Attributes{"a": `1","b"="2`}
	d := Attributes{"a": "1", "b": "2"}
	assert.NotEqual(t, KeyOf(c), KeyOf(d))

	assert.Equal(t, Key(""), KeyOf(Attributes{}))
}

func TestReport(t *testing.T) {
	jobs := []*schedulerobjects.Job{
		selectJob("a", "ncpus=1"),
		selectJob("b", "ncpus=1"),
		withState(selectJob("c", "ncpus=1"), schedulerobjects.JobStateFinished),
	}
	result, err := testClassifier(t, nil).Classify(jobs, testQueues(), limits.Resolve(nil, nil, false), testNow)
	require.NoError(t, err)
	report := result.Report()
	assert.Regexp(t, `Classes:\s+1\n`, report)
	assert.Regexp(t, `Jobs skipped \(Finished\):\s+1\n`, report)
	assert.Regexp(t, `0\s+2\s+a\s+`+regexp.QuoteMeta(string(result.Classes()[0].Key)), report)
}
