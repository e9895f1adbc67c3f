package scheduler

import (
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v2"

	"github.com/armadaproject/jobclass/internal/common/logctx"
	"github.com/armadaproject/jobclass/internal/scheduler/jobdb"
	"github.com/armadaproject/jobclass/internal/scheduler/schedulerobjects"
)

// JobSource brings the jobs in the JobDb up to date ahead of a cycle.
type JobSource interface {
	Sync(ctx *logctx.Context, db *jobdb.JobDb) error
}

// FileJobSource mirrors the jobs listed in a YAML file into the JobDb.
// Jobs no longer in the file are removed.
type FileJobSource struct {
	path string
}

func NewFileJobSource(path string) *FileJobSource {
	return &FileJobSource{path: path}
}

type jobFile struct {
	Jobs []jobEntry `yaml:"jobs"`
}

type jobEntry struct {
	Id          string            `yaml:"id"`
	User        string            `yaml:"user"`
	Group       string            `yaml:"group"`
	Project     string            `yaml:"project"`
	Queue       string            `yaml:"queue"`
	Reservation string            `yaml:"reservation"`
	State       string            `yaml:"state"`
	Array       bool              `yaml:"array"`
	Resources   map[string]string `yaml:"resources"`
	Timestamp   int64             `yaml:"timestamp"`
}

// ReadJobsFile parses the jobs in a YAML jobs file.
// Jobs with no timestamp are ordered as listed; jobs with no state are queued.
// Every job must have an id not used by any other job in the file.
func ReadJobsFile(path string) ([]*schedulerobjects.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var file jobFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, errors.Wrapf(err, "parsing jobs file %s", path)
	}
	var result *multierror.Error
	jobs := make([]*schedulerobjects.Job, 0, len(file.Jobs))
	seen := make(map[string]int, len(file.Jobs))
	for i, entry := range file.Jobs {
		if entry.Id == "" {
			result = multierror.Append(result, errors.Errorf("job %d in %s has no id", i, path))
			continue
		}
		if first, ok := seen[entry.Id]; ok {
			result = multierror.Append(result, errors.Errorf("job %d in %s has id %s, already used by job %d", i, path, entry.Id, first))
			continue
		}
		seen[entry.Id] = i
		state := schedulerobjects.JobStateQueued
		if entry.State != "" {
			state, err = schedulerobjects.ParseJobState(entry.State)
			if err != nil {
				result = multierror.Append(result, errors.WithMessagef(err, "job %s", entry.Id))
				continue
			}
		}
		timestamp := entry.Timestamp
		if timestamp == 0 {
			timestamp = int64(i + 1)
		}
		jobs = append(jobs, &schedulerobjects.Job{
			Id:          entry.Id,
			User:        entry.User,
			Group:       entry.Group,
			Project:     entry.Project,
			Queue:       entry.Queue,
			Reservation: entry.Reservation,
			State:       state,
			IsArray:     entry.Array,
			Resources:   entry.Resources,
			Timestamp:   timestamp,
		})
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *FileJobSource) Sync(ctx *logctx.Context, db *jobdb.JobDb) error {
	jobs, err := ReadJobsFile(s.path)
	if err != nil {
		return err
	}
	txn := db.WriteTxn()
	defer txn.Abort()

	existing, err := db.GetAll(txn)
	if err != nil {
		return err
	}
	stale := make(map[string]bool, len(existing))
	for _, job := range existing {
		stale[job.Id] = true
	}
	for _, job := range jobs {
		delete(stale, job.Id)
	}
	if err := db.BatchDelete(txn, maps.Keys(stale)); err != nil {
		return err
	}
	if err := db.Upsert(txn, jobs); err != nil {
		return err
	}
	txn.Commit()
	ctx.Log.Debugf("Synced %d jobs from %s, removed %d", len(jobs), s.path, len(stale))
	return nil
}
