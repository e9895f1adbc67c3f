package jobdb

import (
	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/armadaproject/jobclass/internal/scheduler/schedulerobjects"
)

const (
	jobsTable   = "jobs"
	queuesTable = "queues"
	idIndex     = "id"    // index for looking up jobs by id
	queueIndex  = "queue" // index for looking up jobs in a given queue
	nameIndex   = "id"    // primary index of the queues table
)

// JobDb is the scheduler-internal store of jobs and queues.
// Every scheduling cycle classifies the jobs visible in a single read transaction, so writes committed
// while a cycle is in progress are seen only by the next cycle.
// JobDb is implemented on top of https://github.com/hashicorp/go-memdb which is a simple in-memory database built on
// immutable radix trees.
type JobDb struct {
	// In-memory database. Stores *schedulerobjects.Job and *schedulerobjects.Queue.
	Db *memdb.MemDB
}

func NewJobDb() (*JobDb, error) {
	db, err := memdb.NewMemDB(jobDbSchema())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &JobDb{
		Db: db,
	}, nil
}

// Upsert will insert the given jobs if they don't already exist or update them if they do.
// Any jobs passed to this function *must not* be subsequently modified.
func (jobDb *JobDb) Upsert(txn *memdb.Txn, jobs []*schedulerobjects.Job) error {
	for _, job := range jobs {
		if job == nil || job.Id == "" {
			return errors.New("job with empty id")
		}
		if err := txn.Insert(jobsTable, job); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// UpsertQueues will insert the given queues if they don't already exist or update them if they do.
// Any queues passed to this function *must not* be subsequently modified.
func (jobDb *JobDb) UpsertQueues(txn *memdb.Txn, queues []*schedulerobjects.Queue) error {
	for _, queue := range queues {
		if queue == nil || queue.Name == "" {
			return errors.New("queue with empty name")
		}
		if err := txn.Insert(queuesTable, queue); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// GetById returns the job with the given Id or nil if no such job exists.
// The Job returned by this function *must not* be subsequently modified.
func (jobDb *JobDb) GetById(txn *memdb.Txn, id string) (*schedulerobjects.Job, error) {
	obj, err := txn.First(jobsTable, idIndex, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if obj == nil {
		return nil, nil
	}
	return obj.(*schedulerobjects.Job), nil
}

// GetAll returns all jobs in the database in submission order, ties broken by id.
// The Jobs returned by this function *must not* be subsequently modified.
func (jobDb *JobDb) GetAll(txn *memdb.Txn) ([]*schedulerobjects.Job, error) {
	iter, err := txn.Get(jobsTable, idIndex)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	result := make([]*schedulerobjects.Job, 0)
	for obj := iter.Next(); obj != nil; obj = iter.Next() {
		result = append(result, obj.(*schedulerobjects.Job))
	}
	slices.SortFunc(result, func(a, b *schedulerobjects.Job) bool {
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return a.Id < b.Id
	})
	return result, nil
}

// GetByQueue returns all jobs in the given queue, in id order.
func (jobDb *JobDb) GetByQueue(txn *memdb.Txn, queue string) ([]*schedulerobjects.Job, error) {
	iter, err := txn.Get(jobsTable, queueIndex, queue)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	result := make([]*schedulerobjects.Job, 0)
	for obj := iter.Next(); obj != nil; obj = iter.Next() {
		result = append(result, obj.(*schedulerobjects.Job))
	}
	return result, nil
}

// GetQueues returns all queues in the database sorted by name.
func (jobDb *JobDb) GetQueues(txn *memdb.Txn) ([]*schedulerobjects.Queue, error) {
	iter, err := txn.Get(queuesTable, nameIndex)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	result := make([]*schedulerobjects.Queue, 0)
	for obj := iter.Next(); obj != nil; obj = iter.Next() {
		result = append(result, obj.(*schedulerobjects.Queue))
	}
	return result, nil
}

// BatchDelete removes the jobs with the given ids from the database. Any ids that are not in the database will be
// ignored.
func (jobDb *JobDb) BatchDelete(txn *memdb.Txn, ids []string) error {
	for _, id := range ids {
		err := txn.Delete(jobsTable, &schedulerobjects.Job{Id: id})
		if err != nil && !errors.Is(err, memdb.ErrNotFound) {
			return errors.WithStack(err)
		}
	}
	return nil
}

// DeleteQueues removes the named queues from the database. Unknown names are ignored.
func (jobDb *JobDb) DeleteQueues(txn *memdb.Txn, names []string) error {
	for _, name := range names {
		err := txn.Delete(queuesTable, &schedulerobjects.Queue{Name: name})
		if err != nil && !errors.Is(err, memdb.ErrNotFound) {
			return errors.WithStack(err)
		}
	}
	return nil
}

// ReadTxn returns a read-only transaction.
// Multiple read-only transactions can access the db concurrently.
func (jobDb *JobDb) ReadTxn() *memdb.Txn {
	return jobDb.Db.Txn(false)
}

// WriteTxn returns a writeable transaction.
// Only a single write transaction may access the db at any given time.
func (jobDb *JobDb) WriteTxn() *memdb.Txn {
	return jobDb.Db.Txn(true)
}

// jobDbSchema() creates the database schema.
// Jobs are indexed by id and by queue; queues by name.
func jobDbSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			jobsTable: {
				Name: jobsTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex, // lookup by primary key
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Id"},
					},
					queueIndex: {
						Name:         queueIndex,
						Unique:       false,
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "Queue"},
					},
				},
			},
			queuesTable: {
				Name: queuesTable,
				Indexes: map[string]*memdb.IndexSchema{
					nameIndex: {
						Name:    nameIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Name"},
					},
				},
			},
		},
	}
}
