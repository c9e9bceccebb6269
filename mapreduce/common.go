package mapreduce

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// JobType selects the partition slot on a worker and the map/reduce
// behaviour applied to it.
type JobType string

const (
	JOB_SUM       JobType = "sum"
	JOB_MEAN      JobType = "mean"
	JOB_HISTOGRAM JobType = "histogram"
	JOB_SETDIFF   JobType = "set-diff"
	JOB_MATMUL    JobType = "matmul"
)

var (
	ErrDecode         = errors.New("decode error")
	ErrUnknownCommand = errors.New("unknown command")
	ErrEmptyPartition = errors.New("empty partition")
	ErrNoSpace        = errors.New("not enough free space")
)

// Job is the strategy implemented by every analytical job. The same value is
// used on both sides of the wire: workers call Check and Map, the master
// calls Params and Reduce.
type Job interface {
	Type() JobType

	// Params is sent along with every map command, nil for none.
	Params() interface{}

	// Check validates a partition before it is stored.
	Check(records []json.RawMessage) error

	// Map computes the partial result of one partition. params is the raw
	// value sent by the master and may be empty.
	Map(records []json.RawMessage, params json.RawMessage) (interface{}, error)

	// Reduce combines the partial results of every worker, in worker order.
	// A null partial stands for a worker that had nothing to report.
	Reduce(partials []json.RawMessage) (interface{}, error)
}

// JobSet is the dispatch table of registered jobs, addressable by type or alias.
type JobSet struct {
	jobs    map[JobType]Job
	aliases map[string]JobType
}

func NewJobSet(jobs ...Job) *JobSet {
	set := &JobSet{
		jobs:    make(map[JobType]Job),
		aliases: make(map[string]JobType),
	}
	for _, job := range jobs {
		set.Register(job)
	}
	return set
}

// DefaultJobs registers every job with the default histogram layout and
// matrix dimensions, plus the p2..p5 command aliases.
func DefaultJobs() *JobSet {
	set := NewJobSet(
		&SumJob{},
		&MeanJob{},
		NewHistogramJob(UnitBuckets(1, 8)),
		&SetDiffJob{},
		NewMatMulJob(DefaultMatrixDims),
	)
	set.Alias("p2", JOB_MEAN)
	set.Alias("p3", JOB_HISTOGRAM)
	set.Alias("p4", JOB_SETDIFF)
	set.Alias("p5", JOB_MATMUL)
	return set
}

// Register adds job to the set, replacing any job of the same type.
func (set *JobSet) Register(job Job) {
	set.jobs[job.Type()] = job
}

func (set *JobSet) Alias(name string, jobType JobType) {
	set.aliases[name] = jobType
}

// Lookup resolves a job type or alias.
func (set *JobSet) Lookup(name string) (Job, bool) {
	if jobType, ok := set.aliases[name]; ok {
		name = string(jobType)
	}
	job, ok := set.jobs[JobType(name)]
	return job, ok
}

// Get is Lookup with an ErrUnknownCommand error.
func (set *JobSet) Get(name JobType) (Job, error) {
	job, ok := set.Lookup(string(name))
	if !ok {
		return nil, fmt.Errorf("%w: job %q", ErrUnknownCommand, name)
	}
	return job, nil
}

// Types returns the registered job types in sorted order.
func (set *JobSet) Types() []JobType {
	types := make([]JobType, 0, len(set.jobs))
	for jobType := range set.jobs {
		types = append(types, jobType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// decodeRecords unmarshals every record into a fresh T. null records are
// rejected since unmarshaling them would leave the zero value of T.
func decodeRecords[T any](records []json.RawMessage) ([]T, error) {
	out := make([]T, len(records))
	for i, record := range records {
		if isNull(record) {
			return nil, fmt.Errorf("%w: record %d is null", ErrDecode, i)
		}
		if err := json.Unmarshal(record, &out[i]); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrDecode, i, err)
		}
	}
	return out, nil
}

// decodePartials unmarshals the partial of every worker. null partials are
// left as the zero value of T.
func decodePartials[T any](partials []json.RawMessage) ([]T, error) {
	out := make([]T, len(partials))
	for i, partial := range partials {
		if isNull(partial) {
			continue
		}
		if err := json.Unmarshal(partial, &out[i]); err != nil {
			return nil, fmt.Errorf("%w: partial result %d: %v", ErrDecode, i, err)
		}
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
