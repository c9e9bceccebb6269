package mapreduce

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// Distribute splits data into one chunk per worker and stores chunk i on
// worker i, in worker order. It stops at the first failure; chunks already
// stored stay where they are.
func (master *Master) Distribute(jobType JobType, data []interface{}) ([]StoreReply, error) {
	var (
		err     error
		job     Job
		chunks  [][]interface{}
		request *Request
		reply   *Response
		replies []StoreReply
	)

	if job, err = master.jobs.Get(jobType); err != nil {
		return nil, err
	}

	chunks = Split(data, len(master.workers))
	replies = make([]StoreReply, 0, len(master.workers))

	log.Printf("Distributing %v records of %v over %v workers\n", len(data), job.Type(), len(master.workers))

	for i, worker := range master.workers {
		request = &Request{Command: Command{KIND_STORE, job.Type()}.String()}
		if request.Data, err = encodeRecords(chunks[i]); err != nil {
			return replies, err
		}

		if reply, err = worker.callRemoteWorker(request); err != nil {
			log.Printf("Store on worker '%v' failed. Error: %v\n", worker.id, err)
			return replies, err
		}

		replies = append(replies, StoreReply{Worker: worker.hostname, Status: reply.Status})
		if reply.Records != nil {
			replies[i].Records = *reply.Records
		}
	}

	return replies, nil
}

// RunJob sends a map command to every worker, in worker order, and returns
// their partial results in the same order. A worker with nothing stored for
// a job that refuses empty partitions contributes a null partial.
func (master *Master) RunJob(jobType JobType) ([]json.RawMessage, error) {
	var (
		err      error
		job      Job
		request  *Request
		reply    *Response
		partials []json.RawMessage
	)

	if job, err = master.jobs.Get(jobType); err != nil {
		return nil, err
	}

	request = &Request{Command: Command{KIND_MAP, job.Type()}.String()}
	if params := job.Params(); params != nil {
		if request.Params, err = json.Marshal(params); err != nil {
			return nil, err
		}
	}

	log.Printf("Running %v map on %v workers\n", job.Type(), len(master.workers))

	partials = make([]json.RawMessage, 0, len(master.workers))
	for _, worker := range master.workers {
		reply, err = worker.callRemoteWorker(request)
		if errors.Is(err, ErrEmptyPartition) {
			log.Printf("Worker '%v' has no %v data\n", worker.id, job.Type())
			partials = append(partials, nil)
			continue
		} else if err != nil {
			log.Printf("Map on worker '%v' failed. Error: %v\n", worker.id, err)
			return nil, err
		}

		partials = append(partials, reply.MapResult)
	}

	return partials, nil
}

// Reduce combines the partial results returned by RunJob.
func (master *Master) Reduce(jobType JobType, partials []json.RawMessage) (interface{}, error) {
	job, err := master.jobs.Get(jobType)
	if err != nil {
		return nil, err
	}

	if len(partials) != len(master.workers) {
		return nil, fmt.Errorf("got %v partial results for %v workers", len(partials), len(master.workers))
	}

	return job.Reduce(partials)
}

// Run distributes data, runs the map phase and reduces its results.
func (master *Master) Run(jobType JobType, data []interface{}) (interface{}, error) {
	var (
		err      error
		partials []json.RawMessage
	)

	if _, err = master.Distribute(jobType, data); err != nil {
		return nil, err
	}

	if partials, err = master.RunJob(jobType); err != nil {
		return nil, err
	}

	return master.Reduce(jobType, partials)
}

func encodeRecords(chunk []interface{}) ([]json.RawMessage, error) {
	records := make([]json.RawMessage, len(chunk))
	for i, v := range chunk {
		record, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrDecode, i, err)
		}
		records[i] = record
	}
	return records, nil
}
