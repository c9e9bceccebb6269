package mapreduce

import (
	"encoding/json"
	"errors"
	"log"
)

// RunSequential runs the same split, map and reduce steps as a distributed
// job, in a single process and without any network or storage. It is meant
// to check job implementations against the distributed path.
func RunSequential(job Job, data []interface{}, numWorkers int) (interface{}, error) {
	var (
		err      error
		params   json.RawMessage
		records  []json.RawMessage
		result   interface{}
		partial  []byte
		partials []json.RawMessage
	)

	log.Printf("Running %v sequentially over %v chunks...\n", job.Type(), numWorkers)

	if p := job.Params(); p != nil {
		if params, err = json.Marshal(p); err != nil {
			return nil, err
		}
	}

	for _, chunk := range Split(data, numWorkers) {
		if records, err = encodeRecords(chunk); err != nil {
			return nil, err
		}

		if err = job.Check(records); err != nil {
			return nil, err
		}

		result, err = job.Map(records, params)
		if errors.Is(err, ErrEmptyPartition) {
			partials = append(partials, nil)
			continue
		} else if err != nil {
			return nil, err
		}

		if partial, err = json.Marshal(result); err != nil {
			return nil, err
		}
		partials = append(partials, partial)
	}

	return job.Reduce(partials)
}

// RunMaster will run one job end to end on the configured workers: the data
// is partitioned and stored on them, their map phase is run and the partial
// results are reduced into the returned value.
func RunMaster(config MasterConfig, jobs *JobSet, jobType JobType, data []interface{}) (interface{}, error) {
	var (
		err    error
		master *Master
		result interface{}
	)

	log.Printf("Running Master for %v on %v\n", jobType, config.Workers)

	if master, err = NewMaster(config, jobs); err != nil {
		return nil, err
	}

	if result, err = master.Run(jobType, data); err != nil {
		return nil, err
	}

	log.Println("Done.")
	return result, nil
}

// RunWorker will run a instance of a worker and serve requests until its
// listener is closed.
func RunWorker(config WorkerConfig, jobs *JobSet) error {
	var (
		err    error
		worker *Worker
	)

	log.Println("Running Worker on", config.Addr)

	if worker, err = NewWorker(config, jobs); err != nil {
		return err
	}

	worker.Serve()
	return nil
}
