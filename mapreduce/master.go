package mapreduce

import (
	"errors"
	"log"
)

// MasterConfig holds the fixed, ordered set of workers. Chunk i of every
// distributed input goes to Workers[i].
type MasterConfig struct {
	Workers []string
}

// Master partitions input data over its workers, triggers their map phase
// and reduces the partial results. It runs one request at a time.
type Master struct {
	workers []*RemoteWorker
	jobs    *JobSet
}

// Construct a new Master for the configured workers.
func NewMaster(config MasterConfig, jobs *JobSet) (*Master, error) {
	var master *Master

	if len(config.Workers) == 0 {
		return nil, errors.New("master needs at least one worker")
	}

	master = new(Master)
	master.jobs = jobs
	master.workers = make([]*RemoteWorker, len(config.Workers))
	for i, hostname := range config.Workers {
		master.workers[i] = &RemoteWorker{id: i, hostname: hostname}
	}

	log.Printf("Master configured with %v workers: %v\n", len(config.Workers), config.Workers)
	return master, nil
}

// Workers returns the worker addresses in partition order.
func (master *Master) Workers() []string {
	hostnames := make([]string, len(master.workers))
	for i, worker := range master.workers {
		hostnames[i] = worker.hostname
	}
	return hostnames
}
