package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"labMapJobs/mapreduce"
	"log"
	"os"
	"strconv"
	"strings"
)

var (
	// Run mode settings
	mode     = flag.String("mode", "distributed", "Run mode: distributed or sequential")
	nodeType = flag.String("type", "worker", "Node type: master or worker")
	job      = flag.String("job", "mean", "Job to run: sum, mean, histogram, set-diff or matmul")

	// Input data settings
	file    = flag.String("file", "p2.csv", "Input file: .csv (one column) or .json (array of records)")
	column  = flag.String("column", "x_value", "CSV column holding the records")
	buckets = flag.String("buckets", "unit", "Histogram buckets: unit ([1,2) .. [8,9)) or dynamic (width 5)")

	// Network settings
	addr    = flag.String("addr", "127.0.0.1", "IP address to listen on")
	port    = flag.Int("port", 5000, "TCP port to listen on")
	workers = flag.String("workers", "127.0.0.1:5000,127.0.0.1:5001,127.0.0.1:5002", "Comma separated worker addresses, in partition order")

	// Worker storage settings
	dataDir = flag.String("datadir", mapreduce.DATA_PATH, "Directory holding the stored partitions")
	minFree = flag.Uint64("minfree", 0, "Minimum free bytes required to store a partition (0 = no check)")
	clean   = flag.Bool("clean", false, "Remove stored partitions on startup")
)

// Code Entry Point
func main() {
	var (
		err    error
		jobs   *mapreduce.JobSet
		data   []interface{}
		result interface{}
	)

	flag.Parse()

	jobs = mapreduce.DefaultJobs()

	if err = oneOf("mode", *mode, "distributed", "sequential"); err != nil {
		log.Fatal(err)
	}
	if err = oneOf("type", *nodeType, "master", "worker"); err != nil {
		log.Fatal(err)
	}
	if err = oneOf("buckets", *buckets, "unit", "dynamic"); err != nil {
		log.Fatal(err)
	}

	log.Println("Running in", *mode, "mode.")

	if *mode == "distributed" && *nodeType == "worker" {
		log.Println("NodeType:", *nodeType)
		log.Println("Address:", *addr)
		log.Println("Port:", *port)
		log.Println("Data:", *dataDir)

		if *clean {
			_ = mapreduce.RemoveContents(*dataDir)
		}

		config := mapreduce.WorkerConfig{
			Addr:         *addr + ":" + strconv.Itoa(*port),
			DataDir:      *dataDir,
			MinFreeBytes: *minFree,
		}
		if err = mapreduce.RunWorker(config, jobs); err != nil {
			log.Fatal(err)
		}
		return
	}

	log.Println("Job:", *job)
	log.Println("File:", *file)

	if data, err = loadInput(*file, *column); err != nil {
		log.Fatal(err)
	}

	if *buckets == "dynamic" {
		jobs.Register(mapreduce.NewHistogramJob(mapreduce.DynamicBuckets(numbers(data), 5)))
	}

	switch *mode {
	case "sequential":
		// Sequential runs the same split, map and reduce steps in a single
		// process. Its used to test job implementations.
		var j mapreduce.Job

		if j, err = jobs.Get(mapreduce.JobType(*job)); err != nil {
			log.Fatal(err)
		}

		result, err = mapreduce.RunSequential(j, data, len(strings.Split(*workers, ",")))

	case "distributed":
		log.Println("NodeType:", *nodeType)
		log.Println("Workers:", *workers)

		config := mapreduce.MasterConfig{Workers: strings.Split(*workers, ",")}
		result, err = mapreduce.RunMaster(config, jobs, mapreduce.JobType(*job), data)

	default:
		log.Fatalf("Unknown mode %q", *mode)
	}

	if err != nil {
		log.Fatal(err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err = encoder.Encode(result); err != nil {
		log.Fatal(err)
	}
}

// oneOf fails when a flag holds none of the accepted values.
func oneOf(name string, value string, accepted ...string) error {
	for _, a := range accepted {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("unknown -%s %q, expected one of %v", name, value, accepted)
}
