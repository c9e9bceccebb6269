package mapreduce

import (
	"bufio"
	"errors"
	"log"
	"net"
)

// WorkerConfig holds the settings of a worker node.
type WorkerConfig struct {
	Addr         string // host:port to listen on, port 0 picks a free one
	DataDir      string
	MinFreeBytes uint64
}

type Worker struct {
	// Network
	hostname string
	listener net.Listener

	// Operation
	store *Store
	jobs  *JobSet
	done  chan bool
}

// NewWorker starts listening on config.Addr and opens the partition store.
// Partitions are keyed by the port actually bound.
func NewWorker(config WorkerConfig, jobs *JobSet) (*Worker, error) {
	var (
		err      error
		worker   *Worker
		listener net.Listener
		port     string
	)

	if config.DataDir == "" {
		config.DataDir = DATA_PATH
	}

	if listener, err = net.Listen("tcp", config.Addr); err != nil {
		return nil, err
	}

	if _, port, err = net.SplitHostPort(listener.Addr().String()); err != nil {
		listener.Close()
		return nil, err
	}

	worker = new(Worker)
	worker.hostname = listener.Addr().String()
	worker.listener = listener
	worker.jobs = jobs
	worker.done = make(chan bool)

	if worker.store, err = NewStore(config.DataDir, port, config.MinFreeBytes); err != nil {
		listener.Close()
		return nil, err
	}

	return worker, nil
}

// Addr returns the address the worker listens on.
func (worker *Worker) Addr() string {
	return worker.hostname
}

// Serve accepts connections until the worker is closed.
func (worker *Worker) Serve() {
	worker.acceptMultipleConnections()
	close(worker.done)
}

// Close stops accepting connections. Connections already accepted are served
// to completion.
func (worker *Worker) Close() error {
	return worker.listener.Close()
}

// Wait blocks until Serve returns.
func (worker *Worker) Wait() {
	<-worker.done
}

// acceptMultipleConnections will handle the connections from the master.
func (worker *Worker) acceptMultipleConnections() {
	var (
		err     error
		newConn net.Conn
	)

	log.Printf("Accepting connections on %v\n", worker.listener.Addr())

	for {
		newConn, err = worker.listener.Accept()

		if err == nil {
			go worker.handleConnection(newConn)
		} else {
			if !errors.Is(err, net.ErrClosed) {
				log.Println("Failed to accept connection. Error: ", err)
			}
			break
		}
	}

	log.Println("Stopped accepting connections.")
}

// Handle a single request on the connection, then closes it. An incomplete
// request is dropped without a response.
func (worker *Worker) handleConnection(conn net.Conn) {
	var (
		err      error
		message  []byte
		response *Response
	)

	defer conn.Close()

	message, err = readMessage(bufio.NewReader(conn))
	if err == errIncomplete {
		log.Printf("Discarding incomplete message from %v (%v bytes)\n", conn.RemoteAddr(), len(message))
		return
	} else if err != nil {
		log.Printf("Failed to read from %v. Error: %v\n", conn.RemoteAddr(), err)
		return
	}

	response = worker.handleMessage(message)

	if err = writeMessage(conn, response); err != nil {
		log.Printf("Failed to respond to %v. Error: %v\n", conn.RemoteAddr(), err)
	}
}
