package mapreduce

import (
	"encoding/json"
	"fmt"
	"log"
)

// handleMessage decodes one request and dispatches it on (kind, job). It
// always returns a response, errors included.
func (worker *Worker) handleMessage(message []byte) (response *Response) {
	var (
		err     error
		request Request
		command Command
		job     Job
	)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic while handling %q: %v\n", request.Command, r)
			response = errorResponse(fmt.Errorf("internal error: %v", r))
		}
	}()

	if err = json.Unmarshal(message, &request); err != nil {
		return worker.fail(request.Command, fmt.Errorf("%w: %v", ErrDecode, err))
	}

	if command, err = ParseCommand(request.Command); err != nil {
		return worker.fail(request.Command, err)
	}

	if job, err = worker.jobs.Get(command.Job); err != nil {
		return worker.fail(request.Command, fmt.Errorf("%w: %q", ErrUnknownCommand, request.Command))
	}

	switch command.Kind {
	case KIND_STORE:
		response, err = worker.runStore(job, request.Data)
	case KIND_MAP:
		response, err = worker.runMap(job, request.Params)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, request.Command)
	}

	if err != nil {
		return worker.fail(request.Command, err)
	}
	return response
}

// Store: replace the partition of the job with the request payload.
func (worker *Worker) runStore(job Job, data []json.RawMessage) (*Response, error) {
	var (
		err     error
		records int
	)

	if err = job.Check(data); err != nil {
		return nil, err
	}

	if err = worker.store.Save(job.Type(), data); err != nil {
		return nil, err
	}

	records = len(data)
	log.Printf("Stored %v records for %v\n", records, job.Type())

	return &Response{Status: fmt.Sprintf("Data %v stored", job.Type()), Records: &records}, nil
}

// Map: run the job's map function over the stored partition.
func (worker *Worker) runMap(job Job, params json.RawMessage) (*Response, error) {
	var (
		err     error
		records []json.RawMessage
		result  interface{}
		buffer  []byte
	)

	if records, err = worker.store.Load(job.Type()); err != nil {
		return nil, err
	}

	log.Printf("Running %v map over %v records\n", job.Type(), len(records))

	if result, err = job.Map(records, params); err != nil {
		return nil, err
	}

	if buffer, err = json.Marshal(result); err != nil {
		return nil, err
	}

	return &Response{Status: fmt.Sprintf("%v map done", job.Type()), MapResult: buffer}, nil
}

func (worker *Worker) fail(command string, err error) *Response {
	log.Printf("Command %q failed. Error: %v\n", command, err)
	return errorResponse(err)
}
