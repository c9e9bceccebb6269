// common_rpc.go defines the messages exchanged between master and workers.
// Every connection carries one newline-terminated JSON request and one
// newline-terminated JSON response.
package mapreduce

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type CommandKind string

const (
	KIND_STORE CommandKind = "store"
	KIND_MAP   CommandKind = "map"

	STORE_PREFIX = "store_data_"
	MAP_SUFFIX   = "_map"

	// Command names of the untagged job kept from the first protocol version.
	LEGACY_STORE = "store_data"
	LEGACY_MAP   = "map_task"
)

// Command is the decoded form of a request's "command" field.
type Command struct {
	Kind CommandKind
	Job  JobType
}

// ParseCommand splits a command name into its kind and job. The job is not
// checked against any JobSet.
func ParseCommand(name string) (Command, error) {
	switch {
	case name == LEGACY_STORE:
		return Command{KIND_STORE, JOB_SUM}, nil
	case name == LEGACY_MAP:
		return Command{KIND_MAP, JOB_SUM}, nil
	case strings.HasPrefix(name, STORE_PREFIX) && len(name) > len(STORE_PREFIX):
		return Command{KIND_STORE, JobType(strings.TrimPrefix(name, STORE_PREFIX))}, nil
	case strings.HasSuffix(name, MAP_SUFFIX) && len(name) > len(MAP_SUFFIX):
		return Command{KIND_MAP, JobType(strings.TrimSuffix(name, MAP_SUFFIX))}, nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

func (cmd Command) String() string {
	if cmd.Kind == KIND_STORE {
		return STORE_PREFIX + string(cmd.Job)
	}
	return string(cmd.Job) + MAP_SUFFIX
}

// Request is sent by the master. Data is only set on store commands and
// Params only on map commands.
type Request struct {
	Command string            `json:"command"`
	Data    []json.RawMessage `json:"data,omitempty"`
	Params  json.RawMessage   `json:"params,omitempty"`
}

// Response is sent by a worker. Exactly one of Error or Status is set.
type Response struct {
	Status    string          `json:"status,omitempty"`
	Records   *int            `json:"records,omitempty"`
	MapResult json.RawMessage `json:"map_result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Code      ErrorCode       `json:"code,omitempty"`
}

type ErrorCode string

const (
	CODE_DECODE          ErrorCode = "decode_error"
	CODE_UNKNOWN_COMMAND ErrorCode = "unknown_command"
	CODE_EMPTY_PARTITION ErrorCode = "empty_partition"
	CODE_NO_SPACE        ErrorCode = "no_space"
	CODE_INTERNAL        ErrorCode = "internal"
)

func errorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrDecode):
		return CODE_DECODE
	case errors.Is(err, ErrUnknownCommand):
		return CODE_UNKNOWN_COMMAND
	case errors.Is(err, ErrEmptyPartition):
		return CODE_EMPTY_PARTITION
	case errors.Is(err, ErrNoSpace):
		return CODE_NO_SPACE
	}
	return CODE_INTERNAL
}

func errorResponse(err error) *Response {
	return &Response{Error: err.Error(), Code: errorCode(err)}
}

// StoreReply is a worker's acknowledgement of a store command.
type StoreReply struct {
	Worker  string `json:"worker"`
	Status  string `json:"status"`
	Records int    `json:"records"`
}

// errIncomplete is returned by readMessage when the peer closed the
// connection before sending the terminator.
var errIncomplete = errors.New("incomplete message")

// readMessage reads one message up to and including the newline terminator.
// On errIncomplete the bytes read so far are returned as well.
func readMessage(reader *bufio.Reader) ([]byte, error) {
	line, err := reader.ReadBytes('\n')
	if err == io.EOF {
		return line, errIncomplete
	}
	return line, err
}

// writeMessage encodes v as a single JSON line.
func writeMessage(w io.Writer, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}

// TransportError reports a failed exchange with a worker: the connection
// could not be made, broke, or carried no usable response.
type TransportError struct {
	Worker string
	Op     string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Worker, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError is an error response returned by a worker.
type RemoteError struct {
	Worker  string
	Command string
	Code    ErrorCode
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("worker %s: %s: %s", e.Worker, e.Command, e.Message)
}

// Is lets errors.Is match a RemoteError against the sentinel its code stands for.
func (e *RemoteError) Is(target error) bool {
	switch e.Code {
	case CODE_DECODE:
		return target == ErrDecode
	case CODE_UNKNOWN_COMMAND:
		return target == ErrUnknownCommand
	case CODE_EMPTY_PARTITION:
		return target == ErrEmptyPartition
	case CODE_NO_SPACE:
		return target == ErrNoSpace
	}
	return false
}
