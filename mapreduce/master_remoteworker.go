package mapreduce

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
)

type RemoteWorker struct {
	id       int
	hostname string
}

// Send a request to the RemoteWorker and wait for its response. Every call
// opens its own connection and closes it afterwards. There is no timeout: a
// worker that never answers blocks the call.
func (worker *RemoteWorker) callRemoteWorker(request *Request) (*Response, error) {
	var (
		err      error
		conn     net.Conn
		message  []byte
		response *Response
	)

	if conn, err = net.Dial("tcp", worker.hostname); err != nil {
		return nil, &TransportError{worker.hostname, "dial", err}
	}
	defer conn.Close()

	if err = writeMessage(conn, request); err != nil {
		return nil, &TransportError{worker.hostname, "write", err}
	}

	// A response cut short by the worker closing the connection is still
	// accepted as long as it holds a whole JSON value.
	message, err = readMessage(bufio.NewReader(conn))
	if err == errIncomplete && len(message) == 0 {
		return nil, &TransportError{worker.hostname, "read", errors.New("connection closed without response")}
	} else if err != nil && err != errIncomplete {
		return nil, &TransportError{worker.hostname, "read", err}
	}

	response = new(Response)
	if err = json.Unmarshal(message, response); err != nil {
		return nil, &TransportError{worker.hostname, "decode", err}
	}

	if response.Error != "" {
		return response, &RemoteError{worker.hostname, request.Command, response.Code, response.Error}
	}
	return response, nil
}
