package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

var errConnClosed = errors.New("mpv connection closed")

// errPropertyUnavailable is what mpv reports for properties that have no
// value in the current state, like the duration while nothing is loaded.
const errPropertyUnavailable = "property unavailable"

type ipcEvent struct {
	Event  string          `json:"event"`
	Name   string          `json:"name"`
	Data   json.RawMessage `json:"data"`
	Reason string          `json:"reason"`
	// FileError describes why a file failed to play, set if Reason is
	// "error".
	FileError string `json:"file_error"`
}

type ipcMessage struct {
	ipcEvent
	RequestID *int64 `json:"request_id"`
	Error     string `json:"error"`
}

type ipcResponse struct {
	data json.RawMessage
	err  error
}

// ipcConn speaks mpv's JSON IPC protocol: newline separated JSON messages
// where replies are matched to commands by their request ID.
type ipcConn struct {
	conn    io.ReadWriteCloser
	onEvent func(ipcEvent)

	writeLock sync.Mutex

	lock    sync.Mutex
	nextID  int64
	pending map[int64]chan ipcResponse
	closed  chan struct{}
	err     error
}

// newIPCConn starts reading from conn. Events are passed to onEvent from the
// reading goroutine, which must not block or issue commands.
func newIPCConn(conn io.ReadWriteCloser, onEvent func(ipcEvent)) *ipcConn {
	c := &ipcConn{
		conn:    conn,
		onEvent: onEvent,
		pending: map[int64]chan ipcResponse{},
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *ipcConn) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		if msg.Event != "" {
			c.onEvent(msg.ipcEvent)
			continue
		}
		if msg.RequestID == nil {
			continue
		}
		c.lock.Lock()
		ch, ok := c.pending[*msg.RequestID]
		delete(c.pending, *msg.RequestID)
		c.lock.Unlock()
		if !ok {
			continue
		}
		res := ipcResponse{data: msg.Data}
		if msg.Error != "success" {
			res.err = fmt.Errorf("mpv: %s", msg.Error)
		}
		ch <- res
	}

	err := scanner.Err()
	if err == nil {
		err = errConnClosed
	}
	c.lock.Lock()
	c.err = err
	for id, ch := range c.pending {
		ch <- ipcResponse{err: err}
		delete(c.pending, id)
	}
	close(c.closed)
	c.lock.Unlock()
}

// Command executes a command and returns the data of the reply.
func (c *ipcConn) Command(ctx context.Context, args ...interface{}) (json.RawMessage, error) {
	ch := make(chan ipcResponse, 1)
	c.lock.Lock()
	if c.err != nil {
		err := c.err
		c.lock.Unlock()
		return nil, err
	}
	c.nextID++
	id := c.nextID
	c.pending[id] = ch
	c.lock.Unlock()

	b, err := json.Marshal(map[string]interface{}{
		"command":    args,
		"request_id": id,
	})
	if err != nil {
		c.forget(id)
		return nil, err
	}
	c.writeLock.Lock()
	_, err = c.conn.Write(append(b, '\n'))
	c.writeLock.Unlock()
	if err != nil {
		c.forget(id)
		return nil, err
	}

	select {
	case res := <-ch:
		return res.data, res.err
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

func (c *ipcConn) forget(id int64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.pending, id)
}

// Close closes the connection and waits for the reader to finish.
func (c *ipcConn) Close() error {
	err := c.conn.Close()
	<-c.closed
	return err
}
