package oracle

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/proforma/internal/model"
	"github.com/cleared-dev/proforma/internal/reconcile"
)

// MethodProposeCorrection is the JSON-RPC method the oracle process serves.
const MethodProposeCorrection = "propose_correction"

// JSON-RPC 2.0 message types.

type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      any    `json:"id,omitempty"`
}

// Response is a JSON-RPC 2.0 response. Result is left raw until the caller
// knows what to decode it into.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      any             `json:"id"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("oracle error %d: %s", e.Code, e.Message)
}

// ProposeParams is the params object of a propose_correction request.
type ProposeParams struct {
	BalanceSheet *model.BalanceSheet `json:"balance_sheet"`
	Change       model.Change        `json:"change"`
	Imbalance    decimal.Decimal     `json:"imbalance"`
}

var errProcessExited = errors.New("oracle process exited unexpectedly")

// Command is an oracle served by a long-lived subprocess speaking
// newline-delimited JSON-RPC 2.0 on stdin/stdout. Calls may be concurrent;
// responses are matched by request id.
type Command struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	reader  *bufio.Reader
	mu      sync.Mutex
	nextID  int
	pending map[int]chan *Response
	done    chan struct{}
}

var _ reconcile.Oracle = (*Command)(nil)

// StartCommand launches argv with env appended to the current environment.
// The child's stderr is passed through.
func StartCommand(argv []string, env []string) (*Command, error) {
	if len(argv) == 0 {
		return nil, errors.New("oracle command is empty")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting oracle %s: %w", argv[0], err)
	}

	c := &Command{
		cmd:     cmd,
		stdin:   stdin,
		reader:  bufio.NewReader(stdout),
		pending: make(map[int]chan *Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// ProposeCorrection sends one propose_correction request and waits for its
// response, ctx cancellation, or the process exiting.
func (c *Command) ProposeCorrection(ctx context.Context, snapshot *model.BalanceSheet, failing model.Change, imbalance decimal.Decimal) (model.Change, error) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan *Response, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.send(Request{
		JSONRPC: "2.0",
		Method:  MethodProposeCorrection,
		Params:  ProposeParams{BalanceSheet: snapshot, Change: failing, Imbalance: imbalance},
		ID:      id,
	}); err != nil {
		c.forget(id)
		return model.Change{}, fmt.Errorf("sending request: %w", err)
	}

	select {
	case resp := <-ch:
		return decodeCorrection(resp)
	case <-c.done:
		// readLoop delivers every response it read before closing done.
		select {
		case resp := <-ch:
			return decodeCorrection(resp)
		default:
			return model.Change{}, errProcessExited
		}
	case <-ctx.Done():
		c.forget(id)
		return model.Change{}, ctx.Err()
	}
}

func decodeCorrection(resp *Response) (model.Change, error) {
	if resp.Error != nil {
		return model.Change{}, resp.Error
	}
	var corrected model.Change
	if err := json.Unmarshal(resp.Result, &corrected); err != nil {
		return model.Change{}, fmt.Errorf("decoding correction: %w", err)
	}
	return corrected, nil
}

// Close sends the shutdown notification and waits for the process to exit.
func (c *Command) Close() error {
	_ = c.send(Request{JSONRPC: "2.0", Method: "shutdown"})
	_ = c.stdin.Close()
	return c.cmd.Wait()
}

func (c *Command) forget(id int) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Command) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	c.mu.Lock()
	_, err = fmt.Fprintf(c.stdin, "%s\n", data)
	c.mu.Unlock()
	return err
}

func (c *Command) readLoop() {
	defer close(c.done)
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return
		}

		var resp Response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			continue
		}
		if resp.Result == nil && resp.Error == nil {
			continue
		}

		id := toInt(resp.ID)
		c.mu.Lock()
		ch, ok := c.pending[id]
		if ok {
			delete(c.pending, id)
		}
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}
