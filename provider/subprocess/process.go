package subprocess

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goa-design/agentswarm/agentprovider"
	"github.com/goa-design/agentswarm/internal/telemetry"
)

// Spawner constructs the *exec.Cmd used to start an agent process. Concrete
// Providers supply this to avoid hard-coding any particular agent binary.
type Spawner func(ctx context.Context, agentID string) (*exec.Cmd, error)

// process owns one spawned agent's stdio pipes and lifecycle. It is
// grounded on the teacher's features/mcp/runtime.StdioCaller (pending-map
// request/response correlation, sync.Once-guarded Close) but reads
// line-delimited JSON-RPC frames (spec.md §6) instead of Content-Length
// framed ones, and additionally tracks a last-heartbeat timestamp and an
// interrupted flag for health/cancellation purposes.
type process struct {
	agentID string
	cmd     *exec.Cmd
	stdin   io.WriteCloser

	writeMu sync.Mutex
	nextID  uint64

	pendingMu sync.Mutex
	pending   map[uint64]chan rpcResponse

	sink agentprovider.Sink

	lastHeartbeat atomic.Int64 // unix nanos
	interrupted   atomic.Bool

	closeOnce sync.Once
	closed    chan struct{}

	logger telemetry.Logger
}

func newProcess(ctx context.Context, agentID string, spawn Spawner, sink agentprovider.Sink, logger telemetry.Logger) (*process, error) {
	cmd, err := spawn(ctx, agentID)
	if err != nil {
		return nil, err
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, _ := cmd.StderrPipe()
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &process{
		agentID: agentID,
		cmd:     cmd,
		stdin:   stdin,
		pending: make(map[uint64]chan rpcResponse),
		sink:    sink,
		closed:  make(chan struct{}),
		logger:  logger,
	}
	p.touchHeartbeat()
	go p.readLoop(stdout)
	if stderr != nil {
		go p.drainStderr(stderr)
	}
	return p, nil
}

func (p *process) touchHeartbeat() { p.lastHeartbeat.Store(time.Now().UnixNano()) }

func (p *process) staleSince(threshold time.Duration) bool {
	last := time.Unix(0, p.lastHeartbeat.Load())
	return time.Since(last) > threshold
}

func (p *process) alive() bool {
	return p.cmd.ProcessState == nil
}

// call sends a request and blocks for its matching response.
func (p *process) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := atomic.AddUint64(&p.nextID, 1)
	ch := make(chan rpcResponse, 1)
	p.pendingMu.Lock()
	p.pending[id] = ch
	p.pendingMu.Unlock()

	raw, err := json.Marshal(params)
	if err != nil {
		p.removePending(id)
		return nil, err
	}
	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: raw}
	if err := p.writeLine(req); err != nil {
		p.removePending(id)
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error.asError()
		}
		return resp.Result, nil
	case <-ctx.Done():
		p.removePending(id)
		return nil, ctx.Err()
	case <-p.closed:
		return nil, fmt.Errorf("subprocess: agent %s process closed", p.agentID)
	}
}

func (p *process) removePending(id uint64) {
	p.pendingMu.Lock()
	delete(p.pending, id)
	p.pendingMu.Unlock()
}

func (p *process) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := p.stdin.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

func (p *process) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		p.touchHeartbeat()
		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		if resp.ID == 0 && resp.Method != "" {
			for _, chunk := range translateNotification(resp.Method, resp.Params) {
				p.sink(p.agentID, chunk)
			}
			continue
		}
		p.pendingMu.Lock()
		ch, ok := p.pending[resp.ID]
		if ok {
			delete(p.pending, resp.ID)
		}
		p.pendingMu.Unlock()
		if ok {
			ch <- resp
		}
	}
	p.failPending(fmt.Errorf("subprocess: agent %s stdout closed", p.agentID))
}

func (p *process) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		p.logger.Warn(context.Background(), "subprocess stderr", "agentID", p.agentID, "line", scanner.Text())
	}
}

func (p *process) failPending(err error) {
	p.pendingMu.Lock()
	for id, ch := range p.pending {
		delete(p.pending, id)
		ch <- rpcResponse{Error: &rpcError{Message: err.Error()}}
	}
	p.pendingMu.Unlock()
}

// interrupt is idempotent: repeated calls after the flag is set are no-ops.
func (p *process) interrupt() error {
	if p.interrupted.Swap(true) {
		return nil
	}
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Signal(processInterruptSignal)
}

// close is idempotent and terminates the process if still running. The
// exit status of the terminated process is not reported as an error.
func (p *process) close() error {
	var err error
	p.closeOnce.Do(func() {
		_ = p.stdin.Close()
		if p.cmd.Process != nil && p.cmd.ProcessState == nil {
			_ = p.cmd.Process.Kill()
		}
		if waitErr := p.cmd.Wait(); waitErr != nil {
			if _, exited := waitErr.(*exec.ExitError); !exited {
				err = waitErr
			}
		}
		close(p.closed)
	})
	return err
}
