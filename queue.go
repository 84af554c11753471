package nebulite

import (
	"bufio"
	"strings"
	"sync"
)

// CommandQueue is one of the three per-frame command queues from spec.md
// §4.8 step 6 (script/internal/always). wait_counter pauses draining for a
// fixed number of frames without losing queued work.
type CommandQueue struct {
	mu              sync.Mutex
	items           []string
	waitCounter     int
	clearAfterDrain bool
	lastCodes       []Code
}

// NewCommandQueue creates a queue. clearAfterDrain is false for the
// "always" queue, which is never cleared.
func NewCommandQueue(clearAfterDrain bool) *CommandQueue {
	return &CommandQueue{clearAfterDrain: clearAfterDrain}
}

// Push appends cmd to the back of the queue.
func (q *CommandQueue) Push(cmd string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, cmd)
}

// PushFront prepends cmds as a block, preserving their relative order, so
// that a loaded task file executes in file order ahead of anything already
// queued (spec.md §6).
func (q *CommandQueue) PushFront(cmds []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(append([]string{}, cmds...), q.items...)
}

// SetWaitCounter arms the queue to skip n additional drains (spec.md §4.8
// step 6 / the `wait` command).
func (q *CommandQueue) SetWaitCounter(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.waitCounter = n
}

// LastCodes returns the result codes recorded by the most recent Drain.
func (q *CommandQueue) LastCodes() []Code {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastCodes
}

// Drain dispatches every queued command in order, recording each result
// code, and halts further processing of this queue for the frame as soon
// as a critical code is seen (spec.md §7). If waitCounter is positive, the
// whole drain is skipped this frame and the counter decremented.
func (q *CommandQueue) Drain(tree *CommandTree, ctx *CommandContext) []Code {
	q.mu.Lock()
	if q.waitCounter > 0 {
		q.waitCounter--
		q.mu.Unlock()
		return nil
	}
	items := q.items
	q.mu.Unlock()

	var codes []Code
	halted := false
	for _, cmd := range items {
		code := tree.Dispatch(cmd, ctx)
		codes = append(codes, code)
		if code.Critical() {
			log.Errorw("command queue halted on critical code", "command", cmd, "code", code.String())
			halted = true
			break
		}
	}

	q.mu.Lock()
	q.lastCodes = codes
	if q.clearAfterDrain {
		q.items = nil
	} else if halted {
		// "always" queues are never cleared, but still drop what was just
		// attempted so a permanently-failing command doesn't spin forever.
		q.items = q.items[len(codes):]
	}
	q.mu.Unlock()
	return codes
}

// ParseTaskFile splits a task-file body into command strings in source
// order: `#` starts a line comment, and `;` chains multiple commands on
// one line (spec.md §6).
func ParseTaskFile(data []byte) []string {
	var cmds []string
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := scanner.Text()
		if hash := strings.IndexByte(line, '#'); hash >= 0 {
			line = line[:hash]
		}
		for _, part := range strings.Split(line, ";") {
			part = strings.TrimSpace(part)
			if part != "" {
				cmds = append(cmds, part)
			}
		}
	}
	return cmds
}
